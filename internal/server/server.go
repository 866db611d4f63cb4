package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"mediasession/internal/catalog"
	"mediasession/internal/config"
	"mediasession/internal/session"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

// Controls is the transport surface driven by the player endpoints
type Controls interface {
	Play() error
	Pause() error
	PlayPause() error
	Stop() error
	SkipToNext() error
	SkipToPrevious() error
	SeekTo(positionMS int64) error
	PlayFromID(id string, extras map[string]string) error
	PlayFromSearch(query string) error
}

// StateSource exposes the session record and its event stream
type StateSource interface {
	Snapshot() session.Snapshot
	Subscribe() <-chan session.Event
	Unsubscribe(ch <-chan session.Event)
}

// MediaSource resolves track audio and artwork
type MediaSource interface {
	Track(id string) (models.Track, error)
	OpenAudio(id string) (io.ReadSeekCloser, string, error)
	Artwork(id string) ([]byte, string, error)
}

// Pinger reports library index health
type Pinger interface {
	Ping() error
}

// ControlServer is the local HTTP control surface of the daemon
type ControlServer struct {
	config   *config.Config
	logger   *logrus.Logger
	catalog  *catalog.Catalog
	state    StateSource
	controls Controls
	media    MediaSource
	index    Pinger

	startedAt    time.Time
	httpServer   *http.Server
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewControlServer creates the control server. Call SetIndex when the
// catalog comes from the library index.
func NewControlServer(cfg *config.Config, c *catalog.Catalog, state StateSource, controls Controls, media MediaSource, logger *logrus.Logger) *ControlServer {
	ms := &ControlServer{
		config:    cfg,
		logger:    logger,
		catalog:   c,
		state:     state,
		controls:  controls,
		media:     media,
		startedAt: time.Now(),
		shutdown:  make(chan struct{}),
	}
	ms.httpServer = &http.Server{
		Addr:        cfg.GetAddress(),
		Handler:     ms.Handler(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}
	ms.httpServer.RegisterOnShutdown(ms.releaseLongPolls)
	return ms
}

// SetIndex enables the database check of the health endpoint
func (ms *ControlServer) SetIndex(index Pinger) {
	ms.index = index
}

// Handler returns the routed handler wrapped in the middleware chain.
func (ms *ControlServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tracks", ms.handleGetTracks)
	mux.HandleFunc("GET /api/tracks/count", ms.handleGetTrackCount)
	mux.HandleFunc("GET /stream/{id}", ms.handleStreamTrack)
	mux.HandleFunc("GET /albumart/{id}", ms.handleAlbumArt)
	mux.HandleFunc("GET /health", ms.handleHealthCheck)

	mux.HandleFunc("GET /api/player/state", ms.handleGetPlayerState)
	mux.HandleFunc("GET /api/player/events", ms.handlePlayerEvents)
	mux.HandleFunc("POST /api/player/play", ms.transportHandler("play", ms.controls.Play))
	mux.HandleFunc("POST /api/player/pause", ms.transportHandler("pause", ms.controls.Pause))
	mux.HandleFunc("POST /api/player/playpause", ms.transportHandler("playpause", ms.controls.PlayPause))
	mux.HandleFunc("POST /api/player/stop", ms.transportHandler("stop", ms.controls.Stop))
	mux.HandleFunc("POST /api/player/next", ms.transportHandler("next", ms.controls.SkipToNext))
	mux.HandleFunc("POST /api/player/previous", ms.transportHandler("previous", ms.controls.SkipToPrevious))
	mux.HandleFunc("POST /api/player/play/{id}", ms.handlePlayFromID)
	mux.HandleFunc("POST /api/player/search", ms.handlePlayFromSearch)
	mux.HandleFunc("POST /api/player/seek", ms.handleSeek)

	var handler http.Handler = mux
	handler = ms.corsMiddleware(handler)
	handler = ms.requestLoggingMiddleware(handler)
	handler = ms.requestIDMiddleware(handler)
	handler = ms.panicRecoveryMiddleware(handler)
	return handler
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (ms *ControlServer) Start() error {
	ms.logger.WithFields(logrus.Fields{
		"address": fmt.Sprintf("http://%s", ms.config.GetAddress()),
		"tracks":  ms.catalog.Len(),
	}).Info("Control server starting")

	if err := ms.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, answers pending long polls and waits
// for in-flight requests until ctx expires.
func (ms *ControlServer) Shutdown(ctx context.Context) error {
	ms.logger.Info("Shutting down control server")
	return ms.httpServer.Shutdown(ctx)
}

func (ms *ControlServer) releaseLongPolls() {
	ms.shutdownOnce.Do(func() {
		close(ms.shutdown)
	})
}
