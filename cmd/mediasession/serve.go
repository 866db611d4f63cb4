package main

import (
	"context"
	"fmt"
	"time"

	"mediasession/internal/cache"
	"mediasession/internal/catalog"
	"mediasession/internal/client"
	"mediasession/internal/config"
	"mediasession/internal/device"
	"mediasession/internal/host"
	"mediasession/internal/library"
	"mediasession/internal/metadata"
	"mediasession/internal/mpris"
	"mediasession/internal/notification"
	"mediasession/internal/player"
	"mediasession/internal/server"
	"mediasession/internal/session"
	"mediasession/pkg/models"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the media session daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

// cleanup runs deferred shutdown steps in reverse order
type cleanup []func()

func (c *cleanup) add(fn func()) {
	*c = append(*c, fn)
}

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	var shutdown cleanup
	defer shutdown.run()

	extractor := metadata.NewExtractor(cfg.Library.SupportedFormats, logger)
	c, db, err := openCatalog(ctx, cfg, extractor, logger)
	if err != nil {
		return err
	}
	if db != nil {
		shutdown.add(func() { db.Close() })
	}

	if db != nil && cfg.Library.WatchForChanges {
		watcher := library.NewWatcher(extractor, db, logger)
		if err := watcher.Start(cfg.Library.Path); err != nil {
			logger.WithError(err).Warn("Could not start file watcher")
		} else {
			shutdown.add(watcher.Stop)
		}
	}

	artwork := cache.NewArtworkCache()
	shutdown.add(artwork.Close)
	resolver := catalog.NewResolver(c, extractor, artwork, logger)

	sess := session.New(logger)
	engine := player.NewEngine(
		device.NewFactory(cfg.Playback.Silent, logger),
		resolver,
		sess,
		logger,
		time.Duration(cfg.Playback.PositionIntervalMS)*time.Millisecond,
	)
	controls := session.NewControls(sess, engine, c, logger)

	sessionBus := connectBus("session", dbus.ConnectSessionBus, logger)
	if sessionBus != nil {
		shutdown.add(func() { sessionBus.Close() })
	}

	if cfg.Session.MPRISEnabled && sessionBus != nil {
		mprisServer, err := mpris.Export(sessionBus, cfg.Session.BusName, cfg.Notification.AppName, controls, logger)
		if err != nil {
			logger.WithError(err).Warn("MPRIS mirror not available")
		} else {
			sess.AddMirror(mprisServer.Mirror())
			shutdown.add(func() { mprisServer.Close() })
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lifecycle *host.Host
	if cfg.Notification.Enabled {
		coordinator, foreground, err := newCoordinator(cfg, sessionBus, controls, resolver, sess.Token(), logger, &shutdown)
		if err != nil {
			controls.Close()
			return err
		}
		lifecycle = foreground
		sess.AddSubscriber(coordinator)
		go coordinator.Run(runCtx)
	}

	browser := client.NewBrowser(logger)
	browser.AddListener(nowPlayingLogger{logger: logger})
	if err := browser.Connect(sess, controls, c); err != nil {
		logger.WithError(err).Warn("Could not attach session observer")
	}

	serverErr := make(chan error, 1)
	var controlServer *server.ControlServer
	if cfg.Server.Enabled {
		controlServer = server.NewControlServer(cfg, c, sess, controls, resolver, logger)
		if db != nil {
			controlServer.SetIndex(db)
		}
		go func() {
			serverErr <- controlServer.Start()
		}()
	}

	logger.WithFields(logrus.Fields{
		"tracks":        c.Len(),
		"session_token": sess.Token(),
	}).Info("Media session daemon running")

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.WithError(err).Error("Control server stopped")
		}
	}

	if controlServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := controlServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Control server shutdown incomplete")
		}
		cancelShutdown()
	}

	// Stop reaches the coordinator, which withdraws the notification,
	// before the session channels close.
	controls.Close()
	cancel()
	browser.Disconnect()

	if lifecycle != nil {
		if err := lifecycle.Terminate(); err != nil {
			logger.WithError(err).Warn("Failed to release inhibitor lock")
		}
	}

	logger.Info("Media session daemon stopped")
	return nil
}

// newCoordinator picks the D-Bus notification sink when the session bus is
// reachable and falls back to beeep otherwise.
func newCoordinator(cfg *config.Config, sessionBus *dbus.Conn, transport notification.Transport, artwork notification.ArtworkSource, token string, logger *logrus.Logger, shutdown *cleanup) (*notification.Coordinator, *host.Host, error) {
	importance, err := notification.ParseImportance(cfg.Notification.Importance)
	if err != nil {
		return nil, nil, fmt.Errorf("notification importance: %w", err)
	}

	var sink notification.NotificationSink
	if sessionBus != nil {
		dbusSink, err := notification.NewDBusSink(sessionBus, cfg.Notification.AppName, logger)
		if err != nil {
			logger.WithError(err).Warn("Notification server not available, falling back to beeep")
		} else {
			sink = dbusSink
			shutdown.add(func() { dbusSink.Close() })
		}
	}
	if sink == nil {
		sink = notification.NewBeeepSink(logger)
	}

	var inhibitor host.Inhibitor
	if cfg.Session.InhibitSleep {
		if systemBus := connectBus("system", dbus.ConnectSystemBus, logger); systemBus != nil {
			inhibitor = host.NewLogindInhibitor(systemBus, cfg.Notification.AppName, "sleep:idle")
			shutdown.add(func() { systemBus.Close() })
		}
	}
	foreground := host.New(inhibitor, logger)

	channel := notification.Channel{
		ID:          cfg.Notification.ChannelID,
		Name:        cfg.Notification.ChannelName,
		Description: "Playback controls",
		Importance:  importance,
	}
	coordinator := notification.NewCoordinator(sink, foreground, transport, artwork, channel, token, logger)
	return coordinator, foreground, nil
}

func connectBus(name string, connect func(...dbus.ConnOption) (*dbus.Conn, error), logger *logrus.Logger) *dbus.Conn {
	conn, err := connect()
	if err != nil {
		logger.WithError(err).WithField("bus", name).Warn("D-Bus not available")
		return nil
	}
	return conn
}

// nowPlayingLogger observes the session the way a remote client would
type nowPlayingLogger struct {
	logger *logrus.Logger
}

func (n nowPlayingLogger) OnMediaLoaded(tracks []models.Track) {
	n.logger.WithField("tracks", len(tracks)).Debug("Session observer loaded catalog")
}

func (n nowPlayingLogger) OnMetadataChanged(track *models.Track) {
	if track == nil {
		return
	}
	n.logger.WithFields(logrus.Fields{
		"media_id": track.ID,
		"artist":   track.Artist,
		"title":    track.Title,
	}).Info("Now playing")
}

func (n nowPlayingLogger) OnPlaybackStateChanged(state *player.PlaybackState) {}

func (n nowPlayingLogger) OnDisconnected() {
	n.logger.Debug("Session observer detached")
}
