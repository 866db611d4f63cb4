package client

import (
	"errors"
	"sync"

	"mediasession/internal/catalog"
	"mediasession/internal/player"
	"mediasession/internal/session"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

var ErrAlreadyConnected = errors.New("browser already connected")

// Source is the session end a browser attaches to
type Source interface {
	Subscribe() <-chan session.Event
	Unsubscribe(ch <-chan session.Event)
	Snapshot() session.Snapshot
}

// Transport is the controller handed out once connected
type Transport interface {
	Play() error
	Pause() error
	Stop() error
	SkipToNext() error
	SkipToPrevious() error
	SeekTo(positionMS int64) error
	PlayFromID(id string, extras map[string]string) error
	PlayFromSearch(query string) error
}

// Listener receives browser callbacks. A nil track or state means the
// connection was reset.
type Listener interface {
	OnMediaLoaded(tracks []models.Track)
	OnMetadataChanged(track *models.Track)
	OnPlaybackStateChanged(state *player.PlaybackState)
	OnDisconnected()
}

// Browser attaches to a session as a remote client. Callbacks run on the
// browser's event goroutine.
type Browser struct {
	logger *logrus.Logger

	mu        sync.Mutex
	listeners []Listener
	source    Source
	transport Transport
	events    <-chan session.Event
	done      chan struct{}
	tracks    []models.Track
	metadata  *models.Track
	state     *player.PlaybackState
}

// NewBrowser creates a disconnected browser
func NewBrowser(logger *logrus.Logger) *Browser {
	return &Browser{logger: logger}
}

// AddListener registers a listener for browser callbacks
func (b *Browser) AddListener(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Connect subscribes to the session and loads the catalog. Listeners get the
// media list, then the current metadata and state.
func (b *Browser) Connect(source Source, transport Transport, c *catalog.Catalog) error {
	b.mu.Lock()
	if b.source != nil {
		b.mu.Unlock()
		return ErrAlreadyConnected
	}

	events := source.Subscribe()
	snap := source.Snapshot()
	state := snap.State

	b.source = source
	b.transport = transport
	b.events = events
	b.done = make(chan struct{})
	b.tracks = c.List()
	b.metadata = snap.Track
	b.state = &state

	tracks := b.tracks
	listeners := b.listenersLocked()
	done := b.done
	b.mu.Unlock()

	b.logger.WithField("tracks", len(tracks)).Info("Browser connected to session")

	for _, l := range listeners {
		l.OnMediaLoaded(tracks)
		l.OnMetadataChanged(copyTrack(snap.Track))
		l.OnPlaybackStateChanged(copyState(&state))
	}

	go b.pump(events, done)
	return nil
}

// Disconnect unsubscribes from the session and waits for the reset callbacks
// to run.
func (b *Browser) Disconnect() {
	b.mu.Lock()
	source := b.source
	events := b.events
	done := b.done
	b.mu.Unlock()

	if source == nil {
		return
	}
	source.Unsubscribe(events)
	<-done
}

// Connected reports whether the browser is attached to a session
func (b *Browser) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source != nil
}

// TransportControls returns the session controller. Calling it before
// Connect is a programming error and panics.
func (b *Browser) TransportControls() Transport {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.source == nil {
		panic("client: TransportControls called before Connect")
	}
	return b.transport
}

// Tracks returns the catalog loaded at connect
func (b *Browser) Tracks() []models.Track {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Track(nil), b.tracks...)
}

// Metadata returns the last known track, or nil
func (b *Browser) Metadata() *models.Track {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyTrack(b.metadata)
}

// PlaybackState returns the last known state, or nil
func (b *Browser) PlaybackState() *player.PlaybackState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyState(b.state)
}

func (b *Browser) pump(events <-chan session.Event, done chan struct{}) {
	defer close(done)

	for event := range events {
		b.apply(event)
	}
	b.reset()
}

func (b *Browser) apply(event session.Event) {
	snap := event.Snapshot

	b.mu.Lock()
	listeners := b.listenersLocked()
	switch event.Kind {
	case session.EventMetadata:
		b.metadata = snap.Track
	case session.EventState, session.EventCompleted:
		state := snap.State
		b.state = &state
	case session.EventPosition:
		if b.state != nil {
			b.state.PositionMS = snap.PositionMS
		}
		b.mu.Unlock()
		return
	default:
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	for _, l := range listeners {
		switch event.Kind {
		case session.EventMetadata:
			l.OnMetadataChanged(copyTrack(snap.Track))
		default:
			state := snap.State
			l.OnPlaybackStateChanged(&state)
		}
	}
}

// reset clears the connection after the event channel closed, whether by
// Disconnect or by the session going away.
func (b *Browser) reset() {
	b.mu.Lock()
	b.source = nil
	b.transport = nil
	b.events = nil
	b.tracks = nil
	b.metadata = nil
	b.state = nil
	listeners := b.listenersLocked()
	b.mu.Unlock()

	b.logger.Info("Browser disconnected from session")

	for _, l := range listeners {
		l.OnMetadataChanged(nil)
		l.OnPlaybackStateChanged(nil)
		l.OnDisconnected()
	}
}

func (b *Browser) listenersLocked() []Listener {
	return append([]Listener(nil), b.listeners...)
}

func copyTrack(track *models.Track) *models.Track {
	if track == nil {
		return nil
	}
	t := *track
	return &t
}

func copyState(state *player.PlaybackState) *player.PlaybackState {
	if state == nil {
		return nil
	}
	s := *state
	return &s
}
