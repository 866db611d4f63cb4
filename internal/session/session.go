package session

import (
	"fmt"
	"sync"
	"time"

	"mediasession/internal/player"
	"mediasession/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MirrorSink is the remote-observable projection of the session
type MirrorSink interface {
	PublishState(state player.PlaybackState)
	PublishMetadata(track *models.Track)
	SetActive(active bool)
}

// PositionSink is implemented by mirrors that track the play position
// between state changes.
type PositionSink interface {
	PublishPosition(positionMS int64)
}

// Subscriber reacts to state transitions together with the current metadata.
// The metadata is nil when nothing has been loaded.
type Subscriber interface {
	OnPlaybackStateChanged(state player.PlaybackState, track *models.Track)
}

// EventKind names what changed in an Event
type EventKind string

const (
	EventState     EventKind = "state"
	EventMetadata  EventKind = "metadata"
	EventPosition  EventKind = "position"
	EventDuration  EventKind = "duration"
	EventCompleted EventKind = "completed"
	EventActive    EventKind = "active"
)

// Snapshot is the canonical session record
type Snapshot struct {
	State      player.PlaybackState `json:"playbackState"`
	Track      *models.Track        `json:"track,omitempty"`
	PositionMS int64                `json:"positionMs"`
	DurationMS int64                `json:"durationMs"`
	Active     bool                 `json:"active"`
}

// Event is delivered to channel subscribers
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Session normalizes engine events into a Snapshot and fans every event out,
// in emission order, to mirrors, subscribers and channel listeners.
type Session struct {
	logger *logrus.Logger
	token  string

	mu       sync.RWMutex
	snapshot Snapshot

	// emitMu keeps fan-out ordered across the control loop and the poller.
	emitMu      sync.Mutex
	mirrors     []MirrorSink
	subscribers []Subscriber
	listeners   []chan Event
	closed      bool
}

// New creates a session with a fresh token.
func New(logger *logrus.Logger) *Session {
	return &Session{
		logger: logger,
		token:  uuid.NewString(),
		snapshot: Snapshot{
			State: player.PlaybackState{
				State:        player.Idle,
				PlaybackRate: 1.0,
				UpdatedAt:    time.Now(),
				Actions:      player.AvailableActions(player.Idle),
			},
		},
	}
}

// Token identifies this session to notification hosts
func (s *Session) Token() string {
	return s.token
}

// AddMirror registers a mirror sink
func (s *Session) AddMirror(mirror MirrorSink) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mirrors = append(s.mirrors, mirror)
}

// AddSubscriber registers a state subscriber
func (s *Session) AddSubscriber(sub Subscriber) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Snapshot returns a copy of the current record (thread-safe)
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := s.snapshot
	if snap.Track != nil {
		track := *snap.Track
		snap.Track = &track
	}
	return snap
}

// CurrentMediaID returns the id of the cached metadata, or ""
func (s *Session) CurrentMediaID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot.Track == nil {
		return ""
	}
	return s.snapshot.Track.ID
}

// OnPlaybackStateChanged implements player.Listener.
func (s *Session) OnPlaybackStateChanged(state player.PlaybackState) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.snapshot.State = state
	s.snapshot.PositionMS = state.PositionMS
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"state":    state.State.String(),
		"position": formatMS(state.PositionMS),
		"duration": formatMS(snap.DurationMS),
		"actions":  state.Actions.String(),
	}).Info("Playback state changed")

	for _, mirror := range s.mirrors {
		mirror.PublishState(state)
	}
	for _, sub := range s.subscribers {
		sub.OnPlaybackStateChanged(state, snap.Track)
	}
	s.broadcast(EventState, snap)
}

// OnPositionChanged implements player.Listener. It runs on the poller
// goroutine as well as the control loop.
func (s *Session) OnPositionChanged(positionMS int64) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.snapshot.PositionMS = positionMS
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.WithField("position", formatMS(positionMS)).Debug("Position changed")

	for _, mirror := range s.mirrors {
		if ps, ok := mirror.(PositionSink); ok {
			ps.PublishPosition(positionMS)
		}
	}
	s.broadcast(EventPosition, snap)
}

// OnDurationChanged implements player.Listener.
func (s *Session) OnDurationChanged(durationMS int64) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.snapshot.DurationMS = durationMS
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.WithField("duration", formatMS(durationMS)).Debug("Duration changed")
	s.broadcast(EventDuration, snap)
}

// OnCompleted implements player.Listener.
func (s *Session) OnCompleted() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	snap := s.Snapshot()
	if snap.Track != nil {
		s.logger.WithField("media_id", snap.Track.ID).Info("Track played to completion")
	}
	s.broadcast(EventCompleted, snap)
}

// SetMetadata caches the loaded track so a bare Play can resume it, and
// publishes it to the mirrors.
func (s *Session) SetMetadata(track *models.Track) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if track != nil {
		copied := *track
		s.snapshot.Track = &copied
		s.snapshot.DurationMS = track.DurationMS
	} else {
		s.snapshot.Track = nil
		s.snapshot.DurationMS = 0
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, mirror := range s.mirrors {
		mirror.PublishMetadata(snap.Track)
	}
	s.broadcast(EventMetadata, snap)
}

// SetActive marks whether the session accepts transport commands from
// remote observers.
func (s *Session) SetActive(active bool) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	changed := s.snapshot.Active != active
	s.snapshot.Active = active
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, mirror := range s.mirrors {
		mirror.SetActive(active)
	}
	s.broadcast(EventActive, snap)
}

// Subscribe adds a listener for session events. Events are dropped for a
// listener whose buffer is full.
func (s *Session) Subscribe() <-chan Event {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	ch := make(chan Event, 32)
	if s.closed {
		close(ch)
		return ch
	}
	s.listeners = append(s.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (s *Session) Unsubscribe(ch <-chan Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	for i, listener := range s.listeners {
		if listener == ch {
			close(listener)
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Close closes every listener channel, which remote clients observe as the
// session going away.
func (s *Session) Close() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, listener := range s.listeners {
		close(listener)
	}
	s.listeners = nil
}

// broadcast must be called with emitMu held.
func (s *Session) broadcast(kind EventKind, snap Snapshot) {
	event := Event{Kind: kind, Snapshot: snap}
	for _, listener := range s.listeners {
		select {
		case listener <- event:
		default:
			s.logger.WithField("kind", kind).Debug("Dropped session event for slow listener")
		}
	}
}

func formatMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
