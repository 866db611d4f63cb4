package client

import (
	"sync"
	"testing"
	"time"

	"mediasession/internal/catalog"
	"mediasession/internal/player"
	"mediasession/internal/session"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

type recordingListener struct {
	mu     sync.Mutex
	log    []string
	events chan string
}

func newRecordingListener() *recordingListener {
	return &recordingListener{events: make(chan string, 64)}
}

func (r *recordingListener) record(entry string) {
	r.mu.Lock()
	r.log = append(r.log, entry)
	r.mu.Unlock()
	r.events <- entry
}

func (r *recordingListener) OnMediaLoaded(tracks []models.Track) {
	r.record("media:" + tracks[0].ID)
}

func (r *recordingListener) OnMetadataChanged(track *models.Track) {
	if track == nil {
		r.record("metadata:nil")
		return
	}
	r.record("metadata:" + track.ID)
}

func (r *recordingListener) OnPlaybackStateChanged(state *player.PlaybackState) {
	if state == nil {
		r.record("state:nil")
		return
	}
	r.record("state:" + state.State.String())
}

func (r *recordingListener) OnDisconnected() {
	r.record("disconnected")
}

func (r *recordingListener) await(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-r.events:
			if got != w {
				t.Fatalf("expected %q, got %q", w, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

type stubTransport struct{}

func (stubTransport) Play() error                                { return nil }
func (stubTransport) Pause() error                               { return nil }
func (stubTransport) Stop() error                                { return nil }
func (stubTransport) SkipToNext() error                          { return nil }
func (stubTransport) SkipToPrevious() error                      { return nil }
func (stubTransport) SeekTo(int64) error                         { return nil }
func (stubTransport) PlayFromID(string, map[string]string) error { return nil }
func (stubTransport) PlayFromSearch(string) error                { return nil }

func newTestBrowser(t *testing.T) (*Browser, *session.Session, *catalog.Catalog) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	return NewBrowser(logger), session.New(logger), catalog.Builtin()
}

func playing(state player.Lifecycle) player.PlaybackState {
	return player.PlaybackState{State: state, PlaybackRate: 1.0, Actions: player.AvailableActions(state)}
}

func TestTransportControlsBeforeConnectPanics(t *testing.T) {
	b, _, _ := newTestBrowser(t)

	defer func() {
		if recover() == nil {
			t.Fatal("expected TransportControls to panic before Connect")
		}
	}()
	b.TransportControls()
}

func TestConnectDeliversInitialState(t *testing.T) {
	b, s, c := newTestBrowser(t)
	listener := newRecordingListener()
	b.AddListener(listener)

	if err := b.Connect(s, stubTransport{}, c); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer b.Disconnect()

	listener.await(t, "media:Jazz_In_Paris", "metadata:nil", "state:idle")

	if got := len(b.Tracks()); got != 3 {
		t.Errorf("expected 3 tracks, got %d", got)
	}
	if b.TransportControls() == nil {
		t.Error("expected transport controls after Connect")
	}
	if err := b.Connect(s, stubTransport{}, c); err != ErrAlreadyConnected {
		t.Errorf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestSessionEventsReachListeners(t *testing.T) {
	b, s, c := newTestBrowser(t)
	listener := newRecordingListener()
	b.AddListener(listener)

	if err := b.Connect(s, stubTransport{}, c); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer b.Disconnect()
	listener.await(t, "media:Jazz_In_Paris", "metadata:nil", "state:idle")

	track, _ := c.Get("The_Coldest_Shoulder")
	s.SetMetadata(&track)
	s.OnPlaybackStateChanged(playing(player.Playing))
	s.OnPositionChanged(4000)
	s.OnPlaybackStateChanged(playing(player.Paused))

	listener.await(t, "metadata:The_Coldest_Shoulder", "state:playing", "state:paused")

	if got := b.Metadata(); got == nil || got.ID != "The_Coldest_Shoulder" {
		t.Errorf("expected cached metadata, got %v", got)
	}
	if got := b.PlaybackState(); got == nil || got.State != player.Paused {
		t.Errorf("expected cached paused state, got %v", got)
	}
}

func TestDisconnectResetsState(t *testing.T) {
	b, s, c := newTestBrowser(t)
	listener := newRecordingListener()
	b.AddListener(listener)

	if err := b.Connect(s, stubTransport{}, c); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	listener.await(t, "media:Jazz_In_Paris", "metadata:nil", "state:idle")

	b.Disconnect()
	listener.await(t, "metadata:nil", "state:nil", "disconnected")

	if b.Connected() {
		t.Error("expected browser to be disconnected")
	}
	if b.Metadata() != nil || b.PlaybackState() != nil || b.Tracks() != nil {
		t.Error("expected state to be reset to nil")
	}

	// reconnecting after a reset is allowed
	if err := b.Connect(s, stubTransport{}, c); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}
	b.Disconnect()
}

func TestRemoteDisconnectResetsState(t *testing.T) {
	b, s, c := newTestBrowser(t)
	listener := newRecordingListener()
	b.AddListener(listener)

	if err := b.Connect(s, stubTransport{}, c); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	listener.await(t, "media:Jazz_In_Paris", "metadata:nil", "state:idle")

	s.Close()
	listener.await(t, "metadata:nil", "state:nil", "disconnected")

	if b.Connected() {
		t.Error("expected remote close to disconnect the browser")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected TransportControls to panic after remote disconnect")
		}
	}()
	b.TransportControls()
}
