package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"mediasession/internal/catalog"
	"mediasession/internal/device"
	"mediasession/internal/player"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

type recordingMirror struct {
	mu        sync.Mutex
	log       []string
	active    bool
	positions []int64
}

func (m *recordingMirror) PublishState(state player.PlaybackState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, "state:"+state.State.String())
}

func (m *recordingMirror) PublishMetadata(track *models.Track) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if track == nil {
		m.log = append(m.log, "metadata:nil")
		return
	}
	m.log = append(m.log, "metadata:"+track.ID)
}

func (m *recordingMirror) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
	m.log = append(m.log, fmt.Sprintf("active:%v", active))
}

func (m *recordingMirror) PublishPosition(positionMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, positionMS)
}

func (m *recordingMirror) entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}

type recordingSubscriber struct {
	mu     sync.Mutex
	states []player.Lifecycle
	tracks []string
}

func (r *recordingSubscriber) OnPlaybackStateChanged(state player.PlaybackState, track *models.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state.State)
	if track != nil {
		r.tracks = append(r.tracks, track.ID)
	} else {
		r.tracks = append(r.tracks, "")
	}
}

type synthResolver struct {
	catalog *catalog.Catalog
}

func (r synthResolver) Track(id string) (models.Track, error) {
	return r.catalog.Get(id)
}

func (r synthResolver) OpenAudio(id string) (io.ReadSeekCloser, string, error) {
	if _, err := r.catalog.Get(id); err != nil {
		return nil, "", err
	}
	return nil, catalog.FormatSynth, nil
}

type harness struct {
	session  *Session
	controls *Controls
	mirror   *recordingMirror
	sub      *recordingSubscriber
	catalog  *catalog.Catalog
}

func newHarness(t *testing.T, tracks []models.Track) *harness {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	c, err := catalog.New(tracks)
	if err != nil {
		t.Fatalf("catalog.New() error: %v", err)
	}

	s := New(logger)
	mirror := &recordingMirror{}
	sub := &recordingSubscriber{}
	s.AddMirror(mirror)
	s.AddSubscriber(sub)

	factory := func() (device.Device, error) { return device.NewSilent(), nil }
	engine := player.NewEngine(factory, synthResolver{catalog: c}, s, logger, time.Hour)
	controls := NewControls(s, engine, c, logger)
	t.Cleanup(controls.Close)

	return &harness{session: s, controls: controls, mirror: mirror, sub: sub, catalog: c}
}

func abcTracks() []models.Track {
	return []models.Track{
		{ID: "A", Title: "Alpha", DurationMS: 9000},
		{ID: "B", Title: "Beta", Artist: "Media Right Productions", DurationMS: 103000},
		{ID: "C", Title: "Gamma", DurationMS: 160000},
	}
}

func TestSessionToken(t *testing.T) {
	logger := logrus.New()
	a, b := New(logger), New(logger)
	if a.Token() == "" || a.Token() == b.Token() {
		t.Errorf("expected distinct non-empty tokens, got %q and %q", a.Token(), b.Token())
	}
}

func TestPlayWithoutMediaIsNoOp(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.Play(); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if got := h.mirror.entries(); len(got) != 0 {
		t.Errorf("expected no mirror activity, got %v", got)
	}
	if h.session.Snapshot().State.State != player.Idle {
		t.Error("expected session to stay idle")
	}
}

func TestPlayFromIDFanOutOrder(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.PlayFromID("B", map[string]string{"origin": "test"}); err != nil {
		t.Fatalf("PlayFromID() error: %v", err)
	}

	expected := []string{"active:true", "metadata:B", "state:playing"}
	got := h.mirror.entries()
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("entry %d: expected %s, got %s", i, expected[i], got[i])
		}
	}

	if len(h.sub.states) != 1 || h.sub.states[0] != player.Playing || h.sub.tracks[0] != "B" {
		t.Errorf("expected subscriber to see Playing with B, got %v %v", h.sub.states, h.sub.tracks)
	}

	snap := h.session.Snapshot()
	if snap.Track == nil || snap.Track.ID != "B" || snap.DurationMS != 103000 || !snap.Active {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestPlayFromUnknownID(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.PlayFromID("Z", nil); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if got := h.mirror.entries(); len(got) != 0 {
		t.Errorf("expected no fan-out, got %v", got)
	}
}

func TestSkipNavigation(t *testing.T) {
	h := newHarness(t, abcTracks())

	steps := []struct {
		op       func() error
		expected string
	}{
		{func() error { return h.controls.PlayFromID("A", nil) }, "A"},
		{h.controls.SkipToNext, "B"},
		{h.controls.SkipToNext, "C"},
		{h.controls.SkipToNext, "A"},
		{h.controls.SkipToPrevious, "C"},
		{h.controls.SkipToPrevious, "B"},
	}

	for i, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("step %d error: %v", i, err)
		}
		if got := h.session.CurrentMediaID(); got != step.expected {
			t.Errorf("step %d: expected %s, got %s", i, step.expected, got)
		}
		if h.session.Snapshot().State.State != player.Playing {
			t.Errorf("step %d: expected Playing", i)
		}
	}
}

func TestSkipWithoutCurrentStartsAtEdges(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.SkipToNext(); err != nil {
		t.Fatalf("SkipToNext() error: %v", err)
	}
	if got := h.session.CurrentMediaID(); got != "A" {
		t.Errorf("expected first track, got %s", got)
	}
}

func TestPauseResumeAndStop(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.PlayFromID("A", nil); err != nil {
		t.Fatalf("PlayFromID() error: %v", err)
	}
	h.controls.Pause()
	h.controls.Pause()
	h.controls.Play()
	h.controls.Stop()

	expected := []player.Lifecycle{player.Playing, player.Paused, player.Playing, player.Stopped}
	if len(h.sub.states) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, h.sub.states)
	}
	for i := range expected {
		if h.sub.states[i] != expected[i] {
			t.Errorf("transition %d: expected %s, got %s", i, expected[i], h.sub.states[i])
		}
	}
	if h.mirror.active {
		t.Error("expected stop to deactivate the mirror")
	}

	// Metadata survives the stop so a bare play reloads the track.
	if err := h.controls.Play(); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if h.session.Snapshot().State.State != player.Playing {
		t.Error("expected play after stop to reload the last track")
	}
}

func TestPlayPauseToggles(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.PlayFromID("C", nil); err != nil {
		t.Fatalf("PlayFromID() error: %v", err)
	}
	h.controls.PlayPause()
	if h.session.Snapshot().State.State != player.Paused {
		t.Error("expected toggle to pause")
	}
	h.controls.PlayPause()
	if h.session.Snapshot().State.State != player.Playing {
		t.Error("expected toggle to resume")
	}
}

func TestPlayFromSearch(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.PlayFromSearch("media right"); err != nil {
		t.Fatalf("PlayFromSearch() error: %v", err)
	}
	if got := h.session.CurrentMediaID(); got != "B" {
		t.Errorf("expected B, got %s", got)
	}

	if err := h.controls.PlayFromSearch("no such song"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}

	if err := h.controls.PlayFromSearch(""); err != nil {
		t.Fatalf("PlayFromSearch() error: %v", err)
	}
	if got := h.session.CurrentMediaID(); got != "A" {
		t.Errorf("expected empty query to play the first track, got %s", got)
	}
}

func TestCompletionRoutedThroughControlLoop(t *testing.T) {
	h := newHarness(t, []models.Track{
		{ID: "short", Title: "Short", DurationMS: 20},
		{ID: "other", Title: "Other", DurationMS: 60000},
	})
	events := h.session.Subscribe()

	if err := h.controls.PlayFromID("short", nil); err != nil {
		t.Fatalf("PlayFromID() error: %v", err)
	}

	timeout := time.After(2 * time.Second)
	sawCompleted := false
	for {
		select {
		case event := <-events:
			if event.Kind == EventCompleted {
				sawCompleted = true
			}
			if event.Kind == EventState && event.Snapshot.State.State == player.Stopped {
				if !sawCompleted {
					t.Error("expected completion before the Stopped transition")
				}
				return
			}
		case <-timeout:
			t.Fatal("track never completed")
		}
	}
}

func TestSeekPublishesPosition(t *testing.T) {
	h := newHarness(t, abcTracks())

	if err := h.controls.PlayFromID("C", nil); err != nil {
		t.Fatalf("PlayFromID() error: %v", err)
	}
	h.controls.Pause()
	if err := h.controls.SeekTo(42000); err != nil {
		t.Fatalf("SeekTo() error: %v", err)
	}
	if got := h.session.Snapshot().PositionMS; got != 42000 {
		t.Errorf("expected position 42000, got %d", got)
	}
	h.mirror.mu.Lock()
	last := h.mirror.positions[len(h.mirror.positions)-1]
	h.mirror.mu.Unlock()
	if last != 42000 {
		t.Errorf("expected mirror position 42000, got %d", last)
	}
}

func TestSubscribeAndClose(t *testing.T) {
	h := newHarness(t, abcTracks())
	events := h.session.Subscribe()

	if err := h.controls.PlayFromID("A", nil); err != nil {
		t.Fatalf("PlayFromID() error: %v", err)
	}

	kinds := []EventKind{}
	for len(kinds) < 3 {
		select {
		case event := <-events:
			kinds = append(kinds, event.Kind)
		case <-time.After(time.Second):
			t.Fatalf("expected events, got %v", kinds)
		}
	}
	if kinds[0] != EventActive || kinds[1] != EventMetadata {
		t.Errorf("expected active then metadata first, got %v", kinds)
	}

	h.controls.Close()
	for range events {
	}

	if err := h.controls.Play(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
	if _, ok := <-h.session.Subscribe(); ok {
		t.Error("expected subscription after close to be closed")
	}
}

func TestUnsubscribe(t *testing.T) {
	s := New(logrus.New())
	ch := s.Subscribe()
	s.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("expected unsubscribed channel to be closed")
	}
	s.SetActive(true)
}

func TestFormatMS(t *testing.T) {
	testCases := []struct {
		ms       int64
		expected string
	}{
		{0, "0:00"},
		{9000, "0:09"},
		{103000, "1:43"},
		{160999, "2:40"},
		{-5, "0:00"},
	}
	for _, tc := range testCases {
		if got := formatMS(tc.ms); got != tc.expected {
			t.Errorf("formatMS(%d): expected %s, got %s", tc.ms, tc.expected, got)
		}
	}
}
