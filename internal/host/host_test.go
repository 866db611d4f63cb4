package host

import (
	"errors"
	"testing"

	"mediasession/internal/notification"

	"github.com/sirupsen/logrus"
)

type fakeInhibitor struct {
	acquired int
	released int
	err      error
}

func (f *fakeInhibitor) Acquire(why string) (func() error, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired++
	return func() error {
		f.released++
		return nil
	}, nil
}

func newTestHost(inhibitor Inhibitor) *Host {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(inhibitor, logger)
}

func TestHostLifecycle(t *testing.T) {
	inhibitor := &fakeInhibitor{}
	h := newTestHost(inhibitor)
	d := notification.Descriptor{MediaID: "Jazz_In_Paris", Title: "Jazz in Paris"}

	if h.Phase() != PhaseBackground {
		t.Fatalf("expected background phase, got %s", h.Phase())
	}

	steps := []struct {
		name     string
		op       func() error
		phase    Phase
		acquired int
		released int
	}{
		{"promote", func() error { return h.Promote(notification.NotificationID, d) }, PhaseForeground, 1, 0},
		{"promote again", func() error { return h.Promote(notification.NotificationID, d) }, PhaseForeground, 1, 0},
		{"demote", func() error { return h.Demote(true) }, PhaseBackground, 1, 1},
		{"demote again", func() error { return h.Demote(true) }, PhaseBackground, 1, 1},
		{"promote after demote", func() error { return h.Promote(notification.NotificationID, d) }, PhaseForeground, 2, 1},
		{"terminate", h.Terminate, PhaseTerminated, 2, 2},
		{"restart", func() error { return h.Promote(notification.NotificationID, d) }, PhaseForeground, 3, 2},
	}

	for _, step := range steps {
		if err := step.op(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if h.Phase() != step.phase {
			t.Errorf("%s: expected phase %s, got %s", step.name, step.phase, h.Phase())
		}
		if inhibitor.acquired != step.acquired || inhibitor.released != step.released {
			t.Errorf("%s: expected %d/%d acquire/release, got %d/%d",
				step.name, step.acquired, step.released, inhibitor.acquired, inhibitor.released)
		}
	}
}

func TestHostInhibitorFailure(t *testing.T) {
	h := newTestHost(&fakeInhibitor{err: errors.New("logind unavailable")})

	if err := h.Promote(notification.NotificationID, notification.Descriptor{}); err == nil {
		t.Error("expected promote to surface the inhibitor error")
	}
	if h.Phase() != PhaseForeground {
		t.Error("expected the phase to change even without a lock")
	}
	if err := h.Terminate(); err != nil {
		t.Errorf("Terminate() error: %v", err)
	}
}

func TestHostWithoutInhibitor(t *testing.T) {
	h := newTestHost(nil)

	if err := h.Promote(notification.NotificationID, notification.Descriptor{}); err != nil {
		t.Fatalf("Promote() error: %v", err)
	}
	if err := h.Demote(false); err != nil {
		t.Fatalf("Demote() error: %v", err)
	}
	if h.Phase() != PhaseBackground {
		t.Errorf("expected background phase, got %s", h.Phase())
	}
}
