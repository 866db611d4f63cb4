package notification

import (
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"
)

// BeeepSink shows plain desktop notifications where no freedesktop server
// is reachable. It cannot replace, cancel or report interactions, so it only
// posts when the title or play state changes.
type BeeepSink struct {
	logger *logrus.Logger
	notify func(title, message string) error

	mu       sync.Mutex
	channels map[string]Channel
	last     string
}

// NewBeeepSink creates the fallback sink
func NewBeeepSink(logger *logrus.Logger) *BeeepSink {
	return &BeeepSink{
		logger:   logger,
		notify:   func(title, message string) error { return beeep.Notify(title, message, "") },
		channels: make(map[string]Channel),
	}
}

func (s *BeeepSink) CreateOrReuseChannel(channel Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[channel.ID]; !exists {
		s.channels[channel.ID] = channel
	}
	return nil
}

func (s *BeeepSink) Post(id int, d Descriptor) error {
	state := "Paused"
	if d.Ongoing {
		state = "Playing"
	}
	key := d.MediaID + "|" + state

	s.mu.Lock()
	if s.last == key {
		s.mu.Unlock()
		return nil
	}
	s.last = key
	s.mu.Unlock()

	message := state
	if d.Text != "" {
		message = state + ": " + d.Text
	}
	return s.notify(d.Title, message)
}

// Cancel forgets the last post so the next one is shown again.
func (s *BeeepSink) Cancel(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = ""
	return nil
}

func (s *BeeepSink) Interactions() <-chan Interaction {
	return nil
}
