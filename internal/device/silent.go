package device

import (
	"sync"
	"time"
)

// Silent is a wall-clock device that plays nothing. Position advances with
// real time while started and completion fires when it reaches the duration.
type Silent struct {
	mu sync.Mutex

	opened     bool
	playing    bool
	released   bool
	durationMS int64
	offsetMS   int64
	startedAt  time.Time
	timer      *time.Timer
	onDone     func()

	now func() time.Time
}

// NewSilent creates a silent device
func NewSilent() *Silent {
	return &Silent{now: time.Now}
}

// Open takes the duration from the source and closes its reader.
func (s *Silent) Open(src Source) error {
	if src.Reader != nil {
		src.Reader.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.opened = true
	s.playing = false
	s.durationMS = src.DurationMS
	s.offsetMS = 0
	return nil
}

// Start begins or resumes playback
func (s *Silent) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened || s.released {
		return ErrNoSource
	}
	if s.playing {
		return nil
	}

	s.playing = true
	s.startedAt = s.now()
	s.armTimerLocked()
	return nil
}

// Pause freezes the position
func (s *Silent) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}
	s.offsetMS = s.positionLocked()
	s.playing = false
	s.stopTimerLocked()
}

// IsPlaying reports whether the clock is running
func (s *Silent) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// PositionMS returns the elapsed play time
func (s *Silent) PositionMS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

// DurationMS returns the source duration
func (s *Silent) DurationMS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationMS
}

// SeekTo moves the position, clamped to the duration
func (s *Silent) SeekTo(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ms < 0 {
		ms = 0
	}
	if ms > s.durationMS {
		ms = s.durationMS
	}
	s.offsetMS = ms
	if s.playing {
		s.startedAt = s.now()
		s.stopTimerLocked()
		s.armTimerLocked()
	}
}

// Release stops the clock; no completion fires afterwards
func (s *Silent) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimerLocked()
	s.released = true
	s.playing = false
	s.onDone = nil
}

// SetOnCompletion registers the end-of-source callback
func (s *Silent) SetOnCompletion(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = fn
}

func (s *Silent) positionLocked() int64 {
	pos := s.offsetMS
	if s.playing {
		pos += s.now().Sub(s.startedAt).Milliseconds()
	}
	if pos > s.durationMS {
		pos = s.durationMS
	}
	return pos
}

func (s *Silent) armTimerLocked() {
	remaining := time.Duration(s.durationMS-s.offsetMS) * time.Millisecond
	var timer *time.Timer
	timer = time.AfterFunc(remaining, func() {
		s.mu.Lock()
		if s.timer != timer || !s.playing {
			s.mu.Unlock()
			return
		}
		s.offsetMS = s.durationMS
		s.playing = false
		s.timer = nil
		done := s.onDone
		s.mu.Unlock()

		if done != nil {
			done()
		}
	})
	s.timer = timer
}

func (s *Silent) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
