package session

import (
	"errors"
	"fmt"
	"sync"

	"mediasession/internal/catalog"
	"mediasession/internal/player"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClosed is returned by commands issued after Close
	ErrClosed = errors.New("session closed")
	// ErrNoMatch is returned when a search finds no track
	ErrNoMatch = errors.New("no track matches query")
)

// Engine is the subset of player.Engine the controls drive
type Engine interface {
	LoadAndPlay(id string) error
	Play()
	Pause()
	Stop()
	SeekTo(positionMS int64)
	SetExecutor(exec func(func()))
}

type command struct {
	name   string
	fn     func() error
	result chan error
}

// Controls is the transport control surface. Every command runs on one
// control loop goroutine, which is the only goroutine that touches the
// engine.
type Controls struct {
	session *Session
	engine  Engine
	catalog *catalog.Catalog
	logger  *logrus.Logger

	commands  chan command
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewControls starts the control loop and routes engine completion onto it.
func NewControls(s *Session, engine Engine, c *catalog.Catalog, logger *logrus.Logger) *Controls {
	controls := &Controls{
		session:  s,
		engine:   engine,
		catalog:  c,
		logger:   logger,
		commands: make(chan command, 16),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	engine.SetExecutor(controls.post)

	go controls.run()
	return controls
}

func (c *Controls) run() {
	defer close(c.stopped)

	for {
		select {
		case cmd := <-c.commands:
			err := cmd.fn()
			if err != nil {
				c.logger.WithError(err).WithField("command", cmd.name).Warn("Transport command failed")
			}
			if cmd.result != nil {
				cmd.result <- err
			}
		case <-c.done:
			return
		}
	}
}

// submit runs fn on the control loop and waits for it.
func (c *Controls) submit(name string, fn func() error) error {
	result := make(chan error, 1)
	select {
	case c.commands <- command{name: name, fn: fn, result: result}:
	case <-c.done:
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-c.stopped:
		return ErrClosed
	}
}

// post queues fn without waiting. The engine uses it for device completion.
func (c *Controls) post(fn func()) {
	select {
	case c.commands <- command{name: "completion", fn: func() error { fn(); return nil }}:
	case <-c.done:
	}
}

// Play resumes the last loaded track. Without one it does nothing.
func (c *Controls) Play() error {
	return c.submit("play", func() error {
		current := c.session.CurrentMediaID()
		if current == "" {
			return nil
		}
		return c.playFromID(current, nil)
	})
}

// Pause pauses playback
func (c *Controls) Pause() error {
	return c.submit("pause", func() error {
		c.engine.Pause()
		return nil
	})
}

// PlayPause toggles between Play and Pause
func (c *Controls) PlayPause() error {
	return c.submit("play_pause", func() error {
		if c.session.Snapshot().State.State == player.Playing {
			c.engine.Pause()
			return nil
		}
		current := c.session.CurrentMediaID()
		if current == "" {
			return nil
		}
		return c.playFromID(current, nil)
	})
}

// Stop stops playback and deactivates the session
func (c *Controls) Stop() error {
	return c.submit("stop", func() error {
		c.engine.Stop()
		c.session.SetActive(false)
		return nil
	})
}

// PlayFromID activates the session, publishes the track's metadata and loads
// it. Extras are logged only.
func (c *Controls) PlayFromID(id string, extras map[string]string) error {
	return c.submit("play_from_id", func() error {
		return c.playFromID(id, extras)
	})
}

// PlayFromSearch plays the first track matching query. An empty query plays
// the first track of the catalog.
func (c *Controls) PlayFromSearch(query string) error {
	return c.submit("play_from_search", func() error {
		if query == "" {
			return c.playFromID(c.catalog.List()[0].ID, nil)
		}
		matches := c.catalog.Search(query)
		if len(matches) == 0 {
			return fmt.Errorf("%w: %q", ErrNoMatch, query)
		}
		return c.playFromID(matches[0].ID, map[string]string{"query": query})
	})
}

// SkipToNext plays the catalog successor of the current track
func (c *Controls) SkipToNext() error {
	return c.submit("skip_to_next", func() error {
		return c.playFromID(c.catalog.Next(c.session.CurrentMediaID()), nil)
	})
}

// SkipToPrevious plays the catalog predecessor of the current track
func (c *Controls) SkipToPrevious() error {
	return c.submit("skip_to_previous", func() error {
		return c.playFromID(c.catalog.Previous(c.session.CurrentMediaID()), nil)
	})
}

// SeekTo moves the play position
func (c *Controls) SeekTo(positionMS int64) error {
	return c.submit("seek_to", func() error {
		c.engine.SeekTo(positionMS)
		return nil
	})
}

// playFromID must run on the control loop.
func (c *Controls) playFromID(id string, extras map[string]string) error {
	track, err := c.catalog.Get(id)
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"media_id": id,
		"extras":   extras,
	}).Debug("Play from media id")

	c.session.SetActive(true)
	c.session.SetMetadata(&track)
	return c.engine.LoadAndPlay(id)
}

// Close stops playback, deactivates the mirrors and ends the control loop.
// Listener channels are closed last.
func (c *Controls) Close() {
	c.closeOnce.Do(func() {
		if err := c.Stop(); err != nil && !errors.Is(err, ErrClosed) {
			c.logger.WithError(err).Warn("Failed to stop playback on close")
		}
		close(c.done)
		<-c.stopped
		c.session.Close()
	})
}
