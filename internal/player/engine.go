package player

import (
	"context"
	"io"
	"time"

	"mediasession/internal/device"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

// DefaultPositionInterval is the poller cadence
const DefaultPositionInterval = time.Second

// Listener receives engine events. OnPositionChanged is also called from the
// poller goroutine, so implementations must be safe for that.
type Listener interface {
	OnPlaybackStateChanged(state PlaybackState)
	OnPositionChanged(positionMS int64)
	OnDurationChanged(durationMS int64)
	OnCompleted()
}

// Resolver maps media ids to tracks and their audio.
type Resolver interface {
	Track(id string) (models.Track, error)
	OpenAudio(id string) (io.ReadSeekCloser, string, error)
}

// Engine owns the single output device and turns transport commands into
// device operations.
//
// Engine is not internally synchronized. Callers must serialize every method
// call on one goroutine and route device completion there with SetExecutor.
type Engine struct {
	factory  device.Factory
	resolver Resolver
	listener Listener
	logger   *logrus.Logger
	interval time.Duration
	exec     func(func())

	dev                device.Device
	state              PlaybackState
	current            string
	playedToCompletion bool
	stopPolling        context.CancelFunc
}

// NewEngine creates an engine in the Idle state with no media.
func NewEngine(factory device.Factory, resolver Resolver, listener Listener, logger *logrus.Logger, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultPositionInterval
	}

	return &Engine{
		factory:  factory,
		resolver: resolver,
		listener: listener,
		logger:   logger,
		interval: interval,
		exec:     func(fn func()) { fn() },
		state: PlaybackState{
			State:        Idle,
			PlaybackRate: 1.0,
			UpdatedAt:    time.Now(),
			Actions:      AvailableActions(Idle),
		},
	}
}

// SetExecutor sets how device completion is delivered back to the caller's
// goroutine. The default runs it inline on the device's goroutine.
func (e *Engine) SetExecutor(exec func(func())) {
	e.exec = exec
}

// State returns the last emitted snapshot
func (e *Engine) State() PlaybackState {
	return e.state
}

// CurrentMedia returns the loaded media id, or "" when none is loaded
func (e *Engine) CurrentMedia() string {
	return e.current
}

// IsPlaying reports whether the device is producing audio
func (e *Engine) IsPlaying() bool {
	return e.dev != nil && e.dev.IsPlaying()
}

// LoadAndPlay loads a track and starts it. Loading the track that is already
// loaded only resumes it, unless it played to completion or was stopped.
func (e *Engine) LoadAndPlay(id string) error {
	changed := e.current == "" || id != e.current
	if e.playedToCompletion {
		changed = true
		e.playedToCompletion = false
	}

	if !changed {
		if !e.IsPlaying() {
			e.Play()
		}
		return nil
	}

	track, err := e.resolver.Track(id)
	if err != nil {
		return err
	}

	e.release()
	e.current = id

	dev, err := e.factory()
	if err != nil {
		e.logger.WithError(err).WithField("media_id", id).Error("Failed to acquire output device")
		e.current = ""
		e.setState(Error)
		return err
	}
	dev.SetOnCompletion(func() {
		e.exec(func() { e.onCompletion(dev) })
	})
	e.dev = dev

	if err := e.prepare(track); err != nil {
		e.logger.WithError(err).WithField("media_id", id).Error("Failed to load track")
		e.release()
		e.current = ""
		// the previous track's device is already released
		if e.state.IsActive() {
			e.setState(Stopped)
		}
	} else {
		e.initializeProgress(track)
	}

	e.Play()
	return nil
}

func (e *Engine) prepare(track models.Track) error {
	reader, format, err := e.resolver.OpenAudio(track.ID)
	if err != nil {
		return err
	}
	return e.dev.Open(device.Source{
		Reader:     reader,
		Format:     format,
		DurationMS: track.DurationMS,
	})
}

// initializeProgress resets the progress baseline for a fresh source.
func (e *Engine) initializeProgress(track models.Track) {
	duration := e.dev.DurationMS()
	if duration <= 0 {
		duration = track.DurationMS
	}
	e.listener.OnDurationChanged(duration)
	e.listener.OnPositionChanged(0)
}

// Play starts or resumes the loaded device.
func (e *Engine) Play() {
	if e.dev == nil || e.dev.IsPlaying() {
		return
	}
	if err := e.dev.Start(); err != nil {
		e.logger.WithError(err).WithField("media_id", e.current).Warn("Failed to start playback")
		return
	}
	e.setState(Playing)
	e.startPoller()
}

// Pause pauses a playing device. The poller keeps running and skips ticks
// while the device is not playing.
func (e *Engine) Pause() {
	if e.dev == nil || !e.dev.IsPlaying() {
		return
	}
	e.dev.Pause()
	e.setState(Paused)
}

// Stop moves to Stopped even without a device, then releases the device.
func (e *Engine) Stop() {
	e.setState(Stopped)
	e.release()
}

// SeekTo moves the device position.
func (e *Engine) SeekTo(positionMS int64) {
	if e.dev == nil {
		return
	}
	if positionMS < 0 {
		positionMS = 0
	}
	e.dev.SeekTo(positionMS)
	e.listener.OnPositionChanged(e.dev.PositionMS())
}

// onCompletion runs on the caller's goroutine via exec.
func (e *Engine) onCompletion(dev device.Device) {
	if e.dev != dev {
		return
	}

	e.cancelPoller(true)
	e.listener.OnCompleted()
	e.setState(Stopped)
	e.release()
}

// release frees the device and cancels the poller. It is safe to call without
// a device.
func (e *Engine) release() {
	e.cancelPoller(e.dev != nil)
	if e.dev != nil {
		e.dev.Release()
		e.dev = nil
	}
}

// setState is the reducer step. Stopped marks the loaded track for reload.
func (e *Engine) setState(state Lifecycle) {
	if state == Stopped {
		e.playedToCompletion = true
	}

	var position int64
	if e.dev != nil && state != Stopped {
		position = e.dev.PositionMS()
	}

	e.state = PlaybackState{
		State:        state,
		PositionMS:   position,
		PlaybackRate: 1.0,
		UpdatedAt:    time.Now(),
		Actions:      AvailableActions(state),
	}
	e.listener.OnPlaybackStateChanged(e.state)
}
