package device

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// ErrNoSource is returned by Start when nothing has been opened
var ErrNoSource = errors.New("no source opened")

// Source is the audio handed to a device. A nil Reader means the device
// synthesizes silence for DurationMS.
type Source struct {
	Reader     io.ReadSeekCloser
	Format     string
	DurationMS int64
}

// Device is one output stream. Open binds and prepares a source and blocks
// until it is ready. Implementations call the completion callback from their
// own goroutine once the source plays out, never after Release.
type Device interface {
	Open(src Source) error
	Start() error
	Pause()
	IsPlaying() bool
	PositionMS() int64
	DurationMS() int64
	SeekTo(ms int64)
	Release()
	SetOnCompletion(fn func())
}

// Factory acquires a fresh device
type Factory func() (Device, error)

// NewFactory returns the factory for this build. Silent forces the
// wall-clock device even when audio output is available.
func NewFactory(silent bool, logger *logrus.Logger) Factory {
	if silent || !AudioAvailable {
		logger.WithField("audio_available", AudioAvailable).Info("Using silent output device")
		return func() (Device, error) {
			return NewSilent(), nil
		}
	}

	return func() (Device, error) {
		return newAudioDevice(logger)
	}
}
