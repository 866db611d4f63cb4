//go:build cgo

package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/sirupsen/logrus"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

const outputSampleRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(outputSampleRate, outputSampleRate.N(time.Second/10))
	})
	return speakerErr
}

// beepDevice plays one decoded source through the shared speaker.
type beepDevice struct {
	mu sync.Mutex

	logger   *logrus.Logger
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	queued   bool
	finished bool
	released bool
	onDone   func()
}

func newAudioDevice(logger *logrus.Logger) (Device, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	return &beepDevice{logger: logger}, nil
}

func (d *beepDevice) Open(src Source) error {
	streamer, format, err := decode(src)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queued {
		speaker.Clear()
	}
	d.closeStreamerLocked()
	d.streamer = streamer
	d.format = format
	d.ctrl = &beep.Ctrl{
		Streamer: beep.Resample(4, format.SampleRate, outputSampleRate, streamer),
		Paused:   true,
	}
	d.queued = false
	d.finished = false
	return nil
}

func (d *beepDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil || d.released {
		return ErrNoSource
	}

	if !d.queued {
		ctrl := d.ctrl
		speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
			// Run the callback in a separate goroutine; the speaker lock is
			// held here.
			go d.complete(ctrl)
		})))
		d.queued = true
	}

	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (d *beepDevice) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
}

func (d *beepDevice) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil || !d.queued || d.finished {
		return false
	}
	speaker.Lock()
	paused := d.ctrl.Paused
	speaker.Unlock()
	return !paused
}

func (d *beepDevice) PositionMS() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := d.streamer.Position()
	speaker.Unlock()
	return d.format.SampleRate.D(pos).Milliseconds()
}

func (d *beepDevice) DurationMS() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	return d.format.SampleRate.D(d.streamer.Len()).Milliseconds()
}

func (d *beepDevice) SeekTo(ms int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil || d.streamer.Len() == 0 {
		return
	}
	samples := d.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	if samples < 0 {
		samples = 0
	}
	if samples >= d.streamer.Len() {
		samples = d.streamer.Len() - 1
	}

	speaker.Lock()
	err := d.streamer.Seek(samples)
	speaker.Unlock()
	if err != nil {
		d.logger.WithError(err).WithField("position_ms", ms).Warn("Seek failed")
	}
}

func (d *beepDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.released = true
	d.onDone = nil
	if d.ctrl != nil {
		speaker.Lock()
		d.ctrl.Paused = true
		speaker.Unlock()
	}
	speaker.Clear()
	d.closeStreamerLocked()
}

func (d *beepDevice) SetOnCompletion(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDone = fn
}

// complete fires once per queued ctrl; a stale ctrl from a previous Open is
// ignored.
func (d *beepDevice) complete(ctrl *beep.Ctrl) {
	d.mu.Lock()
	if d.released || d.ctrl != ctrl {
		d.mu.Unlock()
		return
	}
	d.finished = true
	done := d.onDone
	d.mu.Unlock()

	if done != nil {
		done()
	}
}

func (d *beepDevice) closeStreamerLocked() {
	if d.streamer != nil {
		d.streamer.Close()
		d.streamer = nil
	}
	d.ctrl = nil
}

func decode(src Source) (beep.StreamSeekCloser, beep.Format, error) {
	if src.Reader == nil {
		format := beep.Format{SampleRate: outputSampleRate, NumChannels: 2, Precision: 2}
		n := format.SampleRate.N(time.Duration(src.DurationMS) * time.Millisecond)
		return &silence{length: n}, format, nil
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch src.Format {
	case "mp3":
		streamer, format, err = mp3.Decode(src.Reader)
	case "wav":
		streamer, format, err = wav.Decode(src.Reader)
	case "flac":
		streamer, format, err = flac.Decode(src.Reader)
	default:
		err = fmt.Errorf("unsupported format %q", src.Format)
	}
	if err != nil {
		src.Reader.Close()
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

// silence is a seekable streamer of zero samples.
type silence struct {
	length int
	pos    int
}

func (s *silence) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= s.length {
		return 0, false
	}
	n := len(samples)
	if remaining := s.length - s.pos; n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		samples[i] = [2]float64{}
	}
	s.pos += n
	return n, true
}

func (s *silence) Err() error    { return nil }
func (s *silence) Len() int      { return s.length }
func (s *silence) Position() int { return s.pos }
func (s *silence) Close() error  { return nil }

func (s *silence) Seek(p int) error {
	if p < 0 || p > s.length {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, s.length)
	}
	s.pos = p
	return nil
}
