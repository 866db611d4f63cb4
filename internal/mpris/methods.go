package mpris

import (
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const uriScheme = "mediasession:"

type rootMethods struct {
	logger *logrus.Logger
}

func (r *rootMethods) Raise() *dbus.Error {
	return nil
}

func (r *rootMethods) Quit() *dbus.Error {
	r.logger.Debug("Ignoring MPRIS Quit request")
	return nil
}

// playerMethods holds only the methods exported on the Player interface.
type playerMethods struct {
	controls Controls
	mirror   *Mirror
	logger   *logrus.Logger
}

func (p *playerMethods) Next() *dbus.Error {
	return p.result("Next", p.controls.SkipToNext())
}

func (p *playerMethods) Previous() *dbus.Error {
	return p.result("Previous", p.controls.SkipToPrevious())
}

func (p *playerMethods) Pause() *dbus.Error {
	return p.result("Pause", p.controls.Pause())
}

func (p *playerMethods) PlayPause() *dbus.Error {
	return p.result("PlayPause", p.controls.PlayPause())
}

func (p *playerMethods) Stop() *dbus.Error {
	return p.result("Stop", p.controls.Stop())
}

func (p *playerMethods) Play() *dbus.Error {
	return p.result("Play", p.controls.Play())
}

// Seek moves by a relative offset in microseconds.
func (p *playerMethods) Seek(offset int64) *dbus.Error {
	target := p.mirror.position() + offset/1000
	if target < 0 {
		target = 0
	}
	return p.result("Seek", p.controls.SeekTo(target))
}

// SetPosition is ignored when trackID is not the current track.
func (p *playerMethods) SetPosition(trackID dbus.ObjectPath, position int64) *dbus.Error {
	track := p.mirror.currentTrack()
	if track == nil || trackPath(track.ID) != trackID || position < 0 {
		return nil
	}
	if track.DurationMS > 0 && position/1000 > track.DurationMS {
		return nil
	}
	return p.result("SetPosition", p.controls.SeekTo(position/1000))
}

// OpenUri plays mediasession:<id> URIs.
func (p *playerMethods) OpenUri(uri string) *dbus.Error {
	if !strings.HasPrefix(uri, uriScheme) {
		return dbus.MakeFailedError(errUnsupportedURI(uri))
	}
	id := strings.TrimPrefix(strings.TrimPrefix(uri, uriScheme), "//")
	return p.result("OpenUri", p.controls.PlayFromID(id, nil))
}

func (p *playerMethods) result(method string, err error) *dbus.Error {
	if err == nil {
		return nil
	}
	p.logger.WithError(err).WithField("method", method).Warn("MPRIS call failed")
	return dbus.MakeFailedError(err)
}

type errUnsupportedURI string

func (e errUnsupportedURI) Error() string {
	return "unsupported uri: " + string(e)
}
