package mpris

import (
	"strings"
	"sync"

	"mediasession/internal/player"
	"mediasession/pkg/models"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	rootInterface   = "org.mpris.MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
	objectPath      = "/org/mpris/MediaPlayer2"
	trackPathPrefix = "/org/mpris/MediaPlayer2/mediasession/track/"
	noTrackPath     = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

// Controls is the transport surface MPRIS method calls are routed into
type Controls interface {
	Play() error
	Pause() error
	PlayPause() error
	Stop() error
	SkipToNext() error
	SkipToPrevious() error
	SeekTo(positionMS int64) error
	PlayFromID(id string, extras map[string]string) error
}

// propertySetter is satisfied by *prop.Properties
type propertySetter interface {
	SetMust(iface, property string, v interface{})
}

// Mirror publishes session state as MPRIS player properties.
type Mirror struct {
	props  propertySetter
	logger *logrus.Logger

	mu         sync.Mutex
	active     bool
	positionMS int64
	track      *models.Track
}

func newMirror(props propertySetter, logger *logrus.Logger) *Mirror {
	return &Mirror{props: props, logger: logger}
}

// PublishState implements session.MirrorSink.
func (m *Mirror) PublishState(state player.PlaybackState) {
	m.mu.Lock()
	m.positionMS = state.PositionMS
	m.mu.Unlock()

	m.props.SetMust(playerInterface, "PlaybackStatus", playbackStatus(state.State))
	m.props.SetMust(playerInterface, "CanPlay", state.Actions.Has(player.ActionPlay))
	m.props.SetMust(playerInterface, "CanPause", state.Actions.Has(player.ActionPause))
	m.props.SetMust(playerInterface, "CanGoNext", state.Actions.Has(player.ActionSkipNext))
	m.props.SetMust(playerInterface, "CanGoPrevious", state.Actions.Has(player.ActionSkipPrevious))
	m.props.SetMust(playerInterface, "CanSeek", state.State == player.Playing || state.State == player.Paused)
	m.props.SetMust(playerInterface, "Position", msToMicros(state.PositionMS))
}

// PublishMetadata implements session.MirrorSink.
func (m *Mirror) PublishMetadata(track *models.Track) {
	m.mu.Lock()
	m.track = track
	m.mu.Unlock()

	m.props.SetMust(playerInterface, "Metadata", metadataMap(track))
}

// PublishPosition implements session.PositionSink. Position changes are not
// signalled, clients poll the property.
func (m *Mirror) PublishPosition(positionMS int64) {
	m.mu.Lock()
	m.positionMS = positionMS
	m.mu.Unlock()

	m.props.SetMust(playerInterface, "Position", msToMicros(positionMS))
}

// SetActive implements session.MirrorSink.
func (m *Mirror) SetActive(active bool) {
	m.mu.Lock()
	m.active = active
	m.mu.Unlock()

	m.logger.WithField("active", active).Debug("MPRIS session activity changed")
}

// Active reports whether the session is active
func (m *Mirror) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Mirror) position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionMS
}

func (m *Mirror) currentTrack() *models.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.track
}

func playbackStatus(state player.Lifecycle) string {
	switch state {
	case player.Playing:
		return "Playing"
	case player.Paused:
		return "Paused"
	default:
		return "Stopped"
	}
}

func msToMicros(ms int64) int64 {
	return ms * 1000
}

// trackPath builds an object path from a media id; object paths only allow
// [A-Za-z0-9_] in elements.
func trackPath(id string) dbus.ObjectPath {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return noTrackPath
	}
	return dbus.ObjectPath(trackPathPrefix + b.String())
}

func metadataMap(track *models.Track) map[string]dbus.Variant {
	if track == nil {
		return map[string]dbus.Variant{
			"mpris:trackid": dbus.MakeVariant(dbus.ObjectPath(noTrackPath)),
		}
	}

	metadata := map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(trackPath(track.ID)),
		"mpris:length":  dbus.MakeVariant(msToMicros(track.DurationMS)),
		"xesam:title":   dbus.MakeVariant(track.Title),
		"xesam:album":   dbus.MakeVariant(track.Album),
		"xesam:artist":  dbus.MakeVariant([]string{track.Artist}),
	}
	if track.Genre != "" {
		metadata["xesam:genre"] = dbus.MakeVariant([]string{track.Genre})
	}
	return metadata
}
