package notification

import (
	"mediasession/internal/player"
	"mediasession/pkg/models"
)

// NotificationID is the single playback notification's id
const NotificationID = 412

// Action keys carried by notification buttons and the delete intent
const (
	ActionPrevious = "previous"
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionNext     = "next"
	ActionStop     = "stop"
	// ActionDismiss is reported when the user swipes the notification away
	ActionDismiss = "dismiss"
)

// Action is one notification button
type Action struct {
	Key   string
	Label string
	Icon  string
}

// Descriptor is everything a sink needs to render the playback
// notification. It is rebuilt on every update.
type Descriptor struct {
	ChannelID    string
	SessionToken string
	MediaID      string
	Title        string
	Text         string
	SubText      string
	Artwork      []byte
	ArtworkMime  string
	Actions      []Action
	Ongoing      bool
	DeleteAction string
	PositionMS   int64
	DurationMS   int64
}

// BuildDescriptor derives the notification for a track in a state. Skip
// actions appear only when the state advertises them; a paused or stopped
// state shows Play instead of Pause.
func BuildDescriptor(channelID, token string, track models.Track, state player.PlaybackState) Descriptor {
	playing := state.State == player.Playing

	var actions []Action
	if state.Actions.Has(player.ActionSkipPrevious) {
		actions = append(actions, Action{Key: ActionPrevious, Label: "Previous", Icon: "media-skip-backward"})
	}
	if playing {
		actions = append(actions, Action{Key: ActionPause, Label: "Pause", Icon: "media-playback-pause"})
	} else {
		actions = append(actions, Action{Key: ActionPlay, Label: "Play", Icon: "media-playback-start"})
	}
	if state.Actions.Has(player.ActionSkipNext) {
		actions = append(actions, Action{Key: ActionNext, Label: "Next", Icon: "media-skip-forward"})
	}

	return Descriptor{
		ChannelID:    channelID,
		SessionToken: token,
		MediaID:      track.ID,
		Title:        track.Title,
		Text:         track.Artist,
		SubText:      track.Album,
		Actions:      actions,
		Ongoing:      playing,
		DeleteAction: ActionStop,
		PositionMS:   state.PositionMS,
		DurationMS:   track.DurationMS,
	}
}

// HasAction reports whether a button with key is present
func (d Descriptor) HasAction(key string) bool {
	for _, action := range d.Actions {
		if action.Key == key {
			return true
		}
	}
	return false
}
