package player

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Lifecycle is the engine's playback state
type Lifecycle int

const (
	Idle Lifecycle = iota
	Playing
	Paused
	Stopped
	Error
)

var lifecycleNames = map[Lifecycle]string{
	Idle:    "idle",
	Playing: "playing",
	Paused:  "paused",
	Stopped: "stopped",
	Error:   "error",
}

func (l Lifecycle) String() string {
	if name, ok := lifecycleNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Lifecycle(%d)", int(l))
}

// MarshalText encodes the lifecycle by name
func (l Lifecycle) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a lifecycle name
func (l *Lifecycle) UnmarshalText(text []byte) error {
	for value, name := range lifecycleNames {
		if name == string(text) {
			*l = value
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle %q", text)
}

// Actions is the set of transport commands valid in a state
type Actions uint32

const (
	ActionPlay Actions = 1 << iota
	ActionPause
	ActionStop
	ActionSkipNext
	ActionSkipPrevious
	ActionPlayFromID
	ActionPlaySearch
	ActionPlayPause
)

var actionNames = []struct {
	action Actions
	name   string
}{
	{ActionPlay, "play"},
	{ActionPause, "pause"},
	{ActionStop, "stop"},
	{ActionSkipNext, "skip_next"},
	{ActionSkipPrevious, "skip_previous"},
	{ActionPlayFromID, "play_from_id"},
	{ActionPlaySearch, "play_search"},
	{ActionPlayPause, "play_pause"},
}

// Has reports whether every bit of a is set
func (a Actions) Has(action Actions) bool {
	return a&action == action
}

// Names lists the set actions in bit order
func (a Actions) Names() []string {
	names := []string{}
	for _, entry := range actionNames {
		if a.Has(entry.action) {
			names = append(names, entry.name)
		}
	}
	return names
}

func (a Actions) String() string {
	return strings.Join(a.Names(), "|")
}

// MarshalJSON encodes the set as a list of names
func (a Actions) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Names())
}

// UnmarshalJSON decodes a list of action names
func (a *Actions) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	var set Actions
	for _, name := range names {
		found := false
		for _, entry := range actionNames {
			if entry.name == name {
				set |= entry.action
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown action %q", name)
		}
	}
	*a = set
	return nil
}

const commonActions = ActionPlayFromID | ActionPlaySearch | ActionSkipNext | ActionSkipPrevious

// AvailableActions returns the actions advertised in a state.
func AvailableActions(state Lifecycle) Actions {
	switch state {
	case Stopped:
		return ActionPlay | ActionPause | commonActions
	case Playing:
		return ActionStop | ActionPause | commonActions
	case Paused:
		return ActionPlay | ActionStop | commonActions
	default:
		return ActionPlay | ActionPlayPause | ActionStop | ActionPause | commonActions
	}
}

// PlaybackState is a snapshot of the engine after a transition
type PlaybackState struct {
	State        Lifecycle `json:"state"`
	PositionMS   int64     `json:"positionMs"`
	PlaybackRate float64   `json:"playbackRate"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Actions      Actions   `json:"actions"`
}

// IsActive reports whether a device is producing or holding audio
func (s PlaybackState) IsActive() bool {
	return s.State == Playing || s.State == Paused
}
