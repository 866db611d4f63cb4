package notification

import "fmt"

// Importance ranks how intrusive a channel's notifications are
type Importance string

const (
	ImportanceMin     Importance = "min"
	ImportanceLow     Importance = "low"
	ImportanceDefault Importance = "default"
	ImportanceHigh    Importance = "high"
)

// ParseImportance validates an importance name
func ParseImportance(name string) (Importance, error) {
	switch imp := Importance(name); imp {
	case ImportanceMin, ImportanceLow, ImportanceDefault, ImportanceHigh:
		return imp, nil
	default:
		return "", fmt.Errorf("unknown importance %q", name)
	}
}

// urgency maps importance onto the freedesktop urgency levels
func (i Importance) urgency() byte {
	switch i {
	case ImportanceHigh:
		return 2
	case ImportanceDefault:
		return 1
	default:
		return 0
	}
}

// Channel groups notifications that share presentation settings
type Channel struct {
	ID          string
	Name        string
	Description string
	Importance  Importance
	ShowBadge   bool
}

// Interaction is a user action on a posted notification
type Interaction struct {
	NotificationID int
	ActionKey      string
}

// NotificationSink displays notifications
type NotificationSink interface {
	// CreateOrReuseChannel registers a channel; registering an existing
	// id must not create a duplicate.
	CreateOrReuseChannel(channel Channel) error
	Post(id int, d Descriptor) error
	Cancel(id int) error
	// Interactions delivers action invocations and dismissals. A sink
	// without interaction support returns nil.
	Interactions() <-chan Interaction
}

// ForegroundSink keeps the hosting process alive while audio plays
type ForegroundSink interface {
	Promote(id int, d Descriptor) error
	Demote(keepNotification bool) error
	Terminate() error
}
