package host

import (
	"fmt"
	"os"
	"sync"

	"mediasession/internal/notification"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

// Phase is the lifecycle of the background task
type Phase string

const (
	PhaseBackground Phase = "background"
	PhaseForeground Phase = "foreground"
	PhaseTerminated Phase = "terminated"
)

// Inhibitor takes and releases an OS lock that keeps the machine awake
type Inhibitor interface {
	Acquire(why string) (release func() error, err error)
}

// Host implements notification.ForegroundSink. Promote takes an inhibitor
// lock so the system does not idle-sleep while audio plays.
type Host struct {
	inhibitor Inhibitor
	logger    *logrus.Logger

	mu      sync.Mutex
	phase   Phase
	release func() error
}

// New creates a host in the background phase. A nil inhibitor makes
// promotion bookkeeping only.
func New(inhibitor Inhibitor, logger *logrus.Logger) *Host {
	return &Host{
		inhibitor: inhibitor,
		logger:    logger,
		phase:     PhaseBackground,
	}
}

// Phase returns the current lifecycle phase
func (h *Host) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// Promote moves the task to the foreground and takes the inhibitor lock.
func (h *Host) Promote(id int, d notification.Descriptor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.phase = PhaseForeground
	if h.release != nil || h.inhibitor == nil {
		return nil
	}

	release, err := h.inhibitor.Acquire(fmt.Sprintf("Playing %s", d.Title))
	if err != nil {
		return fmt.Errorf("acquire inhibitor: %w", err)
	}
	h.release = release

	h.logger.WithFields(logrus.Fields{
		"notification_id": id,
		"media_id":        d.MediaID,
	}).Debug("Foreground task promoted")
	return nil
}

// Demote drops the foreground lock. The notification stays up when keep is
// set; the task itself keeps running either way.
func (h *Host) Demote(keepNotification bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.phase = PhaseBackground
	h.logger.WithField("keep_notification", keepNotification).Debug("Foreground task demoted")
	return h.releaseLocked()
}

// Terminate releases the lock and ends the task. A later Promote starts it
// again.
func (h *Host) Terminate() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.phase = PhaseTerminated
	h.logger.Debug("Foreground task terminated")
	return h.releaseLocked()
}

func (h *Host) releaseLocked() error {
	if h.release == nil {
		return nil
	}
	release := h.release
	h.release = nil
	return release()
}

// LogindInhibitor takes systemd-logind inhibitor locks over the system bus.
type LogindInhibitor struct {
	conn    *dbus.Conn
	appName string
	what    string
}

// NewLogindInhibitor blocks the given inhibitor targets, e.g. "sleep:idle".
func NewLogindInhibitor(conn *dbus.Conn, appName, what string) *LogindInhibitor {
	return &LogindInhibitor{conn: conn, appName: appName, what: what}
}

// Acquire takes a block-mode lock. The lock lasts until the returned file
// descriptor is closed.
func (l *LogindInhibitor) Acquire(why string) (func() error, error) {
	obj := l.conn.Object("org.freedesktop.login1", "/org/freedesktop/login1")

	var fd dbus.UnixFD
	call := obj.Call("org.freedesktop.login1.Manager.Inhibit", 0, l.what, l.appName, why, "block")
	if err := call.Store(&fd); err != nil {
		return nil, fmt.Errorf("logind inhibit: %w", err)
	}

	file := os.NewFile(uintptr(fd), "logind-inhibit")
	return file.Close, nil
}
