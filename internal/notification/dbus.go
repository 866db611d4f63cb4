package notification

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/esiqveland/notify"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const defaultAppIcon = "audio-x-generic"

// DBusSink posts freedesktop notifications over the session bus.
type DBusSink struct {
	notifier notify.Notifier
	appName  string
	logger   *logrus.Logger

	mu           sync.Mutex
	channels     map[string]Channel
	serverIDs    map[int]uint32
	artworkFiles map[string]string
	artworkDir   string
	removeDir    func(string) error
	interactions chan Interaction
}

// NewDBusSink connects to the notification server on conn.
func NewDBusSink(conn *dbus.Conn, appName string, logger *logrus.Logger) (*DBusSink, error) {
	s := &DBusSink{
		appName:      appName,
		logger:       logger,
		channels:     make(map[string]Channel),
		serverIDs:    make(map[int]uint32),
		artworkFiles: make(map[string]string),
		removeDir:    os.RemoveAll,
		interactions: make(chan Interaction, 8),
	}

	notifier, err := notify.New(conn,
		notify.WithOnAction(s.onAction),
		notify.WithOnClosed(s.onClosed),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to notification server: %w", err)
	}
	s.notifier = notifier

	if info, err := notifier.GetServerInformation(); err == nil {
		logger.WithFields(logrus.Fields{
			"server":  info.Name,
			"vendor":  info.Vendor,
			"version": info.Version,
		}).Info("Connected to notification server")
	}

	return s, nil
}

// CreateOrReuseChannel records channel settings used as hints on later posts.
func (s *DBusSink) CreateOrReuseChannel(channel Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.channels[channel.ID]; exists {
		return nil
	}
	s.channels[channel.ID] = channel
	return nil
}

// Post shows or replaces the notification with the given id.
func (s *DBusSink) Post(id int, d Descriptor) error {
	s.mu.Lock()
	channel := s.channels[d.ChannelID]
	replaces := s.serverIDs[id]
	s.mu.Unlock()

	hints := map[string]dbus.Variant{
		"urgency":  dbus.MakeVariant(channel.Importance.urgency()),
		"category": dbus.MakeVariant("x-mediasession.playback"),
		"resident": dbus.MakeVariant(d.Ongoing),
	}
	if d.SessionToken != "" {
		hints["x-mediasession-token"] = dbus.MakeVariant(d.SessionToken)
	}
	if path := s.artworkPath(d); path != "" {
		hints["image-path"] = dbus.MakeVariant(path)
	}

	actions := make([]notify.Action, 0, len(d.Actions))
	for _, action := range d.Actions {
		actions = append(actions, notify.Action{Key: action.Key, Label: action.Label})
	}

	body := d.Text
	if d.SubText != "" {
		body = strings.TrimSpace(body + "\n" + d.SubText)
	}

	serverID, err := s.notifier.SendNotification(notify.Notification{
		AppName:       s.appName,
		ReplacesID:    replaces,
		AppIcon:       defaultAppIcon,
		Summary:       d.Title,
		Body:          body,
		Actions:       actions,
		Hints:         hints,
		ExpireTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	s.mu.Lock()
	s.serverIDs[id] = serverID
	s.mu.Unlock()
	return nil
}

// Cancel closes the notification if it is showing.
func (s *DBusSink) Cancel(id int) error {
	s.mu.Lock()
	serverID, ok := s.serverIDs[id]
	delete(s.serverIDs, id)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if _, err := s.notifier.CloseNotification(serverID); err != nil {
		return fmt.Errorf("close notification: %w", err)
	}
	return nil
}

// Interactions delivers button presses and user dismissals
func (s *DBusSink) Interactions() <-chan Interaction {
	return s.interactions
}

// Close stops listening for signals and removes cached artwork files.
func (s *DBusSink) Close() error {
	s.mu.Lock()
	dir := s.artworkDir
	s.mu.Unlock()

	if dir != "" {
		if err := s.removeDir(dir); err != nil {
			s.logger.WithError(err).WithField("dir", dir).Debug("Failed to remove artwork directory")
		}
	}
	return s.notifier.Close()
}

func (s *DBusSink) localID(serverID uint32) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sid := range s.serverIDs {
		if sid == serverID {
			return id, true
		}
	}
	return 0, false
}

func (s *DBusSink) onAction(signal *notify.ActionInvokedSignal) {
	id, ok := s.localID(signal.ID)
	if !ok {
		return
	}
	s.deliver(Interaction{NotificationID: id, ActionKey: signal.ActionKey})
}

func (s *DBusSink) onClosed(signal *notify.NotificationClosedSignal) {
	id, ok := s.localID(signal.ID)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.serverIDs, id)
	s.mu.Unlock()

	if signal.Reason == notify.ReasonDismissedByUser {
		s.deliver(Interaction{NotificationID: id, ActionKey: ActionDismiss})
	}
}

// deliver must not block the signal loop.
func (s *DBusSink) deliver(interaction Interaction) {
	select {
	case s.interactions <- interaction:
	default:
		s.logger.WithField("action", interaction.ActionKey).Warn("Dropped notification interaction")
	}
}

// artworkPath writes artwork to a temp file once per media id, since the
// image-path hint needs a file.
func (s *DBusSink) artworkPath(d Descriptor) string {
	if len(d.Artwork) == 0 {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if path, ok := s.artworkFiles[d.MediaID]; ok {
		return path
	}

	if s.artworkDir == "" {
		dir, err := os.MkdirTemp("", "mediasession-art-")
		if err != nil {
			s.logger.WithError(err).Debug("Failed to create artwork directory")
			return ""
		}
		s.artworkDir = dir
	}

	ext := ".img"
	switch d.ArtworkMime {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	}

	path := filepath.Join(s.artworkDir, d.MediaID+ext)
	if err := os.WriteFile(path, d.Artwork, 0600); err != nil {
		s.logger.WithError(err).WithField("media_id", d.MediaID).Debug("Failed to write artwork file")
		return ""
	}
	s.artworkFiles[d.MediaID] = path
	return path
}
