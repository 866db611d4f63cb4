package notification

import (
	"context"
	"sync"

	"mediasession/internal/player"
	"mediasession/pkg/models"

	"github.com/sirupsen/logrus"
)

// Transport is the control surface the notification buttons drive
type Transport interface {
	Play() error
	Pause() error
	Stop() error
	SkipToNext() error
	SkipToPrevious() error
}

// ArtworkSource looks up cover images by media id
type ArtworkSource interface {
	Artwork(id string) ([]byte, string, error)
}

// Coordinator keeps one notification visible while playback is active and
// the foreground task in step with it.
type Coordinator struct {
	sink       NotificationSink
	foreground ForegroundSink
	transport  Transport
	artwork    ArtworkSource
	channel    Channel
	token      string
	logger     *logrus.Logger

	mu       sync.Mutex
	channels map[string]bool
	promoted bool
	posted   bool
}

// NewCoordinator creates a coordinator. artwork may be nil.
func NewCoordinator(sink NotificationSink, foreground ForegroundSink, transport Transport, artwork ArtworkSource, channel Channel, token string, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		sink:       sink,
		foreground: foreground,
		transport:  transport,
		artwork:    artwork,
		channel:    channel,
		token:      token,
		logger:     logger,
		channels:   make(map[string]bool),
	}
}

// OnPlaybackStateChanged drives the notification from a state transition.
func (c *Coordinator) OnPlaybackStateChanged(state player.PlaybackState, track *models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch state.State {
	case player.Stopped, player.Error:
		c.withdrawLocked()
	case player.Idle:
		if track == nil {
			c.withdrawLocked()
		}
	case player.Playing:
		if track == nil {
			return
		}
		d := c.buildLocked(*track, state)
		if !c.promoted {
			if err := c.foreground.Promote(NotificationID, d); err != nil {
				c.logger.WithError(err).Warn("Failed to promote foreground task")
			}
			c.promoted = true
		}
		c.postLocked(d)
	case player.Paused:
		if track == nil {
			return
		}
		if err := c.foreground.Demote(true); err != nil {
			c.logger.WithError(err).Warn("Failed to demote foreground task")
		}
		c.promoted = false
		c.postLocked(c.buildLocked(*track, state))
	}
}

func (c *Coordinator) buildLocked(track models.Track, state player.PlaybackState) Descriptor {
	c.ensureChannelLocked(c.channel)

	d := BuildDescriptor(c.channel.ID, c.token, track, state)
	if c.artwork != nil {
		data, mimeType, err := c.artwork.Artwork(track.ID)
		if err != nil {
			c.logger.WithError(err).WithField("media_id", track.ID).Debug("Posting notification without artwork")
		} else {
			d.Artwork = data
			d.ArtworkMime = mimeType
		}
	}
	return d
}

// ensureChannelLocked registers a channel once per id.
func (c *Coordinator) ensureChannelLocked(channel Channel) {
	if c.channels[channel.ID] {
		return
	}
	if err := c.sink.CreateOrReuseChannel(channel); err != nil {
		c.logger.WithError(err).WithField("channel_id", channel.ID).Warn("Failed to register notification channel")
		return
	}
	c.channels[channel.ID] = true
}

func (c *Coordinator) postLocked(d Descriptor) {
	if err := c.sink.Post(NotificationID, d); err != nil {
		c.logger.WithError(err).WithField("media_id", d.MediaID).Warn("Failed to post notification")
		return
	}
	c.posted = true
}

func (c *Coordinator) withdrawLocked() {
	if !c.posted && !c.promoted {
		return
	}
	if err := c.sink.Cancel(NotificationID); err != nil {
		c.logger.WithError(err).Warn("Failed to cancel notification")
	}
	if err := c.foreground.Terminate(); err != nil {
		c.logger.WithError(err).Warn("Failed to terminate foreground task")
	}
	c.posted = false
	c.promoted = false
}

// Run routes user interactions from the sink into the transport until ctx is
// done or the sink closes its channel.
func (c *Coordinator) Run(ctx context.Context) {
	interactions := c.sink.Interactions()
	if interactions == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case interaction, ok := <-interactions:
			if !ok {
				return
			}
			c.HandleInteraction(interaction)
		}
	}
}

// HandleInteraction maps one button press or dismissal onto a transport
// command. A dismissal issues exactly one Stop.
func (c *Coordinator) HandleInteraction(interaction Interaction) {
	if interaction.NotificationID != NotificationID {
		return
	}

	var err error
	switch interaction.ActionKey {
	case ActionDismiss, ActionStop:
		err = c.transport.Stop()
	case ActionPlay:
		err = c.transport.Play()
	case ActionPause:
		err = c.transport.Pause()
	case ActionNext:
		err = c.transport.SkipToNext()
	case ActionPrevious:
		err = c.transport.SkipToPrevious()
	default:
		c.logger.WithField("action", interaction.ActionKey).Debug("Ignoring unknown notification action")
		return
	}

	if err != nil {
		c.logger.WithError(err).WithField("action", interaction.ActionKey).Warn("Notification action failed")
	}
}
