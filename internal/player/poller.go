package player

import (
	"context"
	"time"

	"mediasession/internal/device"
)

// startPoller launches the position poller for the current device unless one
// is already running.
func (e *Engine) startPoller() {
	if e.stopPolling != nil || e.dev == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.stopPolling = cancel
	go e.poll(ctx, e.dev, e.interval)
}

// cancelPoller stops the poller without waiting for an in-flight tick. When
// reportZero is set the listener sees the position reset.
func (e *Engine) cancelPoller(reportZero bool) {
	if e.stopPolling != nil {
		e.stopPolling()
		e.stopPolling = nil
	}
	if reportZero {
		e.listener.OnPositionChanged(0)
	}
}

func (e *Engine) poll(ctx context.Context, dev device.Device, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !dev.IsPlaying() {
				continue
			}
			position := dev.PositionMS()
			// Drop a tick that raced with cancellation.
			if ctx.Err() != nil {
				return
			}
			e.listener.OnPositionChanged(position)
		}
	}
}
