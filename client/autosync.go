package client

import (
	"context"
	"time"
)

// DefaultAutoSyncInterval is the period of the background push.
const DefaultAutoSyncInterval = 2 * time.Minute

// StartAutoSync begins periodic background pushes. Each tick goes through
// SyncToRemote with auto semantics, so hidden surfaces skip the round trip
// and concurrent triggers coalesce. A second call while running is a no-op.
func (c *Client) StartAutoSync(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoSyncInterval
	}

	c.mu.Lock()
	if c.stopAuto != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.stopAuto = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := c.SyncToRemote(context.Background(), true); err != nil {
					c.logger.Warn("auto-sync failed", "error", err)
				}
			}
		}
	}()
}

// StopAutoSync cancels the background push. An in-flight push is not
// interrupted; its result still updates the last-synced bookkeeping.
func (c *Client) StopAutoSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopAuto != nil {
		close(c.stopAuto)
		c.stopAuto = nil
	}
}

// Close tears the client down.
func (c *Client) Close() {
	c.StopAutoSync()
}
