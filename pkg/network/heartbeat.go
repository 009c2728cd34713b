package network

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
)

// Heartbeat pings every registered channel on an interval and disposes any
// channel that has not answered since the previous ping.
type Heartbeat struct {
	interval time.Duration
	lock     sync.Mutex
	channels map[*Channel]struct{}
}

func NewHeartbeat(interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{
		interval: interval,
		channels: make(map[*Channel]struct{}),
	}
}

// Add registers a channel. Disposed channels remove themselves.
func (h *Heartbeat) Add(c *Channel) {
	h.lock.Lock()
	h.channels[c] = struct{}{}
	h.lock.Unlock()

	c.OnDispose(func() {
		h.Remove(c)
	})
}

func (h *Heartbeat) Remove(c *Channel) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.channels, c)
}

func (h *Heartbeat) Len() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.channels)
}

func (h *Heartbeat) Start(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *Heartbeat) sweep() {
	var dead, live []*Channel

	h.lock.Lock()
	for c := range h.channels {
		if !c.alive.Swap(false) {
			dead = append(dead, c)
			delete(h.channels, c)
			continue
		}
		live = append(live, c)
	}
	h.lock.Unlock()

	for _, c := range dead {
		c.logger.Debug("Disposing unresponsive channel (%s)", c.RemoteAddr())
		c.Dispose()
	}
	for _, c := range live {
		if err := c.Ping(); err != nil {
			c.logger.Debug("Failed to ping channel: %v", err)
			h.Remove(c)
			c.Dispose()
		}
	}
}
