package network

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/network"
	"nhooyr.io/websocket"
)

const (
	DefaultSyncTimeInterval = 5 * time.Second
)

type DialOptions struct {
	ChannelOptions network.ChannelOptions
	// Token is sent as the token query parameter
	Token  string
	Header http.Header
}

// Client is a connection to a room along with its server clock estimate.
type Client struct {
	channel *network.Channel
	clock   *ClockSync
}

// Dial connects to a room's connect endpoint. The returned client's channel
// is not yet served, so handlers can be registered before any message is read.
func Dial(ctx context.Context, endpoint string, opts DialOptions) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %v", endpoint, err)
	}
	if opts.Token != "" {
		q := u.Query()
		q.Set("token", opts.Token)
		u.RawQuery = q.Encode()
	}

	log.Info("Connecting to %s", u.Host)
	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPHeader: opts.Header})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", u.Host, err)
	}

	c := &Client{
		channel: network.NewChannel(NewConn(conn, u.Host), opts.ChannelOptions),
		clock:   NewClockSync(),
	}
	c.channel.On(messages.KindSyncTime, func(msg *network.Inbound) {
		payload, err := messages.DecodePayload[messages.SyncTimePayload](msg.Envelope)
		if err != nil {
			log.Warn("Invalid sync time reply: %v", err)
			return
		}
		c.clock.Observe(payload, msg.ReceivedAt)
	})
	return c, nil
}

func (c *Client) Channel() *network.Channel {
	return c.channel
}

func (c *Client) Clock() *ClockSync {
	return c.clock
}

// Serve reads from the connection and keeps the clock in sync until ctx is
// cancelled or the connection fails.
func (c *Client) Serve(ctx context.Context, syncInterval time.Duration) error {
	if syncInterval <= 0 {
		syncInterval = DefaultSyncTimeInterval
	}
	if err := c.channel.Open(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()
		for {
			if err := c.SyncTime(); err != nil {
				log.Debug("Failed to sync time: %v", err)
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			case <-c.channel.Done():
				return
			}
		}
	}()

	return c.channel.Serve(ctx)
}

// SyncTime asks the server for its clock. The reply updates Clock.
func (c *Client) SyncTime() error {
	payload := messages.SyncTimePayload{ClientTime: time.Now().UnixMilli()}
	return c.channel.SendControl(messages.KindSyncTime, payload, messages.StatusOK)
}

func (c *Client) SendInput(input *messages.InputMessage) error {
	return c.channel.SendInput(input)
}

func (c *Client) Close() {
	c.channel.Dispose()
}
