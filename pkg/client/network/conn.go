package network

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/network"
	"nhooyr.io/websocket"
)

const (
	// WriteTimeout bounds a single frame write
	WriteTimeout = 5 * time.Second
	// PingTimeout bounds the wait for a pong
	PingTimeout = 10 * time.Second
)

var _ network.Conn = &Conn{}

// Conn adapts a nhooyr websocket connection to network.Conn.
type Conn struct {
	conn       *websocket.Conn
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc

	lock      sync.Mutex
	pong      func()
	readLimit int
}

func NewConn(conn *websocket.Conn, remoteAddr string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		conn:       conn,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Conn) ReadMessage() (network.FrameType, []byte, error) {
	messageType, r, err := c.conn.Reader(c.ctx)
	if err != nil {
		return 0, nil, err
	}

	frame := network.FrameBinary
	if messageType == websocket.MessageText {
		frame = network.FrameText
	}

	c.lock.Lock()
	limit := c.readLimit
	c.lock.Unlock()
	if limit > 0 {
		r = io.LimitReader(r, int64(limit)+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, nil, err
	}
	return frame, data, nil
}

func (c *Conn) WriteMessage(frame network.FrameType, data []byte) error {
	var messageType websocket.MessageType
	switch frame {
	case network.FrameText:
		messageType = websocket.MessageText
	case network.FrameBinary:
		messageType = websocket.MessageBinary
	default:
		return fmt.Errorf("unsupported frame type %d", frame)
	}

	ctx, cancel := context.WithTimeout(c.ctx, WriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, messageType, data)
}

// WritePing sends a ping and returns at once. The pong handler runs when the
// server answers; pongs are only read while ReadMessage is being called.
func (c *Conn) WritePing() error {
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, PingTimeout)
		defer cancel()
		if err := c.conn.Ping(ctx); err != nil {
			log.Trace("Ping to %s failed: %v", c.remoteAddr, err)
			return
		}
		c.lock.Lock()
		pong := c.pong
		c.lock.Unlock()
		if pong != nil {
			pong()
		}
	}()
	return nil
}

func (c *Conn) SetPongHandler(h func()) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pong = h
}

func (c *Conn) SetReadLimit(limit int) {
	c.lock.Lock()
	c.readLimit = limit
	c.lock.Unlock()
	if limit > 0 {
		c.conn.SetReadLimit(int64(limit) + 1)
	}
}

func (c *Conn) CloseWithCode(code int, reason string) error {
	defer c.cancel()
	return c.conn.Close(websocket.StatusCode(code), reason)
}

func (c *Conn) Close() error {
	defer c.cancel()
	return c.conn.CloseNow()
}

func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
