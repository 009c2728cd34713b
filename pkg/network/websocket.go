package network

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WriteTimeout bounds a single frame or control write
	WriteTimeout = 5 * time.Second
)

var _ Conn = &WSConn{}

// WSConn adapts a gorilla websocket connection to Conn.
type WSConn struct {
	conn      *websocket.Conn
	readLimit int
	closeOnce sync.Once
	closeErr  error
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

func (c *WSConn) ReadMessage() (FrameType, []byte, error) {
	for {
		messageType, r, err := c.conn.NextReader()
		if err != nil {
			return 0, nil, err
		}

		var frame FrameType
		switch messageType {
		case websocket.TextMessage:
			frame = FrameText
		case websocket.BinaryMessage:
			frame = FrameBinary
		default:
			continue
		}

		if c.readLimit > 0 {
			r = io.LimitReader(r, int64(c.readLimit)+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, nil, err
		}
		return frame, data, nil
	}
}

func (c *WSConn) WriteMessage(frame FrameType, data []byte) error {
	var messageType int
	switch frame {
	case FrameText:
		messageType = websocket.TextMessage
	case FrameBinary:
		messageType = websocket.BinaryMessage
	default:
		return fmt.Errorf("unsupported frame type %d", frame)
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *WSConn) WritePing() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout))
}

func (c *WSConn) SetPongHandler(h func()) {
	c.conn.SetPongHandler(func(string) error {
		h()
		return nil
	})
}

func (c *WSConn) SetReadLimit(limit int) {
	c.readLimit = limit
}

func (c *WSConn) CloseWithCode(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteTimeout)); err != nil {
		c.Close()
		return fmt.Errorf("failed to write close frame: %v", err)
	}
	return c.Close()
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Upgrader turns HTTP requests into channels.
type Upgrader struct {
	upgrader websocket.Upgrader
	opts     ChannelOptions
}

func NewUpgrader(opts ChannelOptions) *Upgrader {
	return &Upgrader{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts: opts,
	}
}

// Upgrade performs the websocket handshake and returns an unopened channel.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Channel, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade to WebSocket: %v", err)
	}
	return NewChannel(NewWSConn(conn), u.opts), nil
}
