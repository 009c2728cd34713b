package network

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/arena/pkg/log"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultOutboundBuffer is the number of frames a channel queues before dropping
	DefaultOutboundBuffer = 64
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Inbound is a decoded message. Exactly one of Input, Snapshot or Envelope is set.
type Inbound struct {
	Kind       messages.Kind
	Input      *messages.InputMessage
	Snapshot   *messages.SnapshotMessage
	Envelope   *messages.Envelope
	ReceivedAt time.Time
}

type Handler func(msg *Inbound)

type ChannelOptions struct {
	// MaxMessageSize is the inbound frame ceiling in bytes
	MaxMessageSize int
	// OutboundBuffer is the number of frames queued for the write pump
	OutboundBuffer int
	// RateLimit is the sustained inbound frames per second; zero disables limiting
	RateLimit rate.Limit
	// RateBurst is the inbound burst allowance
	RateBurst int
	Logger    *log.Logger
}

type outboundFrame struct {
	frame FrameType
	data  []byte
	// final closes the connection once the frame is written
	final bool
}

// Channel wraps a Conn with typed dispatch, a size ceiling, liveness
// tracking and an idempotent Dispose.
type Channel struct {
	id             string
	conn           Conn
	logger         *log.Logger
	maxMessageSize int
	limiter        *rate.Limiter

	state    atomic.Int32
	alive    atomic.Bool
	dropped  atomic.Uint64
	outbound chan outboundFrame
	done     chan struct{}

	lock            sync.RWMutex
	handlers        map[messages.Kind][]Handler
	disposeHandlers []func()
	disposeOnce     sync.Once
}

func NewChannel(conn Conn, opts ChannelOptions) *Channel {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = messages.MaxMessageSize
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = DefaultOutboundBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	id := uuid.NewString()
	c := &Channel{
		id:             id,
		conn:           conn,
		logger:         opts.Logger.With("channel", id),
		maxMessageSize: opts.MaxMessageSize,
		outbound:       make(chan outboundFrame, opts.OutboundBuffer),
		done:           make(chan struct{}),
		handlers:       make(map[messages.Kind][]Handler),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	conn.SetReadLimit(opts.MaxMessageSize)
	return c
}

func (c *Channel) ID() string {
	return c.id
}

func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) RemoteAddr() string {
	return c.conn.RemoteAddr()
}

// Alive reports whether the peer has answered since the last ping.
func (c *Channel) Alive() bool {
	return c.alive.Load()
}

// Dropped returns the number of outbound frames dropped on a full buffer.
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// On registers a handler for a message kind. A kind may have many handlers;
// they run in registration order.
func (c *Channel) On(kind messages.Kind, h Handler) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.State() == StateDisposed {
		return
	}
	c.handlers[kind] = append(c.handlers[kind], h)
}

// OnDispose registers f to run once when the channel is disposed. If the
// channel is already disposed f runs immediately.
func (c *Channel) OnDispose(f func()) {
	c.lock.Lock()
	if c.State() == StateDisposed {
		c.lock.Unlock()
		f()
		return
	}
	c.disposeHandlers = append(c.disposeHandlers, f)
	c.lock.Unlock()
}

// Open transitions the channel to the open state and starts the write pump.
func (c *Channel) Open() error {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return &NotConnectedError{ChannelID: c.id, State: c.State()}
	}
	c.alive.Store(true)
	c.conn.SetPongHandler(func() {
		c.alive.Store(true)
	})
	go c.writePump()
	return nil
}

// Serve opens the channel if needed and reads until the connection fails,
// ctx is cancelled or the channel is disposed. The channel is always
// disposed when Serve returns.
func (c *Channel) Serve(ctx context.Context) error {
	if c.State() == StateConnecting {
		if err := c.Open(); err != nil {
			return err
		}
	}
	defer c.Dispose()

	go func() {
		select {
		case <-ctx.Done():
			c.Dispose()
		case <-c.done:
		}
	}()

	return c.readLoop()
}

func (c *Channel) readLoop() error {
	for {
		frame, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.State() == StateDisposed {
				return nil
			}
			return fmt.Errorf("failed to read from %s: %v", c.conn.RemoteAddr(), err)
		}

		if len(data) > c.maxMessageSize {
			violation := &PolicyViolationError{Size: len(data), Limit: c.maxMessageSize}
			c.logger.Warn("Closing connection from %s: %v", c.conn.RemoteAddr(), violation)
			if err := c.conn.CloseWithCode(ClosePolicyViolation, "message too large"); err != nil {
				c.logger.Debug("Failed to send policy violation close: %v", err)
			}
			c.Dispose()
			return violation
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Debug("Dropping %s frame from %s: rate limited", frame, c.conn.RemoteAddr())
			continue
		}

		c.dispatch(frame, data)
	}
}

func (c *Channel) dispatch(frame FrameType, data []byte) {
	msg, err := decodeInbound(frame, data)
	if err != nil {
		c.logger.Warn("Dropping %s frame from %s: %v", frame, c.conn.RemoteAddr(), err)
		return
	}

	c.lock.RLock()
	handlers := append([]Handler(nil), c.handlers[msg.Kind]...)
	c.lock.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for %s", msg.Kind)
		return
	}
	for _, h := range handlers {
		c.invoke(h, msg)
	}
}

func (c *Channel) invoke(h Handler, msg *Inbound) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Handler for %s panicked: %v", msg.Kind, r)
		}
	}()
	h(msg)
}

func decodeInbound(frame FrameType, data []byte) (*Inbound, error) {
	msg := &Inbound{ReceivedAt: time.Now()}
	switch frame {
	case FrameText:
		env, err := messages.DecodeEnvelope(data)
		if err != nil {
			return nil, err
		}
		msg.Kind = env.Kind()
		if !msg.Kind.IsControl() {
			return nil, &messages.DecodeError{Schema: "envelope", Reason: fmt.Sprintf("unknown event %q", env.Event)}
		}
		msg.Envelope = env
	case FrameBinary:
		decoded, err := messages.Decode(data)
		if err != nil {
			return nil, err
		}
		switch m := decoded.(type) {
		case *messages.InputMessage:
			msg.Kind = messages.KindInput
			msg.Input = m
		case *messages.SnapshotMessage:
			msg.Kind = messages.KindSnapshot
			msg.Snapshot = m
		}
	default:
		return nil, &messages.DecodeError{Schema: "frame", Reason: fmt.Sprintf("unsupported frame type %d", frame)}
	}
	return msg, nil
}

func (c *Channel) writePump() {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.outbound:
			if err := c.conn.WriteMessage(f.frame, f.data); err != nil {
				c.logger.Debug("Failed to write to %s: %v", c.conn.RemoteAddr(), err)
				c.Dispose()
				return
			}
			if f.final {
				if err := c.conn.CloseWithCode(CloseNormal, ""); err != nil {
					c.logger.Trace("Failed to send close frame: %v", err)
				}
				c.Dispose()
				return
			}
		}
	}
}

// Send queues a frame for the write pump without blocking.
func (c *Channel) Send(frame FrameType, data []byte) error {
	if state := c.State(); state != StateOpen {
		return &NotConnectedError{ChannelID: c.id, State: state}
	}
	select {
	case <-c.done:
		return &NotConnectedError{ChannelID: c.id, State: StateDisposed}
	case c.outbound <- outboundFrame{frame: frame, data: data}:
		return nil
	default:
		c.dropped.Add(1)
		return ErrSendBufferFull
	}
}

func (c *Channel) SendInput(m *messages.InputMessage) error {
	return c.Send(FrameBinary, messages.EncodeInput(m))
}

func (c *Channel) SendSnapshot(m *messages.SnapshotMessage) error {
	b, err := messages.EncodeSnapshot(m)
	if err != nil {
		return err
	}
	return c.Send(FrameBinary, b)
}

func (c *Channel) SendControl(kind messages.Kind, payload interface{}, status int) error {
	b, err := messages.EncodeEnvelope(kind.Event(), payload, status)
	if err != nil {
		return err
	}
	return c.Send(FrameText, b)
}

// Reject sends a final control message and disposes the channel once it has
// been written. Frames queued before it are still delivered.
func (c *Channel) Reject(kind messages.Kind, payload interface{}, status int) error {
	b, err := messages.EncodeEnvelope(kind.Event(), payload, status)
	if err != nil {
		c.Dispose()
		return err
	}
	if state := c.State(); state != StateOpen {
		return &NotConnectedError{ChannelID: c.id, State: state}
	}
	select {
	case <-c.done:
		return &NotConnectedError{ChannelID: c.id, State: StateDisposed}
	case c.outbound <- outboundFrame{frame: FrameText, data: b, final: true}:
		return nil
	default:
		c.dropped.Add(1)
		c.Dispose()
		return ErrSendBufferFull
	}
}

// Ping asks the peer to prove liveness.
func (c *Channel) Ping() error {
	if state := c.State(); state != StateOpen {
		return &NotConnectedError{ChannelID: c.id, State: state}
	}
	return c.conn.WritePing()
}

// Dispose closes the transport, releases handlers and runs the dispose
// callbacks. It is safe to call any number of times.
func (c *Channel) Dispose() {
	c.disposeOnce.Do(func() {
		c.lock.Lock()
		c.state.Store(int32(StateDisposed))
		callbacks := c.disposeHandlers
		c.disposeHandlers = nil
		c.handlers = make(map[messages.Kind][]Handler)
		c.lock.Unlock()

		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.logger.Trace("Failed to close connection: %v", err)
		}

		for _, f := range callbacks {
			f()
		}
	})
}

// Done is closed once the channel is disposed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}
