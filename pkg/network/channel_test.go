package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrame struct {
	frame FrameType
	data  []byte
}

type fakeConn struct {
	inbound   chan fakeFrame
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	written   []fakeFrame
	pings     int
	pong      func()
	closeCode int
	closes    int
	readLimit int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan fakeFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (FrameType, []byte, error) {
	select {
	case f := <-c.inbound:
		return f.frame, f.data, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteMessage(frame FrameType, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, fakeFrame{frame: frame, data: data})
	return nil
}

func (c *fakeConn) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) SetPongHandler(h func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = h
}

func (c *fakeConn) SetReadLimit(limit int) {
	c.readLimit = limit
}

func (c *fakeConn) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	c.closeCode = code
	c.mu.Unlock()
	return c.Close()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return "fake"
}

func (c *fakeConn) writtenFrames() []fakeFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeFrame(nil), c.written...)
}

func (c *fakeConn) sendPong() {
	c.mu.Lock()
	pong := c.pong
	c.mu.Unlock()
	pong()
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func TestChannel_Send(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{})
	assert.Equal(t, messages.MaxMessageSize, conn.readLimit)

	err := ch.Send(FrameBinary, []byte{1})
	assert.True(t, IsNotConnected(err), "send before open: %v", err)

	require.NoError(t, ch.Open())
	require.NoError(t, ch.SendInput(&messages.InputMessage{Sequence: 7, Horizontal: messages.DirectionPositive}))
	require.Eventually(t, func() bool { return len(conn.writtenFrames()) == 1 }, time.Second, time.Millisecond)

	frame := conn.writtenFrames()[0]
	assert.Equal(t, FrameBinary, frame.frame)
	decoded, err := messages.DecodeInput(frame.data)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), decoded.Sequence)

	ch.Dispose()
	err = ch.SendControl(messages.KindPhase, messages.PhasePayload{Phase: "lobby"}, messages.StatusOK)
	assert.True(t, IsNotConnected(err), "send after dispose: %v", err)
	assert.True(t, IsNotConnected(ch.Ping()))

	// a disposed channel cannot be reopened
	assert.Error(t, ch.Open())
}

func TestChannel_Send_bufferFull(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{OutboundBuffer: 1})
	// open without a write pump so the buffer fills
	ch.state.Store(int32(StateOpen))

	require.NoError(t, ch.Send(FrameBinary, []byte{1}))
	assert.ErrorIs(t, ch.Send(FrameBinary, []byte{2}), ErrSendBufferFull)
	assert.Equal(t, uint64(1), ch.Dropped())
}

func TestChannel_Dispose_idempotent(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{})
	require.NoError(t, ch.Open())

	calls := 0
	ch.OnDispose(func() { calls++ })

	ch.Dispose()
	ch.Dispose()
	ch.Dispose()

	assert.Equal(t, 1, calls)
	assert.Equal(t, StateDisposed, ch.State())
	assert.Equal(t, 1, conn.closes)

	late := false
	ch.OnDispose(func() { late = true })
	assert.True(t, late)

	// handlers registered after dispose are ignored
	ch.On(messages.KindInput, func(*Inbound) { t.Fatal("unexpected dispatch") })
	ch.dispatch(FrameBinary, messages.EncodeInput(&messages.InputMessage{Sequence: 1}))
}

func TestChannel_dispatch(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{})

	var mu sync.Mutex
	var got []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	}

	ch.On(messages.KindInput, func(msg *Inbound) {
		record("input-1")
		assert.Equal(t, uint32(3), msg.Input.Sequence)
	})
	ch.On(messages.KindInput, func(msg *Inbound) {
		panic("boom")
	})
	ch.On(messages.KindInput, func(msg *Inbound) {
		record("input-3")
	})
	ch.On(messages.KindStartGame, func(msg *Inbound) {
		record("start")
		assert.Equal(t, messages.StatusOK, msg.Envelope.Status)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- ch.Serve(ctx) }()

	startGame, err := messages.EncodeEnvelope(messages.KindStartGame.Event(), nil, messages.StatusOK)
	require.NoError(t, err)

	conn.inbound <- fakeFrame{frame: FrameBinary, data: []byte{1, 2}}
	conn.inbound <- fakeFrame{frame: FrameText, data: []byte(`["nope",null,200]`)}
	conn.inbound <- fakeFrame{frame: FrameText, data: []byte(`not json`)}
	conn.inbound <- fakeFrame{frame: FrameBinary, data: messages.EncodeInput(&messages.InputMessage{Sequence: 3, Vertical: messages.DirectionNegative})}
	conn.inbound <- fakeFrame{frame: FrameText, data: startGame}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"input-1", "input-3", "start"}, got)
	mu.Unlock()
	assert.Equal(t, StateOpen, ch.State())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, StateDisposed, ch.State())
}

func TestChannel_oversizedMessage(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{MaxMessageSize: 8})

	disposed := make(chan struct{})
	ch.OnDispose(func() { close(disposed) })
	ch.On(messages.KindInput, func(*Inbound) { t.Fatal("oversized message must not be parsed") })

	conn.inbound <- fakeFrame{frame: FrameBinary, data: messages.EncodeInput(&messages.InputMessage{Sequence: 1})}

	err := ch.Serve(context.Background())
	assert.True(t, IsPolicyViolation(err), "%v", err)
	<-disposed

	conn.mu.Lock()
	assert.Equal(t, ClosePolicyViolation, conn.closeCode)
	conn.mu.Unlock()
	assert.Equal(t, StateDisposed, ch.State())
}

func TestChannel_rateLimit(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{RateLimit: 0.001, RateBurst: 2})

	var mu sync.Mutex
	count := 0
	ch.On(messages.KindInput, func(*Inbound) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	go ch.Serve(context.Background())
	defer ch.Dispose()

	for i := 1; i <= 5; i++ {
		conn.inbound <- fakeFrame{frame: FrameBinary, data: messages.EncodeInput(&messages.InputMessage{Sequence: uint32(i), Horizontal: messages.DirectionPositive})}
	}

	require.Eventually(t, func() bool { return len(conn.inbound) == 0 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestChannel_Reject(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, ChannelOptions{})
	require.NoError(t, ch.Open())

	require.NoError(t, ch.SendControl(messages.KindPhase, messages.PhasePayload{Phase: "lobby"}, messages.StatusOK))
	require.NoError(t, ch.Reject(messages.KindError, messages.ErrorPayload{Message: "room is full"}, messages.StatusUnavailable))

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("channel not disposed after reject")
	}

	frames := conn.writtenFrames()
	require.Len(t, frames, 2)
	envelope, err := messages.DecodeEnvelope(frames[1].data)
	require.NoError(t, err)
	assert.Equal(t, messages.KindError, envelope.Kind())
	assert.Equal(t, messages.StatusUnavailable, envelope.Status)

	conn.mu.Lock()
	assert.Equal(t, CloseNormal, conn.closeCode)
	conn.mu.Unlock()

	assert.True(t, IsNotConnected(ch.Reject(messages.KindError, nil, messages.StatusBadRequest)))
}
