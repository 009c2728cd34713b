package game

import (
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/arena/pkg/auth"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/network"
	"github.com/stretchr/testify/require"
)

type sentControl struct {
	kind    messages.Kind
	payload interface{}
	status  int
}

type fakeSender struct {
	mu        sync.Mutex
	snapshots []*messages.SnapshotMessage
	controls  []sentControl
	err       error
}

func (s *fakeSender) SendSnapshot(m *messages.SnapshotMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, m)
	return nil
}

func (s *fakeSender) SendControl(kind messages.Kind, payload interface{}, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.controls = append(s.controls, sentControl{kind: kind, payload: payload, status: status})
	return nil
}

func (s *fakeSender) lastSnapshot() *messages.SnapshotMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}

func (s *fakeSender) snapshotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// last returns the most recent control message of the given kind.
func (s *fakeSender) last(kind messages.Kind) (sentControl, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.controls) - 1; i >= 0; i-- {
		if s.controls[i].kind == kind {
			return s.controls[i], true
		}
	}
	return sentControl{}, false
}

type fakeChannel struct {
	fakeSender

	hmu        sync.Mutex
	handlers   map[messages.Kind][]network.Handler
	onDispose  []func()
	disposed   bool
	disposeCnt int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[messages.Kind][]network.Handler)}
}

func (c *fakeChannel) On(kind messages.Kind, h network.Handler) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], h)
}

func (c *fakeChannel) OnDispose(f func()) {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	c.onDispose = append(c.onDispose, f)
}

func (c *fakeChannel) Dispose() {
	c.hmu.Lock()
	if c.disposed {
		c.hmu.Unlock()
		return
	}
	c.disposed = true
	c.disposeCnt++
	fns := c.onDispose
	c.hmu.Unlock()
	for _, f := range fns {
		f()
	}
}

// deliver runs the handlers registered for the message's kind.
func (c *fakeChannel) deliver(t *testing.T, msg *network.Inbound) {
	t.Helper()
	c.hmu.Lock()
	handlers := append([]network.Handler(nil), c.handlers[msg.Kind]...)
	c.hmu.Unlock()
	require.NotEmpty(t, handlers, "no handler for %s", msg.Kind)
	for _, h := range handlers {
		h(msg)
	}
}

func (c *fakeChannel) deliverControl(t *testing.T, kind messages.Kind, payload interface{}) {
	t.Helper()
	b, err := messages.EncodeEnvelope(kind.Event(), payload, messages.StatusOK)
	require.NoError(t, err)
	env, err := messages.DecodeEnvelope(b)
	require.NoError(t, err)
	c.deliver(t, &network.Inbound{Kind: kind, Envelope: env, ReceivedAt: time.Now()})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func user(id string) auth.Identity {
	return auth.Identity{UserID: id}
}

func newTestRoom(t *testing.T, opts NewMatchRoomOptions) *MatchRoom {
	t.Helper()
	if opts.World == nil {
		world, err := NewArenaWorld()
		require.NoError(t, err)
		opts.World = world
	}
	if opts.CreatorID == "" {
		opts.CreatorID = "user:alice"
	}
	room := NewMatchRoom(opts)
	t.Cleanup(func() {
		room.lock.Lock()
		room.stopLoopLocked()
		room.lock.Unlock()
	})
	return room
}

// activate puts the room into play without starting the tick loop.
func activate(room *MatchRoom, now time.Time) {
	room.lock.Lock()
	defer room.lock.Unlock()
	room.phase = PhaseActive
	room.startedAt = now
	room.lastTick = now
	for _, p := range room.players {
		room.participants = append(room.participants, p.Identity.Key())
	}
}

func tickAt(room *MatchRoom, now time.Time) {
	room.lock.Lock()
	defer room.unlock()
	room.tickLocked(now)
}

func addPlayer(t *testing.T, room *MatchRoom, id string) (*Player, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	p, err := room.AddPlayer(user(id), sender)
	require.NoError(t, err)
	return p, sender
}
