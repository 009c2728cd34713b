package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/physics"
	"github.com/cbodonnell/arena/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterIDs(room *MatchRoom) []uint8 {
	var ids []uint8
	for _, e := range room.Roster() {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestMatchRoom_AddPlayer_smallestUnusedID(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})

	a, _ := addPlayer(t, room, "a")
	assert.Equal(t, uint8(1), a.ID)
	b, _ := addPlayer(t, room, "b")
	c, _ := addPlayer(t, room, "c")
	assert.Equal(t, uint8(2), b.ID)
	assert.Equal(t, uint8(3), c.ID)

	room.RemovePlayer(b)
	assert.Equal(t, []uint8{1, 3}, rosterIDs(room))

	d, _ := addPlayer(t, room, "d")
	assert.Equal(t, uint8(2), d.ID)
	assert.Equal(t, []uint8{1, 3, 2}, rosterIDs(room))
}

func TestMatchRoom_AddPlayer_createsBodies(t *testing.T) {
	world, err := NewArenaWorld()
	require.NoError(t, err)
	room := newTestRoom(t, NewMatchRoomOptions{World: world})
	before := len(world.DynamicBodies())

	a, _ := addPlayer(t, room, "a")
	b, _ := addPlayer(t, room, "b")
	assert.Len(t, world.DynamicBodies(), before+2)

	pos, ok := world.Position(a.Body)
	require.True(t, ok)
	assert.Equal(t, SpawnPoint(a.ID), pos)

	room.RemovePlayer(b)
	assert.Len(t, world.DynamicBodies(), before+1)
	_, ok = world.Position(b.Body)
	assert.False(t, ok)
}

func TestMatchRoom_AddPlayer_capacity(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})

	for i := 0; i < constants.MaxPlayersPerRoom; i++ {
		addPlayer(t, room, fmt.Sprintf("player-%d", i))
	}
	assert.Equal(t, constants.MaxPlayersPerRoom, room.Len())

	_, err := room.AddPlayer(user("one-too-many"), &fakeSender{})
	require.Error(t, err)
	assert.True(t, IsCapacityError(err), "%v", err)
	assert.Equal(t, messages.StatusUnavailable, StatusFor(err))
	assert.Equal(t, constants.MaxPlayersPerRoom, room.Len())
}

func TestMatchRoom_AddPlayer_duplicateIdentity(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	addPlayer(t, room, "a")

	_, err := room.AddPlayer(user("a"), &fakeSender{})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
	assert.Equal(t, 1, room.Len())
}

func TestMatchRoom_AddPlayer_announces(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	a, senderA := addPlayer(t, room, "a")
	b, senderB := addPlayer(t, room, "b")

	joined, ok := senderB.last(messages.KindJoined)
	require.True(t, ok)
	assert.Equal(t, messages.JoinedPayload{
		RoomID:   room.ID(),
		PlayerID: b.ID,
		HostID:   a.ID,
		AudioID:  b.AudioID,
	}, joined.payload)

	roster, ok := senderA.last(messages.KindRoster)
	require.True(t, ok)
	payload := roster.payload.(messages.RosterPayload)
	assert.Equal(t, a.ID, payload.HostID)
	assert.Len(t, payload.Players, 2)

	voice, ok := senderA.last(messages.KindVoice)
	require.True(t, ok)
	assert.Equal(t, messages.VoicePayload{
		Channel:  string(VoiceLobby),
		AudioIDs: []string{a.AudioID, b.AudioID},
	}, voice.payload)
}

func TestMatchRoom_hostReassignment(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	a, _ := addPlayer(t, room, "a")
	b, _ := addPlayer(t, room, "b")
	c, _ := addPlayer(t, room, "c")

	assert.Equal(t, a.ID, room.Host())
	assert.True(t, room.IsHost(a))

	room.RemovePlayer(a)
	assert.Equal(t, b.ID, room.Host())
	assert.False(t, room.IsHost(a))

	// removing a non-host keeps the host
	room.RemovePlayer(c)
	assert.Equal(t, b.ID, room.Host())

	// unknown players are ignored
	room.RemovePlayer(a)
	assert.Equal(t, 1, room.Len())
}

func TestMatchRoom_lifecycle(t *testing.T) {
	tests := []struct {
		name  string
		setup func(room *MatchRoom) error
		op    func(room *MatchRoom) error
		want  Phase
		err   error
	}{
		{
			name: "start from lobby",
			op:   (*MatchRoom).StartGame,
			want: PhaseActive,
		},
		{
			name:  "start twice",
			setup: (*MatchRoom).StartGame,
			op:    (*MatchRoom).StartGame,
			want:  PhaseActive,
			err:   ErrInvalidPhase,
		},
		{
			name: "end from lobby",
			op:   (*MatchRoom).EndGame,
			want: PhaseLobby,
			err:  ErrInvalidPhase,
		},
		{
			name:  "end from active",
			setup: (*MatchRoom).StartGame,
			op:    (*MatchRoom).EndGame,
			want:  PhaseEnded,
		},
		{
			name:  "start voting",
			setup: (*MatchRoom).StartGame,
			op:    (*MatchRoom).StartVoting,
			want:  PhaseVoting,
		},
		{
			name: "start voting from lobby",
			op:   (*MatchRoom).StartVoting,
			want: PhaseLobby,
			err:  ErrInvalidPhase,
		},
		{
			name: "end voting",
			setup: func(room *MatchRoom) error {
				if err := room.StartGame(); err != nil {
					return err
				}
				return room.StartVoting()
			},
			op:   (*MatchRoom).EndVoting,
			want: PhaseActive,
		},
		{
			name:  "end voting without voting",
			setup: (*MatchRoom).StartGame,
			op:    (*MatchRoom).EndVoting,
			want:  PhaseActive,
			err:   ErrInvalidPhase,
		},
		{
			name: "end game while voting",
			setup: func(room *MatchRoom) error {
				if err := room.StartGame(); err != nil {
					return err
				}
				return room.StartVoting()
			},
			op:   (*MatchRoom).EndGame,
			want: PhaseEnded,
		},
		{
			name: "restart after end",
			setup: func(room *MatchRoom) error {
				if err := room.StartGame(); err != nil {
					return err
				}
				return room.EndGame()
			},
			op:   (*MatchRoom).StartGame,
			want: PhaseEnded,
			err:  ErrInvalidPhase,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := newTestRoom(t, NewMatchRoomOptions{})
			addPlayer(t, room, "a")
			if tt.setup != nil {
				require.NoError(t, tt.setup(room))
			}

			err := tt.op(room)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, room.Phase())
		})
	}
}

func TestMatchRoom_StartGame_broadcastsPhase(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	_, sender := addPlayer(t, room, "a")

	require.NoError(t, room.StartGame())
	phase, ok := sender.last(messages.KindPhase)
	require.True(t, ok)
	assert.Equal(t, "active", phase.payload.(messages.PhasePayload).Phase)

	require.NoError(t, room.StartVoting())
	phase, _ = sender.last(messages.KindPhase)
	payload := phase.payload.(messages.PhasePayload)
	assert.Equal(t, "active", payload.Phase)
	assert.True(t, payload.Voting)
}

func TestMatchRoom_lateJoinerIsSpectator(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	a, _ := addPlayer(t, room, "a")
	require.NoError(t, room.StartGame())

	b, _ := addPlayer(t, room, "b")
	roster := room.Roster()
	require.Len(t, roster, 2)
	assert.True(t, roster[0].Alive)
	assert.False(t, roster[1].Alive)
	assert.Equal(t, []string{b.AudioID}, room.AudioIDsInChannel(VoiceLobby))
	assert.NotEqual(t, a.AudioID, b.AudioID)
}

func TestMatchRoom_HandleDisconnect(t *testing.T) {
	t.Run("lobby removes", func(t *testing.T) {
		room := newTestRoom(t, NewMatchRoomOptions{})
		a, _ := addPlayer(t, room, "a")
		b, _ := addPlayer(t, room, "b")

		room.HandleDisconnect(a)
		assert.Equal(t, []uint8{b.ID}, rosterIDs(room))
		assert.Equal(t, b.ID, room.Host())
	})

	t.Run("active deactivates until the end", func(t *testing.T) {
		saves := make(chan workers.SaveMatchRequest, 1)
		var removed []uint8
		room := newTestRoom(t, NewMatchRoomOptions{
			SaveMatchChan:   saves,
			OnPlayerRemoved: func(_ *MatchRoom, p *Player) { removed = append(removed, p.ID) },
		})
		a, _ := addPlayer(t, room, "a")
		b, senderB := addPlayer(t, room, "b")
		require.NoError(t, room.StartGame())

		room.lock.Lock()
		room.world.SetLinearVelocity(a.Body, kinematic.NewVector(constants.PlayerSpeed, 0))
		room.lock.Unlock()

		room.HandleDisconnect(a)
		room.lock.Lock()
		velocity, _ := room.world.LinearVelocity(a.Body)
		room.lock.Unlock()
		assert.Equal(t, kinematic.Vector{}, velocity)
		assert.Equal(t, PhaseActive, room.Phase())
		roster := room.Roster()
		require.Len(t, roster, 2)
		assert.False(t, roster[0].Connected)
		assert.True(t, roster[1].Connected)
		assert.Empty(t, removed)

		// a disconnected player no longer hears anyone
		require.NoError(t, room.KillPlayer(b.ID))
		assert.Equal(t, []string{b.AudioID}, room.AudioIDsInChannel(VoiceLobby))

		// a disconnected player's inputs are discarded
		require.NoError(t, room.EnqueueInput(a, &messages.InputMessage{Sequence: 1, Horizontal: messages.DirectionPositive}))
		assert.Equal(t, 0, a.inputs.Size())

		require.NoError(t, room.EndGame())
		assert.Equal(t, []uint8{b.ID}, rosterIDs(room))
		assert.Equal(t, []uint8{a.ID}, removed)
		assert.Equal(t, b.ID, room.Host())

		phase, ok := senderB.last(messages.KindPhase)
		require.True(t, ok)
		assert.Equal(t, "ended", phase.payload.(messages.PhasePayload).Phase)

		select {
		case req := <-saves:
			assert.Equal(t, room.ID(), req.Match.RoomID)
			assert.Equal(t, []string{"user:a", "user:b"}, req.Match.PlayerIDs)
		default:
			t.Fatal("match was not saved")
		}
	})

	t.Run("last disconnect ends and deletes", func(t *testing.T) {
		deleted := 0
		room := newTestRoom(t, NewMatchRoomOptions{
			OnEmpty: func(*MatchRoom) { deleted++ },
		})
		a, _ := addPlayer(t, room, "a")
		b, _ := addPlayer(t, room, "b")
		require.NoError(t, room.StartGame())

		room.HandleDisconnect(a)
		room.HandleDisconnect(a)
		assert.Equal(t, PhaseActive, room.Phase())

		room.HandleDisconnect(b)
		assert.Equal(t, PhaseEnded, room.Phase())
		assert.Equal(t, 0, room.Len())
		assert.Equal(t, 1, deleted)
	})
}

func TestMatchRoom_reconnect(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	a, _ := addPlayer(t, room, "a")
	addPlayer(t, room, "b")
	require.NoError(t, room.StartGame())

	room.HandleDisconnect(a)
	sender := &fakeSender{}
	again, err := room.AddPlayer(user("a"), sender)
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.True(t, room.Roster()[0].Connected)

	_, ok := sender.last(messages.KindJoined)
	assert.True(t, ok)
}

func TestMatchRoom_KillPlayer(t *testing.T) {
	room := newTestRoom(t, NewMatchRoomOptions{})
	a, senderA := addPlayer(t, room, "a")

	assert.ErrorIs(t, room.KillPlayer(a.ID), ErrInvalidPhase)

	require.NoError(t, room.StartGame())
	err := room.KillPlayer(42)
	assert.True(t, IsNotFound(err), "%v", err)
	assert.Equal(t, messages.StatusNotFound, StatusFor(err))

	require.NoError(t, room.KillPlayer(a.ID))
	assert.False(t, room.Roster()[0].Alive)
	eliminated, ok := senderA.last(messages.KindEliminate)
	require.True(t, ok)
	assert.Equal(t, messages.EliminatePayload{PlayerID: a.ID}, eliminated.payload)

	// killing the dead is a no-op
	assert.NoError(t, room.KillPlayer(a.ID))
}

func TestMatchRoom_EndGame_saveQueueFull(t *testing.T) {
	saves := make(chan workers.SaveMatchRequest)
	room := newTestRoom(t, NewMatchRoomOptions{SaveMatchChan: saves})
	addPlayer(t, room, "a")
	require.NoError(t, room.StartGame())

	done := make(chan error, 1)
	go func() { done <- room.EndGame() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("EndGame blocked on a full save queue")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, messages.StatusOK},
		{&CapacityError{RoomID: "r", Capacity: 15}, messages.StatusUnavailable},
		{fmt.Errorf("wrapped: %w", &NotFoundError{Kind: "room", ID: "r"}), messages.StatusNotFound},
		{ErrNotHost, messages.StatusForbidden},
		{ErrInvalidPhase, messages.StatusConflict},
		{ErrAlreadyInRoom, messages.StatusConflict},
		{errors.New("bad payload"), messages.StatusBadRequest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func TestNewArenaWorld(t *testing.T) {
	world, err := NewArenaWorld()
	require.NoError(t, err)
	assert.Empty(t, world.DynamicBodies())

	size := kinematic.NewVector(constants.PlayerWidth, constants.PlayerHeight)
	nudge := kinematic.NewVector(8, 8)

	// every spawn point is free to move from
	for id := uint8(1); id <= constants.MaxPlayersPerRoom; id++ {
		spawn := SpawnPoint(id)
		body, err := world.CreateBody(physics.BodyDef{
			Kind:     physics.BodyDynamic,
			Position: spawn,
			Size:     size,
		})
		require.NoError(t, err)

		world.Translate(body, nudge)
		pos, _ := world.Position(body)
		assert.Equal(t, spawn.Add(nudge), pos, "spawn %d is blocked", id)
	}
}

func TestSpawnPoint(t *testing.T) {
	seen := make(map[kinematic.Vector]bool)
	for id := uint8(1); id <= constants.MaxPlayersPerRoom; id++ {
		spawn := SpawnPoint(id)
		assert.False(t, seen[spawn], "spawn %d is shared", id)
		seen[spawn] = true
	}
	assert.Equal(t, SpawnPoint(1), SpawnPoint(constants.MaxPlayersPerRoom+1))
}

func TestMatchRoom_reconnectedPlayerInputsApplied(t *testing.T) {
	clock := newFakeClock()
	room := newTestRoom(t, NewMatchRoomOptions{Now: clock.Now})
	a, _ := addPlayer(t, room, "a")
	addPlayer(t, room, "b")
	activate(room, clock.Now())

	for seq := uint32(1); seq <= 5; seq++ {
		require.NoError(t, room.EnqueueInput(a, &messages.InputMessage{Sequence: seq, Vertical: messages.DirectionPositive}))
		tickAt(room, clock.Advance(constants.FixedTimestep))
	}

	room.HandleDisconnect(a)
	sender := &fakeSender{}
	again, err := room.AddPlayer(user("a"), sender)
	require.NoError(t, err)
	require.Same(t, a, again)

	room.lock.Lock()
	before, _ := room.world.Position(a.Body)
	room.lock.Unlock()
	skipped := room.Metrics().InputsSkipped

	// the new connection numbers its inputs from 1 again
	require.NoError(t, room.EnqueueInput(a, &messages.InputMessage{Sequence: 1, Vertical: messages.DirectionPositive}))
	tickAt(room, clock.Advance(constants.FixedTimestep))

	snapshot := sender.lastSnapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, uint32(1), snapshot.AcknowledgedSequence)
	require.Equal(t, a.ID, snapshot.Players[0].ID)
	step := constants.PlayerSpeed * constants.FixedTimestep.Seconds()
	assert.InDelta(t, before.Y+step, snapshot.Players[0].Y, 1e-4)
	assert.Equal(t, skipped, room.Metrics().InputsSkipped)
}
