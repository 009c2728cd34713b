package game

import (
	"github.com/cbodonnell/arena/pkg/auth"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/physics"
	"github.com/cbodonnell/arena/pkg/queue"
	"github.com/google/uuid"
)

const (
	// PlayerInputQueueSize bounds the inputs buffered between two ticks
	PlayerInputQueueSize = 64
)

// Sender is the outbound half of a player's connection.
type Sender interface {
	SendSnapshot(m *messages.SnapshotMessage) error
	SendControl(kind messages.Kind, payload interface{}, status int) error
}

// Player is a member of a single MatchRoom. Everything but the input queue
// is guarded by the room's lock.
type Player struct {
	ID       uint8
	Identity auth.Identity
	AudioID  string
	Body     physics.BodyID

	inputs *queue.InMemoryQueue[*messages.InputMessage]
	sender Sender

	lastProcessedSequence uint32
	processedAny          bool
	alive                 bool
	connected             bool
}

func newPlayer(id uint8, identity auth.Identity, body physics.BodyID, sender Sender) *Player {
	return &Player{
		ID:        id,
		Identity:  identity,
		AudioID:   uuid.New().String(),
		Body:      body,
		inputs:    queue.NewInMemoryQueue[*messages.InputMessage](PlayerInputQueueSize),
		sender:    sender,
		alive:     true,
		connected: true,
	}
}

func (p *Player) rosterEntry() messages.RosterEntry {
	return messages.RosterEntry{
		ID:        p.ID,
		UserID:    p.Identity.Name(),
		AudioID:   p.AudioID,
		Alive:     p.alive,
		Connected: p.connected,
	}
}

// send delivers a control message if the player is still connected.
func (p *Player) send(kind messages.Kind, payload interface{}) error {
	if !p.connected || p.sender == nil {
		return nil
	}
	return p.sender.SendControl(kind, payload, messages.StatusOK)
}
