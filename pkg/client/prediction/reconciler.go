package prediction

import (
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/cbodonnell/arena/pkg/messages"
	"github.com/cbodonnell/arena/pkg/physics"
)

var ErrLocalPlayerMissing = errors.New("snapshot has no entry for the local player")

type ReconcilerOptions struct {
	World   physics.World
	Body    physics.BodyID
	LocalID uint8
	// Speed defaults to constants.PlayerSpeed
	Speed float64
	// FixedTimestep defaults to constants.FixedTimestep
	FixedTimestep time.Duration
	// InitialSequence defaults to 1 so that an ack of 0 confirms nothing
	InitialSequence uint32
	// Send transmits an input to the server
	Send func(*messages.InputMessage) error
	// Stepper, if set, has its render state snapped after each correction
	Stepper *physics.Stepper
}

// Reconciler predicts the local player's movement and corrects it from
// server snapshots. It is not safe for concurrent use.
type Reconciler struct {
	world         physics.World
	body          physics.BodyID
	localID       uint8
	speed         float64
	fixedTimestep time.Duration
	send          func(*messages.InputMessage) error
	stepper       *physics.Stepper

	pending      []messages.InputMessage
	nextSequence uint32
	velocity     kinematic.Vector
	lastAck      uint32
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	if opts.Speed <= 0 {
		opts.Speed = constants.PlayerSpeed
	}
	if opts.FixedTimestep <= 0 {
		opts.FixedTimestep = constants.FixedTimestep
	}
	if opts.InitialSequence == 0 {
		opts.InitialSequence = 1
	}
	return &Reconciler{
		world:         opts.World,
		body:          opts.Body,
		localID:       opts.LocalID,
		speed:         opts.Speed,
		fixedTimestep: opts.FixedTimestep,
		send:          opts.Send,
		stepper:       opts.Stepper,
		nextSequence:  opts.InitialSequence,
	}
}

// EnqueueLocalInput applies a direction to the local body at once and sends
// it. Releasing every key only stops the body; nothing is sent for it.
func (r *Reconciler) EnqueueLocalInput(horizontal, vertical messages.Direction) (*messages.InputMessage, error) {
	if !horizontal.Valid() || !vertical.Valid() {
		return nil, fmt.Errorf("invalid direction (%d, %d)", horizontal, vertical)
	}

	input := messages.InputMessage{Horizontal: horizontal, Vertical: vertical}
	if !input.HasDirection() {
		r.velocity = kinematic.Vector{}
		r.world.SetLinearVelocity(r.body, r.velocity)
		return nil, nil
	}

	input.Sequence = r.nextSequence
	r.nextSequence++
	r.pending = append(r.pending, input)

	r.velocity = input.Velocity(r.speed)
	r.world.SetLinearVelocity(r.body, r.velocity)

	if r.send != nil {
		sent := input
		if err := r.send(&sent); err != nil {
			return &input, fmt.Errorf("failed to send input %d: %v", input.Sequence, err)
		}
	}
	return &input, nil
}

// Reconcile moves the local body to its authoritative position, drops the
// inputs the server has applied and replays the rest. Reconciling the same
// snapshot twice gives the same result. An older snapshot drops nothing.
func (r *Reconciler) Reconcile(snapshot *messages.SnapshotMessage) error {
	state, ok := snapshot.Player(r.localID)
	if !ok {
		return ErrLocalPlayerMissing
	}

	r.world.SetPosition(r.body, kinematic.NewVector(float64(state.X), float64(state.Y)))

	ack := snapshot.AcknowledgedSequence
	confirmed := 0
	for confirmed < len(r.pending) && r.pending[confirmed].Sequence <= ack {
		confirmed++
	}
	if confirmed > 0 {
		r.pending = append(r.pending[:0], r.pending[confirmed:]...)
	}
	if ack > r.lastAck {
		r.lastAck = ack
	}

	for i := range r.pending {
		r.world.Translate(r.body, kinematic.Displacement(r.pending[i].Velocity(r.speed), r.fixedTimestep))
	}

	r.world.SetLinearVelocity(r.body, r.velocity)
	if r.stepper != nil {
		r.stepper.Snap(r.world, r.body)
	}
	return nil
}

// Pending returns a copy of the unacknowledged inputs in sequence order.
func (r *Reconciler) Pending() []messages.InputMessage {
	return append([]messages.InputMessage(nil), r.pending...)
}

func (r *Reconciler) NextSequence() uint32 {
	return r.nextSequence
}

// LastAcknowledged returns the highest sequence the server has confirmed.
func (r *Reconciler) LastAcknowledged() uint32 {
	return r.lastAck
}

// Position returns the predicted position of the local body.
func (r *Reconciler) Position() (kinematic.Vector, bool) {
	return r.world.Position(r.body)
}
