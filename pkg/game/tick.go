package game

import (
	"sort"
	"time"

	"github.com/cbodonnell/arena/pkg/game/constants"
	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/cbodonnell/arena/pkg/messages"
)

// startLoopLocked schedules the first tick. Each tick schedules the next
// one, shortened by the time the tick itself took.
func (r *MatchRoom) startLoopLocked(now time.Time) {
	r.stopLoopLocked()
	r.lastTick = now
	gen := r.generation
	r.timer = time.AfterFunc(constants.FixedTimestep, func() {
		r.runTick(gen)
	})
}

// stopLoopLocked cancels the pending tick. A callback that already fired
// sees a newer generation and returns without ticking.
func (r *MatchRoom) stopLoopLocked() {
	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *MatchRoom) runTick(gen uint64) {
	r.lock.Lock()
	defer r.unlock()

	if gen != r.generation || r.phase != PhaseActive {
		return
	}

	start := time.Now()
	r.tickLocked(r.now())
	spent := time.Since(start)

	delay := constants.FixedTimestep - spent
	if delay < 0 {
		delay = 0
	}
	r.timer = time.AfterFunc(delay, func() {
		r.runTick(gen)
	})
}

// tickLocked runs one iteration of the game loop.
func (r *MatchRoom) tickLocked(now time.Time) {
	start := time.Now()

	elapsed := now.Sub(r.lastTick)
	if elapsed < 0 {
		elapsed = 0
	}
	r.lastTick = now

	r.processInputsLocked()
	steps := r.stepper.Step(r.world, elapsed)
	states := r.playerStatesLocked(false)
	r.sendSnapshotsLocked(states)
	r.recordLocked()
	r.tick++

	r.metrics.addTick(steps, time.Since(start))
}

// processInputsLocked drains every connected player's queue. Each
// directional input moves its player by one FixedTimestep at PlayerSpeed,
// the same displacement a client replays for a pending input, so every
// acknowledged input has taken effect. Inputs without a direction or with
// an already processed sequence are skipped.
func (r *MatchRoom) processInputsLocked() {
	for _, p := range r.players {
		if !p.connected {
			continue
		}
		r.world.SetLinearVelocity(p.Body, kinematic.Vector{})

		for _, input := range p.inputs.ReadAllMessages() {
			if !input.HasDirection() {
				r.metrics.inputsSkipped.Add(1)
				continue
			}
			if p.processedAny && input.Sequence <= p.lastProcessedSequence {
				r.metrics.inputsSkipped.Add(1)
				r.logger.Trace("Player %d sent stale input %d", p.ID, input.Sequence)
				continue
			}
			r.world.Translate(p.Body, kinematic.Displacement(input.Velocity(constants.PlayerSpeed), constants.FixedTimestep))
			p.lastProcessedSequence = input.Sequence
			p.processedAny = true
			r.metrics.inputsApplied.Add(1)
		}
	}
}

// playerStatesLocked returns the positions of players in id order.
func (r *MatchRoom) playerStatesLocked(includeDisconnected bool) []messages.PlayerState {
	states := make([]messages.PlayerState, 0, len(r.players))
	for _, p := range r.players {
		if !p.connected && !includeDisconnected {
			continue
		}
		pos, ok := r.world.Position(p.Body)
		if !ok {
			continue
		}
		states = append(states, messages.PlayerState{
			ID: p.ID,
			X:  float32(pos.X),
			Y:  float32(pos.Y),
		})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}

func (r *MatchRoom) sendSnapshotsLocked(states []messages.PlayerState) {
	for _, p := range r.players {
		if !p.connected || p.sender == nil {
			continue
		}
		snapshot := ViewSnapshot(p.ID, p.lastProcessedSequence, r.tick, states, constants.ViewWindowWidth, constants.ViewWindowHeight)
		if err := p.sender.SendSnapshot(snapshot); err != nil {
			r.metrics.sendsDropped.Add(1)
			r.logger.Trace("Failed to send snapshot to player %d: %v", p.ID, err)
			continue
		}
		r.metrics.snapshotsSent.Add(1)
	}
}

func (r *MatchRoom) recordLocked() {
	if r.recorder == nil || r.recordEvery == 0 || (r.tick-r.startTick)%r.recordEvery != 0 {
		return
	}
	frame := &messages.SnapshotMessage{
		Tick:    r.tick,
		Players: r.playerStatesLocked(true),
	}
	if err := r.recorder.Record(r.tick, frame); err != nil {
		r.logger.Warn("Failed to record tick %d: %v", r.tick, err)
	}
}

// ViewSnapshot builds the snapshot sent to recipient. The recipient's own
// state comes first, followed by every other player inside the view window
// centered on the recipient, in the order of states. A recipient missing
// from states gets no players.
func ViewSnapshot(recipient uint8, ack, tick uint32, states []messages.PlayerState, width, height float64) *messages.SnapshotMessage {
	snapshot := &messages.SnapshotMessage{
		AcknowledgedSequence: ack,
		Tick:                 tick,
	}

	var own *messages.PlayerState
	for i := range states {
		if states[i].ID == recipient {
			own = &states[i]
			break
		}
	}
	if own == nil {
		return snapshot
	}

	center := kinematic.NewVector(float64(own.X), float64(own.Y))
	snapshot.Players = append(snapshot.Players, *own)
	for _, s := range states {
		if s.ID == recipient {
			continue
		}
		if center.Within(kinematic.NewVector(float64(s.X), float64(s.Y)), width, height) {
			snapshot.Players = append(snapshot.Players, s)
		}
	}
	return snapshot
}
