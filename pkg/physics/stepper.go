package physics

import (
	"time"

	"github.com/cbodonnell/arena/pkg/kinematic"
)

type StepperOptions struct {
	// FixedTimestep is the duration of a single sub-step
	FixedTimestep time.Duration
	// MaxSteps caps the sub-steps executed by one Step call
	MaxSteps int
	// Interpolate enables smoothed render positions (clients only)
	Interpolate bool
}

// Stepper advances a World in fixed sub-steps, carrying leftover time
// between calls in an accumulator.
type Stepper struct {
	fixedTimestep time.Duration
	maxSteps      int
	interpolate   bool
	accumulator   time.Duration
	render        map[BodyID]*renderState
}

type renderState struct {
	previous kinematic.Vector
	rendered kinematic.Vector
}

func NewStepper(opts StepperOptions) *Stepper {
	if opts.FixedTimestep <= 0 {
		opts.FixedTimestep = time.Second / 60
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 1
	}
	return &Stepper{
		fixedTimestep: opts.FixedTimestep,
		maxSteps:      opts.MaxSteps,
		interpolate:   opts.Interpolate,
		render:        make(map[BodyID]*renderState),
	}
}

// Step consumes elapsed wall-clock time and returns the number of sub-steps
// executed. Time beyond MaxSteps sub-steps is discarded.
func (s *Stepper) Step(world World, elapsed time.Duration) int {
	if elapsed > 0 {
		s.accumulator += elapsed
	}

	steps := int(s.accumulator / s.fixedTimestep)
	s.accumulator -= time.Duration(steps) * s.fixedTimestep
	if steps > s.maxSteps {
		steps = s.maxSteps
	}

	bodies := world.DynamicBodies()
	s.prune(bodies)

	for i := 0; i < steps; i++ {
		for _, id := range bodies {
			state := s.state(world, id)
			state.previous = state.rendered
		}

		world.Step(s.fixedTimestep)

		if !s.interpolate {
			for _, id := range bodies {
				if current, ok := world.Position(id); ok {
					s.render[id].rendered = current
				}
			}
		}
	}

	if s.interpolate {
		ratio := float64(s.accumulator) / float64(s.fixedTimestep)
		for _, id := range bodies {
			state := s.state(world, id)
			if current, ok := world.Position(id); ok {
				state.rendered = kinematic.Lerp(state.previous, current, ratio)
			}
		}
	}

	return steps
}

// Accumulator returns the simulated time still owed to the world.
func (s *Stepper) Accumulator() time.Duration {
	return s.accumulator
}

func (s *Stepper) FixedTimestep() time.Duration {
	return s.fixedTimestep
}

// RenderPosition returns the position a body should be drawn at.
func (s *Stepper) RenderPosition(id BodyID) (kinematic.Vector, bool) {
	state, ok := s.render[id]
	if !ok {
		return kinematic.Vector{}, false
	}
	return state.rendered, true
}

// Snap discards any smoothing for a body, placing it at its physics position.
func (s *Stepper) Snap(world World, id BodyID) {
	current, ok := world.Position(id)
	if !ok {
		delete(s.render, id)
		return
	}
	s.render[id] = &renderState{previous: current, rendered: current}
}

func (s *Stepper) Forget(id BodyID) {
	delete(s.render, id)
}

func (s *Stepper) state(world World, id BodyID) *renderState {
	state, ok := s.render[id]
	if !ok {
		current, _ := world.Position(id)
		state = &renderState{previous: current, rendered: current}
		s.render[id] = state
	}
	return state
}

func (s *Stepper) prune(bodies []BodyID) {
	if len(s.render) <= len(bodies) {
		return
	}
	live := make(map[BodyID]struct{}, len(bodies))
	for _, id := range bodies {
		live[id] = struct{}{}
	}
	for id := range s.render {
		if _, ok := live[id]; !ok {
			delete(s.render, id)
		}
	}
}
