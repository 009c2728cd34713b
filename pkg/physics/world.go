package physics

import (
	"time"

	"github.com/cbodonnell/arena/pkg/kinematic"
)

// BodyID identifies a body within a single World.
type BodyID uint32

type BodyKind int

const (
	BodyStatic BodyKind = iota
	BodyDynamic
)

func (k BodyKind) String() string {
	switch k {
	case BodyStatic:
		return "static"
	case BodyDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// BodyDef describes a body to create. Position is the top-left corner.
type BodyDef struct {
	Kind     BodyKind
	Position kinematic.Vector
	Size     kinematic.Vector
	Group    string
}

// World is the rigid-body capability consumed by rooms and clients.
// Implementations are not safe for concurrent use; each World has a single owner.
type World interface {
	CreateBody(def BodyDef) (BodyID, error)
	DestroyBody(id BodyID)
	SetLinearVelocity(id BodyID, velocity kinematic.Vector)
	LinearVelocity(id BodyID) (kinematic.Vector, bool)
	SetPosition(id BodyID, position kinematic.Vector)
	Position(id BodyID) (kinematic.Vector, bool)
	// Translate moves a body by delta, stopping at static bodies.
	Translate(id BodyID, delta kinematic.Vector)
	// Step advances every dynamic body by dt.
	Step(dt time.Duration)
	// DynamicBodies returns the ids of all dynamic bodies in ascending order.
	DynamicBodies() []BodyID
}
