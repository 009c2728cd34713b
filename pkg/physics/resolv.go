package physics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cbodonnell/arena/pkg/kinematic"
	"github.com/solarlune/resolv"
)

const (
	// TagStatic marks bodies that block dynamic bodies
	TagStatic = "static"
	// TagDynamic marks bodies moved by the simulation
	TagDynamic = "dynamic"
)

var _ World = &ResolvWorld{}

type WorldOptions struct {
	Width      float64
	Height     float64
	CellWidth  int
	CellHeight int
}

// ResolvWorld is a World backed by a resolv.Space. Dynamic bodies collide
// with static bodies only; they pass through each other.
type ResolvWorld struct {
	space    *resolv.Space
	bodies   map[BodyID]*resolvBody
	nextID   BodyID
	maxChunk float64
}

type resolvBody struct {
	object   *resolv.Object
	kind     BodyKind
	velocity kinematic.Vector
}

// NewResolvWorld creates an empty world of the given size.
func NewResolvWorld(opts WorldOptions) (*ResolvWorld, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid world size %vx%v", opts.Width, opts.Height)
	}
	if opts.CellWidth <= 0 || opts.CellHeight <= 0 {
		return nil, fmt.Errorf("invalid cell size %dx%d", opts.CellWidth, opts.CellHeight)
	}

	return &ResolvWorld{
		space:    resolv.NewSpace(int(opts.Width), int(opts.Height), opts.CellWidth, opts.CellHeight),
		bodies:   make(map[BodyID]*resolvBody),
		nextID:   1,
		maxChunk: math.Min(float64(opts.CellWidth), float64(opts.CellHeight)),
	}, nil
}

func (w *ResolvWorld) CreateBody(def BodyDef) (BodyID, error) {
	if def.Size.X <= 0 || def.Size.Y <= 0 {
		return 0, fmt.Errorf("invalid body size %vx%v", def.Size.X, def.Size.Y)
	}

	tags := []string{TagDynamic}
	if def.Kind == BodyStatic {
		tags = []string{TagStatic}
	}
	if def.Group != "" {
		tags = append(tags, def.Group)
	}

	id := w.nextID
	w.nextID++

	object := resolv.NewObject(def.Position.X, def.Position.Y, def.Size.X, def.Size.Y, tags...)
	object.Data = id
	w.space.Add(object)

	w.bodies[id] = &resolvBody{
		object: object,
		kind:   def.Kind,
	}
	return id, nil
}

func (w *ResolvWorld) DestroyBody(id BodyID) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	w.space.Remove(b.object)
	delete(w.bodies, id)
}

func (w *ResolvWorld) SetLinearVelocity(id BodyID, velocity kinematic.Vector) {
	if b, ok := w.bodies[id]; ok && b.kind == BodyDynamic {
		b.velocity = velocity
	}
}

func (w *ResolvWorld) LinearVelocity(id BodyID) (kinematic.Vector, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return kinematic.Vector{}, false
	}
	return b.velocity, true
}

func (w *ResolvWorld) SetPosition(id BodyID, position kinematic.Vector) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	b.object.Position.X = position.X
	b.object.Position.Y = position.Y
	b.object.Update()
}

func (w *ResolvWorld) Position(id BodyID) (kinematic.Vector, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return kinematic.Vector{}, false
	}
	return kinematic.NewVector(b.object.Position.X, b.object.Position.Y), true
}

func (w *ResolvWorld) Translate(id BodyID, delta kinematic.Vector) {
	if b, ok := w.bodies[id]; ok && b.kind == BodyDynamic {
		w.move(b, delta)
	}
}

func (w *ResolvWorld) Step(dt time.Duration) {
	for _, id := range w.DynamicBodies() {
		b := w.bodies[id]
		if b.velocity.X == 0 && b.velocity.Y == 0 {
			continue
		}
		w.move(b, kinematic.Displacement(b.velocity, dt))
	}
}

func (w *ResolvWorld) DynamicBodies() []BodyID {
	ids := make([]BodyID, 0, len(w.bodies))
	for id, b := range w.bodies {
		if b.kind == BodyDynamic {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// move resolves each axis separately so a body can slide along a wall.
// resolv only inspects the cells at the destination, so long moves are
// split into chunks no larger than a cell.
func (w *ResolvWorld) move(b *resolvBody, delta kinematic.Vector) {
	chunks := int(math.Ceil(math.Max(math.Abs(delta.X), math.Abs(delta.Y)) / w.maxChunk))
	if chunks < 1 {
		chunks = 1
	}
	step := delta.Scale(1 / float64(chunks))

	blockedX, blockedY := step.X == 0, step.Y == 0
	for i := 0; i < chunks && !(blockedX && blockedY); i++ {
		if !blockedX {
			dx := step.X
			if collision := b.object.Check(dx, 0, TagStatic); collision != nil {
				dx = clampContact(dx, collision, true)
				blockedX = true
			}
			b.object.Position.X += dx
			b.object.Update()
		}
		if !blockedY {
			dy := step.Y
			if collision := b.object.Check(0, dy, TagStatic); collision != nil {
				dy = clampContact(dy, collision, false)
				blockedY = true
			}
			b.object.Position.Y += dy
			b.object.Update()
		}
	}
}

// clampContact returns the largest move toward d that stops at the nearest
// blocking object, never moving backwards out of an overlap.
func clampContact(d float64, collision *resolv.Collision, horizontal bool) float64 {
	allowed := d
	for _, o := range collision.Objects {
		contact := collision.ContactWithObject(o).Y
		if horizontal {
			contact = collision.ContactWithObject(o).X
		}
		if d > 0 {
			allowed = math.Min(allowed, contact)
		} else {
			allowed = math.Max(allowed, contact)
		}
	}
	if d > 0 {
		return math.Max(allowed, 0)
	}
	return math.Min(allowed, 0)
}
