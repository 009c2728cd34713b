package kinematic

// This package includes the vector math shared by the physics world,
// client prediction and snapshot building.

import (
	"math"
	"time"
)

// Vector is a 2D quantity in world units.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewVector(x, y float64) Vector {
	return Vector{X: x, Y: y}
}

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}

func (v Vector) Equal(o Vector) bool {
	return v.X == o.X && v.Y == o.Y
}

func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Lerp returns ratio*to + (1-ratio)*from.
func Lerp(from, to Vector, ratio float64) Vector {
	return Vector{
		X: ratio*to.X + (1-ratio)*from.X,
		Y: ratio*to.Y + (1-ratio)*from.Y,
	}
}

// Displacement returns the distance covered at a constant velocity over dt.
func Displacement(velocity Vector, dt time.Duration) Vector {
	return velocity.Scale(dt.Seconds())
}

// Within reports whether o lies inside the axis-aligned box of the given
// size centered on v. Edges are inclusive.
func (v Vector) Within(o Vector, width, height float64) bool {
	return math.Abs(o.X-v.X) <= width/2 && math.Abs(o.Y-v.Y) <= height/2
}
