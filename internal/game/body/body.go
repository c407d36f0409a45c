// Package body declares the physical collaborators an actor drives: movement,
// animation, and damage volumes. Implementations live outside the behavior engine.
package body

import "math"

// Vec is a position or direction on the ground plane.
type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Add returns v+o.
func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// Scale returns v*f.
func (v Vec) Scale(f float64) Vec { return Vec{v.X * f, v.Y * f} }

// Len returns the Euclidean length of v.
func (v Vec) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the distance between v and o.
func (v Vec) Dist(o Vec) float64 { return v.Sub(o).Len() }

// Norm returns the unit vector of v, or the zero vector when v has no length.
func (v Vec) Norm() Vec {
	l := v.Len()
	if l == 0 {
		return Vec{}
	}
	return v.Scale(1 / l)
}

// Angle returns the heading of v in radians.
func (v Vec) Angle() float64 { return math.Atan2(v.Y, v.X) }

// Mover is the movement/navigation collaborator.
type Mover interface {
	Position() Vec
	// StartMove begins moving toward destination at speed units per second.
	StartMove(destination Vec, speed float64)
	StopMove()
	RemainingDistance() float64
	HasArrived() bool
	// SampleWalkableNear returns a walkable point within radius of point, or false.
	SampleWalkableNear(point Vec, radius float64) (Vec, bool)
	// TurnToward rotates toward point by at most maxRadians and reports whether
	// the actor now faces it.
	TurnToward(point Vec, maxRadians float64) bool
	// Teleport places the actor without animation; used on respawn.
	Teleport(point Vec)
}

// Animator is the animation collaborator.
type Animator interface {
	SetTrigger(name string)
	SetBool(name string, value bool)
	SetInt(name string, value int)
	// IsTagFinished reports whether the clip tagged tag has played past its end.
	IsTagFinished(tag string) bool
}

// Strike is the payload attached to an enabled damage volume.
type Strike struct {
	Attacker   string
	Pattern    string
	Damage     float64
	PartDamage float64
}

// Hitboxes is the damage-volume collaborator.
type Hitboxes interface {
	Enable(id string, strike Strike)
	Disable(id string)
}
