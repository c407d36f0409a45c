// Package sim provides headless stand-ins for the movement, animation and
// damage collaborators an actor drives. The arena simulator and tests use it in
// place of a physics and animation runtime.
package sim

import (
	"math"
	"time"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/dice"
)

// arriveEpsilon is the distance at which a move counts as complete.
const arriveEpsilon = 0.05

// Bounds is the walkable rectangle. A zero Bounds is unbounded.
type Bounds struct {
	Min body.Vec
	Max body.Vec
}

func (b Bounds) unbounded() bool { return b.Min == b.Max }

// Contains reports whether p lies on the floor.
func (b Bounds) Contains(p body.Vec) bool {
	if b.unbounded() {
		return true
	}
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

// Clamp returns the closest walkable point to p.
func (b Bounds) Clamp(p body.Vec) body.Vec {
	if b.unbounded() {
		return p
	}
	return body.Vec{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
	}
}

// Mover moves in straight lines at constant speed.
//
// Mover is not safe for concurrent use.
type Mover struct {
	pos    body.Vec
	dest   body.Vec
	facing float64
	speed  float64
	moving bool
	bounds Bounds
	src    dice.Source
}

// NewMover places a Mover at start.
//
// Precondition: src must be non-nil.
func NewMover(start body.Vec, bounds Bounds, src dice.Source) *Mover {
	p := bounds.Clamp(start)
	return &Mover{pos: p, dest: p, bounds: bounds, src: src}
}

func (m *Mover) Position() body.Vec { return m.pos }

// Facing returns the heading in radians.
func (m *Mover) Facing() float64 { return m.facing }

// Moving reports whether a move is in progress.
func (m *Mover) Moving() bool { return m.moving }

// StartMove heads toward the walkable point closest to destination.
func (m *Mover) StartMove(destination body.Vec, speed float64) {
	m.dest = m.bounds.Clamp(destination)
	m.speed = speed
	delta := m.dest.Sub(m.pos)
	m.moving = speed > 0 && delta.Len() > arriveEpsilon
	if m.moving {
		m.facing = delta.Angle()
	}
}

func (m *Mover) StopMove() {
	m.moving = false
	m.dest = m.pos
}

func (m *Mover) RemainingDistance() float64 {
	if !m.moving {
		return 0
	}
	return m.pos.Dist(m.dest)
}

func (m *Mover) HasArrived() bool { return !m.moving }

// SampleWalkableNear picks a uniform point in the disc of radius around point,
// clamped to the floor. It fails when the floor does not reach the disc.
func (m *Mover) SampleWalkableNear(point body.Vec, radius float64) (body.Vec, bool) {
	if !m.bounds.Contains(point) && m.bounds.Clamp(point).Dist(point) > radius {
		return body.Vec{}, false
	}
	angle := m.src.Float64() * 2 * math.Pi
	r := radius * math.Sqrt(m.src.Float64())
	offset := body.Vec{X: math.Cos(angle), Y: math.Sin(angle)}.Scale(r)
	return m.bounds.Clamp(point.Add(offset)), true
}

// TurnToward rotates by at most maxRadians and reports whether point is now ahead.
func (m *Mover) TurnToward(point body.Vec, maxRadians float64) bool {
	delta := point.Sub(m.pos)
	if delta.Len() < arriveEpsilon {
		return true
	}
	want := delta.Angle()
	diff := math.Remainder(want-m.facing, 2*math.Pi)
	if math.Abs(diff) <= maxRadians {
		m.facing = want
		return true
	}
	m.facing += math.Copysign(maxRadians, diff)
	return false
}

func (m *Mover) Teleport(point body.Vec) {
	m.pos = m.bounds.Clamp(point)
	m.StopMove()
}

// Advance moves by speed*dt toward the destination.
func (m *Mover) Advance(dt time.Duration) {
	if !m.moving || dt <= 0 {
		return
	}
	step := m.speed * dt.Seconds()
	remaining := m.dest.Sub(m.pos)
	if remaining.Len() <= step+arriveEpsilon {
		m.pos = m.dest
		m.moving = false
		return
	}
	m.pos = m.pos.Add(remaining.Norm().Scale(step))
}
