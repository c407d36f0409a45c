package pattern

import (
	"time"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/dice"
)

// Context is what a pattern instance may read and drive while it executes.
// The owning sub-state supplies it and owns every side effect issued through it.
type Context interface {
	Now() time.Time
	Self() string
	// Home is the actor's spawn point.
	Home() body.Vec
	// Target returns the target position, or false when the target is gone.
	Target() (body.Vec, bool)
	Mover() body.Mover
	Animator() body.Animator
	Hitboxes() body.Hitboxes
	Rand() dice.Source
	// SpeedScale multiplies every movement speed the pattern requests.
	SpeedScale() float64
	// Strike builds the damage payload for def's volume.
	Strike(def *Definition) body.Strike
}

// Pattern is one execution of a Definition.
//
// Lifecycle: Execute once, poll IsFinished every tick, then consult Next.
// Instances are never reused across executions.
type Pattern interface {
	Definition() *Definition
	// Execute issues the first step's side effects.
	Execute(ctx Context) error
	// IsFinished advances the instance and reports completion.
	IsFinished(ctx Context) bool
	// Next nominates a chained follow-up instance.
	Next(ctx Context) (Pattern, bool)
}
