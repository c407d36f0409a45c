package pattern

import "time"

// Constructor builds a fresh instance of def.
type Constructor func(def *Definition, lib *Library) Pattern

var idleKinds = map[string]struct{}{
	"wander":      {},
	"look_around": {},
	"wait":        {},
	"roar":        {},
}

// DefaultKinds returns the built-in kind constructors. Every kind honours an explicit
// step table; the constructors only supply the table when a Definition omits it.
func DefaultKinds() map[string]Constructor {
	return map[string]Constructor{
		"melee":       stepsOr(meleeSteps),
		"charge":      stepsOr(chargeSteps),
		"leap":        stepsOr(leapSteps),
		"breath":      stepsOr(breathSteps),
		"sequence":    stepsOr(func(*Definition) []Step { return nil }),
		"wander":      stepsOr(wanderSteps),
		"look_around": stepsOr(lookSteps),
		"wait":        stepsOr(waitSteps),
		"roar":        stepsOr(roarSteps),
	}
}

func stepsOr(fallback func(*Definition) []Step) Constructor {
	return func(def *Definition, lib *Library) Pattern {
		steps := def.Steps
		if len(steps) == 0 {
			steps = fallback(def)
		}
		return NewSequence(def, lib, steps)
	}
}

func or[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

func meleeSteps(d *Definition) []Step {
	tag := or(d.Tag, "attack")
	return []Step{
		{Name: "swing", Trigger: or(d.Animation, "attack"), Hitbox: HitboxOn, Until: UntilAnim, Tag: tag, Duration: or(d.Duration, time.Second)},
		{Name: "recover", Hitbox: HitboxOff},
	}
}

func chargeSteps(d *Definition) []Step {
	return []Step{
		{Name: "windup", Trigger: "charge_windup", Duration: 600 * time.Millisecond},
		{Name: "rush", Trigger: or(d.Animation, "charge"), Hitbox: HitboxOn, Move: MoveThrough, Radius: or(d.Radius, 3), Until: UntilArrived, Duration: or(d.Duration, 3*time.Second)},
		{Name: "brake", Trigger: "charge_end", Hitbox: HitboxOff, Move: MoveStop, Duration: 300 * time.Millisecond},
	}
}

func leapSteps(d *Definition) []Step {
	return []Step{
		{Name: "crouch", Trigger: "leap_windup", Duration: 500 * time.Millisecond},
		{Name: "jump", Trigger: or(d.Animation, "leap"), Move: MoveTarget, Until: UntilArrived, Duration: or(d.Duration, 2*time.Second)},
		{Name: "slam", Trigger: "slam", Hitbox: HitboxOn, Move: MoveStop, Duration: 200 * time.Millisecond},
		{Name: "recover", Hitbox: HitboxOff, Duration: 600 * time.Millisecond},
	}
}

func breathSteps(d *Definition) []Step {
	return []Step{
		{Name: "aim", Until: UntilFacing, Duration: time.Second},
		{Name: "breathe", Trigger: or(d.Animation, "breath"), Hitbox: HitboxOn, Duration: or(d.Duration, 1500*time.Millisecond)},
		{Name: "close", Trigger: "breath_end", Hitbox: HitboxOff, Until: UntilAnim, Tag: "breath_end", Duration: 800 * time.Millisecond},
	}
}

func wanderSteps(d *Definition) []Step {
	return []Step{
		{Name: "walk", Trigger: "walk", Move: MoveWander, Radius: or(d.Radius, 8), Until: UntilArrived, Duration: or(d.Duration, 6*time.Second)},
		{Name: "halt", Move: MoveStop},
	}
}

func lookSteps(d *Definition) []Step {
	return []Step{
		{Name: "look", Trigger: or(d.Animation, "look"), Until: UntilAnim, Tag: or(d.Tag, "look"), Duration: or(d.Duration, 2*time.Second)},
	}
}

func waitSteps(d *Definition) []Step {
	return []Step{{Name: "wait", Duration: or(d.Duration, time.Second)}}
}

func roarSteps(d *Definition) []Step {
	return []Step{
		{Name: "roar", Trigger: or(d.Animation, "roar"), Until: UntilAnim, Tag: or(d.Tag, "roar"), Duration: or(d.Duration, 2*time.Second)},
	}
}
