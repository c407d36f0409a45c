// Package pattern implements selectable actions and attacks. A pattern is a YAML
// definition plus a step-table executor that drives one instance from Execute
// through completion and chaining.
package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/bossai/internal/game/dice"
)

var (
	// ErrUnknownPattern is returned when a pattern ID is not in the Library.
	ErrUnknownPattern = errors.New("pattern: unknown pattern")
	// ErrUnknownKind is returned when a Definition names an unregistered kind.
	ErrUnknownKind = errors.New("pattern: unknown kind")
)

// Until names the condition that completes a Step.
type Until string

const (
	UntilDuration Until = "duration"
	UntilAnim     Until = "anim"
	UntilArrived  Until = "arrived"
	UntilFacing   Until = "facing"
)

// HitboxOp toggles the pattern's damage volume when a Step begins.
type HitboxOp string

const (
	HitboxOn  HitboxOp = "on"
	HitboxOff HitboxOp = "off"
)

// MoveOp is the movement command issued when a Step begins.
type MoveOp string

const (
	MoveTarget  MoveOp = "target"
	MoveThrough MoveOp = "through"
	MoveAway    MoveOp = "away"
	MoveHome    MoveOp = "home"
	MoveWander  MoveOp = "wander"
	MoveStop    MoveOp = "stop"
)

// Step is one row of a pattern's step table.
//
// Until defaults to "duration". For every other condition a positive Duration acts as a timeout.
type Step struct {
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration"`
	Until    Until         `yaml:"until"`
	Trigger  string        `yaml:"trigger"`
	Tag      string        `yaml:"tag"`
	Hitbox   HitboxOp      `yaml:"hitbox"`
	Volume   string        `yaml:"volume"`
	Move     MoveOp        `yaml:"move"`
	Speed    float64       `yaml:"speed"`
	Radius   float64       `yaml:"radius"`
	TurnRate float64       `yaml:"turn_rate"`
}

func (s Step) validate() error {
	switch s.Until {
	case "", UntilDuration, UntilAnim, UntilArrived, UntilFacing:
	default:
		return fmt.Errorf("unknown until %q", s.Until)
	}
	if s.Until == UntilAnim && s.Tag == "" {
		return errors.New("until anim requires a tag")
	}
	switch s.Hitbox {
	case "", HitboxOn, HitboxOff:
	default:
		return fmt.Errorf("unknown hitbox op %q", s.Hitbox)
	}
	switch s.Move {
	case "", MoveTarget, MoveThrough, MoveAway, MoveHome, MoveWander, MoveStop:
	default:
		return fmt.Errorf("unknown move %q", s.Move)
	}
	if s.Duration < 0 || s.Speed < 0 || s.Radius < 0 || s.TurnRate < 0 {
		return errors.New("duration, speed, radius and turn_rate must not be negative")
	}
	return nil
}

// Link nominates a follow-up pattern when the owning pattern finishes.
type Link struct {
	Pattern string `yaml:"pattern"`
	// Chance is the probability in [0, 1] that the link fires.
	Chance float64 `yaml:"chance"`
	// MaxRange limits the link to targets within this distance; 0 means any distance.
	MaxRange float64 `yaml:"max_range"`
}

// Definition is the immutable description of an action or attack.
//
// Invariant: a Definition is shared by every instance built from it and never mutated after load.
type Definition struct {
	ID     string  `yaml:"id"`
	Kind   string  `yaml:"kind"`
	Weight float64 `yaml:"weight"`
	// MinRange and MaxRange bound the actor-to-target distance; MaxRange 0 disables range gating.
	MinRange float64       `yaml:"min_range"`
	MaxRange float64       `yaml:"max_range"`
	Cooldown time.Duration `yaml:"cooldown"`
	// Special patterns use the phase-configured special cooldown instead of Cooldown.
	Special bool `yaml:"special"`
	// Precondition is a Lua function name; empty means always usable.
	Precondition string `yaml:"precondition"`
	// Requires lists capabilities the actor must have.
	Requires  []string      `yaml:"requires"`
	Damage    string        `yaml:"damage"`
	Hitbox    string        `yaml:"hitbox"`
	Animation string        `yaml:"animation"`
	Tag       string        `yaml:"tag"`
	Speed     float64       `yaml:"speed"`
	Radius    float64       `yaml:"radius"`
	Duration  time.Duration `yaml:"duration"`
	Steps     []Step        `yaml:"steps"`
	Chain     []Link        `yaml:"chain"`
	// Uninterruptible patterns are not cut short by stagger or by the target
	// leaving their range.
	Uninterruptible bool `yaml:"uninterruptible"`
}

// HitboxID returns the damage volume the pattern drives, defaulting to the pattern ID.
func (d *Definition) HitboxID() string {
	if d.Hitbox != "" {
		return d.Hitbox
	}
	return d.ID
}

// IsAttack reports whether the pattern's kind deals damage.
func (d *Definition) IsAttack() bool {
	_, idle := idleKinds[d.Kind]
	return !idle
}

// Ranged reports whether the pattern has a distance band at all.
func (d *Definition) Ranged() bool { return d.MinRange > 0 || d.MaxRange > 0 }

// InRange reports whether dist lies within [MinRange, MaxRange]. Patterns without a
// MaxRange have no upper bound.
func (d *Definition) InRange(dist float64) bool {
	if d.MaxRange <= 0 {
		return dist >= d.MinRange
	}
	return dist >= d.MinRange && dist <= d.MaxRange
}

// Validate checks field constraints that do not depend on other definitions.
//
// Postcondition: nil guarantees a non-empty ID and Kind, non-negative weight and
// ranges, MinRange <= MaxRange when MaxRange is set, a parseable Damage expression,
// valid steps, and chain chances within [0, 1].
func (d *Definition) Validate() error {
	if d.ID == "" {
		return errors.New("pattern.Definition: ID must not be empty")
	}
	if d.Kind == "" {
		return fmt.Errorf("pattern.Definition %q: kind must not be empty", d.ID)
	}
	if d.Weight < 0 {
		return fmt.Errorf("pattern.Definition %q: weight must be >= 0, got %g", d.ID, d.Weight)
	}
	if d.MinRange < 0 || d.MaxRange < 0 {
		return fmt.Errorf("pattern.Definition %q: ranges must not be negative", d.ID)
	}
	if d.MaxRange > 0 && d.MinRange > d.MaxRange {
		return fmt.Errorf("pattern.Definition %q: min_range %g exceeds max_range %g", d.ID, d.MinRange, d.MaxRange)
	}
	if d.Cooldown < 0 || d.Duration < 0 {
		return fmt.Errorf("pattern.Definition %q: durations must not be negative", d.ID)
	}
	if d.Damage != "" {
		if _, err := dice.Parse(d.Damage); err != nil {
			return fmt.Errorf("pattern.Definition %q: damage: %w", d.ID, err)
		}
	}
	for i, s := range d.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("pattern.Definition %q step %d: %w", d.ID, i, err)
		}
	}
	for _, l := range d.Chain {
		if l.Pattern == "" {
			return fmt.Errorf("pattern.Definition %q: chain link has empty pattern", d.ID)
		}
		if l.Chance < 0 || l.Chance > 1 {
			return fmt.Errorf("pattern.Definition %q: chain chance must be in [0, 1], got %g", d.ID, l.Chance)
		}
	}
	return nil
}
