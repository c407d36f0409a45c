// Package health tracks an actor's hit points and reports discrete damage events.
//
// Apply returns the events it raised instead of notifying subscribers; the caller
// consumes the Result synchronously.
package health

import (
	"fmt"
	"math"
	"strings"
)

// Event is a bitmask of notifications raised by a single Apply call.
type Event uint8

const (
	// EventHit is raised on every successful damage application.
	EventHit Event = 1 << iota
	// EventFirstHit is raised on the first successful application since full health.
	EventFirstHit
	// EventRetreat is raised the first time health falls below the retreat fraction in a life.
	EventRetreat
	// EventDead is raised exactly once, when health reaches zero.
	EventDead
)

// Has reports whether every bit in flag is set.
func (e Event) Has(flag Event) bool { return e&flag == flag && flag != 0 }

// String returns a "|" separated list of event names, or "none".
func (e Event) String() string {
	if e == 0 {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		flag Event
		name string
	}{
		{EventHit, "hit"},
		{EventFirstHit, "first_hit"},
		{EventRetreat, "retreat"},
		{EventDead, "dead"},
	} {
		if e&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// DamageInfo is one damage application produced by the damage-dealing collaborator.
type DamageInfo struct {
	// Attacker and Receiver identify the participants; the engine does not interpret them.
	Attacker string
	Receiver string
	// Amount is the raw damage subtracted from health.
	Amount float64
	// Cutting is an auxiliary channel carried for collaborators; health ignores it.
	Cutting float64
	// PartDamage is applied against a destructible part's durability.
	PartDamage float64
	Critical   bool
}

// Result reports what an Apply call did.
type Result struct {
	Events Event
	// Applied is the health actually removed (clamped to what remained).
	Applied float64
	// Fraction is Current/Max after the application.
	Fraction float64
}

// Health is a per-life hit point pool.
//
// Invariant: 0 <= Current <= Max; once Dead, Current stays 0 until Reset.
type Health struct {
	max             float64
	current         float64
	retreatFraction float64
	touched         bool
	retreatLatched  bool
	dead            bool
}

// New creates a Health at full hit points.
//
// Precondition: max > 0; retreatFraction in [0, 1). A zero retreatFraction never fires retreat.
// Postcondition: Returns a full Health or an error.
func New(max, retreatFraction float64) (*Health, error) {
	if !(max > 0) || math.IsInf(max, 1) {
		return nil, fmt.Errorf("health.New: max must be > 0, got %g", max)
	}
	if !(retreatFraction >= 0 && retreatFraction < 1) {
		return nil, fmt.Errorf("health.New: retreat fraction must be in [0, 1), got %g", retreatFraction)
	}
	return &Health{max: max, current: max, retreatFraction: retreatFraction}, nil
}

// Max returns the maximum hit points.
func (h *Health) Max() float64 { return h.max }

// Current returns the remaining hit points.
func (h *Health) Current() float64 { return h.current }

// Fraction returns Current/Max in [0, 1].
func (h *Health) Fraction() float64 { return h.current / h.max }

// Dead reports whether health has reached zero in this life.
func (h *Health) Dead() bool { return h.dead }

// RetreatFraction returns the configured retreat threshold.
func (h *Health) RetreatFraction() float64 { return h.retreatFraction }

// Apply subtracts info.Amount.
//
// Postcondition: a dead Health is unchanged and the Result carries no events.
// Non-positive and NaN amounts are not a successful application.
func (h *Health) Apply(info DamageInfo) Result {
	if h.dead || !(info.Amount > 0) {
		return Result{Fraction: h.Fraction()}
	}

	applied := info.Amount
	if applied > h.current {
		applied = h.current
	}
	h.current -= applied

	ev := EventHit
	if !h.touched {
		h.touched = true
		ev |= EventFirstHit
	}
	frac := h.Fraction()
	if !h.retreatLatched && frac < h.retreatFraction {
		h.retreatLatched = true
		ev |= EventRetreat
	}
	if h.current <= 0 {
		h.current = 0
		h.dead = true
		ev |= EventDead
	}
	return Result{Events: ev, Applied: applied, Fraction: frac}
}

// Heal restores up to amount hit points; returning to full re-arms the first-hit event.
// A dead Health cannot be healed.
func (h *Health) Heal(amount float64) float64 {
	if h.dead || !(amount > 0) {
		return 0
	}
	gained := amount
	if h.current+gained > h.max {
		gained = h.max - h.current
	}
	h.current += gained
	if h.current >= h.max {
		h.touched = false
	}
	return gained
}

// Reset restores full health and clears every latch for a new life.
func (h *Health) Reset() {
	h.current = h.max
	h.touched = false
	h.retreatLatched = false
	h.dead = false
}

// Restore sets health from persisted values without raising events.
// current is clamped to [0, Max]; zero marks the Health dead.
func (h *Health) Restore(current float64) {
	h.Reset()
	switch {
	case current <= 0:
		h.current = 0
		h.dead = true
		h.touched = true
		h.retreatLatched = true
	case current < h.max:
		h.current = current
		h.touched = true
		h.retreatLatched = h.Fraction() < h.retreatFraction
	}
}
