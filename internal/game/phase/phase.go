// Package phase implements health-driven escalation: an ordered table of
// breakpoints and a tracker that advances through it one phase at a time.
package phase

import (
	"errors"
	"fmt"
	"time"
)

// EntryConfig is applied by the actor when a phase becomes current.
type EntryConfig struct {
	// SpecialCooldown replaces the cooldown of special patterns; 0 leaves it unchanged.
	SpecialCooldown time.Duration `yaml:"special_cooldown"`
	// CooldownScale multiplies pattern cooldowns; 0 leaves it unchanged.
	CooldownScale float64 `yaml:"cooldown_scale"`
	// SpeedScale multiplies movement speed; 0 leaves it unchanged.
	SpeedScale float64 `yaml:"speed_scale"`
	// Animation is an animator int parameter set to the phase index, e.g. "phase".
	Animation string `yaml:"animation"`
}

// Phase is one tier of the table.
type Phase struct {
	// Breakpoint is the health fraction below which this phase is entered.
	// The first phase is current from spawn regardless of its breakpoint.
	Breakpoint float64     `yaml:"breakpoint"`
	Patterns   []string    `yaml:"patterns"`
	Entry      EntryConfig `yaml:"entry"`
}

// Table is an immutable, validated list of phases.
//
// Invariant: at least one phase; breakpoints strictly decrease by index and lie in (0, 1].
type Table struct {
	phases []Phase
}

// NewTable validates phases and returns a Table.
//
// Postcondition: every phase lists at least one pattern.
func NewTable(phases []Phase) (*Table, error) {
	if len(phases) == 0 {
		return nil, errors.New("phase.NewTable: at least one phase is required")
	}
	for i, p := range phases {
		if p.Breakpoint <= 0 || p.Breakpoint > 1 {
			return nil, fmt.Errorf("phase.NewTable: phase %d breakpoint must be in (0, 1], got %g", i, p.Breakpoint)
		}
		if i > 0 && p.Breakpoint >= phases[i-1].Breakpoint {
			return nil, fmt.Errorf("phase.NewTable: phase %d breakpoint %g must be below phase %d breakpoint %g",
				i, p.Breakpoint, i-1, phases[i-1].Breakpoint)
		}
		if len(p.Patterns) == 0 {
			return nil, fmt.Errorf("phase.NewTable: phase %d has no patterns", i)
		}
		if p.Entry.CooldownScale < 0 || p.Entry.SpeedScale < 0 || p.Entry.SpecialCooldown < 0 {
			return nil, fmt.Errorf("phase.NewTable: phase %d entry values must not be negative", i)
		}
	}
	return &Table{phases: append([]Phase(nil), phases...)}, nil
}

// Len returns the number of phases.
func (t *Table) Len() int { return len(t.phases) }

// At returns phase i.
//
// Precondition: 0 <= i < Len().
func (t *Table) At(i int) Phase { return t.phases[i] }

// Advance describes one phase change.
type Advance struct {
	From, To int
	Phase    Phase
	// Announce is false when To is the final phase.
	Announce bool
}

// Tracker holds the current phase index for one actor life.
//
// Invariant: Index never decreases between Resets.
type Tracker struct {
	table *Table
	index int
}

// NewTracker starts at phase 0.
func NewTracker(t *Table) *Tracker {
	return &Tracker{table: t}
}

// Index returns the current phase index.
func (tr *Tracker) Index() int { return tr.index }

// Current returns the current phase.
func (tr *Tracker) Current() Phase { return tr.table.At(tr.index) }

// Reached returns phases 0 through Index in order.
func (tr *Tracker) Reached() []Phase { return tr.table.phases[:tr.index+1] }

// Final reports whether the last phase is current.
func (tr *Tracker) Final() bool { return tr.index == tr.table.Len()-1 }

// Observe advances by at most one phase when fraction is below the next breakpoint.
//
// Postcondition: returns false when no advance happened, including past the last phase.
func (tr *Tracker) Observe(fraction float64) (Advance, bool) {
	next := tr.index + 1
	if next >= tr.table.Len() {
		return Advance{}, false
	}
	p := tr.table.At(next)
	if !(fraction < p.Breakpoint) {
		return Advance{}, false
	}
	adv := Advance{From: tr.index, To: next, Phase: p, Announce: next < tr.table.Len()-1}
	tr.index = next
	return adv, true
}

// Restore sets the index from persisted state, clamped to the table.
func (tr *Tracker) Restore(index int) {
	switch {
	case index < 0:
		index = 0
	case index >= tr.table.Len():
		index = tr.table.Len() - 1
	}
	tr.index = index
}

// Reset returns to phase 0 for a new life.
func (tr *Tracker) Reset() { tr.index = 0 }
