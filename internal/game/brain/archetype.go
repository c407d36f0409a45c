package brain

import (
	"fmt"
	"sort"
	"time"
)

// Archetype is a per-creature-family state graph: which optional main states the
// actor may enter and how its Combat sub-states are sequenced.
type Archetype struct {
	Name string
	// Defaults are capabilities every creature of the archetype has.
	Defaults []Capability
	// RoarOnEngage starts Combat with a roar when the actor has CapRoars.
	RoarOnEngage bool
	// LookBeforeRanged inserts an aim-turn before patterns with a MinRange.
	LookBeforeRanged bool
	// Recovery is the pause after an unchained attack before selecting again.
	Recovery time.Duration
	// ChaseSpeedScale multiplies run speed while chasing.
	ChaseSpeedScale float64
	// FleeDistance is how far Retreat runs from the target before returning home.
	FleeDistance float64
	// BreakDuration bounds the part-break reaction in Destruct.
	BreakDuration time.Duration
}

var archetypes = map[string]Archetype{
	"brute": {
		Name:            "brute",
		Defaults:        []Capability{CapStaggerable, CapRoars},
		RoarOnEngage:    true,
		Recovery:        300 * time.Millisecond,
		ChaseSpeedScale: 1,
		FleeDistance:    10,
		BreakDuration:   1500 * time.Millisecond,
	},
	"drake": {
		Name:             "drake",
		Defaults:         []Capability{CapBreath, CapAimTurn, CapRoars},
		RoarOnEngage:     true,
		LookBeforeRanged: true,
		Recovery:         500 * time.Millisecond,
		ChaseSpeedScale:  1.2,
		FleeDistance:     18,
		BreakDuration:    2 * time.Second,
	},
	"stalker": {
		Name:            "stalker",
		Defaults:        []Capability{CapCharge, CapRetreats},
		Recovery:        150 * time.Millisecond,
		ChaseSpeedScale: 1.4,
		FleeDistance:    14,
		BreakDuration:   time.Second,
	},
	"golem": {
		Name:            "golem",
		Defaults:        []Capability{CapDestructible},
		Recovery:        800 * time.Millisecond,
		ChaseSpeedScale: 0.8,
		FleeDistance:    6,
		BreakDuration:   2500 * time.Millisecond,
	},
	"minion": {
		Name:            "minion",
		Defaults:        []Capability{CapPassive, CapStaggerable},
		Recovery:        500 * time.Millisecond,
		ChaseSpeedScale: 1,
		FleeDistance:    8,
		BreakDuration:   time.Second,
	},
}

// LookupArchetype returns the archetype registered under name.
func LookupArchetype(name string) (Archetype, error) {
	a, ok := archetypes[name]
	if !ok {
		return Archetype{}, fmt.Errorf("brain.LookupArchetype: unknown archetype %q", name)
	}
	return a, nil
}

// ArchetypeNames returns every registered archetype name, sorted.
func ArchetypeNames() []string {
	out := make([]string, 0, len(archetypes))
	for n := range archetypes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
