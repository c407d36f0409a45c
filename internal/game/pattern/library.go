package pattern

import (
	"fmt"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/dice"
)

// Library indexes Definitions by ID and instantiates fresh Patterns.
//
// Invariant: each ID is registered at most once; every chain link resolves.
type Library struct {
	defs   map[string]*Definition
	order  []string
	kinds  map[string]Constructor
	damage map[string]dice.Expression
}

// NewLibrary builds a Library over defs using DefaultKinds.
func NewLibrary(defs []Definition) (*Library, error) {
	return NewLibraryWithKinds(defs, nil)
}

// NewLibraryWithKinds builds a Library; extra kinds override or extend the defaults.
//
// Postcondition: returns an error wrapping ErrUnknownKind or ErrUnknownPattern for
// unresolved references, or a validation error for malformed definitions.
func NewLibraryWithKinds(defs []Definition, extra map[string]Constructor) (*Library, error) {
	l := &Library{
		defs:   make(map[string]*Definition, len(defs)),
		kinds:  DefaultKinds(),
		damage: make(map[string]dice.Expression),
	}
	for k, c := range extra {
		l.kinds[k] = c
	}
	for i := range defs {
		d := defs[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := l.defs[d.ID]; dup {
			return nil, fmt.Errorf("pattern.Library: pattern %q already registered", d.ID)
		}
		if _, ok := l.kinds[d.Kind]; !ok {
			return nil, fmt.Errorf("pattern.Library: pattern %q kind %q: %w", d.ID, d.Kind, ErrUnknownKind)
		}
		if d.Damage != "" {
			l.damage[d.ID] = dice.MustParse(d.Damage)
		}
		l.defs[d.ID] = &d
		l.order = append(l.order, d.ID)
	}
	for _, id := range l.order {
		for _, link := range l.defs[id].Chain {
			if _, ok := l.defs[link.Pattern]; !ok {
				return nil, fmt.Errorf("pattern.Library: pattern %q chains to %q: %w", id, link.Pattern, ErrUnknownPattern)
			}
		}
	}
	return l, nil
}

// Definition returns the definition for id, or false.
func (l *Library) Definition(id string) (*Definition, bool) {
	d, ok := l.defs[id]
	return d, ok
}

// Resolve maps ids to definitions in order.
//
// Postcondition: returns an error wrapping ErrUnknownPattern for the first unknown id.
func (l *Library) Resolve(ids []string) ([]*Definition, error) {
	out := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		d, ok := l.defs[id]
		if !ok {
			return nil, fmt.Errorf("pattern.Library.Resolve: %q: %w", id, ErrUnknownPattern)
		}
		out = append(out, d)
	}
	return out, nil
}

// IDs returns every registered ID in registration order.
func (l *Library) IDs() []string {
	return append([]string(nil), l.order...)
}

// Instantiate returns a new instance of the pattern id.
func (l *Library) Instantiate(id string) (Pattern, error) {
	d, ok := l.defs[id]
	if !ok {
		return nil, fmt.Errorf("pattern.Library.Instantiate: %q: %w", id, ErrUnknownPattern)
	}
	return l.kinds[d.Kind](d, l), nil
}

// Strike rolls def's damage expression. Patterns without one deal zero damage.
func (l *Library) Strike(def *Definition, roller *dice.Roller, attacker string) body.Strike {
	s := body.Strike{Attacker: attacker, Pattern: def.ID}
	if expr, ok := l.damage[def.ID]; ok && roller != nil {
		s.Damage = float64(roller.Roll(expr).Total())
	}
	return s
}
