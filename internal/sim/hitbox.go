package sim

import (
	"sort"

	"github.com/cory-johannsen/bossai/internal/game/body"
)

// DefaultReach is the radius of a damage volume without a registered reach.
const DefaultReach = 4.5

type volume struct {
	strike body.Strike
	reach  float64
	// struck holds target IDs already hit by this activation.
	struck map[string]bool
}

// Hitboxes tracks the damage volumes an actor has enabled.
//
// Each activation hits a given target at most once.
type Hitboxes struct {
	reaches map[string]float64
	active  map[string]*volume
}

// NewHitboxes creates Hitboxes; reaches overrides DefaultReach per volume ID.
func NewHitboxes(reaches map[string]float64) *Hitboxes {
	return &Hitboxes{reaches: reaches, active: make(map[string]*volume)}
}

func (h *Hitboxes) Enable(id string, strike body.Strike) {
	reach, ok := h.reaches[id]
	if !ok {
		reach = DefaultReach
	}
	h.active[id] = &volume{strike: strike, reach: reach, struck: make(map[string]bool)}
}

func (h *Hitboxes) Disable(id string) { delete(h.active, id) }

// Active returns the enabled volume IDs in sorted order.
func (h *Hitboxes) Active() []string {
	ids := make([]string, 0, len(h.active))
	for id := range h.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// resolve applies every active volume around origin to targets in reach.
func (h *Hitboxes) resolve(origin body.Vec, targets []*Dummy) {
	for _, id := range h.Active() {
		v := h.active[id]
		for _, d := range targets {
			if !d.Alive() || v.struck[d.ID()] {
				continue
			}
			if origin.Dist(d.Position()) > v.reach {
				continue
			}
			v.struck[d.ID()] = true
			d.takeHit(v.strike)
		}
	}
}
