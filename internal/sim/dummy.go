package sim

import (
	"sync"
	"time"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/health"
)

// DummyConfig describes a scripted opponent.
type DummyConfig struct {
	ID       string
	Position body.Vec
	// MaxHP <= 0 makes the dummy invulnerable.
	MaxHP      float64
	Damage     float64
	PartDamage float64
	// Interval is the time between swings; 0 disables attacking.
	Interval time.Duration
	// CriticalEvery marks every Nth swing as critical; 0 disables criticals.
	CriticalEvery int
	Reach         float64
}

// Dummy stands still and swings at the nearest actor in reach. Strikes it
// takes are recorded. It plays the player's part for actors.
//
// Dummy is safe for concurrent use.
type Dummy struct {
	cfg DummyConfig

	mu        sync.Mutex
	hp        float64
	alive     bool
	taken     float64
	hits      []body.Strike
	swings    int
	nextSwing time.Time
}

// NewDummy creates a live Dummy.
func NewDummy(cfg DummyConfig) *Dummy {
	return &Dummy{cfg: cfg, hp: cfg.MaxHP, alive: true}
}

func (d *Dummy) ID() string { return d.cfg.ID }

func (d *Dummy) Position() body.Vec { return d.cfg.Position }

func (d *Dummy) Alive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alive
}

// Kill marks the dummy dead; actors targeting it give up.
func (d *Dummy) Kill() {
	d.mu.Lock()
	d.alive = false
	d.mu.Unlock()
}

// Revive restores the dummy to full health.
func (d *Dummy) Revive() {
	d.mu.Lock()
	d.alive = true
	d.hp = d.cfg.MaxHP
	d.mu.Unlock()
}

// DamageTaken returns the total strike damage received.
func (d *Dummy) DamageTaken() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.taken
}

// Hits returns a copy of every strike received, oldest first.
func (d *Dummy) Hits() []body.Strike {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]body.Strike(nil), d.hits...)
}

func (d *Dummy) takeHit(s body.Strike) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.taken += s.Damage
	d.hits = append(d.hits, s)
	if d.cfg.MaxHP <= 0 {
		return
	}
	d.hp -= s.Damage
	if d.hp <= 0 {
		d.hp = 0
		d.alive = false
	}
}

// swing returns the damage for the next attack when one is due at now.
func (d *Dummy) swing(now time.Time, receiver string) (health.DamageInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.alive || d.cfg.Interval <= 0 || now.Before(d.nextSwing) {
		return health.DamageInfo{}, false
	}
	d.swings++
	d.nextSwing = now.Add(d.cfg.Interval)
	return health.DamageInfo{
		Attacker:   d.cfg.ID,
		Receiver:   receiver,
		Amount:     d.cfg.Damage,
		PartDamage: d.cfg.PartDamage,
		Critical:   d.cfg.CriticalEvery > 0 && d.swings%d.cfg.CriticalEvery == 0,
	}, true
}
