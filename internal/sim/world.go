package sim

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/brain"
	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/game/health"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
)

// Receiver is the part of an actor the world delivers damage to.
type Receiver interface {
	ReceiveDamage(info health.DamageInfo)
	Dead() bool
	Despawned() bool
}

// Body bundles the collaborators of one actor.
type Body struct {
	ID       string
	Mover    *Mover
	Animator *Animator
	Hitboxes *Hitboxes

	receiver Receiver
}

// Attach routes dummy attacks to r.
func (b *Body) Attach(r Receiver) { b.receiver = r }

func (b *Body) targetable() bool {
	return b.receiver != nil && !b.receiver.Dead() && !b.receiver.Despawned()
}

// World steps bodies and dummies on a shared clock.
//
// Step must not run concurrently with actor ticks; the perception methods are
// safe to call from actor ticks between Steps.
type World struct {
	mu      sync.Mutex
	bounds  Bounds
	src     dice.Source
	clips   map[string]Clip
	reaches map[string]float64
	logger  *zap.Logger

	bodies  map[string]*Body
	dummies []*Dummy
	last    time.Time
}

// NewWorld creates an empty World.
//
// Precondition: src must be non-nil.
// Postcondition: nil clips uses DefaultClips; a nil logger discards output.
func NewWorld(bounds Bounds, src dice.Source, clips map[string]Clip, reaches map[string]float64, logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clips == nil {
		clips = DefaultClips()
	}
	return &World{
		bounds:  bounds,
		src:     src,
		clips:   clips,
		reaches: reaches,
		logger:  logger,
		bodies:  make(map[string]*Body),
	}
}

// AddDummy places d in the world.
func (w *World) AddDummy(d *Dummy) {
	w.mu.Lock()
	w.dummies = append(w.dummies, d)
	w.mu.Unlock()
}

// NewBody creates collaborators for id at home, replacing any previous body with that ID.
func (w *World) NewBody(id string, home body.Vec) *Body {
	b := &Body{
		ID:       id,
		Mover:    NewMover(home, w.bounds, w.src),
		Animator: NewAnimator(w.clips),
		Hitboxes: NewHitboxes(w.reaches),
	}
	w.mu.Lock()
	w.bodies[id] = b
	w.mu.Unlock()
	return b
}

// Body returns the body registered under id.
func (w *World) Body(id string) (*Body, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	return b, ok
}

// RemoveBody forgets the body registered under id.
func (w *World) RemoveBody(id string) {
	w.mu.Lock()
	delete(w.bodies, id)
	w.mu.Unlock()
}

// Deps returns the brain collaborators for b.
func (w *World) Deps(b *Body, rand dice.Source, scripts pattern.ScriptCaller, logger *zap.Logger) brain.Deps {
	return brain.Deps{
		Mover:      b.Mover,
		Animator:   b.Animator,
		Hitboxes:   b.Hitboxes,
		Perception: w,
		Rand:       rand,
		Scripts:    scripts,
		Logger:     logger,
	}
}

// Step advances the world to now: bodies move, clips play, damage volumes
// resolve against dummies, and dummies swing at the nearest actor in reach.
func (w *World) Step(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var dt time.Duration
	if !w.last.IsZero() {
		dt = now.Sub(w.last)
	}
	w.last = now

	ids := make([]string, 0, len(w.bodies))
	for id := range w.bodies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		b := w.bodies[id]
		b.Mover.Advance(dt)
		b.Animator.Advance(dt)
		b.Hitboxes.resolve(b.Mover.Position(), w.dummies)
	}

	for _, d := range w.dummies {
		var target *Body
		best := d.cfg.Reach
		for _, id := range ids {
			b := w.bodies[id]
			if !b.targetable() {
				continue
			}
			if dist := b.Mover.Position().Dist(d.Position()); dist <= best {
				target, best = b, dist
			}
		}
		if target == nil {
			continue
		}
		if info, ok := d.swing(now, target.ID); ok {
			target.receiver.ReceiveDamage(info)
			w.logger.Debug("dummy swing",
				zap.String("dummy", d.ID()),
				zap.String("actor", target.ID),
				zap.Float64("damage", info.Amount),
				zap.Bool("critical", info.Critical))
		}
	}
}

// Nearest returns the closest live dummy within radius of p.
func (w *World) Nearest(p body.Vec, radius float64) (brain.Target, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var found *Dummy
	best := radius
	for _, d := range w.dummies {
		if !d.Alive() {
			continue
		}
		if dist := p.Dist(d.Position()); dist <= best {
			found, best = d, dist
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// Lookup resolves a dummy by ID.
func (w *World) Lookup(id string) (brain.Target, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.dummies {
		if d.ID() == id {
			return d, true
		}
	}
	return nil, false
}

// AnyWithin reports whether a live dummy stands within radius of p.
func (w *World) AnyWithin(p body.Vec, radius float64) bool {
	_, ok := w.Nearest(p, radius)
	return ok
}
