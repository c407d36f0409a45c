package pattern_test

import (
	"time"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
)

type fakeMover struct {
	pos       body.Vec
	dest      *body.Vec
	arrived   bool
	stops     int
	noWalk    bool
	facing    bool
	lastSpeed float64
}

func (m *fakeMover) Position() body.Vec { return m.pos }
func (m *fakeMover) StartMove(d body.Vec, speed float64) {
	m.dest = &d
	m.arrived = false
	m.lastSpeed = speed
}
func (m *fakeMover) StopMove()                  { m.dest = nil; m.stops++ }
func (m *fakeMover) RemainingDistance() float64 { return 0 }
func (m *fakeMover) HasArrived() bool           { return m.arrived }
func (m *fakeMover) SampleWalkableNear(p body.Vec, r float64) (body.Vec, bool) {
	if m.noWalk {
		return body.Vec{}, false
	}
	return p.Add(body.Vec{X: r / 2}), true
}
func (m *fakeMover) TurnToward(body.Vec, float64) bool { return m.facing }
func (m *fakeMover) Teleport(p body.Vec)               { m.pos = p }

type fakeAnimator struct {
	triggers []string
	finished map[string]bool
}

func (a *fakeAnimator) SetTrigger(n string)         { a.triggers = append(a.triggers, n) }
func (a *fakeAnimator) SetBool(string, bool)        {}
func (a *fakeAnimator) SetInt(string, int)          {}
func (a *fakeAnimator) IsTagFinished(t string) bool { return a.finished[t] }

type fakeHitboxes struct {
	active map[string]body.Strike
	events []string
}

func (h *fakeHitboxes) Enable(id string, s body.Strike) {
	if h.active == nil {
		h.active = map[string]body.Strike{}
	}
	h.active[id] = s
	h.events = append(h.events, "on:"+id)
}

func (h *fakeHitboxes) Disable(id string) {
	delete(h.active, id)
	h.events = append(h.events, "off:"+id)
}

// fixedSource returns scripted Float64 values in order, repeating the last one.
type fixedSource struct {
	floats []float64
	i      int
}

func (f *fixedSource) Intn(n int) int { return 0 }
func (f *fixedSource) Float64() float64 {
	if len(f.floats) == 0 {
		return 0
	}
	v := f.floats[f.i]
	if f.i < len(f.floats)-1 {
		f.i++
	}
	return v
}

type fakeCtx struct {
	now      time.Time
	mover    *fakeMover
	anim     *fakeAnimator
	hits     *fakeHitboxes
	src      dice.Source
	target   *body.Vec
	home     body.Vec
	strikeID string
}

func newCtx() *fakeCtx {
	tgt := body.Vec{X: 5}
	return &fakeCtx{
		now:    time.Unix(1000, 0),
		mover:  &fakeMover{},
		anim:   &fakeAnimator{finished: map[string]bool{}},
		hits:   &fakeHitboxes{},
		src:    dice.NewSeededSource(1),
		target: &tgt,
	}
}

func (c *fakeCtx) advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeCtx) Now() time.Time          { return c.now }
func (c *fakeCtx) Self() string            { return "boss-1" }
func (c *fakeCtx) Home() body.Vec          { return c.home }
func (c *fakeCtx) Mover() body.Mover       { return c.mover }
func (c *fakeCtx) Animator() body.Animator { return c.anim }
func (c *fakeCtx) Hitboxes() body.Hitboxes { return c.hits }
func (c *fakeCtx) Rand() dice.Source       { return c.src }
func (c *fakeCtx) SpeedScale() float64     { return 1 }
func (c *fakeCtx) Strike(d *pattern.Definition) body.Strike {
	return body.Strike{Attacker: "boss-1", Pattern: d.ID, Damage: 10}
}
func (c *fakeCtx) Target() (body.Vec, bool) {
	if c.target == nil {
		return body.Vec{}, false
	}
	return *c.target, true
}

type fakeEnv struct {
	dist    float64
	hasTgt  bool
	caps    map[string]bool
	cooling map[string]bool
	hooks   map[string]bool
}

func (e fakeEnv) TargetDistance() (float64, bool) { return e.dist, e.hasTgt }
func (e fakeEnv) HasCapability(n string) bool     { return e.caps[n] }
func (e fakeEnv) CooldownReady(id string) bool    { return !e.cooling[id] }
func (e fakeEnv) CheckPrecondition(h string) bool { return e.hooks[h] }
