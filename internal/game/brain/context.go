package brain

import (
	"time"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
)

// volumes records every damage volume a sub-state enabled so its Exit can disable them.
type volumes struct {
	inner  body.Hitboxes
	active map[string]struct{}
}

func newVolumes(inner body.Hitboxes) *volumes {
	return &volumes{inner: inner, active: make(map[string]struct{})}
}

func (v *volumes) Enable(id string, s body.Strike) {
	v.active[id] = struct{}{}
	v.inner.Enable(id, s)
}

func (v *volumes) Disable(id string) {
	delete(v.active, id)
	v.inner.Disable(id)
}

// release disables every volume still enabled.
func (v *volumes) release() {
	for id := range v.active {
		v.inner.Disable(id)
	}
	clear(v.active)
}

// patternCtx is the pattern.Context handed to one pattern instance.
type patternCtx struct {
	a    *Actor
	vols *volumes
}

var _ pattern.Context = (*patternCtx)(nil)

func (c *patternCtx) Now() time.Time          { return c.a.now }
func (c *patternCtx) Self() string            { return c.a.id }
func (c *patternCtx) Home() body.Vec          { return c.a.bp.Home }
func (c *patternCtx) Mover() body.Mover       { return c.a.mover }
func (c *patternCtx) Animator() body.Animator { return c.a.animator }
func (c *patternCtx) Hitboxes() body.Hitboxes { return c.vols }
func (c *patternCtx) Rand() dice.Source       { return c.a.rand }
func (c *patternCtx) SpeedScale() float64     { return c.a.speedScale }

func (c *patternCtx) Target() (body.Vec, bool) {
	if !c.a.targetValid() {
		return body.Vec{}, false
	}
	return c.a.target.Position(), true
}

func (c *patternCtx) Strike(def *pattern.Definition) body.Strike {
	return c.a.bp.Library.Strike(def, c.a.roller, c.a.id)
}

// actorEnv adapts an Actor to pattern.Env.
type actorEnv struct{ a *Actor }

var _ pattern.Env = actorEnv{}

func (e actorEnv) TargetDistance() (float64, bool) { return e.a.targetDistance() }

func (e actorEnv) HasCapability(name string) bool { return e.a.caps.Has(Capability(name)) }

func (e actorEnv) CooldownReady(id string) bool { return e.a.cooldowns.Ready(id, e.a.now) }

func (e actorEnv) CheckPrecondition(hook string) bool { return e.a.gate.Check(hook, e.a.id) }

func (a *Actor) usable(d *pattern.Definition) bool { return d.Usable(actorEnv{a}) }
