package brain

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/fsm"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
)

const (
	selectFallbackWait = time.Second
	combatFallbackWait = 250 * time.Millisecond
	roarTimeout        = 2 * time.Second
	lookTimeout        = 1500 * time.Millisecond
	lookTurnRate       = 0.15
	chaseTimeout       = 10 * time.Second
	chaseRepathDelta   = 1.0
	fleeTimeout        = 4 * time.Second
	returnTimeout      = 30 * time.Second
	homeTolerance      = 0.5
)

// idleSelect picks an idle pattern in NonCombat.
type idleSelect struct{}

func (*idleSelect) Name() string      { return fsm.SubStateSelect.String() }
func (*idleSelect) Kind() fsm.SubKind { return fsm.SubStateSelect }
func (*idleSelect) Tick(*Actor)       {}
func (*idleSelect) Exit(*Actor)       {}

func (*idleSelect) Enter(a *Actor) {
	if a.bp.LeashRange > 0 && a.mover.Position().Dist(a.bp.Home) > a.bp.LeashRange {
		a.changeSub(&returnState{then: (*Actor).reselect})
		return
	}
	def, ok := pattern.Select(a.idle, pattern.DefinitionWeight, a.usable, a.rand)
	if !ok {
		a.changeSub(&waitState{d: selectFallbackWait})
		return
	}
	a.startPattern(def)
}

// combatSelect consumes Combat's flags and picks the next attack.
type combatSelect struct{}

func (*combatSelect) Name() string      { return fsm.SubStateSelect.String() }
func (*combatSelect) Kind() fsm.SubKind { return fsm.SubStateSelect }
func (*combatSelect) Tick(a *Actor)     { a.reselect() }
func (*combatSelect) Exit(*Actor)       {}

func (*combatSelect) Enter(a *Actor) {
	if a.retreatRequested {
		a.retreatRequested = false
		a.changeMain(newRetreatState(a))
		return
	}
	if a.phaseChanged {
		a.phaseChanged = false
		a.changeSub(&roarState{})
		return
	}
	if !a.recoverUntil.IsZero() && a.now.Before(a.recoverUntil) {
		a.changeSub(&waitState{d: a.recoverUntil.Sub(a.now)})
		return
	}

	defs := a.phaseDefs()
	def, ok := pattern.Select(defs, pattern.DefinitionWeight, a.usable, a.rand)
	if ok {
		a.startPattern(def)
		return
	}
	if d, ok := a.targetDistance(); ok && d > a.chaseGoal(defs) {
		a.changeSub(&chaseState{})
		return
	}
	a.changeSub(&waitState{d: combatFallbackWait})
}

// startPattern instantiates def and enters the sub-state that runs it.
func (a *Actor) startPattern(def *pattern.Definition) {
	p, err := a.bp.Library.Instantiate(def.ID)
	if err != nil {
		a.logger.Error("pattern instantiate failed", zap.String("pattern", def.ID), zap.Error(err))
		a.changeSub(&waitState{d: combatFallbackWait})
		return
	}
	if def.IsAttack() && def.MinRange > 0 && a.arch.LookBeforeRanged && a.Has(CapAimTurn) {
		a.changeSub(&lookState{then: p})
		return
	}
	a.changeSub(newRunState(p))
}

// chaseGoal is the distance a chase closes to: the shortest reach among attacks
// the actor is able to use.
func (a *Actor) chaseGoal(defs []*pattern.Definition) float64 {
	goal := 0.0
	for _, d := range defs {
		if !d.IsAttack() || d.MaxRange <= 0 {
			continue
		}
		usable := true
		for _, req := range d.Requires {
			if !a.caps.Has(Capability(req)) {
				usable = false
				break
			}
		}
		if usable && (goal == 0 || d.MaxRange < goal) {
			goal = d.MaxRange
		}
	}
	if goal == 0 {
		return a.bp.DetectRange / 4
	}
	return goal * 0.9
}

func subKindFor(def *pattern.Definition) fsm.SubKind {
	switch def.Kind {
	case "wander":
		return fsm.SubWander
	case "look_around":
		return fsm.SubLook
	case "wait":
		return fsm.SubWait
	case "roar":
		return fsm.SubRoar
	}
	if def.IsAttack() {
		return fsm.SubAttack
	}
	return fsm.SubIdle
}

// runState owns one pattern instance from Execute to completion.
//
// Exit releases every damage volume the instance enabled and stops movement.
type runState struct {
	kind   fsm.SubKind
	p      pattern.Pattern
	ctx    *patternCtx
	failed bool
}

func newRunState(p pattern.Pattern) *runState {
	return &runState{kind: subKindFor(p.Definition()), p: p}
}

func (s *runState) Name() string      { return s.kind.String() + ":" + s.p.Definition().ID }
func (s *runState) Kind() fsm.SubKind { return s.kind }

func (s *runState) Enter(a *Actor) {
	s.ctx = &patternCtx{a: a, vols: newVolumes(a.hitboxes)}
	def := s.p.Definition()
	if def.IsAttack() {
		a.cooldowns.Start(def, a.now)
	}
	if err := s.p.Execute(s.ctx); err != nil {
		a.logger.Warn("pattern execute failed", zap.String("pattern", def.ID), zap.Error(err))
		s.failed = true
	}
}

func (s *runState) Tick(a *Actor) {
	if s.failed {
		a.reselect()
		return
	}
	def := s.p.Definition()
	if s.outOfRange(a, def) {
		a.logger.Debug("target left pattern range", zap.String("pattern", def.ID))
		a.changeSub(&chaseState{})
		return
	}
	if !s.p.IsFinished(s.ctx) {
		return
	}
	if next, ok := s.p.Next(s.ctx); ok {
		a.logger.Debug("pattern chained", zap.String("from", def.ID), zap.String("to", next.Definition().ID))
		a.changeSub(newRunState(next))
		return
	}
	if def.IsAttack() && a.arch.Recovery > 0 {
		a.recoverUntil = a.now.Add(a.arch.Recovery)
	}
	a.reselect()
}

func (s *runState) Exit(a *Actor) {
	if s.ctx != nil {
		s.ctx.vols.release()
	}
	a.mover.StopMove()
	s.ctx = nil
}

// outOfRange reports whether a ranged attack must be abandoned this tick. The
// band is checked until the pattern finishes. MinRange stops applying once the
// pattern itself has moved the actor onto the target.
func (s *runState) outOfRange(a *Actor, def *pattern.Definition) bool {
	if !def.IsAttack() || !def.Ranged() || def.Uninterruptible {
		return false
	}
	d, ok := a.targetDistance()
	if !ok {
		return true
	}
	if def.MaxRange > 0 && d > def.MaxRange {
		return true
	}
	return d < def.MinRange && !closingDistance(s.p)
}

func closingDistance(p pattern.Pattern) bool {
	c, ok := p.(interface{ ClosingDistance() bool })
	return ok && c.ClosingDistance()
}

// lookState turns to face the target before a ranged pattern.
type lookState struct {
	then    pattern.Pattern
	started time.Time
}

func (*lookState) Name() string      { return fsm.SubLook.String() }
func (*lookState) Kind() fsm.SubKind { return fsm.SubLook }

func (s *lookState) Enter(a *Actor) {
	s.started = a.now
	a.mover.StopMove()
	a.animator.SetBool("turning", true)
}

func (s *lookState) Tick(a *Actor) {
	if !a.targetValid() {
		a.reselect()
		return
	}
	if a.mover.TurnToward(a.target.Position(), lookTurnRate) || a.now.Sub(s.started) >= lookTimeout {
		a.changeSub(newRunState(s.then))
	}
}

func (s *lookState) Exit(a *Actor) { a.animator.SetBool("turning", false) }

// chaseState closes distance to the target.
type chaseState struct {
	started time.Time
	dest    body.Vec
	moving  bool
}

func (*chaseState) Name() string      { return fsm.SubChase.String() }
func (*chaseState) Kind() fsm.SubKind { return fsm.SubChase }

func (s *chaseState) Enter(a *Actor) {
	s.started = a.now
	a.animator.SetBool("run", true)
	s.repath(a)
}

func (s *chaseState) Tick(a *Actor) {
	d, ok := a.targetDistance()
	if !ok || d <= a.chaseGoal(a.phaseDefs()) || a.now.Sub(s.started) >= chaseTimeout {
		a.reselect()
		return
	}
	if !s.moving || a.target.Position().Dist(s.dest) > chaseRepathDelta {
		s.repath(a)
	}
}

// repath moves toward a walkable point beside the target. Without one the
// actor holds position and retries next tick.
func (s *chaseState) repath(a *Actor) {
	if !a.targetValid() {
		return
	}
	dest, ok := a.mover.SampleWalkableNear(a.target.Position(), 1)
	if !ok {
		a.mover.StopMove()
		s.moving = false
		return
	}
	s.dest = dest
	s.moving = true
	a.mover.StartMove(dest, a.bp.RunSpeed*a.arch.ChaseSpeedScale*a.speedScale)
}

func (s *chaseState) Exit(a *Actor) {
	a.mover.StopMove()
	a.animator.SetBool("run", false)
}

// roarState plays the engage or phase announcement roar.
type roarState struct{ started time.Time }

func (*roarState) Name() string      { return fsm.SubRoar.String() }
func (*roarState) Kind() fsm.SubKind { return fsm.SubRoar }
func (*roarState) Exit(*Actor)       {}

func (s *roarState) Enter(a *Actor) {
	s.started = a.now
	a.mover.StopMove()
	a.animator.SetTrigger("roar")
}

func (s *roarState) Tick(a *Actor) {
	if a.animator.IsTagFinished("roar") || a.now.Sub(s.started) >= roarTimeout {
		a.reselect()
	}
}

// stunState holds the actor after a stagger.
type stunState struct{ started time.Time }

func (*stunState) Name() string      { return fsm.SubStun.String() }
func (*stunState) Kind() fsm.SubKind { return fsm.SubStun }

func (s *stunState) Enter(a *Actor) {
	s.started = a.now
	a.mover.StopMove()
	a.animator.SetTrigger("stun")
	a.animator.SetBool("stunned", true)
}

func (s *stunState) Tick(a *Actor) {
	if a.now.Sub(s.started) >= a.bp.StunDuration {
		a.reselect()
	}
}

func (s *stunState) Exit(a *Actor) { a.animator.SetBool("stunned", false) }

// waitState idles for a fixed duration, then reselects.
type waitState struct {
	d       time.Duration
	started time.Time
}

func (*waitState) Name() string      { return fsm.SubWait.String() }
func (*waitState) Kind() fsm.SubKind { return fsm.SubWait }
func (s *waitState) Enter(a *Actor)  { s.started = a.now }
func (*waitState) Exit(*Actor)       {}

func (s *waitState) Tick(a *Actor) {
	if a.now.Sub(s.started) >= s.d {
		a.reselect()
	}
}

// breakState plays the part-break reaction inside Destruct.
type breakState struct{ started time.Time }

func (*breakState) Name() string      { return fsm.SubBreak.String() }
func (*breakState) Kind() fsm.SubKind { return fsm.SubBreak }
func (*breakState) Exit(*Actor)       {}

func (s *breakState) Enter(a *Actor) {
	s.started = a.now
	a.mover.StopMove()
	a.animator.SetTrigger("part_break")
}

func (s *breakState) Tick(a *Actor) {
	if !a.animator.IsTagFinished("part_break") && a.now.Sub(s.started) < a.arch.BreakDuration {
		return
	}
	if a.targetValid() {
		a.changeMain(newCombatState(a))
		return
	}
	a.changeMain(newNonCombatState(a))
}

// fleeState runs away from the target inside Retreat.
type fleeState struct{ started time.Time }

func (*fleeState) Name() string      { return fsm.SubFlee.String() }
func (*fleeState) Kind() fsm.SubKind { return fsm.SubFlee }

func (s *fleeState) Enter(a *Actor) {
	s.started = a.now
	if !a.targetValid() {
		a.changeSub(&returnState{then: goRest})
		return
	}
	here := a.mover.Position()
	away := here.Add(here.Sub(a.target.Position()).Norm().Scale(a.arch.FleeDistance))
	dest, ok := a.mover.SampleWalkableNear(away, 2)
	if !ok {
		a.changeSub(&returnState{then: goRest})
		return
	}
	a.animator.SetBool("run", true)
	a.mover.StartMove(dest, a.bp.RunSpeed*a.speedScale)
}

func (s *fleeState) Tick(a *Actor) {
	if a.mover.HasArrived() || a.now.Sub(s.started) >= fleeTimeout {
		a.changeSub(&returnState{then: goRest})
	}
}

func (s *fleeState) Exit(a *Actor) {
	a.mover.StopMove()
	a.animator.SetBool("run", false)
}

func goRest(a *Actor) { a.changeMain(newRestState(a)) }

// returnState walks home, then runs then.
type returnState struct {
	then    func(*Actor)
	started time.Time
}

func (*returnState) Name() string      { return fsm.SubReturn.String() }
func (*returnState) Kind() fsm.SubKind { return fsm.SubReturn }

func (s *returnState) Enter(a *Actor) {
	s.started = a.now
	a.mover.StartMove(a.bp.Home, a.bp.WalkSpeed*a.speedScale)
}

func (s *returnState) Tick(a *Actor) {
	home := a.mover.Position().Dist(a.bp.Home) <= homeTolerance
	if home || a.mover.HasArrived() || a.now.Sub(s.started) >= returnTimeout {
		s.then(a)
	}
}

func (s *returnState) Exit(a *Actor) { a.mover.StopMove() }

// regenState heals at the configured rate inside Rest.
type regenState struct{ last time.Time }

func (*regenState) Name() string      { return fsm.SubRegen.String() }
func (*regenState) Kind() fsm.SubKind { return fsm.SubRegen }

func (s *regenState) Enter(a *Actor) {
	s.last = a.now
	a.animator.SetBool("rest", true)
}

func (s *regenState) Tick(a *Actor) {
	dt := a.now.Sub(s.last)
	s.last = a.now
	if dt > 0 && a.bp.RestRegenPerSec > 0 {
		a.health.Heal(a.bp.RestRegenPerSec * dt.Seconds())
	}
	if a.bp.RestRegenPerSec <= 0 || a.health.Current() >= a.health.Max() {
		a.changeMain(newNonCombatState(a))
	}
}

func (s *regenState) Exit(a *Actor) { a.animator.SetBool("rest", false) }
