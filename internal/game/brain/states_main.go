package brain

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/fsm"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
)

// composite is embedded by main states that own sub-states.
type composite struct {
	fsm.Composite[*Actor]
	newSelect func() subState
}

func newComposite(a *Actor, sel func() subState) composite {
	return composite{
		Composite: fsm.NewComposite[*Actor](a, a.logger, func() fsm.State[*Actor] { return sel() }),
		newSelect: sel,
	}
}

func (c *composite) comp() *composite { return c }

func (c *composite) enter(a *Actor, first subState) {
	var err error
	if first != nil {
		err = c.ChangeSub(first)
	} else {
		err = c.EnterSub()
	}
	if err != nil {
		a.logger.Warn("sub-state enter aborted", zap.Error(err))
	}
}

func (c *composite) tick(a *Actor) {
	if err := c.TickSub(); err != nil {
		a.logger.Warn("sub-state tick recovered", zap.Error(err))
		c.reset(a)
	}
}

// reset replaces a failed sub-state with the select node.
func (c *composite) reset(a *Actor) {
	if err := c.ResetSub(); err != nil {
		a.logger.Warn("sub-state reset aborted", zap.Error(err))
	}
}

// Init holds a fresh or misconfigured actor.

type initState struct{}

func (*initState) Name() string       { return fsm.MainInit.String() }
func (*initState) Kind() fsm.MainKind { return fsm.MainInit }
func (*initState) comp() *composite   { return nil }
func (*initState) Exit(*Actor)        {}

func (*initState) Enter(a *Actor) {
	if a.configErr != nil {
		return
	}
	a.mover.StopMove()
	a.animator.SetBool("combat", false)
}

func (*initState) Tick(a *Actor) {
	if a.configErr != nil {
		return
	}
	a.changeMain(newNonCombatState(a))
}

// NonCombat idles until a target is found (or, for passive actors, until provoked).

type nonCombatState struct{ composite }

func newNonCombatState(a *Actor) *nonCombatState {
	return &nonCombatState{newComposite(a, func() subState { return &idleSelect{} })}
}

func (*nonCombatState) Name() string       { return fsm.MainNonCombat.String() }
func (*nonCombatState) Kind() fsm.MainKind { return fsm.MainNonCombat }

func (s *nonCombatState) Enter(a *Actor) {
	a.animator.SetBool("combat", false)
	s.enter(a, nil)
}

func (s *nonCombatState) Tick(a *Actor) {
	if a.Has(CapPassive) {
		if a.provoked && a.targetValid() {
			a.changeMain(newCombatState(a))
			return
		}
	} else if a.targetValid() || a.acquire(a.bp.DetectRange) {
		a.changeMain(newCombatState(a))
		return
	}
	s.tick(a)
}

func (s *nonCombatState) Exit(*Actor) { s.ExitSub() }

// Combat selects and runs attack patterns against the target.

type combatState struct{ composite }

func newCombatState(a *Actor) *combatState {
	return &combatState{newComposite(a, func() subState { return &combatSelect{} })}
}

func (*combatState) Name() string       { return fsm.MainCombat.String() }
func (*combatState) Kind() fsm.MainKind { return fsm.MainCombat }

func (s *combatState) Enter(a *Actor) {
	a.provoked = false
	a.animator.SetBool("combat", true)
	if a.arch.RoarOnEngage && a.Has(CapRoars) {
		s.enter(a, &roarState{})
		return
	}
	s.enter(a, nil)
}

func (s *combatState) Tick(a *Actor) {
	if !a.targetValid() {
		a.logger.Debug("target lost")
		a.target = nil
		a.changeMain(newNonCombatState(a))
		return
	}
	if d, _ := a.targetDistance(); d > a.bp.LoseRange {
		a.logger.Debug("target out of range", zap.Float64("distance", d))
		a.target = nil
		a.changeMain(newNonCombatState(a))
		return
	}
	if a.staggered {
		switch cur := s.Sub.Current().(type) {
		case *stunState:
			a.staggered = false
		case *runState:
			if !cur.p.Definition().Uninterruptible {
				s.stagger(a)
				return
			}
		default:
			s.stagger(a)
			return
		}
	}
	s.tick(a)
}

func (s *combatState) stagger(a *Actor) {
	a.staggered = false
	a.logger.Info("staggered")
	if err := s.ChangeSub(&stunState{}); err != nil {
		a.logger.Warn("stun enter aborted", zap.Error(err))
	}
}

func (s *combatState) Exit(a *Actor) {
	s.ExitSub()
	a.animator.SetBool("combat", false)
}

// Destruct plays the part-break reaction, then resumes.

type destructState struct{ composite }

func newDestructState(a *Actor) *destructState {
	return &destructState{newComposite(a, func() subState { return &breakState{} })}
}

func (*destructState) Name() string       { return fsm.MainDestruct.String() }
func (*destructState) Kind() fsm.MainKind { return fsm.MainDestruct }
func (s *destructState) Enter(a *Actor)   { s.enter(a, nil) }
func (s *destructState) Tick(a *Actor)    { s.tick(a) }
func (s *destructState) Exit(*Actor)      { s.ExitSub() }

// Retreat flees from the target, then walks home.

type retreatState struct{ composite }

func newRetreatState(a *Actor) *retreatState {
	return &retreatState{newComposite(a, func() subState { return &fleeState{} })}
}

func (*retreatState) Name() string       { return fsm.MainRetreat.String() }
func (*retreatState) Kind() fsm.MainKind { return fsm.MainRetreat }

func (s *retreatState) Enter(a *Actor) {
	a.logger.Info("retreating", zap.Float64("fraction", a.health.Fraction()))
	s.enter(a, nil)
}

func (s *retreatState) Tick(a *Actor) { s.tick(a) }
func (s *retreatState) Exit(*Actor)   { s.ExitSub() }

// Rest regenerates at home until full or a target appears.

type restState struct{ composite }

func newRestState(a *Actor) *restState {
	return &restState{newComposite(a, func() subState { return &regenState{} })}
}

func (*restState) Name() string       { return fsm.MainRest.String() }
func (*restState) Kind() fsm.MainKind { return fsm.MainRest }

func (s *restState) Enter(a *Actor) {
	a.target = nil
	s.enter(a, nil)
}

func (s *restState) Tick(a *Actor) {
	if a.acquire(a.bp.DetectRange) {
		a.changeMain(newCombatState(a))
		return
	}
	s.tick(a)
}

func (s *restState) Exit(*Actor) { s.ExitSub() }

// Dead is terminal; only Reinitialize leaves it.

type deadState struct{}

func (*deadState) Name() string       { return fsm.MainDead.String() }
func (*deadState) Kind() fsm.MainKind { return fsm.MainDead }
func (*deadState) comp() *composite   { return nil }
func (*deadState) Tick(*Actor)        {}
func (*deadState) Exit(*Actor)        {}

func (*deadState) Enter(a *Actor) {
	a.diedAt = a.now
	a.target = nil
	a.retreatRequested = false
	a.phaseChanged = false
	a.staggered = false
	a.mover.StopMove()
	a.animator.SetBool("dead", true)
	a.animator.SetTrigger("die")
}

// reselect returns the current main state to its state-select sub-state.
func (a *Actor) reselect() {
	if c := a.currentComposite(); c != nil {
		a.changeSub(c.newSelect())
	}
}

func (a *Actor) changeSub(next subState) {
	c := a.currentComposite()
	if c == nil {
		return
	}
	if err := c.ChangeSub(next); err != nil {
		a.logger.Warn("sub-state change aborted", zap.String("to", next.Name()), zap.Error(err))
	}
}

func (a *Actor) currentComposite() *composite {
	if ms, ok := a.main.Current().(mainState); ok {
		return ms.comp()
	}
	return nil
}

// phaseDefs resolves the current phase's candidate patterns.
func (a *Actor) phaseDefs() []*pattern.Definition {
	defs, err := a.bp.Library.Resolve(a.phases.Current().Patterns)
	if err != nil {
		a.logger.Error("phase patterns no longer resolve", zap.Error(err))
		return nil
	}
	return defs
}
