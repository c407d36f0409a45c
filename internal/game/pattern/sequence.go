package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/bossai/internal/game/dice"
)

const defaultTurnRate = 0.2

// Sequence executes a step table, advancing at most one step per IsFinished call.
type Sequence struct {
	def   *Definition
	lib   *Library
	steps []Step

	executed bool
	aborted  bool
	closing  bool
	index    int
	started  time.Time
}

// NewSequence builds an instance over steps. lib resolves chained patterns and may be nil.
func NewSequence(def *Definition, lib *Library, steps []Step) *Sequence {
	return &Sequence{def: def, lib: lib, steps: steps}
}

// Definition returns the shared definition.
func (s *Sequence) Definition() *Definition { return s.def }

// Index returns the current step index; it equals the step count once finished.
func (s *Sequence) Index() int { return s.index }

// ClosingDistance reports whether a begun step moved the actor onto or through
// the target, so the gap under MinRange is the pattern's own doing.
func (s *Sequence) ClosingDistance() bool { return s.closing }

// Aborted reports whether a step could not issue its movement command.
func (s *Sequence) Aborted() bool { return s.aborted }

// Execute begins the first step.
//
// Precondition: Execute has not been called on this instance.
func (s *Sequence) Execute(ctx Context) error {
	if s.executed {
		return fmt.Errorf("pattern.Sequence.Execute(%s): instance already executed", s.def.ID)
	}
	s.executed = true
	if len(s.steps) == 0 {
		return nil
	}
	s.begin(ctx)
	return nil
}

// IsFinished checks the current step's condition and, when it holds, begins the next step.
func (s *Sequence) IsFinished(ctx Context) bool {
	if !s.executed {
		return false
	}
	if s.aborted || s.index >= len(s.steps) {
		return true
	}
	if !s.stepDone(ctx) {
		return false
	}
	s.index++
	if s.index >= len(s.steps) {
		return true
	}
	s.begin(ctx)
	return s.aborted
}

// Next walks the chain links in order and returns the first that passes its range and chance rolls.
func (s *Sequence) Next(ctx Context) (Pattern, bool) {
	if s.aborted || s.lib == nil {
		return nil, false
	}
	for _, link := range s.def.Chain {
		if link.MaxRange > 0 {
			pos, ok := ctx.Target()
			if !ok || ctx.Mover().Position().Dist(pos) > link.MaxRange {
				continue
			}
		}
		if !dice.Chance(ctx.Rand(), link.Chance) {
			continue
		}
		next, err := s.lib.Instantiate(link.Pattern)
		if err != nil {
			continue
		}
		return next, true
	}
	return nil, false
}

func (s *Sequence) begin(ctx Context) {
	st := s.steps[s.index]
	s.started = ctx.Now()

	if st.Trigger != "" {
		ctx.Animator().SetTrigger(st.Trigger)
	}
	volume := st.Volume
	if volume == "" {
		volume = s.def.HitboxID()
	}
	switch st.Hitbox {
	case HitboxOn:
		ctx.Hitboxes().Enable(volume, ctx.Strike(s.def))
	case HitboxOff:
		ctx.Hitboxes().Disable(volume)
	}
	if err := s.move(ctx, st); err != nil {
		ctx.Mover().StopMove()
		s.aborted = true
	}
}

var errNoDestination = errors.New("no destination")

func (s *Sequence) move(ctx Context, st Step) error {
	if st.Move == "" {
		return nil
	}
	mv := ctx.Mover()
	if st.Move == MoveStop {
		mv.StopMove()
		return nil
	}

	speed := st.Speed
	if speed == 0 {
		speed = s.def.Speed
	}
	speed *= ctx.SpeedScale()
	here := mv.Position()

	switch st.Move {
	case MoveHome:
		mv.StartMove(ctx.Home(), speed)
		return nil
	case MoveWander:
		radius := st.Radius
		if radius == 0 {
			radius = s.def.Radius
		}
		dest, ok := mv.SampleWalkableNear(ctx.Home(), radius)
		if !ok {
			return errNoDestination
		}
		mv.StartMove(dest, speed)
		return nil
	}

	target, ok := ctx.Target()
	if !ok {
		return errNoDestination
	}
	switch st.Move {
	case MoveTarget:
		mv.StartMove(target, speed)
		s.closing = true
	case MoveThrough:
		dir := target.Sub(here)
		dest := here.Add(dir.Norm().Scale(dir.Len() + st.Radius))
		mv.StartMove(dest, speed)
		s.closing = true
	case MoveAway:
		away := here.Add(here.Sub(target).Norm().Scale(st.Radius))
		dest, ok := mv.SampleWalkableNear(away, st.Radius/2)
		if !ok {
			return errNoDestination
		}
		mv.StartMove(dest, speed)
	}
	return nil
}

func (s *Sequence) stepDone(ctx Context) bool {
	st := s.steps[s.index]
	elapsed := ctx.Now().Sub(s.started)
	timedOut := st.Duration > 0 && elapsed >= st.Duration

	switch st.Until {
	case UntilAnim:
		return ctx.Animator().IsTagFinished(st.Tag) || timedOut
	case UntilArrived:
		return ctx.Mover().HasArrived() || timedOut
	case UntilFacing:
		target, ok := ctx.Target()
		if !ok {
			return true
		}
		rate := st.TurnRate
		if rate == 0 {
			rate = defaultTurnRate
		}
		return ctx.Mover().TurnToward(target, rate) || timedOut
	default:
		return elapsed >= st.Duration
	}
}
