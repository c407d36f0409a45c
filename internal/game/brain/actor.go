// Package brain drives boss and monster behavior: a two-level state hierarchy
// of main states and sub-states, health-driven interrupts, phase escalation,
// and the attack pattern lifecycle.
package brain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/game/fsm"
	"github.com/cory-johannsen/bossai/internal/game/health"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
	"github.com/cory-johannsen/bossai/internal/game/phase"
	"github.com/cory-johannsen/bossai/internal/observability"
)

// ErrMisconfigured marks an actor whose blueprint cannot drive a state machine.
var ErrMisconfigured = errors.New("brain: actor misconfigured")

// Target is anything an actor can fight.
type Target interface {
	ID() string
	Position() body.Vec
	Alive() bool
}

// Perception finds targets for an actor.
type Perception interface {
	// Nearest returns the closest live target within radius of p.
	Nearest(p body.Vec, radius float64) (Target, bool)
	// Lookup resolves an attacker ID from a DamageInfo.
	Lookup(id string) (Target, bool)
}

// Blueprint is the per-creature configuration an Actor is built from.
type Blueprint struct {
	CreatureID string
	Archetype  string
	MaxHP      float64
	// RetreatFraction is the health fraction below which the actor may disengage.
	RetreatFraction float64
	// DetectRange acquires targets; LoseRange drops them (defaults to 1.5x DetectRange).
	DetectRange float64
	LoseRange   float64
	// LeashRange sends a non-combat actor home when it strays this far; 0 disables.
	LeashRange   float64
	WalkSpeed    float64
	RunSpeed     float64
	Capabilities []Capability
	// PartDurability is the part damage that triggers Destruct for destructible actors.
	PartDurability  float64
	RestRegenPerSec float64
	StunDuration    time.Duration
	Home            body.Vec
	Phases          []phase.Phase
	// IdlePatterns are offered in NonCombat.
	IdlePatterns []string
	Library      *pattern.Library
}

// Deps are the collaborators an Actor drives.
type Deps struct {
	Mover      body.Mover
	Animator   body.Animator
	Hitboxes   body.Hitboxes
	Perception Perception
	Rand       dice.Source
	// Scripts evaluates pattern preconditions; nil fails every scripted precondition.
	Scripts pattern.ScriptCaller
	Logger  *zap.Logger
}

// Status is a read-only snapshot of an actor.
type Status struct {
	ID         string
	CreatureID string
	Encounter  uuid.UUID
	Main       fsm.MainKind
	Sub        fsm.SubKind
	HasSub     bool
	Health     float64
	MaxHealth  float64
	Phase      int
	Target     string
	Dead       bool
	DiedAt     time.Time
	Inert      bool
}

type mainState interface {
	fsm.State[*Actor]
	Kind() fsm.MainKind
	comp() *composite
}

type subState interface {
	fsm.State[*Actor]
	Kind() fsm.SubKind
}

// Actor is one boss or monster instance.
//
// Tick, Start, Reinitialize and Despawn must be called from the frame loop goroutine.
// ReceiveDamage is safe from any goroutine.
type Actor struct {
	id   string
	bp   Blueprint
	arch Archetype
	caps Capabilities

	logger     *zap.Logger
	baseLogger *zap.Logger
	encounter  uuid.UUID

	main      *fsm.Machine[*Actor]
	health    *health.Health
	table     *phase.Table
	phases    *phase.Tracker
	cooldowns *pattern.Cooldowns
	gate      *pattern.ScriptGate
	roller    *dice.Roller
	idle      []*pattern.Definition

	mover      body.Mover
	animator   body.Animator
	hitboxes   body.Hitboxes
	perception Perception
	rand       dice.Source

	now        time.Time
	target     Target
	speedScale float64

	mu      sync.Mutex
	pending []health.DamageInfo

	retreatRequested bool
	phaseChanged     bool
	staggered        bool
	provoked         bool
	partDamage       float64
	partBroken       bool

	recoverUntil time.Time
	diedAt       time.Time
	configErr    error
	despawned    bool
}

// NewActor builds an actor from bp.
//
// Postcondition: on a configuration error the returned actor is non-nil and inert:
// it stays in Init forever, and the error wraps ErrMisconfigured.
func NewActor(id string, bp Blueprint, deps Deps) (*Actor, error) {
	base := deps.Logger
	if base == nil {
		base = zap.NewNop()
	}
	a := &Actor{
		id:         id,
		bp:         bp,
		baseLogger: base,
		cooldowns:  pattern.NewCooldowns(),
		mover:      deps.Mover,
		animator:   deps.Animator,
		hitboxes:   deps.Hitboxes,
		perception: deps.Perception,
		rand:       deps.Rand,
		speedScale: 1,
		encounter:  uuid.New(),
		gate:       pattern.NewScriptGate(deps.Scripts, bp.CreatureID),
	}
	a.logger = observability.ActorLogger(base, id, bp.CreatureID, a.encounter.String())
	a.main = fsm.NewMachine[*Actor]("main", a, a.logger)
	if a.rand == nil {
		a.rand = dice.NewCryptoSource()
	}
	a.roller = dice.NewLoggedRoller(a.rand, a.logger)

	if err := a.configure(deps); err != nil {
		a.configErr = fmt.Errorf("brain.NewActor(%s): %w: %w", id, ErrMisconfigured, err)
		if a.health == nil {
			a.health, _ = health.New(1, 0)
		}
		a.logger.Error("actor misconfigured; leaving inert", zap.Error(err))
		_ = a.main.Change(&initState{})
		return a, a.configErr
	}
	return a, nil
}

func (a *Actor) configure(deps Deps) error {
	if deps.Mover == nil || deps.Animator == nil || deps.Hitboxes == nil || deps.Perception == nil {
		return errors.New("mover, animator, hitboxes and perception are required")
	}
	arch, err := LookupArchetype(a.bp.Archetype)
	if err != nil {
		return err
	}
	a.arch = arch
	a.caps = NewCapabilities(arch.Defaults...).Union(a.bp.Capabilities...)

	h, err := health.New(a.bp.MaxHP, a.bp.RetreatFraction)
	if err != nil {
		return err
	}
	a.health = h

	if a.bp.Library == nil {
		return errors.New("no pattern library assigned")
	}
	table, err := phase.NewTable(a.bp.Phases)
	if err != nil {
		return err
	}
	a.table = table
	attacks := 0
	for i := 0; i < table.Len(); i++ {
		defs, err := a.bp.Library.Resolve(table.At(i).Patterns)
		if err != nil {
			return fmt.Errorf("phase %d: %w", i, err)
		}
		for _, d := range defs {
			if d.IsAttack() {
				attacks++
			}
		}
	}
	if attacks == 0 {
		return errors.New("no attack patterns assigned")
	}
	idle, err := a.bp.Library.Resolve(a.bp.IdlePatterns)
	if err != nil {
		return fmt.Errorf("idle patterns: %w", err)
	}
	a.idle = idle
	a.phases = phase.NewTracker(table)

	if a.bp.DetectRange <= 0 {
		return errors.New("detect range must be > 0")
	}
	if a.bp.LoseRange <= 0 {
		a.bp.LoseRange = a.bp.DetectRange * 1.5
	}
	if a.bp.LoseRange < a.bp.DetectRange {
		return errors.New("lose range must not be below detect range")
	}
	if a.bp.WalkSpeed <= 0 || a.bp.RunSpeed <= 0 {
		return errors.New("walk and run speeds must be > 0")
	}
	if a.caps.Has(CapDestructible) && a.bp.PartDurability <= 0 {
		return errors.New("destructible actors need a part durability")
	}
	if a.bp.StunDuration <= 0 {
		a.bp.StunDuration = time.Second
	}
	return nil
}

// ID returns the instance ID.
func (a *Actor) ID() string { return a.id }

// CreatureID returns the blueprint's creature ID.
func (a *Actor) CreatureID() string { return a.bp.CreatureID }

// Err returns the configuration error, if any.
func (a *Actor) Err() error { return a.configErr }

// Inert reports whether the actor is misconfigured and will never leave Init.
func (a *Actor) Inert() bool { return a.configErr != nil }

// Encounter returns the ID of the current life.
func (a *Actor) Encounter() uuid.UUID { return a.encounter }

// Has reports whether the actor has capability c.
func (a *Actor) Has(c Capability) bool { return a.caps.Has(c) }

// Capabilities returns the actor's effective capability set.
func (a *Actor) Capabilities() Capabilities { return a.caps }

// Start enters Init; the first Tick moves a configured actor to NonCombat.
func (a *Actor) Start(now time.Time) error {
	if a.configErr != nil {
		return a.configErr
	}
	a.now = now
	a.applyEntry(a.phases.Current().Entry, 0)
	return a.main.Change(&initState{})
}

// ReceiveDamage buffers info; it is applied at the start of the next Tick.
func (a *Actor) ReceiveDamage(info health.DamageInfo) {
	a.mu.Lock()
	a.pending = append(a.pending, info)
	a.mu.Unlock()
}

// Tick advances the actor by one frame.
//
// Postcondition: never panics; runtime failures are logged and recovered.
func (a *Actor) Tick(now time.Time) {
	if a.configErr != nil || a.despawned || a.main.Current() == nil {
		return
	}
	a.now = now
	a.drainDamage()
	if err := a.main.Tick(); err != nil {
		a.logger.Warn("tick recovered", zap.Error(err))
		a.resetSubState()
	}
}

// Reinitialize prepares a new life at home: full health, phase 0, Init.
func (a *Actor) Reinitialize(now time.Time) error {
	if a.configErr != nil {
		return a.configErr
	}
	a.now = now
	a.main.Clear()

	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()

	a.health.Reset()
	a.phases.Reset()
	a.cooldowns.Reset()
	a.speedScale = 1
	a.target = nil
	a.retreatRequested = false
	a.phaseChanged = false
	a.staggered = false
	a.provoked = false
	a.partDamage = 0
	a.partBroken = false
	a.diedAt = time.Time{}
	a.recoverUntil = time.Time{}
	a.despawned = false
	a.encounter = uuid.New()
	a.logger = observability.ActorLogger(a.baseLogger, a.id, a.bp.CreatureID, a.encounter.String())

	a.mover.StopMove()
	a.mover.Teleport(a.bp.Home)
	a.animator.SetBool("dead", false)
	a.animator.SetTrigger("respawn")
	a.applyEntry(a.phases.Current().Entry, 0)
	a.logger.Info("actor reinitialized")
	return a.main.Change(&initState{})
}

// Despawn exits the current state and stops ticking until Reinitialize.
func (a *Actor) Despawn() {
	a.main.Clear()
	if a.mover != nil {
		a.mover.StopMove()
	}
	a.despawned = true
	a.logger.Info("actor despawned")
}

// Despawned reports whether Despawn ran since the last Reinitialize.
func (a *Actor) Despawned() bool { return a.despawned }

// Dead reports whether the actor died in this life.
func (a *Actor) Dead() bool { return a.health.Dead() }

// DiedAt returns the time of death, or the zero time.
func (a *Actor) DiedAt() time.Time { return a.diedAt }

// Position returns the mover's position.
func (a *Actor) Position() body.Vec { return a.mover.Position() }

// Home returns the spawn point.
func (a *Actor) Home() body.Vec { return a.bp.Home }

// HealthFraction returns current health over max.
func (a *Actor) HealthFraction() float64 { return a.health.Fraction() }

// PhaseIndex returns the current phase index.
func (a *Actor) PhaseIndex() int {
	if a.phases == nil {
		return 0
	}
	return a.phases.Index()
}

// MainKind returns the current main state's kind.
func (a *Actor) MainKind() fsm.MainKind {
	if s, ok := a.main.Current().(mainState); ok {
		return s.Kind()
	}
	return fsm.MainInit
}

// SubKind returns the current sub-state's kind, or false when the main state has none.
func (a *Actor) SubKind() (fsm.SubKind, bool) {
	c := a.currentComposite()
	if c == nil {
		return 0, false
	}
	s, ok := c.Sub.Current().(subState)
	if !ok {
		return 0, false
	}
	return s.Kind(), true
}

// Status returns a snapshot.
func (a *Actor) Status() Status {
	st := Status{
		ID:         a.id,
		CreatureID: a.bp.CreatureID,
		Encounter:  a.encounter,
		Main:       a.MainKind(),
		Health:     a.health.Current(),
		MaxHealth:  a.health.Max(),
		Phase:      a.PhaseIndex(),
		Dead:       a.health.Dead(),
		DiedAt:     a.diedAt,
		Inert:      a.configErr != nil,
	}
	st.Sub, st.HasSub = a.SubKind()
	if a.target != nil {
		st.Target = a.target.ID()
	}
	return st
}

// Restore applies persisted health and phase without raising events.
// Entry settings of every phase up to the restored one are applied in order,
// as if the actor had advanced through them.
func (a *Actor) Restore(current float64, phaseIndex int) {
	if a.configErr != nil {
		return
	}
	a.health.Restore(current)
	a.phases.Restore(phaseIndex)
	for i, p := range a.phases.Reached() {
		if i > 0 {
			a.applyEntry(p.Entry, i)
		}
	}
}

func (a *Actor) changeMain(next mainState) {
	if err := a.main.Change(next); err != nil {
		a.logger.Warn("main state change aborted", zap.String("to", next.Name()), zap.Error(err))
	}
}

// forceMain transitions to kind unless it is already current or the actor is dead.
func (a *Actor) forceMain(kind fsm.MainKind) {
	cur := a.MainKind()
	if cur == kind || cur == fsm.MainDead {
		return
	}
	a.changeMain(a.newMain(kind))
}

func (a *Actor) newMain(kind fsm.MainKind) mainState {
	switch kind {
	case fsm.MainNonCombat:
		return newNonCombatState(a)
	case fsm.MainCombat:
		return newCombatState(a)
	case fsm.MainDestruct:
		return newDestructState(a)
	case fsm.MainRetreat:
		return newRetreatState(a)
	case fsm.MainRest:
		return newRestState(a)
	case fsm.MainDead:
		return &deadState{}
	default:
		return &initState{}
	}
}

func (a *Actor) resetSubState() {
	if c := a.currentComposite(); c != nil {
		c.reset(a)
	}
}

func (a *Actor) applyEntry(e phase.EntryConfig, index int) {
	if e.CooldownScale > 0 {
		a.cooldowns.SetScale(e.CooldownScale)
	}
	if e.SpecialCooldown > 0 {
		a.cooldowns.SetSpecial(e.SpecialCooldown)
	}
	if e.SpeedScale > 0 {
		a.speedScale = e.SpeedScale
	}
	if e.Animation != "" && a.animator != nil {
		a.animator.SetInt(e.Animation, index)
	}
}

// targetValid reports whether the current target can still be fought.
func (a *Actor) targetValid() bool {
	return a.target != nil && a.target.Alive()
}

// TargetDistance returns the distance to a live target, or false when there is none.
func (a *Actor) TargetDistance() (float64, bool) { return a.targetDistance() }

func (a *Actor) targetDistance() (float64, bool) {
	if !a.targetValid() {
		return 0, false
	}
	return a.mover.Position().Dist(a.target.Position()), true
}

func (a *Actor) acquire(radius float64) bool {
	t, ok := a.perception.Nearest(a.mover.Position(), radius)
	if !ok {
		return false
	}
	a.target = t
	return true
}
