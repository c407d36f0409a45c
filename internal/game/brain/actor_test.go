package brain_test

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/brain"
	"github.com/cory-johannsen/bossai/internal/game/fsm"
	"github.com/cory-johannsen/bossai/internal/game/health"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
	"github.com/cory-johannsen/bossai/internal/game/phase"
)

func TestNewActor_MisconfiguredStaysInert(t *testing.T) {
	bp := standardBlueprint(t, "brute", standardPatterns(), nil)
	bp.Phases = nil
	j := &journal{}
	a, err := brain.NewActor("boss-x", bp, brain.Deps{
		Mover:      &teleportMover{},
		Animator:   &fakeAnimator{j: j},
		Hitboxes:   &fakeHitboxes{j: j, active: map[string]bool{}},
		Perception: &fakePerception{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, brain.ErrMisconfigured))
	require.NotNil(t, a)
	assert.True(t, a.Inert())
	assert.Error(t, a.Start(time.Now()))

	now := time.Now()
	for i := 0; i < 20; i++ {
		now = now.Add(100 * time.Millisecond)
		a.Tick(now)
	}
	assert.Equal(t, fsm.MainInit, a.MainKind())
	assert.True(t, a.Status().Inert)
}

func TestNewActor_ConfigurationErrors(t *testing.T) {
	cases := map[string]func(bp *brain.Blueprint){
		"no library":        func(bp *brain.Blueprint) { bp.Library = nil },
		"unknown archetype": func(bp *brain.Blueprint) { bp.Archetype = "dragonlord" },
		"no attacks": func(bp *brain.Blueprint) {
			bp.Phases = []phase.Phase{{Breakpoint: 1, Patterns: []string{"idle_wait"}}}
		},
		"unknown phase pattern": func(bp *brain.Blueprint) {
			bp.Phases = []phase.Phase{{Breakpoint: 1, Patterns: []string{"swipe", "ghost"}}}
		},
		"unknown idle pattern": func(bp *brain.Blueprint) { bp.IdlePatterns = []string{"ghost"} },
		"zero health":          func(bp *brain.Blueprint) { bp.MaxHP = 0 },
		"zero detect":          func(bp *brain.Blueprint) { bp.DetectRange = 0 },
		"zero speed":           func(bp *brain.Blueprint) { bp.RunSpeed = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bp := standardBlueprint(t, "brute", standardPatterns(), nil)
			mutate(&bp)
			j := &journal{}
			a, err := brain.NewActor("boss", bp, brain.Deps{
				Mover:      &teleportMover{},
				Animator:   &fakeAnimator{j: j},
				Hitboxes:   &fakeHitboxes{j: j, active: map[string]bool{}},
				Perception: &fakePerception{},
			})
			assert.True(t, errors.Is(err, brain.ErrMisconfigured))
			assert.True(t, a.Inert())
		})
	}
}

func TestActor_IdleThenEngage(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 40})
	assert.Equal(t, fsm.MainInit, r.actor.MainKind())
	r.tick()
	assert.Equal(t, fsm.MainNonCombat, r.actor.MainKind())
	_, hasSub := r.actor.SubKind()
	assert.True(t, hasSub)

	for i := 0; i < 10; i++ {
		r.tick()
		assert.Equal(t, fsm.MainNonCombat, r.actor.MainKind(), "player is outside detection range")
	}

	r.player.pos = body.Vec{X: 3}
	r.tick()
	assert.Equal(t, fsm.MainCombat, r.actor.MainKind())
	assert.Equal(t, fsm.SubRoar, r.sub(), "brutes roar on engage")
	assert.Equal(t, "player-1", r.actor.Status().Target)

	r.tick()
	assert.Equal(t, fsm.SubAttack, r.sub())
	assert.True(t, r.hits.active["swipe"])
}

func TestActor_DeadFiresOnceAndBlocksDamage(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)

	r.hit(500)
	r.tick()
	assert.Equal(t, fsm.MainDead, r.actor.MainKind())
	assert.True(t, r.actor.Dead())
	_, hasSub := r.actor.SubKind()
	assert.False(t, hasSub)
	assert.Equal(t, r.now, r.actor.DiedAt())

	r.hit(10)
	r.hit(10)
	for i := 0; i < 5; i++ {
		r.tick()
	}
	assert.Equal(t, 1, r.j.count("trigger:die"))
	assert.Zero(t, r.actor.Status().Health)
	assert.Equal(t, fsm.MainDead, r.actor.MainKind())
}

func TestActor_NaNDamageDoesNotBlockDeath(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	r.hit(math.NaN())
	r.tick()
	assert.InDelta(t, 100.0, r.actor.Status().Health, 1e-9)

	r.hit(1e9)
	r.tick()
	assert.True(t, r.actor.Dead())
	assert.Equal(t, fsm.MainDead, r.actor.MainKind())
}

func TestActor_ForcedDeadDisablesHitboxBeforeDeadEnter(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	require.True(t, r.hits.active["swipe"])

	r.hit(1000)
	r.tick()
	off := r.j.index("off:swipe")
	dead := r.j.index("bool:dead")
	require.NotEqual(t, -1, off)
	require.NotEqual(t, -1, dead)
	assert.Less(t, off, dead)
	assert.Empty(t, r.hits.active)
}

func TestActor_SingleHitAdvancesOnePhaseAndAnnounces(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "stalker", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	roars := r.j.count("trigger:roar")

	r.hit(40)
	r.tick()
	assert.Equal(t, 1, r.actor.PhaseIndex(), "a hit to 60 percent enters phase 1 only")

	r.tickUntil(t, 30, func() bool { return r.sub() == fsm.SubRoar })
	assert.Equal(t, roars+1, r.j.count("trigger:roar"))
	r.tickUntil(t, 30, func() bool { return r.sub() == fsm.SubAttack })
	assert.Equal(t, roars+1, r.j.count("trigger:roar"), "the phase flag is consumed once")

	r.hit(1)
	r.tick()
	assert.Equal(t, 1, r.actor.PhaseIndex())
}

func TestActor_DeepHitStillStepsOnePhasePerHit(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	r.hit(75)
	r.tick()
	assert.Equal(t, 1, r.actor.PhaseIndex())
	r.hit(1)
	r.tick()
	assert.Equal(t, 2, r.actor.PhaseIndex())
	r.hit(1)
	r.tick()
	assert.Equal(t, 2, r.actor.PhaseIndex(), "no phase past the last")
}

type loopPattern struct{ def *pattern.Definition }

func (p *loopPattern) Definition() *pattern.Definition { return p.def }
func (p *loopPattern) Execute(pattern.Context) error   { return nil }
func (p *loopPattern) IsFinished(pattern.Context) bool { return true }
func (p *loopPattern) Next(pattern.Context) (pattern.Pattern, bool) {
	return &loopPattern{def: p.def}, true
}

func TestActor_InfiniteChainStaysInAttack(t *testing.T) {
	defs := []pattern.Definition{
		{ID: "flurry", Kind: "loop", Weight: 1, MaxRange: 4},
		{ID: "idle_wait", Kind: "wait", Weight: 1},
	}
	kinds := map[string]pattern.Constructor{
		"loop": func(def *pattern.Definition, _ *pattern.Library) pattern.Pattern { return &loopPattern{def: def} },
	}
	bp := standardBlueprint(t, "stalker", defs, kinds)
	bp.Phases = []phase.Phase{{Breakpoint: 1, Patterns: []string{"flurry"}}}
	bp.IdlePatterns = []string{"idle_wait"}
	r := newRig(t, bp, body.Vec{X: 3})
	r.engage(t)

	const iterations = 500
	for i := 0; i < iterations; i++ {
		r.tick()
		require.Equal(t, fsm.MainCombat, r.actor.MainKind())
		require.Equal(t, fsm.SubAttack, r.sub(), "chain returned to selection at iteration %d", i)
	}
}

type faultyPattern struct{ def *pattern.Definition }

func (p *faultyPattern) Definition() *pattern.Definition              { return p.def }
func (p *faultyPattern) Execute(pattern.Context) error                { return nil }
func (p *faultyPattern) IsFinished(pattern.Context) bool              { panic("volume lookup failed") }
func (p *faultyPattern) Next(pattern.Context) (pattern.Pattern, bool) { return nil, false }

func TestActor_PanickingPatternKeepsASubState(t *testing.T) {
	defs := []pattern.Definition{
		{ID: "glitch", Kind: "faulty", Weight: 1, MaxRange: 4},
		{ID: "idle_wait", Kind: "wait", Weight: 1},
	}
	kinds := map[string]pattern.Constructor{
		"faulty": func(def *pattern.Definition, _ *pattern.Library) pattern.Pattern { return &faultyPattern{def: def} },
	}
	bp := standardBlueprint(t, "stalker", defs, kinds)
	bp.Phases = []phase.Phase{{Breakpoint: 1, Patterns: []string{"glitch"}}}
	bp.IdlePatterns = []string{"idle_wait"}
	r := newRig(t, bp, body.Vec{X: 3})
	r.engage(t)

	for i := 0; i < 50; i++ {
		r.tick()
		require.Equal(t, fsm.MainCombat, r.actor.MainKind())
		_, hasSub := r.actor.SubKind()
		require.True(t, hasSub, "no sub-state after tick %d", i)
	}
}

func TestActor_StaleTargetAbandonsPattern(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	r.player.alive = false
	r.tick()
	assert.Equal(t, fsm.MainNonCombat, r.actor.MainKind())
	assert.Empty(t, r.hits.active)
	assert.Empty(t, r.actor.Status().Target)
}

func TestActor_EmptySelectionWaitsThenRetries(t *testing.T) {
	bp := standardBlueprint(t, "brute", standardPatterns(), nil)
	bp.Phases = []phase.Phase{{Breakpoint: 1.0, Patterns: []string{"slam"}}}
	// Inside slam's minimum range: nothing is usable and no chase is needed.
	r := newRig(t, bp, body.Vec{X: 0.5})

	r.tickUntil(t, 20, func() bool {
		return r.actor.MainKind() == fsm.MainCombat && r.sub() == fsm.SubWait
	})
	assert.Empty(t, r.hits.active)

	r.player.pos = body.Vec{X: 5}
	r.tickUntil(t, 20, func() bool { return r.sub() == fsm.SubAttack })
	assert.Equal(t, fsm.MainCombat, r.actor.MainKind())
}

func TestActor_TargetLeavesRangeChases(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.anim.unfinished["attack"] = true
	r.engage(t)
	r.player.pos = body.Vec{X: 10}
	r.tick()
	assert.Equal(t, fsm.SubChase, r.sub())
	assert.Empty(t, r.hits.active)
}

func leapBlueprint(t *testing.T) brain.Blueprint {
	bp := standardBlueprint(t, "stalker", standardPatterns(), nil)
	bp.Phases = []phase.Phase{{Breakpoint: 1.0, Patterns: []string{"slam"}}}
	return bp
}

func TestActor_TargetLeavesRangeMidLeapChases(t *testing.T) {
	r := newRig(t, leapBlueprint(t), body.Vec{X: 5})
	r.engage(t)
	r.tickUntil(t, 20, func() bool { return r.j.index("trigger:leap") >= 0 })
	require.Equal(t, fsm.SubAttack, r.sub(), "still in the jump step")

	r.player.pos = body.Vec{X: 20}
	r.tick()
	assert.Equal(t, fsm.MainCombat, r.actor.MainKind())
	assert.Equal(t, fsm.SubChase, r.sub())
	assert.Empty(t, r.hits.active)
	assert.Equal(t, -1, r.j.index("on:slam"), "the slam volume never opened")
}

func TestActor_LeapLandingInsideMinRangeStillSlams(t *testing.T) {
	r := newRig(t, leapBlueprint(t), body.Vec{X: 5})
	r.engage(t)
	// The jump carries the actor onto the target, under slam's minimum range.
	r.tickUntil(t, 30, func() bool { return r.j.index("on:slam") >= 0 })
	assert.Equal(t, fsm.SubAttack, r.sub())
}

func TestActor_TargetInsideMinRangeChases(t *testing.T) {
	defs := append(standardPatterns(), pattern.Definition{ID: "shove", Kind: "melee", Weight: 1, MinRange: 2, MaxRange: 6})
	bp := standardBlueprint(t, "stalker", defs, nil)
	bp.Phases = []phase.Phase{{Breakpoint: 1.0, Patterns: []string{"shove"}}}
	r := newRig(t, bp, body.Vec{X: 4})
	r.anim.unfinished["attack"] = true
	r.engage(t)
	require.True(t, r.hits.active["shove"])

	r.player.pos = body.Vec{X: 1}
	r.tick()
	assert.Equal(t, fsm.SubChase, r.sub())
	assert.Empty(t, r.hits.active)
}

func TestActor_UninterruptibleIgnoresRange(t *testing.T) {
	defs := standardPatterns()
	for i := range defs {
		if defs[i].ID == "slam" {
			defs[i].Uninterruptible = true
		}
	}
	bp := standardBlueprint(t, "stalker", defs, nil)
	bp.Phases = []phase.Phase{{Breakpoint: 1.0, Patterns: []string{"slam"}}}
	r := newRig(t, bp, body.Vec{X: 5})
	r.engage(t)
	r.tickUntil(t, 20, func() bool { return r.j.index("trigger:leap") >= 0 })

	r.player.pos = body.Vec{X: 20}
	r.tick()
	assert.Equal(t, fsm.SubAttack, r.sub())
}

func TestActor_RetreatFleeReturnRest(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "stalker", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)

	r.hit(75)
	r.tick()
	r.tickUntil(t, 40, func() bool { return r.actor.MainKind() == fsm.MainRetreat })
	r.player.pos = body.Vec{X: 100}

	r.tickUntil(t, 40, func() bool { return r.actor.MainKind() == fsm.MainRest })
	assert.Equal(t, fsm.SubRegen, r.sub())
	r.tickUntil(t, 40, func() bool { return r.actor.MainKind() == fsm.MainNonCombat })
	assert.InDelta(t, 100.0, r.actor.Status().Health, 1e-9)
	assert.Equal(t, body.Vec{}, r.mover.pos, "the actor walked home")
}

func TestActor_RetreatIgnoredWithoutCapability(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	r.hit(75)
	for i := 0; i < 40; i++ {
		r.tick()
		require.NotEqual(t, fsm.MainRetreat, r.actor.MainKind())
	}
}

func TestActor_PassiveWaitsForFirstHit(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "minion", standardPatterns(), nil), body.Vec{X: 3})
	for i := 0; i < 20; i++ {
		r.tick()
		require.Equal(t, fsm.MainNonCombat, r.actor.MainKind())
	}
	r.hit(5)
	r.tick()
	assert.Equal(t, fsm.MainCombat, r.actor.MainKind())
}

func TestActor_PartBreakForcesDestructOnce(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "golem", standardPatterns(), nil), body.Vec{X: 3})
	r.anim.unfinished["part_break"] = true
	r.engage(t)

	r.actor.ReceiveDamage(health.DamageInfo{Attacker: "player-1", Amount: 1, PartDamage: 30})
	r.tick()
	assert.Equal(t, fsm.MainDestruct, r.actor.MainKind())
	assert.Equal(t, fsm.SubBreak, r.sub())
	assert.Empty(t, r.hits.active)

	r.tickUntil(t, 40, func() bool { return r.actor.MainKind() == fsm.MainCombat })
	r.actor.ReceiveDamage(health.DamageInfo{Attacker: "player-1", Amount: 1, PartDamage: 100})
	r.tick()
	assert.NotEqual(t, fsm.MainDestruct, r.actor.MainKind())
	assert.Equal(t, 1, r.j.count("trigger:part_break"))
}

func TestActor_CriticalStaggers(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.anim.unfinished["attack"] = true
	r.engage(t)
	r.actor.ReceiveDamage(health.DamageInfo{Attacker: "player-1", Amount: 1, Critical: true})
	r.tick()
	assert.Equal(t, fsm.SubStun, r.sub())
	assert.Empty(t, r.hits.active)
	r.tickUntil(t, 10, func() bool { return r.sub() != fsm.SubStun })
}

func TestActor_UninterruptibleIgnoresStagger(t *testing.T) {
	defs := standardPatterns()
	defs[0].Uninterruptible = true
	r := newRig(t, standardBlueprint(t, "brute", defs, nil), body.Vec{X: 3})
	r.anim.unfinished["attack"] = true
	r.engage(t)
	r.actor.ReceiveDamage(health.DamageInfo{Attacker: "player-1", Amount: 1, Critical: true})
	r.tick()
	assert.Equal(t, fsm.SubAttack, r.sub())
}

func TestActor_ReinitializeResetsLife(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "brute", standardPatterns(), nil), body.Vec{X: 3})
	r.engage(t)
	r.hit(40)
	r.tick()
	first := r.actor.Encounter()
	r.hit(500)
	r.tick()
	require.True(t, r.actor.Dead())

	r.actor.Despawn()
	assert.True(t, r.actor.Despawned())
	r.tick()

	require.NoError(t, r.actor.Reinitialize(r.now))
	assert.Equal(t, fsm.MainInit, r.actor.MainKind())
	assert.Equal(t, 0, r.actor.PhaseIndex())
	assert.False(t, r.actor.Dead())
	assert.InDelta(t, 1.0, r.actor.HealthFraction(), 1e-9)
	assert.NotEqual(t, first, r.actor.Encounter())
	r.tick()
	assert.NotEqual(t, fsm.MainInit, r.actor.MainKind())
}

func TestActor_RestoreAppliesEarlierPhaseEntries(t *testing.T) {
	bp := standardBlueprint(t, "brute", standardPatterns(), nil)
	bp.Phases[1].Entry = phase.EntryConfig{SpeedScale: 2}
	chaseSpeed := func(restore bool) float64 {
		r := newRig(t, bp, body.Vec{X: 14})
		if restore {
			r.actor.Restore(25, 2)
			require.Equal(t, 2, r.actor.PhaseIndex())
		}
		r.tickUntil(t, 50, func() bool { return r.sub() == fsm.SubChase })
		return r.mover.speed
	}
	base := chaseSpeed(false)
	require.Positive(t, base)
	assert.InDelta(t, 2*base, chaseSpeed(true), 1e-9, "phase 1 speed scale carries into phase 2")
}

func TestActor_ReceiveDamageIsGoroutineSafe(t *testing.T) {
	r := newRig(t, standardBlueprint(t, "golem", standardPatterns(), nil), body.Vec{X: 40})
	r.tick()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.actor.ReceiveDamage(health.DamageInfo{Amount: 0.1})
			}
		}()
	}
	wg.Wait()
	r.tick()
	assert.InDelta(t, 60.0, r.actor.Status().Health, 1e-6)
}

func TestProperty_OneMainOneSub(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		arch := rapid.SampledFrom(brain.ArchetypeNames()).Draw(rt, "archetype")
		r := newRig(rt, standardBlueprint(rt, arch, standardPatterns(), nil), body.Vec{X: 3})
		prevPhase := 0
		wasDead := false
		steps := rapid.IntRange(1, 120).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			hit := false
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				r.actor.ReceiveDamage(health.DamageInfo{
					Attacker:   "player-1",
					Amount:     rapid.Float64Range(0, 60).Draw(rt, "amount"),
					PartDamage: rapid.Float64Range(0, 20).Draw(rt, "part"),
					Critical:   rapid.Bool().Draw(rt, "crit"),
				})
				hit = true
			case 1:
				r.player.pos = body.Vec{X: rapid.Float64Range(-40, 40).Draw(rt, "px")}
			case 2:
				r.player.alive = rapid.Bool().Draw(rt, "alive")
			}
			r.tick()

			main := r.actor.MainKind()
			_, hasSub := r.actor.SubKind()
			switch main {
			case fsm.MainInit, fsm.MainDead:
				assert.False(rt, hasSub)
			default:
				assert.True(rt, hasSub, "main %s has no current sub-state", main)
			}
			idx := r.actor.PhaseIndex()
			assert.GreaterOrEqual(rt, idx, prevPhase)
			if hit {
				assert.LessOrEqual(rt, idx-prevPhase, 1)
			} else {
				assert.Equal(rt, prevPhase, idx)
			}
			prevPhase = idx
			if wasDead {
				assert.Equal(rt, fsm.MainDead, main)
			}
			wasDead = main == fsm.MainDead
		}
	})
}
