package brain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/bossai/internal/game/body"
	"github.com/cory-johannsen/bossai/internal/game/brain"
	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/game/fsm"
	"github.com/cory-johannsen/bossai/internal/game/health"
	"github.com/cory-johannsen/bossai/internal/game/pattern"
	"github.com/cory-johannsen/bossai/internal/game/phase"
)

// journal is shared by the fakes so tests can assert cross-collaborator ordering.
type journal struct{ entries []string }

func (j *journal) add(e string) { j.entries = append(j.entries, e) }

func (j *journal) index(e string) int {
	for i, v := range j.entries {
		if v == e {
			return i
		}
	}
	return -1
}

func (j *journal) count(e string) int {
	n := 0
	for _, v := range j.entries {
		if v == e {
			n++
		}
	}
	return n
}

// teleportMover arrives instantly and remembers the last requested speed.
type teleportMover struct {
	pos    body.Vec
	speed  float64
	noWalk bool
}

func (m *teleportMover) Position() body.Vec                { return m.pos }
func (m *teleportMover) StartMove(d body.Vec, v float64)   { m.pos, m.speed = d, v }
func (m *teleportMover) StopMove()                         {}
func (m *teleportMover) RemainingDistance() float64        { return 0 }
func (m *teleportMover) HasArrived() bool                  { return true }
func (m *teleportMover) TurnToward(body.Vec, float64) bool { return true }
func (m *teleportMover) Teleport(p body.Vec)               { m.pos = p }
func (m *teleportMover) SampleWalkableNear(p body.Vec, _ float64) (body.Vec, bool) {
	if m.noWalk {
		return body.Vec{}, false
	}
	return p, true
}

type fakeAnimator struct {
	j          *journal
	unfinished map[string]bool
}

func (a *fakeAnimator) SetTrigger(n string) { a.j.add("trigger:" + n) }
func (a *fakeAnimator) SetBool(n string, v bool) {
	if v {
		a.j.add("bool:" + n)
	}
}
func (a *fakeAnimator) SetInt(n string, v int)      {}
func (a *fakeAnimator) IsTagFinished(t string) bool { return !a.unfinished[t] }

type fakeHitboxes struct {
	j      *journal
	active map[string]bool
}

func (h *fakeHitboxes) Enable(id string, _ body.Strike) {
	h.active[id] = true
	h.j.add("on:" + id)
}

func (h *fakeHitboxes) Disable(id string) {
	delete(h.active, id)
	h.j.add("off:" + id)
}

type dummy struct {
	id    string
	pos   body.Vec
	alive bool
}

func (d *dummy) ID() string         { return d.id }
func (d *dummy) Position() body.Vec { return d.pos }
func (d *dummy) Alive() bool        { return d.alive }

type fakePerception struct{ targets []*dummy }

func (p *fakePerception) Nearest(at body.Vec, radius float64) (brain.Target, bool) {
	var best *dummy
	bestD := math.Inf(1)
	for _, t := range p.targets {
		if !t.alive {
			continue
		}
		if d := at.Dist(t.pos); d <= radius && d < bestD {
			best, bestD = t, d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func (p *fakePerception) Lookup(id string) (brain.Target, bool) {
	for _, t := range p.targets {
		if t.id == id {
			return t, true
		}
	}
	return nil, false
}

type rig struct {
	actor  *brain.Actor
	j      *journal
	mover  *teleportMover
	anim   *fakeAnimator
	hits   *fakeHitboxes
	player *dummy
	now    time.Time
}

func (r *rig) tick() {
	r.now = r.now.Add(100 * time.Millisecond)
	r.actor.Tick(r.now)
}

// tickUntil ticks until cond holds, failing after limit ticks.
func (r *rig) tickUntil(t require.TestingT, limit int, cond func() bool) {
	for i := 0; i < limit; i++ {
		if cond() {
			return
		}
		r.tick()
	}
	require.True(t, cond(), "condition not reached within %d ticks", limit)
}

func (r *rig) hit(amount float64) {
	r.actor.ReceiveDamage(health.DamageInfo{Attacker: r.player.id, Receiver: r.actor.ID(), Amount: amount})
}

func (r *rig) sub() fsm.SubKind {
	k, _ := r.actor.SubKind()
	return k
}

func standardPatterns() []pattern.Definition {
	return []pattern.Definition{
		{ID: "swipe", Kind: "melee", Weight: 1, MaxRange: 4, Damage: "2d6"},
		{ID: "stomp", Kind: "melee", Weight: 1, MaxRange: 4, Damage: "3d6", Cooldown: time.Second},
		{ID: "slam", Kind: "leap", Weight: 2, MinRange: 1, MaxRange: 12, Damage: "4d8"},
		{ID: "idle_wait", Kind: "wait", Weight: 1, Duration: 500 * time.Millisecond},
		{ID: "idle_look", Kind: "look_around", Weight: 1},
	}
}

func standardBlueprint(t require.TestingT, archetype string, defs []pattern.Definition, extra map[string]pattern.Constructor) brain.Blueprint {
	lib, err := pattern.NewLibraryWithKinds(defs, extra)
	require.NoError(t, err)
	return brain.Blueprint{
		CreatureID:      "ogre",
		Archetype:       archetype,
		MaxHP:           100,
		RetreatFraction: 0.3,
		DetectRange:     15,
		WalkSpeed:       2,
		RunSpeed:        5,
		PartDurability:  30,
		RestRegenPerSec: 50,
		StunDuration:    300 * time.Millisecond,
		Phases: []phase.Phase{
			{Breakpoint: 1.0, Patterns: []string{"swipe"}},
			{Breakpoint: 0.7, Patterns: []string{"swipe", "stomp"}},
			{Breakpoint: 0.3, Patterns: []string{"stomp", "slam"}},
		},
		IdlePatterns: []string{"idle_wait", "idle_look"},
		Library:      lib,
	}
}

func newRig(t require.TestingT, bp brain.Blueprint, playerAt body.Vec) *rig {
	j := &journal{}
	r := &rig{
		j:      j,
		mover:  &teleportMover{},
		anim:   &fakeAnimator{j: j, unfinished: map[string]bool{}},
		hits:   &fakeHitboxes{j: j, active: map[string]bool{}},
		player: &dummy{id: "player-1", pos: playerAt, alive: true},
		now:    time.Unix(10_000, 0),
	}
	a, err := brain.NewActor("boss-1", bp, brain.Deps{
		Mover:      r.mover,
		Animator:   r.anim,
		Hitboxes:   r.hits,
		Perception: &fakePerception{targets: []*dummy{r.player}},
		Rand:       dice.NewSeededSource(7),
	})
	require.NoError(t, err)
	require.NoError(t, a.Start(r.now))
	r.actor = a
	return r
}

// engage ticks until the actor is running an attack pattern.
func (r *rig) engage(t *testing.T) {
	r.tickUntil(t, 50, func() bool {
		return r.actor.MainKind() == fsm.MainCombat && r.sub() == fsm.SubAttack
	})
}
