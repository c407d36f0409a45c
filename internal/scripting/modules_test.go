package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/bossai/internal/game/dice"
	"github.com/cory-johannsen/bossai/internal/scripting"
)

func runScript(t *testing.T, mgr *scripting.Manager, luaSrc, hook string, args ...lua.LValue) lua.LValue {
	t.Helper()
	dir := writeTempLua(t, "test.lua", luaSrc)
	zoneID := "modtest_" + t.Name()
	require.NoError(t, mgr.LoadZone(zoneID, dir))
	ret, err := mgr.CallHook(zoneID, hook, args...)
	require.NoError(t, err)
	return ret
}

func ogreInfo(id string) (scripting.ActorInfo, bool) {
	if id != "ogre-1" {
		return scripting.ActorInfo{}, false
	}
	return scripting.ActorInfo{
		ID:             id,
		CreatureID:     "ogre",
		Health:         40,
		MaxHealth:      160,
		Phase:          2,
		MainState:      "combat",
		SubState:       "attack",
		HasTarget:      true,
		TargetDistance: 3.5,
		Capabilities:   []string{"roars", "staggerable"},
	}, true
}

func TestEngineLog_AllLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	mgr := scripting.NewManager(dice.NewLoggedRoller(dice.NewSeededSource(1), logger), logger, 0)

	runScript(t, mgr, `
		function do_all_logs()
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
		end
	`, "do_all_logs")

	levels := map[string]bool{}
	for _, e := range logs.FilterField(zap.String("source", "lua")).All() {
		levels[e.Level.String()] = true
	}
	assert.True(t, levels["debug"], "expected debug log")
	assert.True(t, levels["info"], "expected info log")
	assert.True(t, levels["warn"], "expected warn log")
	assert.True(t, levels["error"], "expected error log")
}

func TestEngineDice_Roll_ReturnsTable(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function do_roll()
			local r = engine.dice.roll("1d6")
			if type(r.dice) ~= "number" then error("dice field missing") end
			return r.total
		end
	`, "do_roll")
	n, ok := ret.(lua.LNumber)
	require.True(t, ok, "expected LNumber, got %T", ret)
	assert.GreaterOrEqual(t, int(n), 1)
	assert.LessOrEqual(t, int(n), 6)
}

func TestEngineDice_Roll_InvalidExpressionFailsHook(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret := runScript(t, mgr, `
		function do_roll() return engine.dice.roll("banana").total end
	`, "do_roll")
	assert.Equal(t, lua.LNil, ret)
	assert.NotZero(t, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestProperty_DiceRoll_TotalEqualsDicePlusModifier(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "inv.lua", `
		function check_invariant(expr)
			local r = engine.dice.roll(expr)
			return r.total == r.dice + r.modifier
		end
	`)
	require.NoError(t, mgr.LoadZone("dice", dir))
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.SampledFrom([]string{"1d6", "2d6+3", "1d4-1", "3d8+12"}).Draw(rt, "expr")
		ret, err := mgr.CallHook("dice", "check_invariant", lua.LString(expr))
		require.NoError(rt, err)
		assert.Equal(rt, lua.LTrue, ret, "total must equal dice + modifier for expr %s", expr)
	})
}

func TestEngineActor_NilCallback_ReturnsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function get_it() return engine.actor.health_fraction("ogre-1") end
	`, "get_it")
	assert.Equal(t, lua.LNil, ret)
}

func TestEngineActor_UnknownActor_ReturnsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.QueryActor = ogreInfo
	ret := runScript(t, mgr, `
		function get_it() return engine.actor.phase("nobody") end
	`, "get_it")
	assert.Equal(t, lua.LNil, ret)
}

func TestEngineActor_Queries(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.QueryActor = ogreInfo

	cases := []struct {
		body string
		want lua.LValue
	}{
		{`return engine.actor.health("ogre-1")`, lua.LNumber(40)},
		{`return engine.actor.health_fraction("ogre-1")`, lua.LNumber(0.25)},
		{`return engine.actor.phase("ogre-1")`, lua.LNumber(2)},
		{`return engine.actor.main_state("ogre-1")`, lua.LString("combat")},
		{`return engine.actor.sub_state("ogre-1")`, lua.LString("attack")},
		{`return engine.actor.creature("ogre-1")`, lua.LString("ogre")},
		{`return engine.actor.distance("ogre-1")`, lua.LNumber(3.5)},
		{`return engine.actor.has_capability("ogre-1", "roars")`, lua.LTrue},
		{`return engine.actor.has_capability("ogre-1", "breath")`, lua.LFalse},
		{`return engine.actor.has_capability("nobody", "roars")`, lua.LFalse},
	}
	for i, tc := range cases {
		dir := writeTempLua(t, "q.lua", "function q() "+tc.body+" end")
		zone := "q" + string(rune('a'+i))
		require.NoError(t, mgr.LoadZone(zone, dir))
		ret, err := mgr.CallHook(zone, "q")
		require.NoError(t, err)
		assert.Equal(t, tc.want, ret, tc.body)
	}
}

func TestEngineActor_DistanceNilWithoutTarget(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.QueryActor = func(id string) (scripting.ActorInfo, bool) {
		return scripting.ActorInfo{ID: id, MaxHealth: 10, Health: 10}, true
	}
	ret := runScript(t, mgr, `
		function q() return engine.actor.distance("x") end
	`, "q")
	assert.Equal(t, lua.LNil, ret)
}

func TestActorInfo_HealthFraction(t *testing.T) {
	assert.Zero(t, scripting.ActorInfo{Health: 5}.HealthFraction())
	assert.InDelta(t, 0.5, scripting.ActorInfo{Health: 5, MaxHealth: 10}.HealthFraction(), 1e-9)
}
