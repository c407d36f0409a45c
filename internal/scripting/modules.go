package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/dice"
)

// RegisterModules registers all engine.* Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine.log, engine.dice, and engine.actor are defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "actor", m.actorModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	mod := L.NewTable()
	for name, logFn := range levels {
		logFn := logFn
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			logFn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return mod
}

// diceModule exposes engine.dice.roll(expr) returning {total, dice, modifier}.
// An invalid expression raises a Lua error.
func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		expr, err := dice.Parse(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %s", err.Error())
			return 0
		}
		res := m.roller.Roll(expr)
		sum := 0
		for _, d := range res.Dice {
			sum += d
		}
		t := L.NewTable()
		L.SetField(t, "total", lua.LNumber(res.Total()))
		L.SetField(t, "dice", lua.LNumber(sum))
		L.SetField(t, "modifier", lua.LNumber(res.Modifier))
		L.Push(t)
		return 1
	}))
	return mod
}

// actorModule exposes read-only actor queries keyed by actor ID. Every
// function returns nil when QueryActor is unset or the actor is unknown.
func (m *Manager) actorModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	query := func(fn func(L *lua.LState, info ActorInfo) lua.LValue) *lua.LFunction {
		return L.NewFunction(func(L *lua.LState) int {
			id := L.CheckString(1)
			if m.QueryActor == nil {
				L.Push(lua.LNil)
				return 1
			}
			info, ok := m.QueryActor(id)
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(fn(L, info))
			return 1
		})
	}

	L.SetField(mod, "health", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		return lua.LNumber(a.Health)
	}))
	L.SetField(mod, "health_fraction", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		return lua.LNumber(a.HealthFraction())
	}))
	L.SetField(mod, "phase", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		return lua.LNumber(a.Phase)
	}))
	L.SetField(mod, "main_state", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		return lua.LString(a.MainState)
	}))
	L.SetField(mod, "sub_state", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		if a.SubState == "" {
			return lua.LNil
		}
		return lua.LString(a.SubState)
	}))
	L.SetField(mod, "creature", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		return lua.LString(a.CreatureID)
	}))
	L.SetField(mod, "distance", query(func(_ *lua.LState, a ActorInfo) lua.LValue {
		if !a.HasTarget {
			return lua.LNil
		}
		return lua.LNumber(a.TargetDistance)
	}))
	L.SetField(mod, "has_capability", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		want := L.CheckString(2)
		if m.QueryActor == nil {
			L.Push(lua.LFalse)
			return 1
		}
		info, ok := m.QueryActor(id)
		if !ok {
			L.Push(lua.LFalse)
			return 1
		}
		for _, c := range info.Capabilities {
			if c == want {
				L.Push(lua.LTrue)
				return 1
			}
		}
		L.Push(lua.LFalse)
		return 1
	}))
	return mod
}
