package pattern

import (
	lua "github.com/yuin/gopher-lua"
)

// ScriptCaller evaluates Lua precondition hooks.
type ScriptCaller interface {
	// CallHook calls a named Lua function in the given zone's VM.
	// Returns (LNil, nil) if the function is not defined.
	CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error)
}

// Env exposes the actor facts that decide whether a pattern may be offered.
type Env interface {
	// TargetDistance returns the distance to the current target, or false when there is none.
	TargetDistance() (float64, bool)
	HasCapability(name string) bool
	CooldownReady(id string) bool
	// CheckPrecondition evaluates a named precondition hook.
	CheckPrecondition(hook string) bool
}

// Usable reports whether def may be selected right now.
//
// Attacks with a MaxRange require a target inside [MinRange, MaxRange].
func (d *Definition) Usable(env Env) bool {
	for _, req := range d.Requires {
		if !env.HasCapability(req) {
			return false
		}
	}
	if !env.CooldownReady(d.ID) {
		return false
	}
	if d.IsAttack() && d.Ranged() {
		dist, ok := env.TargetDistance()
		if !ok || !d.InRange(dist) {
			return false
		}
	}
	if d.Precondition != "" && !env.CheckPrecondition(d.Precondition) {
		return false
	}
	return true
}

// ScriptGate evaluates precondition hooks in one scripting zone.
type ScriptGate struct {
	caller ScriptCaller
	zone   string
}

// NewScriptGate binds caller to zone. A nil caller fails every non-empty hook.
func NewScriptGate(caller ScriptCaller, zone string) *ScriptGate {
	return &ScriptGate{caller: caller, zone: zone}
}

// Check calls hook with the actor ID.
//
// Postcondition: Lua errors and non-true results are treated as precondition-false.
func (g *ScriptGate) Check(hook, actorID string) bool {
	if hook == "" {
		return true
	}
	if g == nil || g.caller == nil {
		return false
	}
	val, err := g.caller.CallHook(g.zone, hook, lua.LString(actorID))
	if err != nil {
		return false
	}
	return val == lua.LTrue
}
