package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bossai/internal/game/dice"
)

// globalZoneID is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no zone VM is found.
const globalZoneID = "__global__"

// ActorInfo is a snapshot of an actor's state passed to Lua callbacks.
type ActorInfo struct {
	ID             string
	CreatureID     string
	Health         float64
	MaxHealth      float64
	Phase          int
	MainState      string
	SubState       string
	HasTarget      bool
	TargetDistance float64
	Capabilities   []string
}

// HealthFraction returns Health/MaxHealth, or 0 when MaxHealth is not positive.
func (a ActorInfo) HealthFraction() float64 {
	if a.MaxHealth <= 0 {
		return 0
	}
	return a.Health / a.MaxHealth
}

// zoneVM pairs a single-threaded LState with the lock that serializes calls into it.
type zoneVM struct {
	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

func (z *zoneVM) close() {
	z.mu.Lock()
	z.closed = true
	z.L.Close()
	z.mu.Unlock()
}

// Manager owns one sandboxed LState per zone and exposes hook dispatch.
//
// A zone is usually a creature ID: scripts under <root>/<creature>/ only see
// hooks for that creature, and scripts at <root> form the shared global VM.
// Manager is safe for concurrent CallHook; calls into the same zone are serialized.
type Manager struct {
	mu     sync.RWMutex
	zones  map[string]*zoneVM
	limit  int
	roller *dice.Roller
	logger *zap.Logger

	// QueryActor is injected after construction. nil makes engine.actor.* return nil.
	QueryActor func(actorID string) (ActorInfo, bool)
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0 (0 uses DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager with an empty zone map.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		zones:  make(map[string]*zoneVM),
		limit:  instLimit,
		roller: roller,
		logger: logger,
	}
}

// LoadZone creates a sandboxed VM for zoneID, registers all engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: zoneID must be non-empty; scriptDir must be a readable directory.
// Postcondition: Zone VM is registered, replacing any previous VM for zoneID;
// returns error on Lua load failure and leaves the previous VM in place.
func (m *Manager) LoadZone(zoneID, scriptDir string) error {
	if zoneID == "" {
		return fmt.Errorf("scripting.Manager.LoadZone: zone ID must not be empty")
	}
	return m.loadInto(zoneID, scriptDir)
}

// LoadGlobal creates the "__global__" VM for shared scripts accessible
// as a CallHook fallback from any zone.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string) error {
	return m.loadInto(globalZoneID, scriptDir)
}

// LoadTree loads root's *.lua files as the global VM and each immediate
// subdirectory as the zone named after it.
//
// Precondition: root must be a readable directory.
// Postcondition: Returns the loaded zone IDs in sorted order, excluding the global VM.
func (m *Manager) LoadTree(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scripting.Manager.LoadTree: reading %q: %w", root, err)
	}
	if err := m.LoadGlobal(root); err != nil {
		return nil, err
	}
	var zones []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadZone(e.Name(), filepath.Join(root, e.Name())); err != nil {
			return nil, err
		}
		zones = append(zones, e.Name())
	}
	sort.Strings(zones)
	m.logger.Info("scripts loaded", zap.String("root", root), zap.Strings("zones", zones))
	return zones, nil
}

func (m *Manager) loadInto(key, scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState()
	m.RegisterModules(L)
	for _, path := range luaFiles {
		err := RunLimited(L, m.limit, func(L *lua.LState) error { return L.DoFile(path) })
		if err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.zones[key]
	m.zones[key] = &zoneVM{L: L}
	m.mu.Unlock()

	if old != nil {
		old.close()
	}
	return nil
}

// Zones returns the loaded zone IDs in sorted order, excluding the global VM.
func (m *Manager) Zones() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.zones))
	for id := range m.zones {
		if id != globalZoneID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Close releases every VM.
//
// Postcondition: Subsequent CallHook calls return (LNil, nil).
func (m *Manager) Close() {
	m.mu.Lock()
	zones := m.zones
	m.zones = make(map[string]*zoneVM)
	m.mu.Unlock()
	for _, z := range zones {
		z.close()
	}
}

// CallHook calls the named Lua global function in zoneID's VM. If the zone has
// no VM, or its VM does not define hook, the __global__ VM is tried as a
// fallback. Returns (LNil, nil) if the hook is not defined anywhere. Lua
// runtime errors, including an exhausted instruction budget, are logged at
// Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(zoneID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	z := m.zones[zoneID]
	global := m.zones[globalZoneID]
	m.mu.RUnlock()

	if z == nil && global == nil {
		m.logger.Debug("scripting: no VM for zone",
			zap.String("zone", zoneID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	for _, vm := range []*zoneVM{z, global} {
		if vm == nil {
			continue
		}
		ret, found, err := m.call(vm, hook, args)
		if errors.Is(err, ErrBudgetExhausted) {
			m.logger.Warn("scripting: hook exceeded instruction budget",
				zap.String("zone", zoneID),
				zap.String("hook", hook),
			)
			return lua.LNil, nil
		}
		if err != nil {
			m.logger.Warn("scripting: Lua runtime error",
				zap.String("zone", zoneID),
				zap.String("hook", hook),
				zap.Error(err),
			)
			return lua.LNil, nil
		}
		if found {
			return ret, nil
		}
	}
	return lua.LNil, nil
}

func (m *Manager) call(z *zoneVM, hook string, args []lua.LValue) (lua.LValue, bool, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return lua.LNil, false, nil
	}

	fn := z.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, false, nil
	}

	var ret lua.LValue = lua.LNil
	err := RunLimited(z.L, m.limit, func(L *lua.LState) error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	return ret, true, err
}
