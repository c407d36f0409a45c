// Package scripting provides a sandboxed GopherLua execution environment
// for creature precondition scripts. It has no dependency on game domain
// packages; actor queries are injected via Manager callback fields.
package scripting

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// hook call when no override is configured.
const DefaultInstructionLimit = 100_000

// ErrBudgetExhausted is wrapped by RunLimited when a call used up its opcode budget.
var ErrBudgetExhausted = errors.New("lua instruction budget exhausted")

// opBudget is a context whose Done channel closes after limit polls.
// GopherLua polls Done once per opcode while a context is attached.
// One budget serves one call on one LState, so the counter needs no lock.
type opBudget struct {
	context.Context
	cancel    context.CancelFunc
	remaining int64
	spent     bool
}

func newOpBudget(limit int) *opBudget {
	ctx, cancel := context.WithCancel(context.Background())
	return &opBudget{Context: ctx, cancel: cancel, remaining: int64(limit)}
}

func (b *opBudget) Done() <-chan struct{} {
	b.remaining--
	if b.remaining <= 0 && !b.spent {
		b.spent = true
		b.cancel()
	}
	return b.Context.Done()
}

// NewSandboxedState creates an LState with only the base, table, string and
// math libraries, and with dofile, loadfile, load, collectgarbage and require
// removed.
//
// Postcondition: The caller owns the LState and must Close it.
func NewSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		open(L)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// RunLimited runs fn against L with a fresh budget of limit opcodes.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: L carries no context when RunLimited returns, so the budget
// never leaks into the next call. A call cut short by the budget returns an
// error wrapping ErrBudgetExhausted.
func RunLimited(L *lua.LState, limit int, fn func(*lua.LState) error) error {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	budget := newOpBudget(limit)
	defer budget.cancel()
	L.SetContext(budget)
	defer L.RemoveContext()

	err := fn(L)
	if err != nil && budget.spent {
		return fmt.Errorf("scripting.RunLimited: %d opcodes: %w: %w", limit, ErrBudgetExhausted, err)
	}
	return err
}
