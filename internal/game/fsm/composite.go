package fsm

import "go.uber.org/zap"

// Composite is embedded by main states that own a sub-state machine.
//
// Invariant: while the owning main state is current, Sub has exactly one current state.
type Composite[T any] struct {
	Sub     *Machine[T]
	initial func() State[T]
}

// NewComposite builds the sub-state machine. initial supplies a fresh entry sub-state
// each time the main state is entered, commonly a state-select node.
func NewComposite[T any](owner T, logger *zap.Logger, initial func() State[T]) Composite[T] {
	return Composite[T]{
		Sub:     NewMachine[T]("sub", owner, logger),
		initial: initial,
	}
}

// EnterSub enters the initial sub-state.
func (c *Composite[T]) EnterSub() error {
	return c.Sub.Change(c.initial())
}

// ChangeSub has the same exit-then-enter contract as Machine.Change.
func (c *Composite[T]) ChangeSub(next State[T]) error {
	return c.Sub.Change(next)
}

// TickSub ticks the current sub-state, re-entering the initial sub-state if none is current.
func (c *Composite[T]) TickSub() error {
	if c.Sub.Current() == nil {
		return c.EnterSub()
	}
	return c.Sub.Tick()
}

// ResetSub exits the current sub-state and enters a fresh initial sub-state, so a
// sub-state stays current even after the previous one failed.
func (c *Composite[T]) ResetSub() error {
	return c.Sub.Change(c.initial())
}

// ExitSub exits the current sub-state so its cleanup runs before the main state's own Exit.
func (c *Composite[T]) ExitSub() {
	c.Sub.Clear()
}
