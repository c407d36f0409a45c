// Package fsm provides the state machine used at both levels of an actor's
// behavior hierarchy: the main-state machine and each main state's sub-state machine.
package fsm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrEnterAborted is returned by Change when the next state's Enter panicked.
// The state's Exit has already run and the state remains current.
var ErrEnterAborted = errors.New("fsm: enter aborted")

// maxChainedChanges bounds Change calls issued from inside Enter/Exit hooks
// during a single top-level Change.
const maxChainedChanges = 32

// State is one node of a Machine. Hooks receive the machine's owner.
type State[T any] interface {
	Name() string
	Enter(owner T)
	Tick(owner T)
	Exit(owner T)
}

// Machine holds exactly one current state after its first Change.
//
// Not safe for concurrent use; the owner ticks it from a single goroutine.
type Machine[T any] struct {
	label   string
	owner   T
	current State[T]
	logger  *zap.Logger

	changing bool
	pending  State[T]
	onChange func(from, to State[T])
}

// NewMachine creates an empty machine. label distinguishes machines in logs ("main", "sub").
//
// Precondition: a nil logger is replaced by a no-op logger.
func NewMachine[T any](label string, owner T, logger *zap.Logger) *Machine[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine[T]{label: label, owner: owner, logger: logger}
}

// OnChange registers a callback run after each completed transition.
func (m *Machine[T]) OnChange(fn func(from, to State[T])) { m.onChange = fn }

// Current returns the current state, or nil before the first Change and after Clear.
func (m *Machine[T]) Current() State[T] { return m.current }

// Changing reports whether a transition is in progress.
func (m *Machine[T]) Changing() bool { return m.changing }

// Change exits the current state, makes next current, and enters it.
//
// Precondition: next is non-nil.
// Postcondition: Exit of the previous state runs before Enter of next, and always runs.
// A Change requested from inside an Enter or Exit hook is deferred until the outer
// transition completes; the last such request wins.
// Returns ErrEnterAborted (wrapped) if any Enter in the chain panicked.
func (m *Machine[T]) Change(next State[T]) error {
	if next == nil {
		return fmt.Errorf("fsm.Machine.Change(%s): next state is nil", m.label)
	}
	if m.changing {
		m.pending = next
		return nil
	}

	m.changing = true
	defer func() { m.changing = false }()

	var result error
	for i := 0; next != nil; i++ {
		if i >= maxChainedChanges {
			m.logger.Warn("fsm: chained transition limit reached",
				zap.String("machine", m.label),
				zap.String("dropped", next.Name()),
			)
			m.pending = nil
			break
		}
		if err := m.transition(next); err != nil {
			result = err
		}
		next = m.pending
		m.pending = nil
	}
	return result
}

// Clear exits the current state and leaves the machine with no current state.
func (m *Machine[T]) Clear() {
	if m.current == nil {
		return
	}
	prev := m.current
	m.current = nil
	m.pending = nil
	m.safeExit(prev)
}

// Tick forwards to the current state's Tick. A panic inside Tick is recovered and
// returned as an error; the machine keeps its current state.
func (m *Machine[T]) Tick() (err error) {
	cur := m.current
	if cur == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fsm.Machine.Tick(%s): state %s panicked: %v", m.label, cur.Name(), r)
		}
	}()
	cur.Tick(m.owner)
	return nil
}

func (m *Machine[T]) transition(next State[T]) error {
	prev := m.current
	if prev != nil {
		m.safeExit(prev)
	}
	m.current = next

	fromName := "none"
	if prev != nil {
		fromName = prev.Name()
	}
	m.logger.Debug("state change",
		zap.String("machine", m.label),
		zap.String("from", fromName),
		zap.String("to", next.Name()),
	)

	if err := m.safeEnter(next); err != nil {
		m.pending = nil
		m.safeExit(next)
		return err
	}
	if m.onChange != nil {
		m.onChange(prev, next)
	}
	return nil
}

func (m *Machine[T]) safeEnter(s State[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("fsm: enter panicked",
				zap.String("machine", m.label),
				zap.String("state", s.Name()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("fsm.Machine.Change(%s): %s: %w", m.label, s.Name(), ErrEnterAborted)
		}
	}()
	s.Enter(m.owner)
	return nil
}

func (m *Machine[T]) safeExit(s State[T]) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("fsm: exit panicked",
				zap.String("machine", m.label),
				zap.String("state", s.Name()),
				zap.Any("panic", r),
			)
		}
	}()
	s.Exit(m.owner)
}
