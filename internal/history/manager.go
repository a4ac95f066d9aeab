// Package history implements linear undo/redo over reversible commands.
//
// The manager never touches a document itself. It hands commands to an
// Interpreter, which knows how to apply a command forward and how to revert
// it, so the same manager works for any command representation.
package history

// DefaultLimit bounds the undo stack when no limit is given.
const DefaultLimit = 50

// Interpreter applies and reverts commands of type C against some state.
// Apply is used both to execute and to redo a command.
type Interpreter[C any] interface {
	Apply(cmd C) error
	Revert(cmd C) error
}

// Manager keeps an undo stack and a redo stack. It is not safe for concurrent
// use.
type Manager[C any] struct {
	interp Interpreter[C]
	limit  int
	undo   []C
	redo   []C
}

// New returns a manager bound to interp. A non-positive limit selects
// DefaultLimit.
func New[C any](interp Interpreter[C], limit int) *Manager[C] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager[C]{interp: interp, limit: limit}
}

// Execute applies cmd and records it. The oldest entry is evicted once the
// undo stack exceeds the limit, and any pending redo history is discarded.
// A command that fails to apply is not recorded.
func (m *Manager[C]) Execute(cmd C) error {
	if err := m.interp.Apply(cmd); err != nil {
		return err
	}
	m.undo = append(m.undo, cmd)
	if len(m.undo) > m.limit {
		var zero C
		m.undo[0] = zero
		m.undo = m.undo[1:]
	}
	clear(m.redo)
	m.redo = m.redo[:0]
	return nil
}

// Undo reverts the most recent command and moves it to the redo stack. It
// reports false when there is nothing to undo or the revert failed; in the
// latter case the stacks are left as they were.
func (m *Manager[C]) Undo() bool {
	if len(m.undo) == 0 {
		return false
	}
	cmd := m.undo[len(m.undo)-1]
	if err := m.interp.Revert(cmd); err != nil {
		return false
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, cmd)
	return true
}

// Redo re-applies the most recently undone command and moves it back to the
// undo stack. It reports false when there is nothing to redo or the apply
// failed.
func (m *Manager[C]) Redo() bool {
	if len(m.redo) == 0 {
		return false
	}
	cmd := m.redo[len(m.redo)-1]
	if err := m.interp.Apply(cmd); err != nil {
		return false
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, cmd)
	return true
}

// Clear drops both stacks.
func (m *Manager[C]) Clear() {
	m.undo = nil
	m.redo = nil
}

func (m *Manager[C]) CanUndo() bool { return len(m.undo) > 0 }
func (m *Manager[C]) CanRedo() bool { return len(m.redo) > 0 }
func (m *Manager[C]) UndoLen() int  { return len(m.undo) }
func (m *Manager[C]) RedoLen() int  { return len(m.redo) }
func (m *Manager[C]) Limit() int    { return m.limit }

// Peek returns the command that Undo would revert next.
func (m *Manager[C]) Peek() (C, bool) {
	if len(m.undo) == 0 {
		var zero C
		return zero, false
	}
	return m.undo[len(m.undo)-1], true
}
