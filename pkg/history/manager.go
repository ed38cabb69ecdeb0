package history

import (
	"sync"
	"time"

	"github.com/surrealdb/blocktree/internal/rand"
)

// Manager keeps the LIFO undo and redo stacks of one undo domain.
//
// Popping and re-pushing are separate calls so the caller can replay and
// persist an entry without holding the manager.
type Manager struct {
	mu       sync.Mutex
	maxDepth int
	undo     []Transaction
	redo     []Transaction
	now      func() time.Time
}

// NewManager returns a manager that keeps at most maxDepth entries per stack.
// A maxDepth of zero or less means unbounded.
func NewManager(maxDepth int) *Manager {
	return &Manager{maxDepth: maxDepth, now: time.Now}
}

// Push records a new user action and clears the redo stack. Missing ids and
// timestamps are filled in; the stored entry is returned.
func (m *Manager) Push(tx Transaction) Transaction {
	if tx.ID == "" {
		tx.ID = rand.NewID(rand.IDLength)
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = m.now()
	}
	tx = tx.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = m.trim(append(m.undo, tx))
	m.redo = nil
	return tx
}

// PopUndo removes and returns the most recent undo entry.
func (m *Manager) PopUndo() (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pop(&m.undo)
}

// PopRedo removes and returns the most recent redo entry.
func (m *Manager) PopRedo() (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pop(&m.redo)
}

// Undone files an entry that was just undone onto the redo stack.
func (m *Manager) Undone(tx Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redo = m.trim(append(m.redo, tx))
}

// Redone files an entry that was just redone back onto the undo stack without
// clearing the redo stack.
func (m *Manager) Redone(tx Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = m.trim(append(m.undo, tx))
}

// Discard removes the entry with the given id from both stacks.
func (m *Manager) Discard(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := remove(&m.undo, id)
	b := remove(&m.redo, id)
	return a || b
}

// RemapIDs rewrites block ids in every stored op, so entries recorded against
// temporary ids keep working after the server assigns real ones.
func (m *Manager) RemapIDs(mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stack := range [][]Transaction{m.undo, m.redo} {
		for i := range stack {
			stack[i].RemapIDs(mapping)
		}
	}
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Clear empties both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo = nil, nil
}

func (m *Manager) trim(stack []Transaction) []Transaction {
	if m.maxDepth > 0 && len(stack) > m.maxDepth {
		return append([]Transaction(nil), stack[len(stack)-m.maxDepth:]...)
	}
	return stack
}

func pop(stack *[]Transaction) (Transaction, bool) {
	s := *stack
	if len(s) == 0 {
		return Transaction{}, false
	}
	tx := s[len(s)-1]
	*stack = s[:len(s)-1]
	return tx, true
}

func remove(stack *[]Transaction, id string) bool {
	s := *stack
	for i := range s {
		if s[i].ID == id {
			*stack = append(s[:i], s[i+1:]...)
			return true
		}
	}
	return false
}
