package history

import (
	"context"
	"sync"
)

// Domain is one independent undo history, such as an in-progress text edit,
// the block tree or the page tree.
type Domain interface {
	Name() string
	CanUndo() bool
	CanRedo() bool
	Undo(ctx context.Context) error
	Redo(ctx context.Context) error
}

// Chain resolves an undo or redo gesture against domains in precedence order,
// most locally scoped first. Only the first domain that can act is used; the
// histories are never merged.
type Chain []Domain

// Undo runs Undo on the first domain that can undo and returns its name.
func (c Chain) Undo(ctx context.Context) (string, error) {
	for _, d := range c {
		if d != nil && d.CanUndo() {
			return d.Name(), d.Undo(ctx)
		}
	}
	return "", ErrNothingToUndo
}

// Redo runs Redo on the first domain that can redo and returns its name.
func (c Chain) Redo(ctx context.Context) (string, error) {
	for _, d := range c {
		if d != nil && d.CanRedo() {
			return d.Name(), d.Redo(ctx)
		}
	}
	return "", ErrNothingToRedo
}

// FuncDomain adapts plain functions to Domain, for histories owned outside
// this module such as an editor's own text history.
type FuncDomain struct {
	Label     string
	CanUndoFn func() bool
	CanRedoFn func() bool
	UndoFn    func(ctx context.Context) error
	RedoFn    func(ctx context.Context) error
}

func (d FuncDomain) Name() string { return d.Label }

func (d FuncDomain) CanUndo() bool { return d.CanUndoFn != nil && d.CanUndoFn() }

func (d FuncDomain) CanRedo() bool { return d.CanRedoFn != nil && d.CanRedoFn() }

func (d FuncDomain) Undo(ctx context.Context) error {
	if d.UndoFn == nil {
		return ErrNothingToUndo
	}
	return d.UndoFn(ctx)
}

func (d FuncDomain) Redo(ctx context.Context) error {
	if d.RedoFn == nil {
		return ErrNothingToRedo
	}
	return d.RedoFn(ctx)
}

// DomainPages names the page-tree undo domain.
const DomainPages = "pages"

// Action is one reversible edit recorded outside the block tree, such as
// renaming or moving a page in the navigation tree.
type Action struct {
	Label string
	Undo  func(ctx context.Context) error
	Redo  func(ctx context.Context) error
}

// ActionDomain is a Domain of recorded Actions with its own bounded undo and
// redo stacks. An action whose Undo or Redo fails is dropped.
type ActionDomain struct {
	mu       sync.Mutex
	label    string
	maxDepth int
	undo     []Action
	redo     []Action
}

// NewActionDomain returns an empty domain keeping at most maxDepth actions per
// stack. A maxDepth of zero or less means unbounded.
func NewActionDomain(label string, maxDepth int) *ActionDomain {
	return &ActionDomain{label: label, maxDepth: maxDepth}
}

// Record pushes an action that has just been performed and clears redo.
func (d *ActionDomain) Record(a Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.undo = append(d.undo, a)
	if d.maxDepth > 0 && len(d.undo) > d.maxDepth {
		d.undo = append([]Action(nil), d.undo[len(d.undo)-d.maxDepth:]...)
	}
	d.redo = nil
}

func (d *ActionDomain) Name() string { return d.label }

func (d *ActionDomain) CanUndo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.undo) > 0
}

func (d *ActionDomain) CanRedo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.redo) > 0
}

func (d *ActionDomain) Undo(ctx context.Context) error {
	a, ok := d.take(&d.undo)
	if !ok {
		return ErrNothingToUndo
	}
	if a.Undo != nil {
		if err := a.Undo(ctx); err != nil {
			return err
		}
	}
	d.put(&d.redo, a)
	return nil
}

func (d *ActionDomain) Redo(ctx context.Context) error {
	a, ok := d.take(&d.redo)
	if !ok {
		return ErrNothingToRedo
	}
	if a.Redo != nil {
		if err := a.Redo(ctx); err != nil {
			return err
		}
	}
	d.put(&d.undo, a)
	return nil
}

func (d *ActionDomain) take(stack *[]Action) (Action, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(*stack)
	if n == 0 {
		return Action{}, false
	}
	a := (*stack)[n-1]
	*stack = (*stack)[:n-1]
	return a, true
}

func (d *ActionDomain) put(stack *[]Action, a Action) {
	d.mu.Lock()
	defer d.mu.Unlock()
	*stack = append(*stack, a)
}
