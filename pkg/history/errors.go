package history

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInconsistentHistory = errors.New("history is inconsistent with the block tree")
	ErrNothingToUndo       = errors.New("nothing to undo")
	ErrNothingToRedo       = errors.New("nothing to redo")
)

// SkippedOp is an op that could not be replayed.
type SkippedOp struct {
	Index int
	Op    Op
	Err   error
}

// InconsistentError reports the ops skipped while replaying a transaction.
// It matches ErrInconsistentHistory with errors.Is.
type InconsistentError struct {
	PageID  string
	Skipped []SkippedOp
}

func (e *InconsistentError) Error() string {
	parts := make([]string, 0, len(e.Skipped))
	for _, s := range e.Skipped {
		parts = append(parts, fmt.Sprintf("#%d %s: %v", s.Index, s.Op, s.Err))
	}
	return fmt.Sprintf("%v: page %s: skipped %s", ErrInconsistentHistory, e.PageID, strings.Join(parts, "; "))
}

func (e *InconsistentError) Is(target error) bool {
	return target == ErrInconsistentHistory
}
