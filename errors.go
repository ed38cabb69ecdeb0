package blocktree

import (
	"errors"
	"fmt"

	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/store"
)

var (
	ErrBlockNotFound     = store.ErrBlockNotFound
	ErrCycle             = store.ErrCycle
	ErrPageMismatch      = store.ErrPageMismatch
	ErrStructuralPatch   = models.ErrStructuralPatch
	ErrAnchorNotSibling  = store.ErrNotSibling
	ErrNoPreviousSibling = errors.New("block has no previous sibling")
	ErrAlreadyRoot       = errors.New("block is already at the top level")
	ErrTemporaryID       = errors.New("block is not saved yet")
	ErrEmptyBatch        = errors.New("batch has no blocks")
	ErrEmptyPatch        = errors.New("patch changes nothing")
	ErrNoTargetPage      = errors.New("no target page")
	ErrNoLiveURL         = errors.New("no live feed url configured")
)

// ValidationError is returned when an action is refused before anything was
// changed. Err is one of the sentinels above or a store error.
type ValidationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// validation wraps an error from a local phase as a ValidationError unless it
// already is one.
func validation(op string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &ValidationError{Op: op, Err: err}
}

func invalid(op string, err error, reason string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(reason, args...), Err: err}
}

// NetworkError is returned when the server rejected or never answered a
// request. By then the optimistic change has been rolled back or the page
// has been refetched.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
