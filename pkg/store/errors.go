package store

import "errors"

var (
	ErrBlockNotFound  = errors.New("block not found")
	ErrParentNotFound = errors.New("parent block not found in page")
	ErrCycle          = errors.New("block cannot become its own ancestor")
	ErrPageMismatch   = errors.New("block belongs to a different page")
	ErrInvalidID      = errors.New("invalid block id")
	ErrIDInUse        = errors.New("id already in use")
	ErrNotSibling     = errors.New("anchor block is not a sibling at the target")
)
