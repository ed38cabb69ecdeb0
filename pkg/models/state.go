package models

import "fmt"

// MutationState tracks one optimistic mutation from local apply to resolution.
type MutationState int

const (
	StateClean MutationState = iota
	StateOptimistic
	StateCommitted
	StateRolledBack
	StateResynced
)

func (s MutationState) String() string {
	switch s {
	case StateClean:
		return "Clean"
	case StateOptimistic:
		return "Optimistic"
	case StateCommitted:
		return "Committed"
	case StateRolledBack:
		return "RolledBack"
	case StateResynced:
		return "Resynced"
	default:
		return "InvalidState"
	}
}

// Final reports whether no further transition is possible.
func (s MutationState) Final() bool {
	switch s {
	case StateCommitted, StateRolledBack, StateResynced:
		return true
	}
	return false
}

// ValidateTransitionTo returns an error unless s may move to next.
func (s MutationState) ValidateTransitionTo(next MutationState) error {
	switch s {
	case StateClean:
		if next == StateOptimistic {
			return nil
		}
	case StateOptimistic:
		switch next {
		case StateCommitted, StateRolledBack, StateResynced:
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %v to %v", s, next)
}
