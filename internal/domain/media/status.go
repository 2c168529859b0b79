// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition validates if a status change is legal. Failed and
// Completed re-enter Processing on rebuild; Processing may be re-entered by
// a retried attempt that already owns the build.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusProcessing:
		return from.Valid()
	case StatusCompleted, StatusFailed:
		return from == StatusProcessing
	default:
		return false
	}
}

// Transition returns to when the change is legal, or a ValidationError.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &ValidationError{Field: "status", Msg: "illegal transition " + string(from) + " -> " + string(to)}
	}
	return to, nil
}
