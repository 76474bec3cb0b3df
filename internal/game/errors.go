package game

import "errors"

// Validation errors: rejected synchronously, no state change.
var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrUnknownWagerKind = errors.New("unknown wager kind")
	ErrMissingTarget    = errors.New("target value required for this wager kind")
	ErrUnknownAction    = errors.New("unknown action")
)

// State conflicts: the round/table is not in a phase that permits the
// call. Callers must not retry blindly.
var (
	ErrBettingClosed   = errors.New("betting closed")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrNoActiveCycle   = errors.New("no active cycle")
	ErrTableFull       = errors.New("table full")
	ErrAlreadyReady    = errors.New("already ready")
	ErrCycleInProgress = errors.New("cycle already in progress")
	ErrNotSeated       = errors.New("not seated at this table")
	ErrTableNotFound   = errors.New("table not found")
)
