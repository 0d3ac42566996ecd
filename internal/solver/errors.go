package solver

import (
	"errors"
	"fmt"
)

// Error is a SolverFailure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Solver names the failing solver, if any.
	Solver string

	// Attempts lists every attempt made, for terminal failures.
	Attempts []Attempt

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes solver failures.
type ErrorCode string

const (
	// ErrCodeUnknownSolver indicates the requested solver is not registered.
	ErrCodeUnknownSolver ErrorCode = "UNKNOWN_SOLVER"

	// ErrCodeUnavailable indicates the solver binary is missing or unlicensed.
	ErrCodeUnavailable ErrorCode = "SOLVER_UNAVAILABLE"

	// ErrCodeSolveFailed indicates the solver exited without a readable answer.
	ErrCodeSolveFailed ErrorCode = "SOLVE_FAILED"

	// ErrCodeAllAttemptsFailed indicates every fallback tier failed.
	ErrCodeAllAttemptsFailed ErrorCode = "ALL_ATTEMPTS_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Solver != "" {
		msg = fmt.Sprintf("%s (solver=%s)", msg, e.Solver)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSolverError reports whether err is, or wraps, a solver failure.
func IsSolverError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
