package dataset

import (
	"errors"
	"fmt"
)

// Error is a DataAccessError: case data that is missing or inconsistent.
//
// Evaluation treats it as a per-structure failure: the structure is omitted
// from DVH and metric output instead of aborting the run.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Structure names the affected structure, if any.
	Structure string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes data access errors.
type ErrorCode string

const (
	// ErrCodeMissingCase indicates the case bundle could not be found or read.
	ErrCodeMissingCase ErrorCode = "MISSING_CASE"

	// ErrCodeMissingStructure indicates a structure is not part of the case.
	ErrCodeMissingStructure ErrorCode = "MISSING_STRUCTURE"

	// ErrCodeDimensionMismatch indicates arrays that should agree in shape do not.
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"

	// ErrCodeMissingBeam indicates a requested beam is absent from the case.
	ErrCodeMissingBeam ErrorCode = "MISSING_BEAM"

	// ErrCodeEmptyStructure indicates a structure selects no voxels.
	ErrCodeEmptyStructure ErrorCode = "EMPTY_STRUCTURE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Structure != "" {
		msg = fmt.Sprintf("%s (structure=%s)", msg, e.Structure)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err is, or wraps, a data access error.
func IsDataError(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// MissingStructure returns the error for an unknown structure name.
func MissingStructure(name string) *Error {
	return &Error{Code: ErrCodeMissingStructure, Message: "structure not in case", Structure: name}
}

// DimensionMismatch returns the error for arrays of disagreeing length.
func DimensionMismatch(structure string, want, got int) *Error {
	return &Error{
		Code:      ErrCodeDimensionMismatch,
		Message:   fmt.Sprintf("expected length %d, got %d", want, got),
		Structure: structure,
	}
}
