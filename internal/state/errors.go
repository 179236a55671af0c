package state

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyApplied is returned when a transaction (or one of the
	// transactions it was composed from) is applied a second time.
	ErrAlreadyApplied = errors.New("transaction already applied")

	// ErrUnknownSlice is returned when a snapshot is asked for a slice it
	// was not created with.
	ErrUnknownSlice = errors.New("unknown slice")

	// ErrDuplicateActionID is returned when an action id is registered twice.
	ErrDuplicateActionID = errors.New("duplicate action id")

	// ErrDuplicateSlice is returned when the same slice is passed to a
	// snapshot twice.
	ErrDuplicateSlice = errors.New("duplicate slice")

	// ErrUnknownOverride is returned when a state override targets a slice
	// that is not part of the snapshot.
	ErrUnknownOverride = errors.New("override references unknown slice")
)

// ErrorCode categorizes construction errors.
type ErrorCode string

const (
	CodeDuplicateActionID ErrorCode = "DUPLICATE_ACTION_ID"
	CodeDuplicateSlice    ErrorCode = "DUPLICATE_SLICE"
	CodeUnknownOverride   ErrorCode = "UNKNOWN_OVERRIDE"
	CodeCyclicDependency  ErrorCode = "CYCLIC_DEPENDENCY"
	CodeMissingDependency ErrorCode = "MISSING_DEPENDENCY"
)

// ConstructionError is a fatal programmer error detected while building
// slices, actions or the initial snapshot.
type ConstructionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the slice or action id involved, if any.
	ID string

	// Err is the underlying sentinel or graph error.
	Err error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// IsConstructionError reports whether err is (or wraps) a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// IsConstructionErrorCode reports whether err is a ConstructionError with
// the given code.
func IsConstructionErrorCode(err error, code ErrorCode) bool {
	var ce *ConstructionError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
