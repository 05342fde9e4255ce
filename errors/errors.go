// Package errors provides error handling for nanoprobe.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Assertion failures for broken caller contracts
//
// Usage:
//
//	if err := store.CreateExecution(exec); err != nil {
//	    return errors.Wrap(err, "failed to record execution")
//	}
//
//	// Add hints for operators
//	return errors.WithHint(err, "check the [[monitor]] entries in the definitions file")
//
//	// Contract violations are programming errors, not runtime conditions
//	panic(errors.AssertionFailedf("command %q is not queued", name))
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// Operator-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	Mark           = crdb.Mark
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf    = crdb.AssertionFailedf
	HasAssertionFailure = crdb.HasAssertionFailure
)

// Common sentinel errors. Wrap these with errors.Wrap() to add context
// while keeping errors.Is() working.
var (
	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")

	// ErrInvalidDefinition indicates a monitor definition cannot be turned into a command
	ErrInvalidDefinition = New("invalid monitor definition")

	// ErrIncompatibleVersion indicates a definitions file requires a different agent version
	ErrIncompatibleVersion = New("incompatible agent version")

	// ErrStopped indicates the reactor is no longer running
	ErrStopped = New("reactor stopped")

	// ErrNotStarted indicates work was handed to a reactor before Start
	ErrNotStarted = New("reactor not started")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidDefinitionError creates an invalid-definition error with a formatted message
func NewInvalidDefinitionError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidDefinition, Newf(format, args...).Error())
}
