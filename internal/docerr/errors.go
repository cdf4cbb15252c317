// Package docerr defines the error taxonomy shared by the reader engine.
//
// Client-fault kinds (invalid input, type mismatch, validation) are detected
// before any filesystem access. Server-fault kinds (unavailable root, I/O)
// are logged by the boundary and never retried internally.
package docerr

import (
	"errors"
	"fmt"
	"strings"
)

// -- Sentinels --

var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrNotConfigured   = errors.New("document root not configured")
	ErrUnavailable     = errors.New("document root unavailable")
	ErrNotFound        = errors.New("path not found")
	ErrNotADirectory   = errors.New("not a directory")
	ErrNotAFile        = errors.New("not a file")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrValidation      = errors.New("validation failed")
	ErrIO              = errors.New("i/o failure")
)

// -- Error Types --

// PathError reports a failed operation on a root-relative path.
// It matches both its Kind sentinel and the underlying Cause.
type PathError struct {
	Op    string
	Path  string
	Kind  error
	Cause error
}

func (e *PathError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
}

func (e *PathError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// NewPathError is shorthand for &PathError{...}.
func NewPathError(op, path string, kind, cause error) *PathError {
	return &PathError{Op: op, Path: path, Kind: kind, Cause: cause}
}

// ValidationError collects every problem found in a payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation returns a *ValidationError for the given problems.
func Validation(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

// IsClientFault reports whether err was caused by the caller's input.
func IsClientFault(err error) bool {
	for _, kind := range []error{
		ErrInvalidPath,
		ErrNotFound,
		ErrNotADirectory,
		ErrNotAFile,
		ErrUnsupportedType,
		ErrValidation,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
