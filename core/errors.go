package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrPermissionDenied is returned when the acting user lacks the capability required by an operation.
var ErrPermissionDenied = errors.New("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldValidationError is a shortcut for a ValidationError reported on a single field.
func NewFieldValidationError(field, msg string) error {
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced record does not exist.
// Missing schemes surface to administrators as a configuration problem.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// LockedError is returned when marks of a locked unit/semester are about to be mutated.
type LockedError struct {
	UnitID     string
	SemesterID string
}

func (err LockedError) Error() string {
	return fmt.Sprintf("marks for unit %s in semester %s are locked", err.UnitID, err.SemesterID)
}

func IsLocked(err error) bool {
	_, ok := errors.Cause(err).(*LockedError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
