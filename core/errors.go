package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var (
	ErrNotFound     = NewNotFoundError("not found")
	ErrUnauthorized = NewUnauthorizedError("user not authenticated")
	ErrForbidden    = NewForbiddenError("permission denied")
)

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

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// IsValidationError reports validation failures, ours or the validator's.
func IsValidationError(err error) bool {
	cause := errors.Cause(err)
	if _, ok := cause.(*ValidationError); ok {
		return true
	}
	_, ok := cause.(validator.ValidationErrors)
	return ok
}

// NotFoundError is returned when a looked up record does not exist.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) error {
	return &NotFoundError{message: msg}
}

func (err NotFoundError) Error() string {
	return err.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ConflictError reports a write refused because of existing data (duplicate codes, dependants...).
type ConflictError struct {
	message string
}

func NewConflictError(format string, args ...interface{}) error {
	return &ConflictError{message: fmt.Sprintf(format, args...)}
}

func (err ConflictError) Error() string {
	return err.message
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// UnauthorizedError is returned when the caller could not be authenticated.
type UnauthorizedError struct {
	message string
}

func NewUnauthorizedError(msg string) error {
	return &UnauthorizedError{message: msg}
}

func (err UnauthorizedError) Error() string {
	return err.message
}

func IsUnauthorized(err error) bool {
	_, ok := errors.Cause(err).(*UnauthorizedError)
	return ok
}

// ForbiddenError is returned when an authenticated caller may not perform an action.
type ForbiddenError struct {
	message string
}

func NewForbiddenError(msg string) error {
	return &ForbiddenError{message: msg}
}

func (err ForbiddenError) Error() string {
	return err.message
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
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
