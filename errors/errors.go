// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// GetErrCode returns the code of the outermost recognizable error
// in the wrap chain, Unknown if there is none
func GetErrCode(err error) ErrCode {
	var val *Error
	if stderrors.As(err, &val) {
		return val.code
	}
	return Unknown
}

// base error structure
type Error struct {
	code  ErrCode
	msg   string
	cause error
}

// Error() prints out the error message string
func (e *Error) Error() string {
	return e.msg
}

// Unwrap returns the error wrapped using %w in Wrapf, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns the error code associated with the error
func (e *Error) Code() ErrCode {
	return e.code
}

// Creates a new error msg without error code
func New(msg string) error {
	return &Error{
		msg: msg,
	}
}

// Wraps the error msg with recognized error codes
func Wrap(code ErrCode, msg string) error {
	return &Error{
		code: code,
		msg:  msg,
	}
}

// Wrapf formats the message and wraps it with recognized error code,
// an error passed with %w stays reachable through Is and As
func Wrapf(code ErrCode, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &Error{
		code:  code,
		msg:   err.Error(),
		cause: stderrors.Unwrap(err),
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// IsNotFound returns true if err
// item isn't found in the space
func IsNotFound(err error) bool {
	return GetErrCode(err) == NotFound
}

// IsAlreadyExists returns true if err
// item already exists in the space
func IsAlreadyExists(err error) bool {
	return GetErrCode(err) == AlreadyExists
}

// IsInvalidArgument returns true if err
// item is invalid argument
func IsInvalidArgument(err error) bool {
	return GetErrCode(err) == InvalidArgument
}

// IsUnauthorized returns true if the caller identity could not be
// established
func IsUnauthorized(err error) bool {
	return GetErrCode(err) == Unauthorized
}

// IsForbidden returns true if the caller is not allowed to act on the
// requested tenant
func IsForbidden(err error) bool {
	return GetErrCode(err) == Forbidden
}

// IsResourceExhausted returns true if the request budget is exhausted
func IsResourceExhausted(err error) bool {
	return GetErrCode(err) == ResourceExhausted
}

// IsTransient returns true for the storage failures that are expected
// to resolve on their own: transaction conflicts, bounded wait or
// execution timeouts and lock contention. Nothing else is retryable.
func IsTransient(err error) bool {
	switch GetErrCode(err) {
	case Conflict, Timeout, Deadlock:
		return true
	}
	return false
}

// HTTPStatus maps the error to the status code the governance layer
// responds with
func HTTPStatus(err error) int {
	switch GetErrCode(err) {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case ResourceExhausted:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
