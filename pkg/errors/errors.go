package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return goErrors.New(msg)
}

// Is forwards to the standard library so that callers only need to import
// this package.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As forwards to the standard library.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

// contextError annotates an error with what the caller was doing when it
// happened, e.g. "download fs/code.py: GET fs/code.py: 404 Not Found".
type contextError struct {
	context string
	err     error
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err contextError) Unwrap() error {
	return err.err
}

// WithContext adds context to the given error. It returns nil if err is nil,
// so it's safe to use on the result of a call without checking it first.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, err: err}
}

// RootCause strips all the context added by WithContext and returns the
// original error.
func RootCause(err error) error {
	for {
		switch e := err.(type) {
		case contextError:
			err = e.err
		case RestoreFailed:
			err = e.Cause
		default:
			return err
		}
	}
}

// FriendlyError is an error whose message is meant to be shown to the user
// as-is, without any further formatting.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// NewFriendlyError creates a FriendlyError with a printf-style message.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}
