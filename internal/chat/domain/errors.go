package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage no text and no file
	ErrEmptyMessage = errors.New("message must have text or a file")
	// ErrFileTooLarge file over the byte ceiling
	ErrFileTooLarge = errors.New("file is too large")
	// ErrFileTypeNotAllowed mime type not in the allow-list
	ErrFileTypeNotAllowed = errors.New("file type is not allowed")
	// ErrNoRecipient neither to nor groupId
	ErrNoRecipient = errors.New("message has no recipient")
	// ErrNotFound record does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotJoined event needs a bound username
	ErrNotJoined = errors.New("join required")
	// ErrUsernameRequired join without a name
	ErrUsernameRequired = errors.New("username required")
	// ErrUsernameMismatch join name differs from the token subject
	ErrUsernameMismatch = errors.New("username does not match token")
	// ErrMalformedSignal signaling body can't be read
	ErrMalformedSignal = errors.New("malformed signaling payload")
)

// ValidationError rejected input, reported to the sender only
type ValidationError struct {
	Err    error
	Detail string
}

// NewValidationError wrap a validation sentinel
func NewValidationError(err error, detail string) *ValidationError {
	return &ValidationError{Err: err, Detail: detail}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PersistenceError store unavailable
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
