package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrFeedMalformed  = errors.New("malformed feed payload")
	ErrFeedStatus     = errors.New("unexpected feed status")
	ErrLockHeld       = errors.New("ingestion lock held by another run")
	ErrChannelConfig  = errors.New("delivery channel not configured")
	ErrNotImplemented = errors.New("not implemented")
)

// FeedError represents a failure fetching or decoding a partner feed.
// The URL's cycle is skipped; the next scheduled run retries.
type FeedError struct {
	URL   string
	Stage string // "transport", "status", "decode"
	Err   error
}

func (e FeedError) Error() string {
	return fmt.Sprintf("feed error for %s at stage %s: %v", e.URL, e.Stage, e.Err)
}

func (e FeedError) Unwrap() error {
	return e.Err
}

// DatabaseError represents a database-related error
type DatabaseError struct {
	Operation string
	Err       error
}

func (e DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e DatabaseError) Unwrap() error {
	return e.Err
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error `json:"errors"`
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e.Errors[0].Error(), len(e.Errors)-1)
}

// Add adds an error to the MultiError
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (e *MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}
