package service

import (
	"errors"
	"fmt"
)

// ErrRowBusy is returned when a record already has a mutation in flight.
var ErrRowBusy = errors.New("a change to this book is already in progress")

// TransportError is a network or HTTP level failure talking to the remote store.
type TransportError struct {
	Method string
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError means the remote store has no record with the given id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book %q not found", e.ID)
}
