package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionInvalid matches a StatusError whose code means the backend
	// no longer recognizes the session (400 or 401).
	ErrSessionInvalid = errors.New("session invalid")

	// ErrTableShape is returned when a table payload has neither of the
	// accepted shapes.
	ErrTableShape = errors.New("could not parse table data")
)

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response. Message is the server's "error"
// text when the body carried one.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s failed with HTTP %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// Is reports 400/401 responses as ErrSessionInvalid.
func (e *StatusError) Is(target error) bool {
	return target == ErrSessionInvalid &&
		(e.Code == http.StatusBadRequest || e.Code == http.StatusUnauthorized)
}

// AppError is a 2xx response whose payload carried an "error" field.
// Error returns the server text verbatim.
type AppError struct {
	Op      string
	Message string
}

func (e *AppError) Error() string { return e.Message }
