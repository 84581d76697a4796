package handler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound reports a well-formed request for a key the store does not hold.
	ErrNotFound = errors.New("key not found")
	// ErrUnsupported reports a method the handler does not serve.
	ErrUnsupported = errors.New("method not allowed")
)

// ValidationError is a malformed or incomplete request. It never reaches
// the store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// StoreError is any failure talking to, or reported by, the store.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// StatusFor maps an outcome to its response status.
func StatusFor(err error) int {
	var ve *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupported):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}
