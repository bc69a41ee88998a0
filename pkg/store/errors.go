package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Errors reported by record store implementations.
var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = errors.New("store: record not found")

	// ErrInvalidKey is returned when a collection name or id is malformed
	ErrInvalidKey = errors.New("store: invalid key")

	// ErrInvalidDocument is returned when a document cannot be encoded or decoded
	ErrInvalidDocument = errors.New("store: invalid document")

	// ErrUnavailable is returned when the backend cannot be reached
	ErrUnavailable = errors.New("store: backend unavailable")

	// ErrTimeout is returned when an operation exceeds its deadline
	ErrTimeout = errors.New("store: operation timeout")

	// ErrCircuitOpen is returned when the circuit breaker rejects the call
	ErrCircuitOpen = errors.New("store: circuit breaker open")

	// ErrClosed is returned after Close has been called
	ErrClosed = errors.New("store: closed")
)

// IsNotFound reports whether err means the document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout reports whether err is a store timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsUnavailable reports whether the backend could not serve the call at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrClosed)
}

// ClassifyError returns a short label for err, used as a metrics result.
func ClassifyError(err error) string {
	if err == nil {
		return "success"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case IsTimeout(err):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrClosed):
		return "unavailable"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrInvalidDocument):
		return "invalid_document"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection", "connect", "dial", "broken pipe"):
		return "connection"
	case containsAny(msg, "marshal", "unmarshal", "encode", "decode"):
		return "serialization"
	default:
		return "other"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError adds backend and operation context to err.
func WrapError(err error, backend, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("store %s %s: %w", backend, operation, err)
}
