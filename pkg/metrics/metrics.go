package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting service metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory for tests).
type MetricsCollector interface {
	// Record store operations. result is "success" or an error class
	// such as "not_found", "timeout" or "circuit_open".
	RecordStoreOp(backend, operation, result string, duration time.Duration)

	// Cache layers
	RecordCacheGet(layer string, hit bool, duration time.Duration)
	RecordCacheInvalidate(layer string, success bool)

	// Circuit breaker
	RecordCircuitState(backend string, state CircuitState)

	// Async writer
	RecordQueueDepth(layer string, depth int)
	RecordWriteDropped(layer string)
	RecordAsyncWrite(layer string, success bool, duration time.Duration)

	// Workflow status changes, e.g. ("transaction", "Pending", "Completed").
	RecordTransition(workflow, from, to string)

	// HTTP
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is the default collector when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordStoreOp(backend, operation, result string, duration time.Duration) {}
func (NoOpCollector) RecordCacheGet(layer string, hit bool, duration time.Duration)             {}
func (NoOpCollector) RecordCacheInvalidate(layer string, success bool)                          {}
func (NoOpCollector) RecordCircuitState(backend string, state CircuitState)                     {}
func (NoOpCollector) RecordQueueDepth(layer string, depth int)                                  {}
func (NoOpCollector) RecordWriteDropped(layer string)                                           {}
func (NoOpCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration)       {}
func (NoOpCollector) RecordTransition(workflow, from, to string)                                {}
func (NoOpCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {}

// OrNoOp returns c, or a NoOpCollector when c is nil.
func OrNoOp(c MetricsCollector) MetricsCollector {
	if c == nil {
		return NoOpCollector{}
	}
	return c
}
