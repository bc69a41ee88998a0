package resilience

import (
	"time"
)

// ResilientConfig is the timeout and breaker setup wrapped around a record
// store.
type ResilientConfig struct {
	// Timeout bounds every store operation. Zero disables it.
	Timeout time.Duration

	CircuitBreakerConfig CircuitBreakerConfig
}

// CircuitBreakerConfig maps onto gobreaker.Settings.
type CircuitBreakerConfig struct {
	// MaxRequests trial calls are let through while half-open.
	MaxRequests uint32

	// Interval resets the counts while closed. Zero keeps them for the
	// life of the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before trying again.
	Timeout time.Duration

	// ReadyToTrip decides, after a failed call, whether to open. Nil opens
	// on the fifth failure in a row.
	ReadyToTrip func(counts Counts) bool
}

// Counts mirrors gobreaker.Counts so callers need not import gobreaker.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// DefaultResilientConfig bounds store calls at 5s. The breaker opens on 5
// failures in a row, or once 20 calls in a 60s window fail at 15% or more,
// and probes again after 30s.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Timeout: 5 * time.Second,
		CircuitBreakerConfig: CircuitBreakerConfig{
			MaxRequests: 5,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: tripOnFailureRate,
		},
	}
}

func tripOnFailureRate(counts Counts) bool {
	switch {
	case counts.ConsecutiveFailures >= 5:
		return true
	case counts.Requests < 20:
		return false
	default:
		return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.15
	}
}

// WithTimeout sets the per-operation timeout on a copy of c.
func (c ResilientConfig) WithTimeout(timeout time.Duration) ResilientConfig {
	c.Timeout = timeout
	return c
}

// WithCircuitBreakerTimeout sets how long the breaker stays open, on a copy
// of c.
func (c ResilientConfig) WithCircuitBreakerTimeout(timeout time.Duration) ResilientConfig {
	c.CircuitBreakerConfig.Timeout = timeout
	return c
}
