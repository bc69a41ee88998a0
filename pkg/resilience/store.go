package resilience

import (
	"context"
	"errors"
	"time"

	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/metrics"
	"approval-ledger/pkg/store"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ResilientStore wraps a RecordStore with a circuit breaker and a
// per-operation timeout. Absent documents, malformed keys and callers
// that went away do not count as backend failures.
type ResilientStore struct {
	store   store.RecordStore
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// NewResilientStore wraps s. metricsCollector may be nil.
func NewResilientStore(s store.RecordStore, config ResilientConfig, metricsCollector metrics.MetricsCollector) *ResilientStore {
	logger := logging.Global().Named("resilience").Named(s.Name())

	rs := &ResilientStore{
		store:   s,
		timeout: config.Timeout,
		metrics: metrics.OrNoOp(metricsCollector),
		logger:  logger,
	}

	logger.Info("resilient store initialized",
		zap.String("backend", s.Name()),
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_interval", config.CircuitBreakerConfig.Interval),
		zap.Duration("circuit_timeout", config.CircuitBreakerConfig.Timeout),
	)

	settings := gobreaker.Settings{
		Name:        s.Name(),
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.CircuitBreakerConfig.ReadyToTrip != nil {
				return config.CircuitBreakerConfig.ReadyToTrip(Counts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				})
			}
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rs.metrics.RecordCircuitState(name, circuitState(to))
		},
	}

	rs.cb = gobreaker.NewCircuitBreaker(settings)

	return rs
}

func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidKey) ||
		errors.Is(err, context.Canceled)
}

func circuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// execute runs fn under the timeout and the breaker, then maps, records
// and logs the outcome.
func (rs *ResilientStore) execute(ctx context.Context, operation string, fields []zap.Field, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	start := time.Now()

	if rs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.timeout)
		defer cancel()
	}

	result, err := rs.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	duration := time.Since(start)

	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rs.logger.Warn("circuit breaker open - request rejected",
			append(fields, zap.String("operation", operation))...)
		err = store.WrapError(store.ErrCircuitOpen, rs.store.Name(), operation)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rs.logger.Warn("operation timeout",
			append(fields,
				zap.String("operation", operation),
				zap.Duration("timeout", rs.timeout),
				zap.Duration("elapsed", duration),
			)...)
		err = store.WrapError(store.ErrTimeout, rs.store.Name(), operation)
	case isSuccessful(err):
		// expected outcome, returned unchanged
	default:
		rs.logger.Error("store operation failed",
			append(fields,
				zap.String("operation", operation),
				zap.Duration("duration", duration),
				zap.Error(err),
			)...)
	}

	rs.metrics.RecordStoreOp(rs.store.Name(), operation, store.ClassifyError(err), duration)

	return result, err
}

// Get implements store.RecordStore.
func (rs *ResilientStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	result, err := rs.execute(ctx, "get", docFields(collection, id), func(ctx context.Context) (interface{}, error) {
		return rs.store.Get(ctx, collection, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(store.Document), nil
}

// Query implements store.RecordStore.
func (rs *ResilientStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	result, err := rs.execute(ctx, "query", []zap.Field{zap.String("collection", collection)}, func(ctx context.Context) (interface{}, error) {
		return rs.store.Query(ctx, collection, filters...)
	})
	if err != nil {
		return nil, err
	}
	return result.([]store.Record), nil
}

// Insert implements store.RecordStore.
func (rs *ResilientStore) Insert(ctx context.Context, collection, id string, doc store.Document) (string, error) {
	result, err := rs.execute(ctx, "insert", docFields(collection, id), func(ctx context.Context) (interface{}, error) {
		return rs.store.Insert(ctx, collection, id, doc)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Update implements store.RecordStore.
func (rs *ResilientStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	_, err := rs.execute(ctx, "update", docFields(collection, id), func(ctx context.Context) (interface{}, error) {
		return nil, rs.store.Update(ctx, collection, id, fields)
	})
	return err
}

// Delete implements store.RecordStore.
func (rs *ResilientStore) Delete(ctx context.Context, collection, id string) error {
	_, err := rs.execute(ctx, "delete", docFields(collection, id), func(ctx context.Context) (interface{}, error) {
		return nil, rs.store.Delete(ctx, collection, id)
	})
	return err
}

// State returns the current circuit breaker state.
func (rs *ResilientStore) State() metrics.CircuitState {
	return circuitState(rs.cb.State())
}

// Name returns the name of the wrapped store.
func (rs *ResilientStore) Name() string {
	return rs.store.Name()
}

// Close closes the wrapped store.
func (rs *ResilientStore) Close() error {
	return rs.store.Close()
}

func docFields(collection, id string) []zap.Field {
	return []zap.Field{zap.String("collection", collection), zap.String("id", id)}
}
