// Package workflow implements the two approval workflows (transactions and
// credential requests) and the balance accessor on top of a record store.
//
// Records move from an initial status set on creation to one terminal
// status set by an admin decision. Services are stateless apart from their
// store handle and may be shared between goroutines.
package workflow

import (
	"context"
	"time"

	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/metrics"
)

// Collections names the store collections the services use.
type Collections struct {
	Transactions string
	Credentials  string
	Users        string
}

// DefaultCollections returns the collection names of the existing data.
func DefaultCollections() Collections {
	return Collections{
		Transactions: "transactions",
		Credentials:  "id",
		Users:        "user",
	}
}

// Options configures the workflow services.
type Options struct {
	Collections Collections

	// StrictTransitions rejects re-deciding a record that already has a
	// terminal status. Off by default: the last decision wins.
	StrictTransitions bool

	// Clock stamps server-side timestamps (default: time.Now)
	Clock func() time.Time

	Logger  *logging.Logger
	Metrics metrics.MetricsCollector

	name string
}

// Option modifies Options.
type Option func(*Options)

// WithCollections overrides the collection names.
func WithCollections(c Collections) Option {
	return func(o *Options) { o.Collections = c }
}

// WithStrictTransitions enables or disables strict transitions.
func WithStrictTransitions(strict bool) Option {
	return func(o *Options) { o.StrictTransitions = strict }
}

// WithClock sets the clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(o *Options) { o.Metrics = m }
}

func buildOptions(name string, opts []Option) Options {
	o := Options{Collections: DefaultCollections()}
	for _, opt := range opts {
		opt(&o)
	}

	defaults := DefaultCollections()
	if o.Collections.Transactions == "" {
		o.Collections.Transactions = defaults.Transactions
	}
	if o.Collections.Credentials == "" {
		o.Collections.Credentials = defaults.Credentials
	}
	if o.Collections.Users == "" {
		o.Collections.Users = defaults.Users
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = logging.Global()
	}
	o.name = name
	o.Metrics = metrics.OrNoOp(o.Metrics)

	return o
}

// log returns the request logger, or the fallback one, named after the
// service.
func (o Options) log(ctx context.Context) *logging.Logger {
	return logging.FromContextOr(ctx, o.Logger).Named(o.name)
}
