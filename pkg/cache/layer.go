// Package cache holds read caches for single records. Layers are never the
// source of truth: a miss or an error always falls through to the record store.
package cache

import (
	"context"
	"time"

	"approval-ledger/pkg/store"
)

// CacheLayer is implemented by every record cache.
type CacheLayer interface {
	// Get returns the cached document for key.
	// Returns ErrMiss when the key is absent or expired.
	Get(ctx context.Context, key string) (store.Document, error)

	// Set caches doc under key for ttl. A zero ttl means the layer default.
	Set(ctx context.Context, key string, doc store.Document, ttl time.Duration) error

	// Delete evicts key. Evicting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Name identifies the layer in logs and metrics.
	Name() string

	// Close releases any resources held by the layer.
	Close() error
}
