package chain

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"
	"time"

	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/metrics"
	"approval-ledger/pkg/store"
	"approval-ledger/pkg/writer"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// generationStripes bounds the memory used to detect stale warm-ups.
const generationStripes = 1024

// Chain is a RecordStore that serves single-record reads from cache layers
// in front of a backing store. Layers are ordered fastest first.
//
// The backing store stays the source of truth: every write goes to it
// first and then evicts the record from every layer, and list queries are
// never cached. Concurrent reads of one record share a single lookup.
type Chain struct {
	backing store.RecordStore
	layers  []cache.CacheLayer
	writers []*writer.AsyncWriter
	sf      singleflight.Group
	keys    *store.KeyPattern
	config  ChainConfig
	metrics metrics.MetricsCollector
	logger  *logging.Logger

	// generations are bumped on every invalidation; a warm-up scheduled
	// before the bump is discarded
	generations [generationStripes]uint64
}

// ChainConfig configures a Chain.
type ChainConfig struct {
	// BaseTTL is passed to TTLStrategy (default: 5m)
	BaseTTL time.Duration

	// TTLStrategy picks per-layer TTLs (default: UniformTTLStrategy)
	TTLStrategy TTLStrategy

	// KeyPrefix prefixes every cache key (default: "rec")
	KeyPrefix string

	// Writer configures the warm-up writer of each layer
	Writer writer.AsyncWriterConfig

	// Metrics receives cache and warm-up metrics (default: no-op)
	Metrics metrics.MetricsCollector
}

// DefaultChainConfig returns the default configuration.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		BaseTTL:     5 * time.Minute,
		TTLStrategy: UniformTTLStrategy{},
		KeyPrefix:   "rec",
		Writer: writer.AsyncWriterConfig{
			QueueSize:   1000,
			Workers:     2,
			MaxWaitTime: 10 * time.Millisecond,
		},
	}
}

// New creates a chain with the default configuration.
func New(backing store.RecordStore, layers ...cache.CacheLayer) (*Chain, error) {
	return NewWithConfig(backing, DefaultChainConfig(), layers...)
}

// NewWithConfig creates a chain over backing. At least one layer is required.
func NewWithConfig(backing store.RecordStore, config ChainConfig, layers ...cache.CacheLayer) (*Chain, error) {
	if backing == nil {
		return nil, errors.New("chain: backing store required")
	}
	if len(layers) == 0 {
		return nil, errors.New("chain: at least one layer required")
	}

	if config.BaseTTL <= 0 {
		config.BaseTTL = 5 * time.Minute
	}
	if config.TTLStrategy == nil {
		config.TTLStrategy = UniformTTLStrategy{}
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rec"
	}
	config.Metrics = metrics.OrNoOp(config.Metrics)

	writers := make([]*writer.AsyncWriter, len(layers))
	for i, layer := range layers {
		writers[i] = writer.NewAsyncWriter(layer, config.Writer, config.Metrics)
	}

	c := &Chain{
		backing: backing,
		layers:  layers,
		writers: writers,
		keys:    store.NewKeyPattern(config.KeyPrefix, ":"),
		config:  config,
		metrics: config.Metrics,
		logger:  logging.Global().Named("chain"),
	}

	c.logger.Info("cached store initialized",
		zap.String("chain", c.String()),
		zap.Duration("base_ttl", config.BaseTTL),
	)

	return c, nil
}

// Get returns the record from the first layer that has it, falling back to
// the backing store. Hits below the first layer and backing-store reads
// warm the layers above asynchronously.
func (c *Chain) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := store.ValidateKey(collection, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := c.keys.DocumentKey(collection, id)

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		return c.getWithFallback(ctx, collection, id, key)
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share the map
	return result.(store.Document).Clone(), nil
}

func (c *Chain) getWithFallback(ctx context.Context, collection, id, key string) (store.Document, error) {
	gen := c.generation(key)

	for i, layer := range c.layers {
		start := time.Now()
		doc, err := layer.Get(ctx, key)
		c.metrics.RecordCacheGet(layer.Name(), err == nil, time.Since(start))

		if err == nil {
			c.warm(ctx, key, doc, i, gen)
			return doc, nil
		}
		if !cache.IsMiss(err) {
			c.logger.Debug("cache layer read failed",
				zap.String("layer", layer.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}

	doc, err := c.backing.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	c.warm(ctx, key, doc, len(c.layers), gen)
	return doc, nil
}

// warm schedules writes of doc to every layer above hitIndex.
func (c *Chain) warm(ctx context.Context, key string, doc store.Document, hitIndex int, gen uint64) {
	valid := func() bool { return c.generation(key) == gen }

	for i := hitIndex - 1; i >= 0; i-- {
		ttl := c.config.TTLStrategy.GetTTL(i, len(c.layers), c.config.BaseTTL)
		// drops are counted by the writer
		_ = c.writers[i].Write(context.WithoutCancel(ctx), key, doc, ttl, valid)
	}
}

func (c *Chain) stripe(key string) *uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.generations[h.Sum32()%generationStripes]
}

func (c *Chain) generation(key string) uint64 {
	return atomic.LoadUint64(c.stripe(key))
}

// invalidate evicts a record from every layer after a write.
func (c *Chain) invalidate(ctx context.Context, collection, id string) {
	key := c.keys.DocumentKey(collection, id)

	atomic.AddUint64(c.stripe(key), 1)
	c.sf.Forget(key)

	ctx = context.WithoutCancel(ctx)
	for _, layer := range c.layers {
		err := layer.Delete(ctx, key)
		c.metrics.RecordCacheInvalidate(layer.Name(), err == nil)
		if err != nil {
			c.logger.Warn("cache invalidation failed",
				zap.String("layer", layer.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

// Query always reads the backing store.
func (c *Chain) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	return c.backing.Query(ctx, collection, filters...)
}

// Insert writes to the backing store and evicts any cached copy of the id.
func (c *Chain) Insert(ctx context.Context, collection, id string, doc store.Document) (string, error) {
	newID, err := c.backing.Insert(ctx, collection, id, doc)
	if err != nil {
		return "", err
	}
	if id != "" {
		c.invalidate(ctx, collection, newID)
	}
	return newID, nil
}

// Update writes to the backing store, then evicts the record.
func (c *Chain) Update(ctx context.Context, collection, id string, fields store.Document) error {
	if err := c.backing.Update(ctx, collection, id, fields); err != nil {
		return err
	}
	c.invalidate(ctx, collection, id)
	return nil
}

// Delete removes the record from the backing store, then evicts it.
func (c *Chain) Delete(ctx context.Context, collection, id string) error {
	if err := c.backing.Delete(ctx, collection, id); err != nil {
		return err
	}
	c.invalidate(ctx, collection, id)
	return nil
}

// Flush waits for pending warm-ups, mostly useful in tests.
func (c *Chain) Flush(timeout time.Duration) error {
	for _, w := range c.writers {
		if err := w.Flush(timeout); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the backing store name.
func (c *Chain) Name() string {
	return c.backing.Name()
}

// Close stops the writers, then closes the layers and the backing store.
// All are attempted; the errors are joined.
func (c *Chain) Close() error {
	var errs []error

	for _, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, layer := range c.layers {
		if err := layer.Close(); err != nil {
			errs = append(errs, cache.WrapError(err, layer.Name(), "close"))
		}
	}
	if err := c.backing.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Len returns the number of cache layers.
func (c *Chain) Len() int {
	return len(c.layers)
}

// String describes the chain, e.g. "chain(2 layers): memory -> redis -> postgres".
func (c *Chain) String() string {
	names := make([]string, 0, len(c.layers)+1)
	for _, layer := range c.layers {
		names = append(names, layer.Name())
	}
	names = append(names, c.backing.Name())
	return fmt.Sprintf("chain(%d layers): %s", len(c.layers), strings.Join(names, " -> "))
}
