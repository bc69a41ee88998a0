package memory

import (
	"context"
	"sync"
	"time"

	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/store"
)

// MemoryCache is an in-process record cache with TTL expiry and LRU
// eviction once MaxSize entries are held.
type MemoryCache struct {
	data map[string]*entry

	// mu protects data
	mu sync.Mutex

	config MemoryCacheConfig
	ttl    cache.LayerConfig

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

type entry struct {
	doc        store.Document
	expiresAt  time.Time
	accessedAt time.Time
}

// MemoryCacheConfig holds configuration for the memory cache
type MemoryCacheConfig struct {
	// Name is the cache layer identifier
	Name string

	// MaxSize is the maximum number of entries (0 = unlimited)
	MaxSize int

	// DefaultTTL is the default time-to-live for entries
	DefaultTTL time.Duration

	// MaxTTL caps TTLs passed to Set (0 = no cap)
	MaxTTL time.Duration

	// CleanupInterval is how often to check for expired entries
	CleanupInterval time.Duration
}

// NewMemoryCache creates a new in-memory cache and starts its expiry janitor.
func NewMemoryCache(config MemoryCacheConfig) (*MemoryCache, error) {
	if config.Name == "" {
		config.Name = "memory"
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = time.Minute
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Minute
	}

	ttl := cache.LayerConfig{Name: config.Name, DefaultTTL: config.DefaultTTL, MaxTTL: config.MaxTTL}
	if err := ttl.Validate(); err != nil {
		return nil, err
	}

	c := &MemoryCache{
		data:          make(map[string]*entry),
		config:        config,
		ttl:           ttl,
		stopCleanup:   make(chan struct{}),
		cleanupTicker: time.NewTicker(config.CleanupInterval),
	}

	c.wg.Add(1)
	go c.cleanup()

	return c, nil
}

// Get returns a copy of the cached document.
func (c *MemoryCache) Get(ctx context.Context, key string) (store.Document, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, cache.ErrMiss
	}

	now := time.Now()
	if now.After(e.expiresAt) {
		delete(c.data, key)
		return nil, cache.ErrMiss
	}
	e.accessedAt = now

	return e.doc.Clone(), nil
}

// Set caches a copy of doc, evicting the least recently used entry when full.
func (c *MemoryCache) Set(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	now := time.Now()
	expiresAt := now.Add(c.ttl.EffectiveTTL(ttl))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		return cache.ErrClosed
	}

	if _, exists := c.data[key]; !exists && c.config.MaxSize > 0 && len(c.data) >= c.config.MaxSize {
		c.evictLRU()
	}

	c.data[key] = &entry{
		doc:        doc.Clone(),
		expiresAt:  expiresAt,
		accessedAt: now,
	}

	return nil
}

// evictLRU must be called with c.mu held.
func (c *MemoryCache) evictLRU() {
	var lruKey string
	var lruTime time.Time

	for k, e := range c.data {
		if lruKey == "" || e.accessedAt.Before(lruTime) {
			lruKey = k
			lruTime = e.accessedAt
		}
	}

	if lruKey != "" {
		delete(c.data, lruKey)
	}
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	return nil
}

// Name returns the cache layer name.
func (c *MemoryCache) Name() string {
	return c.config.Name
}

// Len returns the number of entries, including expired ones not yet swept.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Close stops the janitor and drops all entries. It is safe to call twice.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
		c.wg.Wait()

		c.mu.Lock()
		c.data = nil
		c.mu.Unlock()
	})
	return nil
}

func (c *MemoryCache) cleanup() {
	defer c.wg.Done()

	for {
		select {
		case <-c.cleanupTicker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.data {
		if now.After(e.expiresAt) {
			delete(c.data, key)
		}
	}
}
