package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/store"
)

var _ cache.CacheLayer = (*MemoryCache)(nil)

func newTestCache(t *testing.T, cfg MemoryCacheConfig) *MemoryCache {
	t.Helper()
	c, err := NewMemoryCache(cfg)
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := newTestCache(t, MemoryCacheConfig{})
	ctx := context.Background()

	if err := c.Set(ctx, "rec:transactions:1", store.Document{"status": "Pending"}, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	doc, err := c.Get(ctx, "rec:transactions:1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["status"] != "Pending" {
		t.Errorf("Expected Pending, got %v", doc["status"])
	}

	doc["status"] = "Failed"
	again, _ := c.Get(ctx, "rec:transactions:1")
	if again["status"] != "Pending" {
		t.Error("Cached document aliases returned map")
	}
}

func TestMemoryCache_Miss(t *testing.T) {
	c := newTestCache(t, MemoryCacheConfig{})

	if _, err := c.Get(context.Background(), "absent"); !cache.IsMiss(err) {
		t.Errorf("Expected miss, got %v", err)
	}
	if _, err := c.Get(context.Background(), ""); !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newTestCache(t, MemoryCacheConfig{CleanupInterval: time.Hour})
	ctx := context.Background()

	_ = c.Set(ctx, "k", store.Document{"a": 1}, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !cache.IsMiss(err) {
		t.Errorf("Expected expired entry to miss, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry removed, len=%d", c.Len())
	}
}

func TestMemoryCache_MaxTTLCaps(t *testing.T) {
	c := newTestCache(t, MemoryCacheConfig{DefaultTTL: 5 * time.Millisecond, MaxTTL: 10 * time.Millisecond, CleanupInterval: time.Hour})
	ctx := context.Background()

	_ = c.Set(ctx, "k", store.Document{"a": 1}, time.Hour)
	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); !cache.IsMiss(err) {
		t.Errorf("Expected capped TTL to expire, got %v", err)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := newTestCache(t, MemoryCacheConfig{MaxSize: 2})
	ctx := context.Background()

	_ = c.Set(ctx, "a", store.Document{"v": 1}, 0)
	time.Sleep(time.Millisecond)
	_ = c.Set(ctx, "b", store.Document{"v": 2}, 0)
	time.Sleep(time.Millisecond)

	// touch a so b becomes least recently used
	_, _ = c.Get(ctx, "a")
	time.Sleep(time.Millisecond)
	_ = c.Set(ctx, "c", store.Document{"v": 3}, 0)

	if _, err := c.Get(ctx, "b"); !cache.IsMiss(err) {
		t.Error("Expected b to be evicted")
	}
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Errorf("Expected a to survive, got %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", c.Len())
	}
}

func TestMemoryCache_InvalidConfig(t *testing.T) {
	if _, err := NewMemoryCache(MemoryCacheConfig{DefaultTTL: time.Hour, MaxTTL: time.Minute}); err == nil {
		t.Error("Expected error when default TTL exceeds max")
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := newTestCache(t, MemoryCacheConfig{MaxSize: 10})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%15))
			_ = c.Set(ctx, key, store.Document{"i": i}, 0)
			_, _ = c.Get(ctx, key)
			_ = c.Delete(ctx, key)
		}(i)
	}
	wg.Wait()

	if c.Len() > 10 {
		t.Errorf("Cache exceeded max size: %d", c.Len())
	}
}

func TestMemoryCache_CloseTwice(t *testing.T) {
	c, _ := NewMemoryCache(MemoryCacheConfig{})
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if err := c.Set(context.Background(), "k", store.Document{}, 0); err == nil {
		t.Error("Expected error after Close")
	}
}
