package mock

import (
	"context"
	"sync/atomic"
	"time"

	"approval-ledger/pkg/cache"
	"approval-ledger/pkg/store"
)

// MockLayer is a CacheLayer with injectable behavior and call counters.
type MockLayer struct {
	// Function hooks - set these to customize behavior
	GetFunc    func(ctx context.Context, key string) (store.Document, error)
	SetFunc    func(ctx context.Context, key string, doc store.Document, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
	CloseFunc  func() error

	name string

	// Call tracking (must use atomic operations for race-free access)
	getCalls    int64
	setCalls    int64
	deleteCalls int64
	closeCalls  int64
}

// NewMockLayer creates a layer that always misses and accepts every write.
func NewMockLayer(name string) *MockLayer {
	return &MockLayer{name: name}
}

// Get implements CacheLayer.Get.
func (m *MockLayer) Get(ctx context.Context, key string) (store.Document, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, cache.ErrMiss
}

// Set implements CacheLayer.Set.
func (m *MockLayer) Set(ctx context.Context, key string, doc store.Document, ttl time.Duration) error {
	atomic.AddInt64(&m.setCalls, 1)
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, doc, ttl)
	}
	return nil
}

// Delete implements CacheLayer.Delete.
func (m *MockLayer) Delete(ctx context.Context, key string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	return nil
}

// Name implements CacheLayer.Name.
func (m *MockLayer) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

// Close implements CacheLayer.Close.
func (m *MockLayer) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetCalls returns the number of Get calls (thread-safe).
func (m *MockLayer) GetCalls() int { return int(atomic.LoadInt64(&m.getCalls)) }

// SetCalls returns the number of Set calls (thread-safe).
func (m *MockLayer) SetCalls() int { return int(atomic.LoadInt64(&m.setCalls)) }

// DeleteCalls returns the number of Delete calls (thread-safe).
func (m *MockLayer) DeleteCalls() int { return int(atomic.LoadInt64(&m.deleteCalls)) }

// CloseCalls returns the number of Close calls (thread-safe).
func (m *MockLayer) CloseCalls() int { return int(atomic.LoadInt64(&m.closeCalls)) }
