package mock

import (
	"context"
	"sync/atomic"

	"approval-ledger/pkg/store"
)

// MockStore is a RecordStore whose behavior is set per method for tests.
// Unset hooks behave like an empty store: Get and Update report
// store.ErrNotFound, Query returns nothing, Insert echoes the id.
type MockStore struct {
	// Function hooks - set these to customize behavior
	GetFunc    func(ctx context.Context, collection, id string) (store.Document, error)
	QueryFunc  func(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error)
	InsertFunc func(ctx context.Context, collection, id string, doc store.Document) (string, error)
	UpdateFunc func(ctx context.Context, collection, id string, fields store.Document) error
	DeleteFunc func(ctx context.Context, collection, id string) error
	CloseFunc  func() error

	// NameValue is returned by Name, "mock" when empty.
	NameValue string

	// Call tracking (must use atomic operations for race-free access)
	getCalls    int64
	queryCalls  int64
	insertCalls int64
	updateCalls int64
	deleteCalls int64
	closeCalls  int64
}

// NewMockStore returns a mock with the given backend name.
func NewMockStore(name string) *MockStore {
	return &MockStore{NameValue: name}
}

// Get implements store.RecordStore.
func (m *MockStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	atomic.AddInt64(&m.getCalls, 1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, collection, id)
	}
	return nil, store.ErrNotFound
}

// Query implements store.RecordStore.
func (m *MockStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	atomic.AddInt64(&m.queryCalls, 1)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, collection, filters...)
	}
	return nil, nil
}

// Insert implements store.RecordStore.
func (m *MockStore) Insert(ctx context.Context, collection, id string, doc store.Document) (string, error) {
	atomic.AddInt64(&m.insertCalls, 1)
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, collection, id, doc)
	}
	if id == "" {
		id = "mock-id"
	}
	return id, nil
}

// Update implements store.RecordStore.
func (m *MockStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	atomic.AddInt64(&m.updateCalls, 1)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, collection, id, fields)
	}
	return store.ErrNotFound
}

// Delete implements store.RecordStore.
func (m *MockStore) Delete(ctx context.Context, collection, id string) error {
	atomic.AddInt64(&m.deleteCalls, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, collection, id)
	}
	return nil
}

// Name implements store.RecordStore.
func (m *MockStore) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

// Close implements store.RecordStore.
func (m *MockStore) Close() error {
	atomic.AddInt64(&m.closeCalls, 1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetCalls returns the number of Get calls (thread-safe).
func (m *MockStore) GetCalls() int { return int(atomic.LoadInt64(&m.getCalls)) }

// QueryCalls returns the number of Query calls (thread-safe).
func (m *MockStore) QueryCalls() int { return int(atomic.LoadInt64(&m.queryCalls)) }

// InsertCalls returns the number of Insert calls (thread-safe).
func (m *MockStore) InsertCalls() int { return int(atomic.LoadInt64(&m.insertCalls)) }

// UpdateCalls returns the number of Update calls (thread-safe).
func (m *MockStore) UpdateCalls() int { return int(atomic.LoadInt64(&m.updateCalls)) }

// DeleteCalls returns the number of Delete calls (thread-safe).
func (m *MockStore) DeleteCalls() int { return int(atomic.LoadInt64(&m.deleteCalls)) }

// CloseCalls returns the number of Close calls (thread-safe).
func (m *MockStore) CloseCalls() int { return int(atomic.LoadInt64(&m.closeCalls)) }

// Reset zeroes all call counters.
func (m *MockStore) Reset() {
	atomic.StoreInt64(&m.getCalls, 0)
	atomic.StoreInt64(&m.queryCalls, 0)
	atomic.StoreInt64(&m.insertCalls, 0)
	atomic.StoreInt64(&m.updateCalls, 0)
	atomic.StoreInt64(&m.deleteCalls, 0)
	atomic.StoreInt64(&m.closeCalls, 0)
}
