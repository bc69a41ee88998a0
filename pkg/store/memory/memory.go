package memory

import (
	"context"
	"sort"
	"sync"

	"approval-ledger/pkg/store"

	"github.com/google/uuid"
)

// MemoryStore is an in-process RecordStore. It backs local runs and tests.
//
// Documents are copied on the way in and on the way out so callers can never
// mutate stored state through a returned map.
type MemoryStore struct {
	// collections maps collection -> id -> entry
	collections map[string]map[string]*entry

	// mu protects collections and closed
	mu sync.RWMutex

	name   string
	closed bool
	seq    int64

	// newID generates ids for inserts without one
	newID func() string
}

type entry struct {
	doc store.Document
	// seq preserves insertion order for Query
	seq int64
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithName overrides the backend name reported by Name.
func WithName(name string) Option {
	return func(s *MemoryStore) { s.name = name }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *MemoryStore) { s.newID = fn }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]map[string]*entry),
		name:        "memory",
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := store.ValidateKey(collection, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	e, ok := s.collections[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.doc.Clone(), nil
}

// Query returns matching records in insertion order.
func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Record, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, store.ErrClosed
	}

	type hit struct {
		rec store.Record
		seq int64
	}
	var hits []hit
	for id, e := range s.collections[collection] {
		if store.MatchesAll(e.doc, filters) {
			hits = append(hits, hit{store.Record{ID: id, Data: e.doc.Clone()}, e.seq})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	records := make([]store.Record, 0, len(hits))
	for _, h := range hits {
		records = append(records, h.rec)
	}
	return records, nil
}

// Insert stores a copy of doc.
func (s *MemoryStore) Insert(ctx context.Context, collection, id string, doc store.Document) (string, error) {
	if err := store.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", store.ErrClosed
	}

	if id == "" {
		id = s.newID()
	}
	if err := store.ValidateID(id); err != nil {
		return "", err
	}

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*entry)
		s.collections[collection] = docs
	}

	data := doc.Clone()
	if data == nil {
		data = store.Document{}
	}
	s.seq++
	docs[id] = &entry{doc: data, seq: s.seq}
	return id, nil
}

// Update merges fields into the stored document under a single lock.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields store.Document) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}

	e, ok := s.collections[collection][id]
	if !ok {
		return store.ErrNotFound
	}
	e.doc.Merge(fields)
	return nil
}

// Delete removes a document.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := store.ValidateKey(collection, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	delete(s.collections[collection], id)
	return nil
}

// Len returns the number of documents in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Name returns the backend name.
func (s *MemoryStore) Name() string {
	return s.name
}

// Close drops all data. Further calls return store.ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.collections = nil
	return nil
}
