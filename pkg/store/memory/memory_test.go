package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"approval-ledger/pkg/store"
)

var _ store.RecordStore = (*MemoryStore)(nil)

func TestMemoryStore_InsertGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, "transactions", "", store.Document{"status": "Pending"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated id")
	}

	doc, err := s.Get(ctx, "transactions", id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["status"] != "Pending" {
		t.Errorf("Expected Pending, got %v", doc["status"])
	}

	// Mutating the returned document must not change the store
	doc["status"] = "Completed"
	again, _ := s.Get(ctx, "transactions", id)
	if again["status"] != "Pending" {
		t.Error("Returned document aliases stored state")
	}
}

func TestMemoryStore_InsertExplicitIDOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Insert(ctx, "user", "42", store.Document{"balance": "10", "username": "a"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := s.Insert(ctx, "user", "42", store.Document{"username": "b"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	doc, _ := s.Get(ctx, "user", "42")
	if _, ok := doc["balance"]; ok {
		t.Error("Explicit insert should replace the whole document")
	}
	if s.Len("user") != 1 {
		t.Errorf("Expected 1 document, got %d", s.Len("user"))
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "transactions", "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateMerges(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, _ := s.Insert(ctx, "id", "", store.Document{"status": "Requested", "password": "old"})
	if err := s.Update(ctx, "id", id, store.Document{"password": "new"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	doc, _ := s.Get(ctx, "id", id)
	if doc["password"] != "new" || doc["status"] != "Requested" {
		t.Errorf("Unexpected document after merge: %v", doc)
	}

	if err := s.Update(ctx, "id", "missing", store.Document{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_QueryOrderAndFilter(t *testing.T) {
	seq := 0
	s := NewMemoryStore(WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("t%02d", seq)
	}))
	ctx := context.Background()

	owners := []interface{}{"42", float64(42), "7", "42"}
	for _, owner := range owners {
		if _, err := s.Insert(ctx, "transactions", "", store.Document{"createdBy": owner}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := s.Query(ctx, "transactions")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 records, got %d", len(all))
	}
	for i, rec := range all {
		if want := fmt.Sprintf("t%02d", i+1); rec.ID != want {
			t.Errorf("Record %d: expected id %s, got %s", i, want, rec.ID)
		}
	}

	mine, _ := s.Query(ctx, "transactions", store.Eq("createdBy", "42"))
	if len(mine) != 3 {
		t.Errorf("Expected 3 records for owner 42, got %d", len(mine))
	}

	none, err := s.Query(ctx, "empty")
	if err != nil || len(none) != 0 {
		t.Errorf("Expected empty result without error, got %v, %v", none, err)
	}
}

func TestMemoryStore_InvalidKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "bad name", "1"); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
	if _, err := s.Insert(ctx, "user", "a/b", store.Document{}); !errors.Is(err, store.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Close()

	if _, err := s.Get(context.Background(), "user", "1"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := s.Insert(context.Background(), "user", "", store.Document{}); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestMemoryStore_ConcurrentUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Insert(ctx, "transactions", "", store.Document{"status": "Pending"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := "Completed"
			if i%2 == 0 {
				status = "Failed"
			}
			_ = s.Update(ctx, "transactions", id, store.Document{"status": status})
			_, _ = s.Get(ctx, "transactions", id)
		}(i)
	}
	wg.Wait()

	doc, _ := s.Get(ctx, "transactions", id)
	if doc["status"] != "Completed" && doc["status"] != "Failed" {
		t.Errorf("Unexpected final status %v", doc["status"])
	}
}
