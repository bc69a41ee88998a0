package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"approval-ledger/pkg/store"
)

func TestBuildQuery(t *testing.T) {
	query, args := buildQuery("records", "transactions", []store.Filter{
		store.Eq("createdBy", float64(42)),
		store.Eq("status", "Pending"),
	})

	want := `SELECT id, data FROM records WHERE collection = $1 AND data->>$2 = $3 AND data->>$4 = $5 ORDER BY seq`
	if query != want {
		t.Errorf("Unexpected query:\n got: %s\nwant: %s", query, want)
	}

	wantArgs := []interface{}{"transactions", "createdBy", "42", "status", "Pending"}
	if len(args) != len(wantArgs) {
		t.Fatalf("Expected %d args, got %d", len(wantArgs), len(args))
	}
	for i := range args {
		if args[i] != wantArgs[i] {
			t.Errorf("arg %d: expected %v, got %v", i, wantArgs[i], args[i])
		}
	}
}

func TestDecode_KeepsNumbersExact(t *testing.T) {
	doc, err := decode([]byte(`{"balance": 1500.25, "status": "Pending"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	n, ok := doc["balance"].(json.Number)
	if !ok {
		t.Fatalf("Expected json.Number, got %T", doc["balance"])
	}
	if n.String() != "1500.25" {
		t.Errorf("Expected 1500.25, got %s", n)
	}

	if _, err := decode([]byte(`not json`)); !errors.Is(err, store.ErrInvalidDocument) {
		t.Errorf("Expected ErrInvalidDocument, got %v", err)
	}
}

func TestNewPostgresStore_RejectsBadTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Table = "records; drop table x"

	if _, err := NewPostgresStore(cfg); err == nil {
		t.Error("Expected error for invalid table name")
	}
}

func TestConfig_ConnString(t *testing.T) {
	cfg := DefaultConfig()
	want := "host=localhost port=5432 user=postgres password=postgres dbname=approval_ledger sslmode=disable"
	if got := cfg.ConnString(); got != want {
		t.Errorf("Unexpected conn string %q", got)
	}

	cfg.DSN = "postgres://u:p@db/x"
	if cfg.ConnString() != "postgres://u:p@db/x" {
		t.Error("DSN should take precedence")
	}
}

// Runs against a real server when POSTGRES_TEST_DSN is set.
func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	cfg := DefaultConfig()
	cfg.DSN = dsn
	cfg.Table = "records_test"

	s, err := NewPostgresStore(cfg)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records_test`); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	id, err := s.Insert(ctx, "transactions", "", store.Document{"createdBy": float64(42), "status": "Pending"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := s.Update(ctx, "transactions", id, store.Document{"status": "Completed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	doc, err := s.Get(ctx, "transactions", id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["status"] != "Completed" {
		t.Errorf("Expected Completed, got %v", doc["status"])
	}

	recs, err := s.Query(ctx, "transactions", store.Eq("createdBy", "42"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("Expected 1 record, got %d", len(recs))
	}

	if err := s.Update(ctx, "transactions", "missing", store.Document{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
