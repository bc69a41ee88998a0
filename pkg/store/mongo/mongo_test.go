package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"approval-ledger/pkg/store"

	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildFilter(t *testing.T) {
	filter := buildFilter([]store.Filter{store.Eq("createdBy", "42"), store.Eq("status", "Pending")})

	owner, ok := filter["createdBy"].(bson.M)
	if !ok {
		t.Fatalf("Expected $in clause, got %T", filter["createdBy"])
	}
	alts := owner["$in"].(bson.A)
	if len(alts) != 3 {
		t.Errorf("Expected string, int and float alternatives, got %v", alts)
	}
	if alts[0] != "42" || alts[1] != int64(42) || alts[2] != float64(42) {
		t.Errorf("Unexpected alternatives %v", alts)
	}

	status := filter["status"].(bson.M)["$in"].(bson.A)
	if len(status) != 1 || status[0] != "Pending" {
		t.Errorf("Unexpected status alternatives %v", status)
	}
}

func TestBSONRoundTripStripsReservedFields(t *testing.T) {
	body := toBSON(store.Document{"_id": "spoofed", "status": "Requested"})
	if _, ok := body["_id"]; ok {
		t.Error("Caller-supplied _id must be dropped")
	}

	id, doc := fromBSON(bson.M{"_id": "abc", "_createdAt": "t", "status": "Requested"})
	if id != "abc" {
		t.Errorf("Expected id abc, got %s", id)
	}
	if len(doc) != 1 || doc["status"] != "Requested" {
		t.Errorf("Unexpected document %v", doc)
	}
}

func TestNewMongoStore_Validation(t *testing.T) {
	if _, err := NewMongoStore(Config{Database: "x"}); err == nil {
		t.Error("Expected error for missing uri")
	}
	if _, err := NewMongoStore(Config{URI: "mongodb://localhost"}); err == nil {
		t.Error("Expected error for missing database")
	}
}

// Runs against a real server when MONGO_TEST_URI is set.
func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	s, err := NewMongoStore(Config{URI: uri, Database: "approval_ledger_test"}, "transactions")
	if err != nil {
		t.Fatalf("NewMongoStore failed: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	_ = s.db.Drop(ctx)

	id, err := s.Insert(ctx, "transactions", "", store.Document{"createdBy": int64(42), "status": "Pending"})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := s.Update(ctx, "transactions", id, store.Document{"status": "Failed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	recs, err := s.Query(ctx, "transactions", store.Eq("createdBy", "42"))
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Data["status"] != "Failed" {
		t.Errorf("Unexpected query result %v", recs)
	}

	if err := s.Update(ctx, "transactions", "missing", store.Document{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
