package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/store"
	storemem "approval-ledger/pkg/store/memory"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBalanceAccessor_Get(t *testing.T) {
	ctx := context.Background()
	s := storemem.NewMemoryStore()
	b := NewBalanceAccessor(s)

	users := map[string]store.Document{
		"absent":  {"username": "a"},
		"nil":     {"balance": nil},
		"string":  {"balance": "1500.25"},
		"number":  {"balance": float64(300)},
		"jsonnum": {"balance": json.Number("12.5")},
	}
	for id, doc := range users {
		if _, err := s.Insert(ctx, "user", id, doc); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tests := []struct {
		id   string
		want string
	}{
		{"absent", "0"},
		{"nil", "0"},
		{"string", "1500.25"},
		{"number", "300"},
		{"jsonnum", "12.5"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := b.Get(ctx, tt.id)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}

	if _, err := b.Get(ctx, "nobody"); !IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestBalanceAccessor_NegativeStoredBalance(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := &logging.Logger{Logger: zap.New(core)}

	s := storemem.NewMemoryStore()
	b := NewBalanceAccessor(s, WithLogger(logger))
	if _, err := s.Insert(context.Background(), "user", "u1", store.Document{"balance": "-50"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name       string
		ctx        context.Context
		loggerName string
	}{
		{"fallback logger", context.Background(), "balance"},
		{"request logger", logging.WithContext(context.Background(), logger.Named("http")), "http.balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.TakeAll()

			got, err := b.Get(tt.ctx, "u1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !got.IsZero() {
				t.Errorf("Expected 0, got %s", got)
			}

			entries := logs.FilterMessage("negative stored balance").TakeAll()
			if len(entries) != 1 {
				t.Fatalf("Expected one warning, got %d", len(entries))
			}
			if entries[0].LoggerName != tt.loggerName {
				t.Errorf("Expected logger %q, got %q", tt.loggerName, entries[0].LoggerName)
			}
		})
	}
}

func TestBalanceAccessor_Set(t *testing.T) {
	ctx := context.Background()
	s := storemem.NewMemoryStore()
	b := NewBalanceAccessor(s)

	if _, err := s.Insert(ctx, "user", "u1", store.Document{"username": "bob", "balance": "100"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	zero := decimal.Zero
	got, err := b.Set(ctx, "u1", &zero)
	if err != nil {
		t.Fatalf("Set(0) failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Expected 0, got %s", got)
	}
	if bal, _ := b.Get(ctx, "u1"); !bal.IsZero() {
		t.Errorf("Expected stored 0, got %s", bal)
	}

	if _, err := b.Set(ctx, "u1", nil); !IsValidation(err) {
		t.Errorf("Expected validation error for missing balance, got %v", err)
	}

	negative := decimal.NewFromInt(-1)
	if _, err := b.Set(ctx, "u1", &negative); !IsValidation(err) {
		t.Errorf("Expected validation error for negative balance, got %v", err)
	}

	amount := decimal.RequireFromString("2500.75")
	if _, err := b.Set(ctx, "nobody", &amount); !IsNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	if _, err := b.Set(ctx, "u1", &amount); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	doc, _ := s.Get(ctx, "user", "u1")
	if doc["balance"] != "2500.75" || doc["username"] != "bob" {
		t.Errorf("Unexpected user document %v", doc)
	}
}

func TestParseBalance(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    string
		absent  bool
		wantErr bool
	}{
		{"nil", nil, "", true, false},
		{"empty string", "", "", true, false},
		{"zero number", json.Number("0"), "0", false, false},
		{"zero string", "0", "0", false, false},
		{"decimal string", "10.50", "10.5", false, false},
		{"float", float64(7), "7", false, false},
		{"garbage", "ten", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBalance(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.absent {
				if got != nil {
					t.Errorf("Expected nil, got %s", got)
				}
				return
			}
			if got == nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Expected %s, got %v", tt.want, got)
			}
		})
	}
}
