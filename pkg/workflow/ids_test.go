package workflow

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
		ok   bool
	}{
		{"string", "42", "42", true},
		{"padded string", "  abc ", "abc", true},
		{"empty string", "   ", "", false},
		{"int", 42, "42", true},
		{"int64", int64(42), "42", true},
		{"float", float64(42), "42", true},
		{"fractional float", 42.5, "", false},
		{"json number", json.Number("42"), "42", true},
		{"json number with zero fraction", json.Number("42.0"), "42", true},
		{"fractional json number", json.Number("4.2"), "", false},
		{"decimal", decimal.NewFromInt(42), "42", true},
		{"bool", true, "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("NormalizeID(%v) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseStatuses(t *testing.T) {
	if s, err := ParseTransactionStatus("completed"); err != nil || s != TransactionCompleted {
		t.Errorf("Expected Completed, got %s (%v)", s, err)
	}
	if _, err := ParseTransactionStatus("Approved"); err == nil {
		t.Error("Expected error for unknown transaction status")
	}
	if TransactionPending.Terminal() {
		t.Error("Pending is not terminal")
	}

	for _, in := range []string{"UsernameExists", "Username Exists"} {
		if s, err := ParseCredentialStatus(in); err != nil || s != CredentialUsernameExists {
			t.Errorf("ParseCredentialStatus(%q) = %s (%v)", in, s, err)
		}
	}
	if CredentialRequested.Terminal() || !CredentialCreated.Terminal() {
		t.Error("Unexpected credential terminal states")
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount(nil); !IsValidation(err) {
		t.Errorf("Expected validation error for nil, got %v", err)
	}
	if _, err := ParseAmount("0"); !IsValidation(err) {
		t.Errorf("Expected validation error for zero, got %v", err)
	}
	if _, err := ParseAmount("abc"); !IsValidation(err) {
		t.Errorf("Expected validation error for garbage, got %v", err)
	}
	d, err := ParseAmount(json.Number("500"))
	if err != nil || !d.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected 500, got %s (%v)", d, err)
	}
}
