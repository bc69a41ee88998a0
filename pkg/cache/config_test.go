package cache

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLayerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LayerConfig
		wantErr bool
	}{
		{"valid config", LayerConfig{Name: "memory", DefaultTTL: time.Minute, MaxTTL: time.Hour}, false},
		{"no max", LayerConfig{Name: "memory", DefaultTTL: time.Minute}, false},
		{"empty name", LayerConfig{DefaultTTL: time.Minute}, true},
		{"negative default TTL", LayerConfig{Name: "memory", DefaultTTL: -time.Minute}, true},
		{"negative max TTL", LayerConfig{Name: "memory", MaxTTL: -time.Hour}, true},
		{"default exceeds max", LayerConfig{Name: "memory", DefaultTTL: 2 * time.Hour, MaxTTL: time.Hour}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLayerConfig_EffectiveTTL(t *testing.T) {
	cfg := LayerConfig{Name: "memory", DefaultTTL: time.Minute, MaxTTL: time.Hour}

	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, time.Minute},
		{-time.Second, time.Minute},
		{10 * time.Minute, 10 * time.Minute},
		{2 * time.Hour, time.Hour},
	}

	for _, tt := range tests {
		if got := cfg.EffectiveTTL(tt.in); got != tt.want {
			t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for empty key, got %v", err)
	}
	if err := ValidateKey(strings.Repeat("k", 513)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey for long key, got %v", err)
	}
	if err := ValidateKey("rec:transactions:1"); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestWrapError(t *testing.T) {
	err := WrapError(ErrMiss, "redis", "get")
	if !IsMiss(err) {
		t.Error("Wrapped miss should still be a miss")
	}
	if WrapError(nil, "redis", "get") != nil {
		t.Error("Expected nil")
	}
}
