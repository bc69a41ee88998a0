package chain

import (
	"testing"
	"time"
)

func TestUniformTTLStrategy(t *testing.T) {
	strategy := UniformTTLStrategy{}
	baseTTL := time.Hour

	for i := 0; i < 3; i++ {
		if ttl := strategy.GetTTL(i, 3, baseTTL); ttl != baseTTL {
			t.Errorf("Layer %d: expected %v, got %v", i, baseTTL, ttl)
		}
	}
}

func TestDecayingTTLStrategy(t *testing.T) {
	strategy := DecayingTTLStrategy{DecayFactor: 0.5}
	baseTTL := 8 * time.Hour

	expected := []time.Duration{2 * time.Hour, 4 * time.Hour, 8 * time.Hour}
	for i, want := range expected {
		if got := strategy.GetTTL(i, 3, baseTTL); got != want {
			t.Errorf("Layer %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestDecayingTTLStrategy_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		factor   float64
		layer    int
		layers   int
		base     time.Duration
		expected time.Duration
	}{
		{"invalid factor", 1.5, 0, 3, time.Hour, time.Hour},
		{"zero factor", 0, 0, 3, time.Hour, time.Hour},
		{"single layer", 0.5, 0, 1, time.Hour, time.Hour},
		{"floor at one second", 0.01, 0, 4, time.Minute, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := DecayingTTLStrategy{DecayFactor: tt.factor}
			if got := strategy.GetTTL(tt.layer, tt.layers, tt.base); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestCustomTTLStrategy(t *testing.T) {
	strategy := CustomTTLStrategy{TTLs: []time.Duration{30 * time.Second, 0}}
	baseTTL := 5 * time.Minute

	if got := strategy.GetTTL(0, 3, baseTTL); got != 30*time.Second {
		t.Errorf("Layer 0: expected 30s, got %v", got)
	}
	if got := strategy.GetTTL(1, 3, baseTTL); got != baseTTL {
		t.Errorf("Layer 1 (zero entry): expected base TTL, got %v", got)
	}
	if got := strategy.GetTTL(2, 3, baseTTL); got != baseTTL {
		t.Errorf("Layer 2 (beyond range): expected base TTL, got %v", got)
	}
}
