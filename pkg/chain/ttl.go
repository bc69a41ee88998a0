package chain

import (
	"math"
	"time"
)

// TTLStrategy determines the TTL a cached record gets in each layer.
type TTLStrategy interface {
	// GetTTL returns the TTL for layer layerIndex out of numLayers.
	GetTTL(layerIndex, numLayers int, baseTTL time.Duration) time.Duration
}

// UniformTTLStrategy uses the same TTL for all layers.
type UniformTTLStrategy struct{}

// GetTTL returns baseTTL.
func (UniformTTLStrategy) GetTTL(layerIndex, numLayers int, baseTTL time.Duration) time.Duration {
	return baseTTL
}

// DecayingTTLStrategy gives upper (faster, per-instance) layers a shorter
// TTL than the shared layers below them. With three layers and a factor of
// 0.5 the TTLs are base/4, base/2 and base.
type DecayingTTLStrategy struct {
	DecayFactor float64
}

// GetTTL returns baseTTL * DecayFactor^(numLayers-1-layerIndex).
func (s DecayingTTLStrategy) GetTTL(layerIndex, numLayers int, baseTTL time.Duration) time.Duration {
	if s.DecayFactor <= 0 || s.DecayFactor >= 1 || layerIndex >= numLayers-1 || layerIndex < 0 {
		return baseTTL
	}

	exponent := float64(numLayers - 1 - layerIndex)
	ttl := time.Duration(float64(baseTTL) * math.Pow(s.DecayFactor, exponent))
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// CustomTTLStrategy uses explicit TTL values for each layer.
type CustomTTLStrategy struct {
	TTLs []time.Duration
}

// GetTTL returns the configured TTL for a layer, or baseTTL if not specified.
func (s CustomTTLStrategy) GetTTL(layerIndex, numLayers int, baseTTL time.Duration) time.Duration {
	if layerIndex >= 0 && layerIndex < len(s.TTLs) && s.TTLs[layerIndex] > 0 {
		return s.TTLs[layerIndex]
	}
	return baseTTL
}
