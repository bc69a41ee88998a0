package cache

import (
	"fmt"
	"time"
)

// LayerConfig holds the TTL limits of a cache layer.
type LayerConfig struct {
	// Name is the identifier for this layer (e.g., "memory", "redis")
	Name string

	// DefaultTTL is used when Set is called with a zero TTL
	DefaultTTL time.Duration

	// MaxTTL caps any TTL passed to Set. Zero means no cap.
	MaxTTL time.Duration
}

// Validate checks if the configuration is valid.
func (c *LayerConfig) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case c.DefaultTTL < 0:
		return fmt.Errorf("%w: negative default ttl", ErrInvalidConfig)
	case c.MaxTTL < 0:
		return fmt.Errorf("%w: negative max ttl", ErrInvalidConfig)
	case c.MaxTTL > 0 && c.DefaultTTL > c.MaxTTL:
		return fmt.Errorf("%w: default ttl %s exceeds max ttl %s", ErrInvalidConfig, c.DefaultTTL, c.MaxTTL)
	}
	return nil
}

// EffectiveTTL returns DefaultTTL for a non-positive ttl and caps the
// result at MaxTTL.
func (c *LayerConfig) EffectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		return c.MaxTTL
	}
	return ttl
}
