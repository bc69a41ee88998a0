package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMiss is returned when a key is not cached
	ErrMiss = errors.New("cache: miss")

	// ErrInvalidKey is returned for empty or oversized keys
	ErrInvalidKey = errors.New("cache: invalid key")

	// ErrInvalidConfig is returned by LayerConfig.Validate
	ErrInvalidConfig = errors.New("cache: invalid config")

	// ErrClosed is returned by layers after Close
	ErrClosed = errors.New("cache: closed")
)

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// ValidateKey rejects empty keys and keys longer than 512 bytes.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > 512 {
		return fmt.Errorf("%w: key too long", ErrInvalidKey)
	}
	return nil
}

// WrapError adds layer and operation context to err.
func WrapError(err error, layer, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cache layer %s %s: %w", layer, operation, err)
}
