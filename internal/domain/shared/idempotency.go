package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed delivery keys so a redelivered
// event is applied once
type IdempotencyStore interface {
	// MarkProcessed atomically records key for ttl.
	// Returns true if the key was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is currently marked
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes key so the next delivery is processed again
	Forget(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered.
	// After it elapses the same key is processed again.
	TTL time.Duration

	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
