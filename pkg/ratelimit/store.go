package ratelimit

import (
	"context"
	"time"
)

// Store defines the timestamp storage backend for the sliding window.
type Store interface {
	// RecordIfAllowed atomically discards timestamps older than the window,
	// and if fewer than limit remain, records the new timestamp. Returns
	// whether the attempt was recorded.
	RecordIfAllowed(ctx context.Context, key string, ts time.Time, window time.Duration, limit int) (bool, error)

	// Oldest returns the oldest timestamp still inside the window ending at
	// now for the key. The second return is false when the key has no live
	// timestamps. Pruning uses the caller's clock, same as RecordIfAllowed.
	Oldest(ctx context.Context, key string, now time.Time, window time.Duration) (time.Time, bool, error)

	// Delete removes all timestamps for the key.
	Delete(ctx context.Context, key string) error
}
