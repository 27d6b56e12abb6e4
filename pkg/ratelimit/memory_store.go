package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps attempt timestamps in process memory. A background
// cleanup loop removes idle keys to prevent unbounded growth.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	cleanupInterval time.Duration
	maxIdle         time.Duration
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often stale keys are swept.
// Set to 0 to disable the background sweep.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStore creates an in-memory store with automatic cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:         make(map[string][]time.Time),
		cleanupInterval: time.Minute,
		maxIdle:         time.Hour,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	}
	return s
}

func (s *MemoryStore) RecordIfAllowed(ctx context.Context, key string, ts time.Time, window time.Duration, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := ts.Add(-window)
	live := pruneBefore(s.windows[key], cutoff)

	if len(live) >= limit {
		s.windows[key] = live
		return false, nil
	}

	s.windows[key] = append(live, ts)
	return true, nil
}

func (s *MemoryStore) Oldest(ctx context.Context, key string, now time.Time, window time.Duration) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	live := pruneBefore(s.windows[key], cutoff)
	s.windows[key] = live

	if len(live) == 0 {
		return time.Time{}, false, nil
	}
	return live[0], true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// pruneBefore drops timestamps at or before the cutoff. Timestamps are stored
// in append order, so the slice stays sorted.
func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(timestamps) && !timestamps[idx].After(cutoff) {
		idx++
	}
	return timestamps[idx:]
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeIdle()
		case <-s.stopCleanup:
			return
		}
	}
}

// removeIdle drops keys whose newest timestamp is older than maxIdle.
func (s *MemoryStore) removeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.maxIdle)
	for key, timestamps := range s.windows {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(cutoff) {
			delete(s.windows, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}
