package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow tracks individual attempt timestamps within a moving time
// window. It is a soft abuse deterrent, not a security boundary: the default
// in-memory store is process-local and loses state on restart, which is
// acceptable for its purpose.
type SlidingWindow struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// NewSlidingWindow creates a sliding window limiter.
func NewSlidingWindow(store Store, limit int, window time.Duration, opts ...Option) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}

	l := &SlidingWindow{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewAuthLimiter returns the login/signup limiter: 5 attempts per 5 minutes.
func NewAuthLimiter(store Store, opts ...Option) *SlidingWindow {
	l, err := NewSlidingWindow(store, 5, 5*time.Minute, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// NewResetLimiter returns the password-reset limiter: 3 attempts per 10 minutes.
func NewResetLimiter(store Store, opts ...Option) *SlidingWindow {
	l, err := NewSlidingWindow(store, 3, 10*time.Minute, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// IsRateLimited checks the window for the key. When under the limit the
// current attempt is recorded and false is returned; when at the limit
// nothing is recorded and true is returned. Check and record are a single
// atomic store operation.
func (l *SlidingWindow) IsRateLimited(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}

	allowed, err := l.store.RecordIfAllowed(ctx, key, l.now(), l.window, l.limit)
	if err != nil {
		return false, err
	}
	return !allowed, nil
}

// RemainingTime reports how long until the oldest attempt in the window
// expires. Returns zero when the key has no recorded attempts.
func (l *SlidingWindow) RemainingTime(ctx context.Context, key string) (time.Duration, error) {
	if key == "" {
		return 0, ErrKeyRequired
	}

	now := l.now()
	oldest, ok, err := l.store.Oldest(ctx, key, now, l.window)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	remaining := l.window - now.Sub(oldest)
	return max(0, remaining), nil
}

// Reset clears the attempts for a key, e.g. after a successful login.
func (l *SlidingWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return l.store.Delete(ctx, key)
}
