package ratelimit

import "errors"

var (
	ErrStoreRequired = errors.New("ratelimit: store is required")
	ErrInvalidLimit  = errors.New("ratelimit: limit must be positive")
	ErrInvalidWindow = errors.New("ratelimit: window must be positive")
	ErrKeyRequired   = errors.New("ratelimit: key is required")
)
