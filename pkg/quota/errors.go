package quota

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrQuotaExceeded means the upload counter is at its limit. No side
	// effects occurred; the caller shows an upgrade prompt.
	ErrQuotaExceeded = errors.New("upload quota exceeded")

	// ErrGenerationLimitReached means the per-document, per-platform counter
	// reached the plan's allowance.
	ErrGenerationLimitReached = errors.New("generation limit reached for document")

	// ErrNotOwner means the document does not belong to the requesting account.
	ErrNotOwner = errors.New("document does not belong to account")

	// ErrRateLimited is the sentinel matched by errors.Is for cooldown
	// failures; the concrete error is always a *RateLimitedError.
	ErrRateLimited = errors.New("generation cooldown active")

	ErrUnknownQuotaKey = errors.New("unknown quota key")
	ErrUnknownPlatform = errors.New("unknown platform")
)

// RateLimitedError carries the remaining wait, rounded up to whole seconds.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("generation cooldown active: retry in %s", e.Wait)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
