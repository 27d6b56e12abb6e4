package quota

import (
	"context"
	"math"
	"time"

	"github.com/ideaflowhq/ideaflow/pkg/account"
)

// CheckAndStamp enforces the minimum interval between generation requests.
// The read of lastGenerationAt and the write of the new stamp happen in one
// store transaction: two concurrent requests cannot both pass the check. A
// failed check does not move the stamp.
//
// The cooldown is plan-dependent (2s pro, 3s free) and the remaining wait is
// rounded up to whole seconds in the returned *RateLimitedError.
func (e *Enforcer) CheckAndStamp(ctx context.Context, accountID string) error {
	_, err := e.accounts.Update(ctx, accountID, func(a *account.Account) error {
		cooldown := e.catalog.ForTier(a.Plan).Cooldown
		now := e.now().UTC()

		if a.LastGenerationAt != nil {
			elapsed := now.Sub(*a.LastGenerationAt)
			if elapsed < cooldown {
				return &RateLimitedError{Wait: ceilSeconds(cooldown - elapsed)}
			}
		}

		a.LastGenerationAt = &now
		return nil
	})
	return err
}

func ceilSeconds(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
