package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/logger"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// Canceller handles user-initiated subscription cancellation. The provider is
// called first; the local downgrade happens only after the provider confirms,
// so a provider failure leaves the account untouched.
type Canceller struct {
	provider Provider
	accounts account.Store
	catalog  *plan.Catalog
	log      *slog.Logger
}

// CancellerOption configures a Canceller.
type CancellerOption func(*Canceller)

// WithCancellerLogger sets the logger.
func WithCancellerLogger(log *slog.Logger) CancellerOption {
	return func(c *Canceller) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCanceller creates a subscription canceller.
func NewCanceller(provider Provider, accounts account.Store, catalog *plan.Catalog, opts ...CancellerOption) *Canceller {
	if provider == nil {
		panic("billing: provider is required")
	}
	if accounts == nil {
		panic("billing: account store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}

	c := &Canceller{
		provider: provider,
		accounts: accounts,
		catalog:  catalog,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cancel terminates the account's subscription at the provider and downgrades
// the account to the free plan. If the local update fails after the provider
// cancellation succeeded, the returned error wraps ErrInconsistentState so
// the condition is distinguishable from an ordinary failure.
func (c *Canceller) Cancel(ctx context.Context, accountID string) error {
	if accountID == "" {
		return errors.New("account ID is required")
	}

	acct, err := c.accounts.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct.BillingSubscriptionRef == "" {
		return ErrNoActiveSubscription
	}

	if err := c.provider.CancelSubscription(ctx, acct.BillingSubscriptionRef); err != nil {
		return err
	}

	if err := deactivateSubscription(ctx, c.accounts, c.catalog, accountID); err != nil {
		c.log.ErrorContext(ctx, "subscription cancelled at provider but local downgrade failed",
			slog.String("account_id", accountID),
			slog.String("subscription_ref", acct.BillingSubscriptionRef),
			logger.ReconcileManual(),
			slog.Any("error", err))
		return fmt.Errorf("%w: account %s: %w", ErrInconsistentState, accountID, err)
	}

	c.log.InfoContext(ctx, "subscription cancelled",
		slog.String("account_id", accountID),
		slog.String("subscription_ref", acct.BillingSubscriptionRef))
	return nil
}
