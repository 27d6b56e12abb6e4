package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// Verifier is the client-initiated fallback for webhook delivery: after the
// checkout redirect the client posts the session ID, and the verifier applies
// the same plan transition the webhook would. Because the transition is an
// overwrite, racing with the webhook converges on the same state.
type Verifier struct {
	provider Provider
	accounts account.Store
	catalog  *plan.Catalog
	timeout  time.Duration
	log      *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(log *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if log != nil {
			v.log = log
		}
	}
}

// WithVerifierTimeout bounds the provider call.
func WithVerifierTimeout(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewVerifier creates a checkout session verifier.
func NewVerifier(provider Provider, accounts account.Store, catalog *plan.Catalog, opts ...VerifierOption) *Verifier {
	if provider == nil {
		panic("billing: provider is required")
	}
	if accounts == nil {
		panic("billing: account store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}

	v := &Verifier{
		provider: provider,
		accounts: accounts,
		catalog:  catalog,
		timeout:  defaultProviderTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifySession checks the session with the provider and, if the payment
// completed, activates the subscription for the referenced account. The
// session's own client reference wins; accountID is the fallback for
// providers that do not echo it back. Returns ErrPaymentNotCompleted when the
// session exists but is unpaid.
func (v *Verifier) VerifySession(ctx context.Context, sessionID, accountID string) error {
	if sessionID == "" {
		return errors.New("session ID is required")
	}

	providerCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	state, err := v.provider.GetCheckout(providerCtx, sessionID)
	if err != nil {
		return err
	}
	if !state.Paid {
		return ErrPaymentNotCompleted
	}
	if state.AccountID == "" {
		state.AccountID = accountID
	}
	if state.AccountID == "" {
		return ErrUnknownAccount
	}

	refs := SubscriptionRefs{
		SubscriptionRef: state.SubscriptionRef,
		CustomerRef:     state.CustomerRef,
		PriceRef:        state.PriceRef,
	}
	if err := activateSubscription(ctx, v.accounts, v.catalog, state.AccountID, refs); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownAccount, state.AccountID)
		}
		return fmt.Errorf("apply verified session: %w", err)
	}

	v.log.InfoContext(ctx, "subscription activated via session verification",
		slog.String("account_id", state.AccountID),
		slog.String("session_id", sessionID))
	return nil
}
