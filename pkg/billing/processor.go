package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// Processor applies normalized billing events to account records. Plan
// transitions are full overwrites of the plan-derived fields, so replaying
// the same event is harmless.
type Processor struct {
	provider Provider
	accounts account.Store
	catalog  *plan.Catalog
	log      *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorLogger sets the logger.
func WithProcessorLogger(log *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProcessor creates a webhook event processor. Panics on nil dependencies
// since these are wiring errors, not runtime conditions.
func NewProcessor(provider Provider, accounts account.Store, catalog *plan.Catalog, opts ...ProcessorOption) *Processor {
	if provider == nil {
		panic("billing: provider is required")
	}
	if accounts == nil {
		panic("billing: account store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}

	p := &Processor{
		provider: provider,
		accounts: accounts,
		catalog:  catalog,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleWebhook verifies the raw payload, parses it and applies the event.
// Signature failures and malformed payloads return an error so the transport
// can reject the request; events that reference unknown accounts or
// subscriptions are logged and dropped, since failing them would only make
// the provider retry a delivery that can never succeed.
func (p *Processor) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := p.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	switch e := event.(type) {
	case EventCheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, e)
	case EventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, e)
	case EventIgnored:
		p.log.DebugContext(ctx, "ignoring billing event", slog.String("event", e.ProviderEvent))
		return nil
	default:
		p.log.WarnContext(ctx, "unhandled billing event type", slog.Any("event", event))
		return nil
	}
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, e EventCheckoutCompleted) error {
	if e.AccountID == "" {
		p.log.WarnContext(ctx, "checkout completed without account reference",
			slog.String("subscription_ref", e.SubscriptionRef))
		return nil
	}

	refs := SubscriptionRefs{
		SubscriptionRef: e.SubscriptionRef,
		CustomerRef:     e.CustomerRef,
		PriceRef:        e.PriceRef,
	}
	if err := activateSubscription(ctx, p.accounts, p.catalog, e.AccountID, refs); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			p.log.WarnContext(ctx, "checkout completed for unknown account",
				slog.String("account_id", e.AccountID))
			return nil
		}
		return fmt.Errorf("apply checkout completion: %w", err)
	}

	p.log.InfoContext(ctx, "subscription activated",
		slog.String("account_id", e.AccountID),
		slog.String("subscription_ref", e.SubscriptionRef))
	return nil
}

func (p *Processor) handleSubscriptionDeleted(ctx context.Context, e EventSubscriptionDeleted) error {
	if e.SubscriptionRef == "" {
		p.log.WarnContext(ctx, "subscription deleted event without subscription id")
		return nil
	}

	acct, err := p.accounts.FindBySubscriptionRef(ctx, e.SubscriptionRef)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			p.log.WarnContext(ctx, "subscription deleted for unknown subscription",
				slog.String("subscription_ref", e.SubscriptionRef))
			return nil
		}
		return fmt.Errorf("find account by subscription ref: %w", err)
	}

	if err := deactivateSubscription(ctx, p.accounts, p.catalog, acct.ID); err != nil {
		return fmt.Errorf("apply subscription deletion: %w", err)
	}

	p.log.InfoContext(ctx, "subscription deactivated",
		slog.String("account_id", acct.ID),
		slog.String("subscription_ref", e.SubscriptionRef))
	return nil
}

// SubscriptionRefs carries the provider identifiers stored on the account
// when a subscription becomes active.
type SubscriptionRefs struct {
	SubscriptionRef string
	CustomerRef     string
	PriceRef        string
}

// activateSubscription overwrites the account with the paid plan. The plan is
// resolved from the price ref when known, falling back to the pro tier, so a
// price catalog drift never leaves an account half-upgraded.
func activateSubscription(ctx context.Context, accounts account.Store, catalog *plan.Catalog, accountID string, refs SubscriptionRefs) error {
	target, ok := catalog.ByPriceRef(refs.PriceRef)
	if !ok {
		target = catalog.ForTier(plan.TierPro)
	}

	_, err := accounts.Update(ctx, accountID, func(a *account.Account) error {
		a.ApplyPlan(target)
		a.SubscriptionStatus = account.StatusActive
		a.BillingSubscriptionRef = refs.SubscriptionRef
		a.BillingCustomerRef = refs.CustomerRef
		a.PriceRef = refs.PriceRef
		return nil
	})
	return err
}

// deactivateSubscription overwrites the account back to the free plan and
// clears the provider refs.
func deactivateSubscription(ctx context.Context, accounts account.Store, catalog *plan.Catalog, accountID string) error {
	free := catalog.ForTier(plan.TierFree)

	_, err := accounts.Update(ctx, accountID, func(a *account.Account) error {
		a.ApplyPlan(free)
		a.SubscriptionStatus = account.StatusCancelled
		a.BillingSubscriptionRef = ""
		a.BillingCustomerRef = ""
		a.PriceRef = ""
		return nil
	})
	return err
}
