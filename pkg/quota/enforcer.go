package quota

import (
	"context"
	"time"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/document"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

// Enforcer performs atomic check-then-increment of upload and per-document
// generation counters. Every decision runs inside a single store transaction;
// a failed check commits nothing. Limits are derived from the account's
// current plan via the catalog on each call, never from a cached snapshot.
type Enforcer struct {
	accounts  account.Store
	documents document.Store
	catalog   *plan.Catalog
	now       func() time.Time
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithClock replaces the time source. Used in tests to exercise the cooldown
// with fixed timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnforcer creates an Enforcer. Panics on nil dependencies to fail fast
// during initialization.
func NewEnforcer(accounts account.Store, documents document.Store, catalog *plan.Catalog, opts ...Option) *Enforcer {
	if accounts == nil {
		panic("quota: account store is required")
	}
	if documents == nil {
		panic("quota: document store is required")
	}
	if catalog == nil {
		panic("quota: plan catalog is required")
	}

	e := &Enforcer{
		accounts:  accounts,
		documents: documents,
		catalog:   catalog,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TryConsume consumes one unit of an upload quota. Under N concurrent calls
// for the same account and key, at most limit calls succeed; the store's
// transactional Update is what makes the check-then-increment atomic.
func (e *Enforcer) TryConsume(ctx context.Context, accountID string, key plan.QuotaKey) error {
	if !key.Valid() {
		return ErrUnknownQuotaKey
	}

	_, err := e.accounts.Update(ctx, accountID, func(a *account.Account) error {
		limit := e.catalog.ForTier(a.Plan).UploadLimit(key)
		q := a.Quotas[key]
		if q.Used >= limit {
			return ErrQuotaExceeded
		}
		q.Used++
		q.Limit = limit
		a.Quotas[key] = q
		return nil
	})
	return err
}

// TryConsumeGeneration consumes one generation for (document, platform),
// bounded by the account's plan at call time. The ownership check runs inside
// the same document transaction as the counter check so there is no separate
// race window between authorization and consumption.
func (e *Enforcer) TryConsumeGeneration(ctx context.Context, accountID, documentID string, platform plan.Platform) error {
	if !platform.Valid() {
		return ErrUnknownPlatform
	}

	acc, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	allowance := e.catalog.ForTier(acc.Plan).GenerationsPerDocument

	_, err = e.documents.Update(ctx, documentID, func(d *document.Document) error {
		if d.OwnerID != accountID {
			return ErrNotOwner
		}
		if d.GenerationCounts[platform] >= allowance {
			return ErrGenerationLimitReached
		}
		d.GenerationCounts[platform]++
		return nil
	})
	return err
}
