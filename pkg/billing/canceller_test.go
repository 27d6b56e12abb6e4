package billing_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/billing"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

func newProAccount(t *testing.T, store account.Store, id, subscriptionRef string) {
	t.Helper()
	newFreeAccount(t, store, id)
	_, err := store.Update(context.Background(), id, func(a *account.Account) error {
		a.ApplyPlan(plan.Default().ForTier(plan.TierPro))
		a.SubscriptionStatus = account.StatusActive
		a.BillingSubscriptionRef = subscriptionRef
		a.BillingCustomerRef = "ctm_456"
		a.PriceRef = "price_pro"
		return nil
	})
	require.NoError(t, err)
}

func TestCanceller_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newProAccount(t, store, "acc-1", "sub_123")

	provider := &mockProvider{}
	canceller := billing.NewCanceller(provider, store, plan.Default())

	require.NoError(t, canceller.Cancel(ctx, "acc-1"))

	assert.Equal(t, []string{"sub_123"}, provider.cancelledRefs())

	acct, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, acct.Plan)
	assert.Equal(t, account.StatusCancelled, acct.SubscriptionStatus)
	assert.Empty(t, acct.BillingSubscriptionRef)
	assert.Empty(t, acct.PriceRef)
	assert.Equal(t, int64(2), acct.Quotas[plan.QuotaPDFUploads].Limit)
}

func TestCanceller_ProviderFailureLeavesAccountUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newProAccount(t, store, "acc-1", "sub_123")

	provider := &mockProvider{cancelErr: billing.ErrPaymentProvider}
	canceller := billing.NewCanceller(provider, store, plan.Default())

	err := canceller.Cancel(ctx, "acc-1")
	require.ErrorIs(t, err, billing.ErrPaymentProvider)

	acct, getErr := store.Get(ctx, "acc-1")
	require.NoError(t, getErr)
	assert.Equal(t, plan.TierPro, acct.Plan)
	assert.Equal(t, account.StatusActive, acct.SubscriptionStatus)
	assert.Equal(t, "sub_123", acct.BillingSubscriptionRef)
}

func TestCanceller_NoSubscription(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	provider := &mockProvider{}
	canceller := billing.NewCanceller(provider, store, plan.Default())

	err := canceller.Cancel(context.Background(), "acc-1")
	require.ErrorIs(t, err, billing.ErrNoActiveSubscription)
	assert.Empty(t, provider.cancelledRefs(), "provider must not be called")
}

func TestCanceller_UnknownAccount(t *testing.T) {
	t.Parallel()

	canceller := billing.NewCanceller(&mockProvider{}, account.NewMemoryStore(), plan.Default())

	err := canceller.Cancel(context.Background(), "nobody")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

// failingUpdateStore succeeds on reads but fails every Update, simulating a
// store outage between the provider call and the local downgrade.
type failingUpdateStore struct {
	account.Store
}

func (s *failingUpdateStore) Update(context.Context, string, account.UpdateFunc) (*account.Account, error) {
	return nil, errors.New("store unavailable")
}

func TestCanceller_LocalFailureAfterProviderSuccess(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	newProAccount(t, store, "acc-1", "sub_123")

	var logBuf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logBuf, nil))

	provider := &mockProvider{}
	canceller := billing.NewCanceller(provider, &failingUpdateStore{Store: store}, plan.Default(),
		billing.WithCancellerLogger(log))

	err := canceller.Cancel(context.Background(), "acc-1")
	require.ErrorIs(t, err, billing.ErrInconsistentState)
	assert.Equal(t, []string{"sub_123"}, provider.cancelledRefs(), "provider cancellation already happened")
	assert.Contains(t, logBuf.String(), `"reconcile":"manual"`, "partial failure must be flagged for reconciliation")
}
