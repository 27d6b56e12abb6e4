package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/billing"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

func newFreeAccount(t *testing.T, store account.Store, id string) *account.Account {
	t.Helper()
	acct := account.New(id, id+"@example.com", plan.Default().ForTier(plan.TierFree))
	require.NoError(t, store.Create(context.Background(), acct))
	return acct
}

func TestProcessor_CheckoutCompleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	provider := &mockProvider{event: billing.EventCheckoutCompleted{
		AccountID:       "acc-1",
		SubscriptionRef: "sub_123",
		CustomerRef:     "ctm_456",
		PriceRef:        "price_pro",
	}}
	processor := billing.NewProcessor(provider, store, plan.Default())

	require.NoError(t, processor.HandleWebhook(ctx, []byte(`{}`), "sig"))

	acct, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, acct.Plan)
	assert.Equal(t, account.StatusActive, acct.SubscriptionStatus)
	assert.Equal(t, "sub_123", acct.BillingSubscriptionRef)
	assert.Equal(t, "ctm_456", acct.BillingCustomerRef)
	assert.Equal(t, "price_pro", acct.PriceRef)
	assert.Equal(t, int64(80), acct.Quotas[plan.QuotaPDFUploads].Limit)
	assert.Equal(t, int64(50), acct.Quotas[plan.QuotaWebsiteUploads].Limit)
	assert.Equal(t, int64(3), acct.GenerationsPerDocument)
}

func TestProcessor_CheckoutCompletedIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	provider := &mockProvider{event: billing.EventCheckoutCompleted{
		AccountID:       "acc-1",
		SubscriptionRef: "sub_123",
		PriceRef:        "price_pro",
	}}
	processor := billing.NewProcessor(provider, store, plan.Default())

	require.NoError(t, processor.HandleWebhook(ctx, []byte(`{}`), "sig"))
	first, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)

	// Redelivery of the same event must not change anything observable.
	require.NoError(t, processor.HandleWebhook(ctx, []byte(`{}`), "sig"))
	second, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)

	assert.Equal(t, first.Plan, second.Plan)
	assert.Equal(t, first.SubscriptionStatus, second.SubscriptionStatus)
	assert.Equal(t, first.BillingSubscriptionRef, second.BillingSubscriptionRef)
	assert.Equal(t, first.Quotas, second.Quotas)
}

func TestProcessor_SignatureFailureLeavesAccountUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	before := newFreeAccount(t, store, "acc-1")

	provider := &mockProvider{parseErr: billing.ErrSignatureVerification}
	processor := billing.NewProcessor(provider, store, plan.Default())

	err := processor.HandleWebhook(ctx, []byte(`{}`), "bad-sig")
	require.ErrorIs(t, err, billing.ErrSignatureVerification)

	after, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, before.Plan, after.Plan)
	assert.Equal(t, before.SubscriptionStatus, after.SubscriptionStatus)
}

func TestProcessor_CheckoutForUnknownAccountIsDropped(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	provider := &mockProvider{event: billing.EventCheckoutCompleted{
		AccountID:       "nobody",
		SubscriptionRef: "sub_123",
	}}
	processor := billing.NewProcessor(provider, store, plan.Default())

	assert.NoError(t, processor.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
}

func TestProcessor_SubscriptionDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	catalog := plan.Default()
	upgrade := &mockProvider{event: billing.EventCheckoutCompleted{
		AccountID:       "acc-1",
		SubscriptionRef: "sub_123",
		CustomerRef:     "ctm_456",
		PriceRef:        "price_pro",
	}}
	require.NoError(t, billing.NewProcessor(upgrade, store, catalog).HandleWebhook(ctx, []byte(`{}`), "sig"))

	downgrade := &mockProvider{event: billing.EventSubscriptionDeleted{SubscriptionRef: "sub_123"}}
	require.NoError(t, billing.NewProcessor(downgrade, store, catalog).HandleWebhook(ctx, []byte(`{}`), "sig"))

	acct, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, acct.Plan)
	assert.Equal(t, account.StatusCancelled, acct.SubscriptionStatus)
	assert.Empty(t, acct.BillingSubscriptionRef)
	assert.Empty(t, acct.BillingCustomerRef)
	assert.Empty(t, acct.PriceRef)
	assert.Equal(t, int64(2), acct.Quotas[plan.QuotaPDFUploads].Limit)
	assert.Equal(t, int64(1), acct.Quotas[plan.QuotaWebsiteUploads].Limit)
	assert.Equal(t, int64(1), acct.GenerationsPerDocument)
}

func TestProcessor_SubscriptionDeletedForUnknownRefIsDropped(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	provider := &mockProvider{event: billing.EventSubscriptionDeleted{SubscriptionRef: "sub_unknown"}}
	processor := billing.NewProcessor(provider, store, plan.Default())

	assert.NoError(t, processor.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
}

func TestProcessor_IgnoredEvent(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	provider := &mockProvider{event: billing.EventIgnored{ProviderEvent: "transaction.updated"}}
	processor := billing.NewProcessor(provider, store, plan.Default())

	assert.NoError(t, processor.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
}
