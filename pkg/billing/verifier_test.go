package billing_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/billing"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

func TestVerifier_PaidSessionActivatesSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	provider := &mockProvider{state: &billing.CheckoutState{
		ID:              "txn_1",
		AccountID:       "acc-1",
		SubscriptionRef: "sub_123",
		CustomerRef:     "ctm_456",
		PriceRef:        "price_pro",
		Paid:            true,
	}}
	verifier := billing.NewVerifier(provider, store, plan.Default())

	require.NoError(t, verifier.VerifySession(ctx, "txn_1", ""))

	acct, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, acct.Plan)
	assert.Equal(t, account.StatusActive, acct.SubscriptionStatus)
	assert.Equal(t, "sub_123", acct.BillingSubscriptionRef)
}

func TestVerifier_UnpaidSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	provider := &mockProvider{state: &billing.CheckoutState{
		ID:        "txn_1",
		AccountID: "acc-1",
		Paid:      false,
	}}
	verifier := billing.NewVerifier(provider, store, plan.Default())

	err := verifier.VerifySession(ctx, "txn_1", "acc-1")
	require.ErrorIs(t, err, billing.ErrPaymentNotCompleted)

	acct, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierFree, acct.Plan, "unpaid session must not upgrade")
}

func TestVerifier_SessionWithoutAccountRef(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	provider := &mockProvider{state: &billing.CheckoutState{ID: "txn_1", Paid: true}}
	verifier := billing.NewVerifier(provider, store, plan.Default())

	err := verifier.VerifySession(context.Background(), "txn_1", "")
	assert.ErrorIs(t, err, billing.ErrUnknownAccount)
}

func TestVerifier_RacesWithWebhookConverge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	newFreeAccount(t, store, "acc-1")

	catalog := plan.Default()
	provider := &mockProvider{
		state: &billing.CheckoutState{
			ID:              "txn_1",
			AccountID:       "acc-1",
			SubscriptionRef: "sub_123",
			CustomerRef:     "ctm_456",
			PriceRef:        "price_pro",
			Paid:            true,
		},
		event: billing.EventCheckoutCompleted{
			AccountID:       "acc-1",
			SubscriptionRef: "sub_123",
			CustomerRef:     "ctm_456",
			PriceRef:        "price_pro",
		},
	}
	verifier := billing.NewVerifier(provider, store, catalog)
	processor := billing.NewProcessor(provider, store, catalog)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, verifier.VerifySession(ctx, "txn_1", "acc-1"))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, processor.HandleWebhook(ctx, []byte(`{}`), "sig"))
	}()
	wg.Wait()

	// Both paths apply the same overwrite, so any interleaving lands here.
	acct, err := store.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, plan.TierPro, acct.Plan)
	assert.Equal(t, account.StatusActive, acct.SubscriptionStatus)
	assert.Equal(t, "sub_123", acct.BillingSubscriptionRef)
	assert.Equal(t, int64(80), acct.Quotas[plan.QuotaPDFUploads].Limit)
}
