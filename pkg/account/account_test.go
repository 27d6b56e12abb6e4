package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

func TestNew_FreeTierDefaults(t *testing.T) {
	t.Parallel()

	a := account.New("uid-1", "a@example.com", plan.Default().ForTier(plan.TierFree))

	assert.Equal(t, plan.TierFree, a.Plan)
	assert.Equal(t, account.StatusInactive, a.SubscriptionStatus)
	assert.Equal(t, account.Quota{Used: 0, Limit: 2}, a.Quotas[plan.QuotaPDFUploads])
	assert.Equal(t, account.Quota{Used: 0, Limit: 1}, a.Quotas[plan.QuotaWebsiteUploads])
	assert.Equal(t, int64(1), a.GenerationsPerDocument)
	assert.Nil(t, a.LastGenerationAt)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestApplyPlan_OverwritesCounters(t *testing.T) {
	t.Parallel()

	catalog := plan.Default()
	a := account.New("uid-1", "a@example.com", catalog.ForTier(plan.TierFree))
	a.Quotas[plan.QuotaPDFUploads] = account.Quota{Used: 2, Limit: 2}

	a.ApplyPlan(catalog.ForTier(plan.TierPro))

	assert.Equal(t, plan.TierPro, a.Plan)
	assert.Equal(t, account.Quota{Used: 0, Limit: 80}, a.Quotas[plan.QuotaPDFUploads])
	assert.Equal(t, account.Quota{Used: 0, Limit: 50}, a.Quotas[plan.QuotaWebsiteUploads])
	assert.Equal(t, int64(3), a.GenerationsPerDocument)
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()

	a := account.New("uid-1", "a@example.com", plan.Default().ForTier(plan.TierFree))
	ts := time.Now().UTC()
	a.LastGenerationAt = &ts

	cp := a.Clone()
	cp.Quotas[plan.QuotaPDFUploads] = account.Quota{Used: 99, Limit: 99}
	*cp.LastGenerationAt = ts.Add(time.Hour)

	assert.Equal(t, account.Quota{Used: 0, Limit: 2}, a.Quotas[plan.QuotaPDFUploads])
	assert.Equal(t, ts, *a.LastGenerationAt)
}

func TestEnsureExists_DuplicateSignInKeepsCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	catalog := plan.Default()

	first, err := account.EnsureExists(ctx, store, account.New("uid-1", "a@example.com", catalog.ForTier(plan.TierFree)))
	require.NoError(t, err)

	// Consume a unit so a duplicate provisioning event would be observable.
	_, err = store.Update(ctx, first.ID, func(a *account.Account) error {
		q := a.Quotas[plan.QuotaPDFUploads]
		q.Used++
		a.Quotas[plan.QuotaPDFUploads] = q
		return nil
	})
	require.NoError(t, err)

	again, err := account.EnsureExists(ctx, store, account.New("uid-1", "a@example.com", catalog.ForTier(plan.TierFree)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Quotas[plan.QuotaPDFUploads].Used)
}
