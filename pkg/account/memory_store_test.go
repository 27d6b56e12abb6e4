package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaflowhq/ideaflow/pkg/account"
	"github.com/ideaflowhq/ideaflow/pkg/plan"
)

func newTestAccount(id string) *account.Account {
	return account.New(id, id+"@example.com", plan.Default().ForTier(plan.TierFree))
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	t.Parallel()

	store := account.NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()

	require.NoError(t, store.Create(ctx, newTestAccount("uid-1")))
	err := store.Create(ctx, newTestAccount("uid-1"))
	assert.ErrorIs(t, err, account.ErrAlreadyExists)
}

func TestMemoryStore_UpdateAbortLeavesNoTrace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	require.NoError(t, store.Create(ctx, newTestAccount("uid-1")))

	abort := errors.New("abort")
	_, err := store.Update(ctx, "uid-1", func(a *account.Account) error {
		q := a.Quotas[plan.QuotaPDFUploads]
		q.Used = 99
		a.Quotas[plan.QuotaPDFUploads] = q
		return abort
	})
	require.ErrorIs(t, err, abort)

	got, err := store.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Quotas[plan.QuotaPDFUploads].Used)
}

func TestMemoryStore_UpdateIsLinearizable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()
	require.NoError(t, store.Create(ctx, newTestAccount("uid-1")))

	const writers = 50

	var wg sync.WaitGroup
	wg.Add(writers)
	for range writers {
		go func() {
			defer wg.Done()
			_, _ = store.Update(ctx, "uid-1", func(a *account.Account) error {
				q := a.Quotas[plan.QuotaPDFUploads]
				q.Used++
				a.Quotas[plan.QuotaPDFUploads] = q
				return nil
			})
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), got.Quotas[plan.QuotaPDFUploads].Used)
	assert.Equal(t, int64(writers), got.Version)
}

func TestMemoryStore_FindBySubscriptionRef(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := account.NewMemoryStore()

	a := newTestAccount("uid-1")
	a.BillingSubscriptionRef = "sub_123"
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, newTestAccount("uid-2")))

	found, err := store.FindBySubscriptionRef(ctx, "sub_123")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", found.ID)

	_, err = store.FindBySubscriptionRef(ctx, "sub_missing")
	assert.ErrorIs(t, err, account.ErrNotFound)

	// An empty ref must never match accounts that have no subscription.
	_, err = store.FindBySubscriptionRef(ctx, "")
	assert.ErrorIs(t, err, account.ErrNotFound)
}
