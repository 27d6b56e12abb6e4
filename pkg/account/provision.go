package account

import (
	"context"
	"errors"
)

// EnsureExists is the first-sign-in hook: it inserts the account and treats an
// id collision as success. The auth provider may deliver the sign-in event
// more than once; an existing account is returned untouched so a duplicate
// event can never reset counters.
func EnsureExists(ctx context.Context, store Store, a *Account) (*Account, error) {
	err := store.Create(ctx, a)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, ErrAlreadyExists) {
		return store.Get(ctx, a.ID)
	}
	return nil, err
}
