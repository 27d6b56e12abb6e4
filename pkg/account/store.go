package account

import "context"

// UpdateFunc mutates an account inside a transactional read-modify-write.
// Returning an error aborts the update with no side effects.
type UpdateFunc func(*Account) error

// Store defines account persistence. Implementations must make Update a
// linearizable read-modify-write per account id: concurrent updates for the
// same account never interleave, updates for different accounts never contend.
type Store interface {
	// Get retrieves an account by id. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Account, error)

	// Create inserts a new account. Returns ErrAlreadyExists on id collision,
	// which callers of the first-sign-in hook treat as success.
	Create(ctx context.Context, a *Account) error

	// Update atomically applies fn to the current account state and persists
	// the result. Implementations backed by optimistic concurrency retry the
	// read-apply-write cycle once on a version conflict before surfacing
	// ErrConflict. The updated account is returned on success.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Account, error)

	// FindBySubscriptionRef locates the account holding the given provider
	// subscription reference. Returns ErrNotFound when no account holds it.
	FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error)
}
