package document

import "context"

// UpdateFunc mutates a document inside a transactional read-modify-write.
// Returning an error aborts the update with no side effects.
type UpdateFunc func(*Document) error

// Store defines document persistence with the same transactional Update
// contract as the account store: linearizable per document id.
type Store interface {
	// Get retrieves a document by id. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*Document, error)

	// Create inserts a new document. Returns ErrContentTooLarge when the
	// extracted text exceeds MaxContentLength.
	Create(ctx context.Context, d *Document) error

	// Update atomically applies fn and persists the result, retrying once on
	// a version conflict before surfacing ErrConflict.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Document, error)

	// Delete removes a document by id. Deleting a missing document returns
	// ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteByOwner removes all documents owned by an account and reports how
	// many were removed. Used by the account termination cascade.
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}
