package account

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. It backs tests and local development;
// the mutex gives Update the same linearizability the mongo store achieves
// with optimistic concurrency.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return ErrAlreadyExists
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}

	// fn runs on a clone so an aborting update leaves no trace.
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	next.Version = current.Version + 1
	s.accounts[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) FindBySubscriptionRef(ctx context.Context, ref string) (*Account, error) {
	if ref == "" {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.BillingSubscriptionRef == ref {
			return a.Clone(), nil
		}
	}
	return nil, ErrNotFound
}
