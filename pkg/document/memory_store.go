package document

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, d *Document) error {
	if len(d.Content) > MaxContentLength {
		return ErrContentTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[d.ID]; ok {
		return ErrAlreadyExists
	}
	s.docs[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	next.Version = current.Version + 1
	s.docs[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, d := range s.docs {
		if d.OwnerID == ownerID {
			delete(s.docs, id)
			removed++
		}
	}
	return removed, nil
}
