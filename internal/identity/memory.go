package identity

import (
	"context"
	"sync"
	"time"

	"huddler.io/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and database-less local runs.
type MemStore struct {
	mu     sync.RWMutex
	byID   map[string]*Identity
	hashes map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[string]*Identity),
		hashes: make(map[string]string),
	}
}

func (s *MemStore) Create(ctx context.Context, ident *Identity, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Email == ident.Email {
			return ErrAlreadyExists
		}
	}
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	now := time.Now().UTC()
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	ident.UpdatedAt = now
	s.byID[ident.ID] = ident.clone()
	s.hashes[ident.ID] = passwordHash
	return nil
}

func (s *MemStore) Find(ctx context.Context, id string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ident.clone(), nil
}

func (s *MemStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ident := range s.byID {
		if ident.Email == email {
			return ident.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) List(ctx context.Context) ([]*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*Identity, 0, len(s.byID))
	for _, ident := range s.byID {
		res = append(res, ident.clone())
	}
	return res, nil
}

func (s *MemStore) PasswordHash(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[id]; !ok {
		return "", ErrNotFound
	}
	return s.hashes[id], nil
}

func (s *MemStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	s.hashes[id] = hash
	return nil
}

func (s *MemStore) UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	bag := make(map[string]string, len(metadata))
	for k, v := range metadata {
		bag[k] = v
	}
	ident.Metadata = bag
	ident.UpdatedAt = time.Now().UTC()
	return nil
}
