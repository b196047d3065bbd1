package access

import (
	"context"
	"sync"
	"time"

	"huddler.io/internal/ids"
	"huddler.io/internal/roles"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and database-less local runs.
type MemStore struct {
	mu       sync.RWMutex
	requests []*Request
	profiles map[string]*Profile
}

func NewMemStore() *MemStore {
	return &MemStore{profiles: make(map[string]*Profile)}
}

func (s *MemStore) CreateRequest(ctx context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.UserID == r.UserID && (existing.Status == StatusPending || existing.Status == StatusApproved) {
			return ErrConflict
		}
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	cp := *r
	s.requests = append(s.requests, &cp)
	return nil
}

func (s *MemStore) LatestForUser(ctx context.Context, userID string) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Request
	for _, r := range s.requests {
		if r.UserID != userID {
			continue
		}
		if latest == nil || r.RequestedAt.After(latest.RequestedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemStore) HasLive(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.UserID == userID && (r.Status == StatusPending || r.Status == StatusApproved) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) HasApproved(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.UserID == userID && r.Status == StatusApproved {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) ListRequests(ctx context.Context) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*Request, 0, len(s.requests))
	for _, r := range s.requests {
		cp := *r
		res = append(res, &cp)
	}
	// Newest first, matching the Postgres ordering.
	for i := 0; i < len(res); i++ {
		for j := i + 1; j < len(res); j++ {
			if res[j].RequestedAt.After(res[i].RequestedAt) {
				res[i], res[j] = res[j], res[i]
			}
		}
	}
	return res, nil
}

func (s *MemStore) DecideLatestPending(ctx context.Context, userID, status, notes string, approvedAt *time.Time) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Request
	for _, r := range s.requests {
		if r.UserID != userID || r.Status != StatusPending {
			continue
		}
		if latest == nil || r.RequestedAt.After(latest.RequestedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	latest.Status = status
	latest.Notes = notes
	latest.ApprovedAt = approvedAt
	cp := *latest
	return &cp, nil
}

func (s *MemStore) UpsertProfile(ctx context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[p.ID]; ok {
		existing.Email = p.Email
		existing.FullName = p.FullName
		return nil
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *MemStore) SetProfileRole(ctx context.Context, userID string, role roles.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	return nil
}

// ProfileRole reports the mirrored role, for tests.
func (s *MemStore) ProfileRole(userID string) (roles.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return "", false
	}
	return p.Role, true
}
