package access

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"huddler.io/internal/identity"
	"huddler.io/internal/ids"
	"huddler.io/internal/obs"
	"huddler.io/internal/roles"
)

// Directory is the identity surface the workflow needs: lookups for the
// admin listing and metadata writes for role promotion.
type Directory interface {
	Find(ctx context.Context, id string) (*identity.Identity, error)
	UpdateMetadata(ctx context.Context, id string, patch map[string]string) (*identity.Identity, error)
}

// Service implements the access request workflow.
type Service struct {
	store Store
	dir   Directory
	now   func() time.Time
	log   *zap.Logger
}

// Option customizes the Service.
type Option func(*Service)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger overrides the shared logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(store Store, dir Directory, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("access store is required")
	}
	if dir == nil {
		return nil, errors.New("identity directory is required")
	}
	s := &Service{
		store: store,
		dir:   dir,
		now:   time.Now,
		log:   obs.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit creates a pending request for the authenticated identity. The
// profile mirror is refreshed first so admin views always have an email to
// join on; a live request yields ErrConflict and no new row.
func (s *Service) Submit(ctx context.Context, ident *identity.Identity) (*Request, error) {
	if ident == nil || strings.TrimSpace(ident.ID) == "" {
		return nil, ErrUnauthorized
	}

	profile := &Profile{
		ID:       ident.ID,
		Email:    ident.Email,
		FullName: ident.FullName(),
		Role:     ident.Role(),
	}
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		// The mirror is derived state; the request itself must not fail on it.
		s.log.Warn("profile upsert failed",
			zap.String("user_id", ident.ID), zap.Error(err))
	}

	live, err := s.store.HasLive(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, ErrConflict
	}

	r := &Request{
		ID:          ids.New(),
		UserID:      ident.ID,
		Status:      StatusPending,
		RequestedAt: s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// StatusFor returns the identity's most recent request, or nil when none
// exists.
func (s *Service) StatusFor(ctx context.Context, ident *identity.Identity) (*Request, error) {
	if ident == nil || strings.TrimSpace(ident.ID) == "" {
		return nil, ErrUnauthorized
	}
	latest, err := s.store.LatestForUser(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return latest, nil
}

// ListAll returns every request joined with its owner, newest first. The
// caller's role is checked here, not only at the route, so the operation
// fails closed no matter how it is reached. Owner lookups fan out
// concurrently; output order follows the request list.
func (s *Service) ListAll(ctx context.Context, caller roles.Role) ([]RequestWithOwner, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}
	requests, err := s.store.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]RequestWithOwner, len(requests))
	var wg sync.WaitGroup
	for i, r := range requests {
		out[i].Request = *r
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			out[i].Owner = s.ownerOf(ctx, userID)
		}(i, r.UserID)
	}
	wg.Wait()
	return out, nil
}

func (s *Service) ownerOf(ctx context.Context, userID string) Owner {
	ident, err := s.dir.Find(ctx, userID)
	if err != nil {
		// A request must still render when its identity is gone.
		return Owner{ID: userID, Email: "unknown", Role: roles.Investor}
	}
	return Owner{ID: ident.ID, Email: ident.Email, Role: ident.Role()}
}

// Decide transitions the user's latest pending request to approved or
// rejected. Approval stamps approved_at and promotes the user to admin.
// The underlying update is conditional on the pending status, so of two
// racing decisions exactly one wins and the loser gets ErrNotFound.
func (s *Service) Decide(ctx context.Context, caller roles.Role, userID, decision, notes string) (*Request, error) {
	if !caller.IsAdmin() {
		return nil, ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || !validDecision(decision) {
		return nil, ErrInvalidInput
	}

	var approvedAt *time.Time
	if decision == StatusApproved {
		t := s.now().UTC()
		approvedAt = &t
	}

	updated, err := s.store.DecideLatestPending(ctx, userID, decision, strings.TrimSpace(notes), approvedAt)
	if err != nil {
		return nil, err
	}

	if decision == StatusApproved {
		if err := s.promote(ctx, userID); err != nil {
			// The decision row is already committed. Promotion is idempotent,
			// so retry once before logging and moving on.
			if err = s.promote(ctx, userID); err != nil {
				s.log.Error("role promotion failed after approval",
					zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
	return updated, nil
}

// promote sets role=admin on the identity metadata bag, then mirrors it into
// the profile row. The bag is the source of truth; a mirror failure is
// logged and converges on the next profile upsert.
func (s *Service) promote(ctx context.Context, userID string) error {
	if _, err := s.dir.UpdateMetadata(ctx, userID, map[string]string{
		roles.MetadataKey: roles.Admin.String(),
	}); err != nil {
		return err
	}
	if err := s.store.SetProfileRole(ctx, userID, roles.Admin); err != nil {
		s.log.Warn("profile role mirror failed",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// HasElevatedAccess reports whether the identity may see L2 content: an
// admin-tier role, or an approved request on file.
func (s *Service) HasElevatedAccess(ctx context.Context, ident *identity.Identity) (bool, error) {
	if ident == nil || strings.TrimSpace(ident.ID) == "" {
		return false, nil
	}
	if ident.Role().IsAdmin() {
		return true, nil
	}
	return s.store.HasApproved(ctx, ident.ID)
}
