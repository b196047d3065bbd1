package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"huddler.io/internal/identity"
	"huddler.io/internal/roles"
)

type stubDirectory struct {
	idents     map[string]*identity.Identity
	updateErr  error
	updateHits int
}

func newStubDirectory(idents ...*identity.Identity) *stubDirectory {
	d := &stubDirectory{idents: make(map[string]*identity.Identity)}
	for _, ident := range idents {
		d.idents[ident.ID] = ident
	}
	return d
}

func (d *stubDirectory) Find(ctx context.Context, id string) (*identity.Identity, error) {
	ident, ok := d.idents[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return ident, nil
}

func (d *stubDirectory) UpdateMetadata(ctx context.Context, id string, patch map[string]string) (*identity.Identity, error) {
	d.updateHits++
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	ident, ok := d.idents[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	if ident.Metadata == nil {
		ident.Metadata = make(map[string]string)
	}
	for k, v := range patch {
		ident.Metadata[k] = v
	}
	return ident, nil
}

func investor(id, email string) *identity.Identity {
	return &identity.Identity{ID: id, Email: email, Metadata: map[string]string{"full_name": "Test " + id}}
}

func newTestService(t *testing.T, dir Directory, opts ...Option) (*Service, *MemStore) {
	t.Helper()
	store := NewMemStore()
	svc, err := NewService(store, dir, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestSubmitThenStatus(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, _ := newTestService(t, newStubDirectory(ident))
	ctx := context.Background()

	r, err := svc.Submit(ctx, ident)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Status != StatusPending || r.ApprovedAt != nil {
		t.Fatalf("new request must be pending without approved_at: %+v", r)
	}

	got, err := svc.StatusFor(ctx, ident)
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if got == nil || got.ID != r.ID {
		t.Fatalf("StatusFor=%+v, want request %s", got, r.ID)
	}
}

func TestStatusForWithoutRequests(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, _ := newTestService(t, newStubDirectory(ident))

	got, err := svc.StatusFor(context.Background(), ident)
	if err != nil {
		t.Fatalf("StatusFor: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for user with no requests, got %+v", got)
	}
}

func TestDoubleSubmitConflicts(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, store := newTestService(t, newStubDirectory(ident))
	ctx := context.Background()

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, ident); !errors.Is(err, ErrConflict) {
		t.Fatalf("second Submit err=%v, want ErrConflict", err)
	}
	all, err := store.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("conflicting submit created a row: %d requests", len(all))
	}
}

func TestSubmitAfterApprovalConflicts(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, _ := newTestService(t, newStubDirectory(ident))
	ctx := context.Background()

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Decide(ctx, roles.Admin, "u1", StatusApproved, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if _, err := svc.Submit(ctx, ident); !errors.Is(err, ErrConflict) {
		t.Fatalf("submit after approval err=%v, want ErrConflict", err)
	}
}

func TestResubmitAfterRejection(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, _ := newTestService(t, newStubDirectory(ident))
	ctx := context.Background()

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rejected, err := svc.Decide(ctx, roles.Admin, "u1", StatusRejected, "not yet")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if rejected.Status != StatusRejected || rejected.ApprovedAt != nil {
		t.Fatalf("rejected request wrong: %+v", rejected)
	}
	if rejected.Notes != "not yet" {
		t.Fatalf("notes=%q", rejected.Notes)
	}

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("resubmit after rejection: %v", err)
	}
}

func TestApprovePromotesRole(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	dir := newStubDirectory(ident)
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc, store := newTestService(t, dir, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	approved, err := svc.Decide(ctx, roles.SuperAdmin, "u1", StatusApproved, "")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status=%q", approved.Status)
	}
	if approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(fixed) {
		t.Fatalf("approved_at=%v, want %v", approved.ApprovedAt, fixed)
	}
	if ident.Role() != roles.Admin {
		t.Fatalf("identity role=%q, want admin", ident.Role())
	}
	if mirrored, ok := store.ProfileRole("u1"); !ok || mirrored != roles.Admin {
		t.Fatalf("profile mirror=%q,%v, want admin", mirrored, ok)
	}
}

func TestDecideWithoutPending(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, _ := newTestService(t, newStubDirectory(ident))
	ctx := context.Background()

	if _, err := svc.Decide(ctx, roles.Admin, "u1", StatusApproved, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	// The second decision on the same request also loses.
	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Decide(ctx, roles.Admin, "u1", StatusApproved, ""); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if _, err := svc.Decide(ctx, roles.Admin, "u1", StatusRejected, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second decision err=%v, want ErrNotFound", err)
	}
}

func TestDecideCapabilityChecks(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	svc, _ := newTestService(t, newStubDirectory(ident))
	ctx := context.Background()

	if _, err := svc.Decide(ctx, roles.Investor, "u1", StatusApproved, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("investor decide err=%v, want ErrUnauthorized", err)
	}
	if _, err := svc.ListAll(ctx, roles.Investor); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("investor list err=%v, want ErrUnauthorized", err)
	}
	if _, err := svc.Decide(ctx, roles.Admin, "u1", "revoked", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad decision err=%v, want ErrInvalidInput", err)
	}
	if _, err := svc.Decide(ctx, roles.Admin, "  ", StatusApproved, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank user err=%v, want ErrInvalidInput", err)
	}
}

func TestListAllEmpty(t *testing.T) {
	svc, _ := newTestService(t, newStubDirectory())
	got, err := svc.ListAll(context.Background(), roles.Admin)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d", len(got))
	}
}

func TestListAllJoinsOwners(t *testing.T) {
	u1 := investor("u1", "u1@example.com")
	u2 := investor("u2", "u2@example.com")
	dir := newStubDirectory(u1, u2)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	current := base
	svc, store := newTestService(t, dir, WithClock(func() time.Time {
		current = current.Add(time.Minute)
		return current
	}))
	ctx := context.Background()

	if _, err := svc.Submit(ctx, u1); err != nil {
		t.Fatalf("Submit u1: %v", err)
	}
	if _, err := svc.Submit(ctx, u2); err != nil {
		t.Fatalf("Submit u2: %v", err)
	}
	// A request whose identity disappeared still renders.
	if err := store.CreateRequest(ctx, &Request{
		UserID: "ghost", Status: StatusRejected, RequestedAt: base,
	}); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	got, err := svc.ListAll(ctx, roles.Admin)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	// Newest first.
	if got[0].UserID != "u2" || got[1].UserID != "u1" || got[2].UserID != "ghost" {
		t.Fatalf("order wrong: %s,%s,%s", got[0].UserID, got[1].UserID, got[2].UserID)
	}
	if got[1].Owner.Email != "u1@example.com" {
		t.Fatalf("owner email=%q", got[1].Owner.Email)
	}
	if got[2].Owner.Email != "unknown" || got[2].Owner.Role != roles.Investor {
		t.Fatalf("ghost owner=%+v", got[2].Owner)
	}
}

func TestHasElevatedAccess(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	admin := &identity.Identity{ID: "a1", Email: "a@example.com", Metadata: map[string]string{"role": "admin"}}
	svc, _ := newTestService(t, newStubDirectory(ident, admin))
	ctx := context.Background()

	if ok, _ := svc.HasElevatedAccess(ctx, ident); ok {
		t.Fatal("investor without approval must not have elevated access")
	}
	if ok, _ := svc.HasElevatedAccess(ctx, admin); !ok {
		t.Fatal("admin role must grant elevated access")
	}

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ok, _ := svc.HasElevatedAccess(ctx, ident); ok {
		t.Fatal("pending request must not grant elevated access")
	}
	if _, err := svc.Decide(ctx, roles.Admin, "u1", StatusApproved, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if ok, _ := svc.HasElevatedAccess(ctx, ident); !ok {
		t.Fatal("approved request must grant elevated access")
	}
}

func TestSubmitRequiresIdentity(t *testing.T) {
	svc, _ := newTestService(t, newStubDirectory())
	if _, err := svc.Submit(context.Background(), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
	if _, err := svc.StatusFor(context.Background(), &identity.Identity{}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v, want ErrUnauthorized", err)
	}
}

func TestPromotionRetriesOnce(t *testing.T) {
	ident := investor("u1", "u1@example.com")
	dir := newStubDirectory(ident)
	dir.updateErr = errors.New("transient")
	svc, _ := newTestService(t, dir)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, ident); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	approved, err := svc.Decide(ctx, roles.Admin, "u1", StatusApproved, "")
	if err != nil {
		t.Fatalf("Decide must not fail when promotion fails: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status=%q", approved.Status)
	}
	if dir.updateHits != 2 {
		t.Fatalf("updateHits=%d, want 2 (one retry)", dir.updateHits)
	}
}
