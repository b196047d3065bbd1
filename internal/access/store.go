package access

import (
	"context"
	"time"

	"huddler.io/internal/roles"
)

// Store describes persistence for access requests and profile mirrors.
// Implementations must return ErrNotFound where documented and ErrConflict
// when a live request already exists.
type Store interface {
	// CreateRequest inserts a pending request.
	CreateRequest(ctx context.Context, r *Request) error
	// LatestForUser returns the most recent request by requested_at, or
	// ErrNotFound when the user never submitted one.
	LatestForUser(ctx context.Context, userID string) (*Request, error)
	// HasLive reports whether a pending or approved request exists.
	HasLive(ctx context.Context, userID string) (bool, error)
	// HasApproved reports whether an approved request exists.
	HasApproved(ctx context.Context, userID string) (bool, error)
	// ListRequests returns every request, newest first.
	ListRequests(ctx context.Context) ([]*Request, error)
	// DecideLatestPending transitions the user's most recent pending request
	// in one conditional write. ErrNotFound when nothing is pending; the
	// status filter makes concurrent decisions lose cleanly.
	DecideLatestPending(ctx context.Context, userID, status, notes string, approvedAt *time.Time) (*Request, error)

	// UpsertProfile inserts or refreshes the profile mirror row.
	UpsertProfile(ctx context.Context, p *Profile) error
	// SetProfileRole updates only the mirrored role.
	SetProfileRole(ctx context.Context, userID string, role roles.Role) error
}
