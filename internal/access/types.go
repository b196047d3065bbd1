// Package access implements the L2 access request workflow: investors ask
// for elevated portal access, admins approve or reject, approval promotes
// the requester's role.
package access

import (
	"time"

	"huddler.io/internal/roles"
)

// Request statuses. A request is live while pending or approved; rejected is
// terminal for that request but the user may submit a new one.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request is one user's bid for L2 access.
type Request struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// Owner is the identity summary joined onto a request for the admin listing.
type Owner struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  roles.Role `json:"role"`
}

// RequestWithOwner decorates a request with its owner for admin views.
type RequestWithOwner struct {
	Request
	Owner Owner `json:"user"`
}

// Profile is the application-side mirror of an identity. The identity
// metadata bag stays the source of truth for the role; this row exists so
// relational queries can join on it.
type Profile struct {
	ID       string     `json:"id"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Role     roles.Role `json:"role"`
}

// Decision statuses accepted by Decide.
func validDecision(status string) bool {
	return status == StatusApproved || status == StatusRejected
}
