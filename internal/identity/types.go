// Package identity is the first-party identity provider: accounts with a
// mutable metadata bag, bcrypt credentials and signed session/invite tokens.
package identity

import (
	"time"

	"huddler.io/internal/roles"
)

// Identity is a single account. Metadata is a free-form string bag; the keys
// the rest of the service cares about are "role" and "full_name".
type Identity struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Role returns the normalized role stored in the metadata bag.
func (i *Identity) Role() roles.Role {
	if i == nil {
		return roles.Investor
	}
	return roles.Of(i.Metadata)
}

// FullName returns the display name from the metadata bag, if any.
func (i *Identity) FullName() string {
	if i == nil {
		return ""
	}
	return i.Metadata["full_name"]
}

func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	if i.Metadata != nil {
		out.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
