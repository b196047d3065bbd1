// Package roles defines the portal access levels and the predicates the HTTP
// layer and the access workflow gate on. Everything here is pure; role state
// itself lives in the identity metadata bag.
package roles

import "strings"

// Role is the coarse portal access level carried in identity metadata.
type Role string

const (
	Investor   Role = "investor"
	Admin      Role = "admin"
	SuperAdmin Role = "super_admin"
)

// MetadataKey is the metadata field that stores the role.
const MetadataKey = "role"

// Of reads the role out of an identity metadata bag. A missing, empty or
// unrecognized value normalizes to Investor, so callers never see an
// unknown role.
func Of(metadata map[string]string) Role {
	r, ok := Parse(metadata[MetadataKey])
	if !ok {
		return Investor
	}
	return r
}

// Parse maps raw input to a known role. ok is false for anything that is not
// exactly one of the three roles after trimming and lowercasing.
func Parse(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case Investor:
		return Investor, true
	case Admin:
		return Admin, true
	case SuperAdmin:
		return SuperAdmin, true
	default:
		return "", false
	}
}

// IsAdmin reports whether r grants administrative capabilities. Super admins
// hold every admin capability.
func (r Role) IsAdmin() bool {
	return r == Admin || r == SuperAdmin
}

// IsSuperAdmin reports whether r grants the highest privilege tier.
func (r Role) IsSuperAdmin() bool {
	return r == SuperAdmin
}

func (r Role) String() string { return string(r) }
