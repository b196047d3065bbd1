package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"huddler.io/internal/identity"
	"huddler.io/internal/roles"
)

type inviteRequest struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	RedirectTo string `json:"redirectTo"`
}

// handleInvitations lets a privileged caller invite a new account. Only
// admin and investor are assignable this way; super_admin is bootstrapped
// out of band.
func (a *API) handleInvitations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := identity.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if !caller.Role().IsAdmin() {
		writeError(w, r, http.StatusUnauthorized, "insufficient privileges")
		return
	}

	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	role, valid := roles.Parse(req.Role)
	if !valid || role == roles.SuperAdmin {
		writeError(w, r, http.StatusBadRequest, "role must be admin or investor")
		return
	}

	inv, err := a.idp.Invite(r.Context(), req.Email, map[string]string{
		roles.MetadataKey: role.String(),
	}, strings.TrimSpace(req.RedirectTo))
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAlreadyExists):
			writeError(w, r, http.StatusBadRequest, "an account with this email already exists")
		case errors.Is(err, identity.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	a.audit(r.Context(), "auth.invite", map[string]any{
		"invited_id": inv.Identity.ID,
		"role":       role.String(),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": userResponse{
			ID:    inv.Identity.ID,
			Email: inv.Identity.Email,
			Role:  inv.Identity.Role().String(),
		},
	})
}
