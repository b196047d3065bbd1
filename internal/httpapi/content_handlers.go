package httpapi

import (
	"net/http"
	"strings"

	"huddler.io/internal/identity"
)

type newsletterRequest struct {
	Email string `json:"email"`
}

// handleUpdates serves the CMS-backed updates feed to signed-in portal users.
func (a *API) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := identity.IdentityFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if a.content == nil {
		writeError(w, r, http.StatusServiceUnavailable, "updates feed not configured")
		return
	}

	doc, err := a.content.Updates(r.Context())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, "failed to load updates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": doc})
}

func (a *API) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req newsletterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, r, http.StatusBadRequest, "a valid email is required")
		return
	}

	if a.mailer != nil {
		if err := a.mailer.SendWelcome(r.Context(), email); err != nil {
			writeError(w, r, http.StatusInternalServerError, "subscription failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Subscribed successfully"})
}
