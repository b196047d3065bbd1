package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"huddler.io/internal/identity"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setupPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expires_at"`
	User      userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := a.idp.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	a.setSessionToken(w, r, sess.Token)
	a.audit(r.Context(), "auth.sign_in", map[string]any{"user_id": sess.Identity.ID})

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		User: userResponse{
			ID:    sess.Identity.ID,
			Email: sess.Identity.Email,
			Role:  sess.Identity.Role().String(),
		},
	})
}

func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.clearSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSetupPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req setupPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "token and password are required")
		return
	}

	ident, err := a.idp.SetupPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidToken):
			writeError(w, r, http.StatusBadRequest, "invalid or expired invite token")
		case errors.Is(err, identity.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	a.audit(r.Context(), "auth.setup_password", map[string]any{"user_id": ident.ID})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
