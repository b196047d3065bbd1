package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"huddler.io/internal/access"
	"huddler.io/internal/identity"
	"huddler.io/internal/stream"
)

type decideRequest struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (a *API) handleAccessRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitAccessRequest(w, r)
	case http.MethodGet:
		a.listAccessRequests(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) submitAccessRequest(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	req, err := a.access.Submit(r.Context(), ident)
	if err != nil {
		if errors.Is(err, access.ErrConflict) {
			writeError(w, r, http.StatusBadRequest, "You already have a pending or approved L2 access request")
			return
		}
		handleAccessError(w, r, err)
		return
	}

	a.publishEvent(req, ident.Email)
	a.audit(r.Context(), "access.request.submit", map[string]any{"request_id": req.ID})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": req})
}

func (a *API) listAccessRequests(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	items, err := a.access.ListAll(r.Context(), ident.Role())
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	if items == nil {
		items = []access.RequestWithOwner{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func (a *API) handleAccessRequestMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ident, ok := identity.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	req, err := a.access.StatusFor(r.Context(), ident)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	// data is null when the user never submitted a request.
	writeJSON(w, http.StatusOK, map[string]any{"data": req})
}

func (a *API) handleAccessRequestDecide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ident, ok := identity.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req decideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Status) == "" {
		writeError(w, r, http.StatusBadRequest, "userId and status are required")
		return
	}

	updated, err := a.access.Decide(r.Context(), ident.Role(), req.UserID, req.Status, req.Notes)
	if err != nil {
		if errors.Is(err, access.ErrNotFound) {
			writeError(w, r, http.StatusBadRequest, "No pending request found for this user")
			return
		}
		handleAccessError(w, r, err)
		return
	}

	a.publishEvent(updated, "")
	a.audit(r.Context(), "access.request.decide", map[string]any{
		"request_id": updated.ID,
		"user_id":    updated.UserID,
		"status":     updated.Status,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": updated})
}

func (a *API) publishEvent(req *access.Request, email string) {
	if a.stream == nil || req == nil {
		return
	}
	a.stream.Publish(stream.RequestEvent{
		RequestID: req.ID,
		UserID:    req.UserID,
		Email:     email,
		Status:    req.Status,
	})
}

// --- helpers shared across handlers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrConflict), errors.Is(err, access.ErrNotFound):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "insufficient privileges")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
