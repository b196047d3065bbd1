package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"huddler.io/internal/identity"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	sessionTokenKey = "token"
)

// withAuth resolves the caller's identity from a bearer token or the session
// cookie and attaches it to the context. It never rejects an unauthenticated
// request by itself; the route gate and the handlers decide what requires
// sign-in. A present-but-invalid bearer token is the one exception: that is
// a client error and gets 401 immediately.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.idp == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
			token, err := extractBearerToken(header)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, err.Error())
				return
			}
			ident, err := a.idp.AuthenticateToken(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrInvalidToken):
					writeError(w, r, http.StatusUnauthorized, "invalid token")
				default:
					writeError(w, r, http.StatusInternalServerError, "authentication error")
				}
				return
			}
			ctx := identity.ContextWithIdentity(r.Context(), ident)
			ctx = identity.ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if token := a.sessionToken(r); token != "" {
			ident, err := a.idp.AuthenticateToken(r.Context(), token)
			if err == nil {
				ctx := identity.ContextWithIdentity(r.Context(), ident)
				ctx = identity.ContextWithToken(ctx, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			// A stale or expired cookie falls through as anonymous.
		}

		next.ServeHTTP(w, r)
	})
}

func (a *API) sessionToken(r *http.Request) string {
	if a.sessions == nil {
		return ""
	}
	session, err := a.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	token, _ := session.Values[sessionTokenKey].(string)
	return token
}

func (a *API) setSessionToken(w http.ResponseWriter, r *http.Request, token string) {
	if a.sessions == nil {
		return
	}
	session, _ := a.sessions.Get(r, sessionName)
	session.Values[sessionTokenKey] = token
	_ = session.Save(r, w)
}

func (a *API) clearSession(w http.ResponseWriter, r *http.Request) {
	if a.sessions == nil {
		return
	}
	session, _ := a.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	delete(session.Values, sessionTokenKey)
	_ = session.Save(r, w)
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
