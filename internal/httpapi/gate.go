package httpapi

import (
	"net/http"
	"strings"

	"huddler.io/internal/identity"
)

// routeGate enforces the page-level access rules ahead of the mux. Rules are
// checked in order and the first match wins:
//
//	/admin and below  — super_admin only; anonymous callers go to /sign-in,
//	                    signed-in callers without the role go to /portal
//	/portal and below — any signed-in identity; anonymous goes to /sign-in
//	everything else   — passes through untouched
//
// Browser flows want redirects, so the gate answers 302, not 401.
func (a *API) routeGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		ident, authed := identity.IdentityFromContext(r.Context())

		switch {
		case path == "/admin" || strings.HasPrefix(path, "/admin/"):
			if !authed {
				http.Redirect(w, r, "/sign-in", http.StatusFound)
				return
			}
			if !ident.Role().IsSuperAdmin() {
				http.Redirect(w, r, "/portal", http.StatusFound)
				return
			}
		case path == "/portal" || strings.HasPrefix(path, "/portal/"):
			if !authed {
				http.Redirect(w, r, "/sign-in", http.StatusFound)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
