// Package httpapi is the HTTP front door: marketing endpoints stay open,
// portal and admin surfaces sit behind the route gate.
package httpapi

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"huddler.io/internal/access"
	"huddler.io/internal/audit"
	"huddler.io/internal/cms"
	"huddler.io/internal/identity"
	"huddler.io/internal/mail"
	"huddler.io/internal/obs"
	"huddler.io/internal/stream"
)

const sessionName = "huddler_session"

// ReadyProbe is a simple readiness check (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// ContentSource is the read-only CMS surface the updates handler needs.
type ContentSource interface {
	Updates(ctx context.Context) (*cms.UpdatesDocument, error)
}

// Deps wires the API to its collaborators.
type Deps struct {
	Identity *identity.Service
	Access   *access.Service
	Content  ContentSource
	Mailer   mail.Mailer
	Stream   *stream.Stream

	// SessionSecret derives the cookie signing key.
	SessionSecret string

	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	idp     *identity.Service
	access  *access.Service
	content ContentSource
	mailer  mail.Mailer
	stream  *stream.Stream

	sessions *sessions.CookieStore

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		idp:        deps.Identity,
		access:     deps.Access,
		content:    deps.Content,
		mailer:     deps.Mailer,
		stream:     deps.Stream,
		rateBurst:  deps.RateBurst,
		ratePerSec: deps.RatePerSec,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}
	if deps.SessionSecret != "" {
		key := sha256.Sum256([]byte(deps.SessionSecret))
		a.sessions = sessions.NewCookieStore(key[:])
		a.sessions.Options = &sessions.Options{
			Path:     "/",
			MaxAge:   int((7 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/sign-in", a.handleSignIn)
	a.mux.HandleFunc("/v1/auth/sign-out", a.handleSignOut)
	a.mux.HandleFunc("/v1/auth/setup-password", a.handleSetupPassword)

	// access request workflow
	a.mux.HandleFunc("/v1/access-requests", a.handleAccessRequests)
	a.mux.HandleFunc("/v1/access-requests/mine", a.handleAccessRequestMine)
	a.mux.HandleFunc("/v1/access-requests/decide", a.handleAccessRequestDecide)
	a.mux.HandleFunc("/v1/access-requests/events", a.StreamEvents)

	// admin
	a.mux.HandleFunc("/v1/invitations", a.handleInvitations)

	// portal content + marketing
	a.mux.HandleFunc("/v1/updates", a.handleUpdates)
	a.mux.HandleFunc("/v1/newsletter", a.handleNewsletter)

	// gated page entry points; rendering happens client-side, these answer
	// once the route gate lets the request through
	a.mux.HandleFunc("/portal", a.handlePortal)
	a.mux.HandleFunc("/portal/", a.handlePortal)
	a.mux.HandleFunc("/admin", a.handleAdmin)
	a.mux.HandleFunc("/admin/", a.handleAdmin)
	a.mux.HandleFunc("/sign-in", a.handleSignInPage)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux. Execution order is
// top-down: metrics, CORS, headers, body cap, rate limit, request id,
// logging, authentication, route gate.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.routeGate(h)
	h = a.withAuth(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "huddler-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "huddler-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) handlePortal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"area": "portal"})
}

func (a *API) handleAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"area": "admin"})
}

func (a *API) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"page": "sign-in"})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
