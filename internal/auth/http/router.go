package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/jwtx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	accessVerifier  *jwtx.Verifier
	refreshVerifier *jwtx.Verifier
	buildVersion    string
	startTime       time.Time
	logger          *slog.Logger

	store             store.Store
	AuthService       *service.AuthService
	APIKeyService     *service.APIKeyService
	PermissionService *service.PermissionService
	UserService       *service.UserService
	Google            FederatedVerifier // nil disables /v1/auth/google
}

func NewRouter(
	accessVerifier, refreshVerifier *jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:             http.NewServeMux(),
		accessVerifier:  accessVerifier,
		refreshVerifier: refreshVerifier,
		buildVersion:    buildVersion,
		startTime:       time.Now(),
		store:           st,
		logger:          logger,
	}

	// Default middleware chain applied to every request
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAPIKeys()
	r.registerPermissions()
	r.registerUsers()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AuthService: r.AuthService,
		Google:      r.Google,
	}

	// POST /auth/local/login - strict rate limit by IP (credential guesses)
	r.Mux.Handle("POST /v1/auth/local/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /auth/me - requires a live access token
	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	// POST /auth/refresh - refresh token signature only; expiry is not
	// checked, the account lookup gates instead
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RefreshMiddleware(r.refreshVerifier, r.AuthService.Revalidate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Federated login endpoints respond 503 when Google is unconfigured
	r.Mux.Handle("GET /v1/auth/google/login",
		httpx.Chain(http.HandlerFunc(h.HandleGoogleLogin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/google/callback",
		httpx.Chain(http.HandlerFunc(h.HandleGoogleCallback),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/google/verify",
		httpx.Chain(http.HandlerFunc(h.HandleGoogleVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAPIKeys() {
	h := &APIKeyHandler{APIKeyService: r.APIKeyService}

	r.Mux.Handle("GET /v1/api-keys",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/api-keys",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerPermissions() {
	h := &PermissionHandler{PermissionService: r.PermissionService}

	r.Mux.Handle("GET /v1/permissions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/permissions",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserHandler{UserService: r.UserService}

	// GET /users is the machine-to-machine surface: gated by a static
	// api key holding either of the user permissions
	r.Mux.Handle("GET /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			APIKeyGuard(r.APIKeyService, "user-read", "user-create"),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/users",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/users/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.SessionMiddleware(r.accessVerifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	h := &HealthHandler{
		Store:        r.store,
		BuildVersion: r.buildVersion,
		StartTime:    r.startTime,
	}

	// Monitoring systems may poll these frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.HandleLivez),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.HandleReadyz),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
