package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/google"
	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/pkg/cryptox"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/jwtx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

const stateCookie = "oauth_state"

// FederatedVerifier is the slice of the Google integration the handlers
// need; *google.Provider satisfies it and tests stub it.
type FederatedVerifier interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (google.Profile, error)
	VerifyIDToken(ctx context.Context, rawIDToken string) (google.Profile, error)
}

type AuthHandler struct {
	AuthService *service.AuthService
	Google      FederatedVerifier // nil when federated login is not configured
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin authenticates a username/password pair, sets the token
// cookies and returns the session body.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	u, err := h.AuthService.ValidateUser(ctx, req.Username, req.Password)
	if err != nil {
		// Unknown user and wrong password are deliberately
		// indistinguishable to the caller.
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			log.Info("login rejected", "username", req.Username)
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.finishLogin(w, r, service.Identity(u), "Login successful")
}

// HandleMe returns the verified claims of the current session.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "no session")
		return
	}

	id := claims.Identity()
	httpx.WriteJSON(w, http.StatusOK, domain.Session{
		Sub:      id.Subject,
		Username: id.Username,
		Email:    id.Email,
		Name:     id.Name,
	})
}

// HandleRefresh rotates the token pair. The refresh middleware has
// already verified the refresh token's signature and re-validated that
// the account still exists.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := httpx.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "no refresh identity")
		return
	}

	session, pair, err := h.AuthService.Refresh(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).Error("refresh failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	setTokenCookies(w, pair)
	httpx.WriteMessage(w, http.StatusOK, "Token refreshed", session)
}

// HandleGoogleLogin redirects the browser to the Google consent page.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "federated login is not configured")
		return
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	http.Redirect(w, r, h.Google.AuthCodeURL(state), http.StatusFound)
}

// HandleGoogleCallback finishes the authorization-code flow: verify
// state, redeem the code, then log the matching local account in.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Google == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "federated login is not configured")
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || r.URL.Query().Get("state") != state.Value {
		httpx.WriteError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	profile, err := h.Google.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		slogx.FromContext(ctx).Warn("google code exchange failed", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "federated login failed")
		return
	}

	h.loginFederated(w, r, profile, "Login successful")
}

// HandleGoogleVerify verifies a raw Google ID token handed over by the
// client and logs the matching local account in.
func (h *AuthHandler) HandleGoogleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Google == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "federated login is not configured")
		return
	}

	raw := r.URL.Query().Get("token")
	if raw == "" {
		httpx.WriteError(w, http.StatusBadRequest, "token is required")
		return
	}

	profile, err := h.Google.VerifyIDToken(ctx, raw)
	if err != nil {
		slogx.FromContext(ctx).Warn("google id token rejected", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "invalid google token")
		return
	}

	h.loginFederated(w, r, profile, "Google token verified")
}

func (h *AuthHandler) loginFederated(w http.ResponseWriter, r *http.Request, profile google.Profile, message string) {
	ctx := r.Context()

	u, err := h.AuthService.ValidateFederated(ctx, profile.Email)
	if err != nil {
		if errors.Is(err, service.ErrNotRegistered) {
			// A verified Google identity is not enough; the account
			// must already exist locally.
			httpx.WriteError(w, http.StatusUnauthorized, "account not registered")
			return
		}
		slogx.FromContext(ctx).Error("federated lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.finishLogin(w, r, service.Identity(u), message)
}

func (h *AuthHandler) finishLogin(w http.ResponseWriter, r *http.Request, id jwtx.Identity, message string) {
	ctx := r.Context()

	session, pair, err := h.AuthService.Login(ctx, id)
	if err != nil {
		slogx.FromContext(ctx).Error("token issuance failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	setTokenCookies(w, pair)
	httpx.WriteMessage(w, http.StatusOK, message, session)
}

// setTokenCookies writes both tokens back as cookies, replacing any
// previous pair. Cross-site usage is assumed, hence SameSite=None.
func setTokenCookies(w http.ResponseWriter, pair domain.TokenPair) {
	for name, value := range map[string]string{
		httpx.AccessTokenCookie:  pair.AccessToken,
		httpx.RefreshTokenCookie: pair.RefreshToken,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
		})
	}
}
