package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/google"
	"github.com/warungtech/gatekit/internal/auth/service"
	"github.com/warungtech/gatekit/internal/auth/store/drivers/sqlite"
	"github.com/warungtech/gatekit/pkg/cryptox"
	"github.com/warungtech/gatekit/pkg/httpx"
	"github.com/warungtech/gatekit/pkg/idx"
	"github.com/warungtech/gatekit/pkg/jwtx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
)

type testEnv struct {
	store  *sqlite.Store
	server *httptest.Server
	tokens *service.TokenService
}

// fakeGoogle satisfies FederatedVerifier without network access.
type fakeGoogle struct {
	profile google.Profile
	err     error
}

func (f *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeGoogle) Exchange(ctx context.Context, code string) (google.Profile, error) {
	return f.profile, f.err
}

func (f *fakeGoogle) VerifyIDToken(ctx context.Context, raw string) (google.Profile, error) {
	return f.profile, f.err
}

func newTestEnv(t *testing.T, fed FederatedVerifier) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	accessSigner, err := jwtx.NewSigner(testAccessSecret)
	require.NoError(t, err)
	refreshSigner, err := jwtx.NewSigner(testRefreshSecret)
	require.NoError(t, err)
	accessVerifier, err := jwtx.NewVerifier(testAccessSecret)
	require.NoError(t, err)
	refreshVerifier, err := jwtx.NewVerifier(testRefreshSecret)
	require.NoError(t, err)

	tokens := &service.TokenService{
		AccessSigner:  accessSigner,
		RefreshSigner: refreshSigner,
		AccessTTL:     jwtx.DefaultAccessTokenTTL,
		RefreshTTL:    jwtx.DefaultRefreshTokenTTL,
	}

	logger := slogx.New(slogx.Config{Service: "auth-test", Level: "error"})

	router := NewRouter(accessVerifier, refreshVerifier, "test", st, logger)
	router.AuthService = &service.AuthService{Store: st, Tokens: tokens}
	router.APIKeyService = &service.APIKeyService{Store: st}
	router.PermissionService = &service.PermissionService{Store: st}
	router.UserService = &service.UserService{Store: st}
	router.Google = fed
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{store: st, server: server, tokens: tokens}
}

func (e *testEnv) seedUser(t *testing.T, username, email, password string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		Name:         "Test " + username,
		PasswordHash: hash,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) seedPermission(t *testing.T, name string) domain.Permission {
	t.Helper()

	p := domain.Permission{ID: idx.New().String(), Name: name}
	require.NoError(t, e.store.Permissions().CreatePermission(context.Background(), p))
	return p
}

func (e *testEnv) seedAPIKey(t *testing.T, owner domain.User, expiresAt time.Time, permissions ...string) domain.APIKey {
	t.Helper()
	ctx := context.Background()

	key, secret, err := cryptox.GenerateAPIKey()
	require.NoError(t, err)

	var permIDs []string
	for _, name := range permissions {
		p, err := e.store.Permissions().GetPermissionByName(ctx, name)
		require.NoError(t, err)
		permIDs = append(permIDs, p.ID)
	}

	record := domain.APIKey{
		ID:          idx.New().String(),
		Name:        "key-" + key[:8],
		Key:         key,
		Secret:      secret,
		UserID:      owner.ID,
		Permissions: permissions,
		ExpiresAt:   expiresAt,
	}
	require.NoError(t, e.store.APIKeys().CreateAPIKey(ctx, record, permIDs))
	return record
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response, data any) string {
	t.Helper()

	var env struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Message
}

func tokenCookies(t *testing.T, resp *http.Response) (access, refresh *http.Cookie) {
	t.Helper()

	for _, c := range resp.Cookies() {
		switch c.Name {
		case httpx.AccessTokenCookie:
			access = c
		case httpx.RefreshTokenCookie:
			refresh = c
		}
	}
	require.NotNil(t, access, "access token cookie missing")
	require.NotNil(t, refresh, "refresh token cookie missing")
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	return access, refresh
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.seedUser(t, "alice", "alice@example.com", "correct-pw")

	t.Run("valid credentials set cookies and return the session", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/auth/local/login",
			map[string]string{"username": "alice", "password": "correct-pw"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		access, refresh := tokenCookies(t, resp)
		require.NotEmpty(t, access.Value)
		require.NotEmpty(t, refresh.Value)

		var session domain.Session
		msg := decodeEnvelope(t, resp, &session)
		require.Equal(t, "Login successful", msg)
		require.Equal(t, "alice", session.Username)
		require.Equal(t, "alice@example.com", session.Email)
		require.Greater(t, session.ExpiresIn, time.Now().UnixMilli())
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		wrongPw := env.do(t, http.MethodPost, "/v1/auth/local/login",
			map[string]string{"username": "alice", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, wrongPw.StatusCode)

		unknown := env.do(t, http.MethodPost, "/v1/auth/local/login",
			map[string]string{"username": "mallory", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/auth/local/login",
			map[string]string{"username": "alice"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestMe(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	u := env.seedUser(t, "alice", "alice@example.com", "correct-pw")

	login := env.do(t, http.MethodPost, "/v1/auth/local/login",
		map[string]string{"username": "alice", "password": "correct-pw"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	access, _ := tokenCookies(t, login)

	t.Run("returns the verified claims", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/auth/me", nil, access)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var session domain.Session
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
		require.Equal(t, u.ID, session.Sub)
		require.Equal(t, "alice", session.Username)
		require.Equal(t, "alice@example.com", session.Email)
	})

	t.Run("no credential is unauthorized", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/auth/me", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired access token is unauthorized", func(t *testing.T) {
		expired, err := env.tokens.AccessSigner.Sign(
			jwtx.NewClaims(service.Identity(u), time.Minute, time.Now().Add(-time.Hour)))
		require.NoError(t, err)

		resp := env.do(t, http.MethodGet, "/v1/auth/me", nil,
			&http.Cookie{Name: httpx.AccessTokenCookie, Value: expired})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bearer header works without cookies", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+access.Value)

		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	u := env.seedUser(t, "alice", "alice@example.com", "correct-pw")

	login := env.do(t, http.MethodPost, "/v1/auth/local/login",
		map[string]string{"username": "alice", "password": "correct-pw"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	_, refresh := tokenCookies(t, login)

	t.Run("rotates the pair and drops the email claim", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/auth/refresh", nil, refresh)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		newAccess, newRefresh := tokenCookies(t, resp)
		require.NotEqual(t, refresh.Value, newRefresh.Value)
		require.NotEmpty(t, newAccess.Value)

		var session domain.Session
		msg := decodeEnvelope(t, resp, &session)
		require.Equal(t, "Token refreshed", msg)
		require.Equal(t, u.ID, session.Sub)
		require.Empty(t, session.Email)
	})

	t.Run("expired refresh token still rotates while the account exists", func(t *testing.T) {
		expired, err := env.tokens.RefreshSigner.Sign(
			jwtx.NewClaims(service.Identity(u).Trim(), time.Minute, time.Now().Add(-time.Hour)))
		require.NoError(t, err)

		resp := env.do(t, http.MethodPost, "/v1/auth/refresh", nil,
			&http.Cookie{Name: httpx.RefreshTokenCookie, Value: expired})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("refresh token for a deleted account is rejected", func(t *testing.T) {
		ghost, err := env.tokens.RefreshSigner.Sign(jwtx.NewClaims(jwtx.Identity{
			Subject:  idx.New().String(),
			Username: "deleted-account",
		}, time.Hour, time.Now()))
		require.NoError(t, err)

		resp := env.do(t, http.MethodPost, "/v1/auth/refresh", nil,
			&http.Cookie{Name: httpx.RefreshTokenCookie, Value: ghost})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("access token does not verify as a refresh token", func(t *testing.T) {
		access, _ := tokenCookies(t, login)
		resp := env.do(t, http.MethodPost, "/v1/auth/refresh", nil,
			&http.Cookie{Name: httpx.RefreshTokenCookie, Value: access.Value})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPIKeyGate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	owner := env.seedUser(t, "alice", "alice@example.com", "pw")
	env.seedPermission(t, "user-read")
	env.seedPermission(t, "billing-read")
	record := env.seedAPIKey(t, owner, time.Now().Add(time.Hour), "user-read")

	gated := func(t *testing.T, key, secret string) *http.Response {
		t.Helper()

		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/v1/users", nil)
		require.NoError(t, err)
		if key != "" {
			req.Header.Set(HeaderAppKey, key)
		}
		if secret != "" {
			req.Header.Set(HeaderSecretKey, secret)
		}

		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("valid key with a matching permission lists users", func(t *testing.T) {
		resp := gated(t, record.Key, record.Secret)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var users []map[string]any
		msg := decodeEnvelope(t, resp, &users)
		require.Equal(t, "Retrieved all users", msg)
		require.Len(t, users, 1)
		require.Equal(t, "alice", users[0]["username"])
		require.NotContains(t, users[0], "passwordHash")
		require.NotContains(t, users[0], "password")
	})

	t.Run("missing headers are unauthorized", func(t *testing.T) {
		require.Equal(t, http.StatusUnauthorized, gated(t, "", "").StatusCode)
		require.Equal(t, http.StatusUnauthorized, gated(t, record.Key, "").StatusCode)
		require.Equal(t, http.StatusUnauthorized, gated(t, "", record.Secret).StatusCode)
	})

	t.Run("unknown key is not found", func(t *testing.T) {
		resp := gated(t, "FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", record.Secret)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("wrong secret is forbidden", func(t *testing.T) {
		resp := gated(t, record.Key, "0000000000000000000000000000000000000000000000000000000000000000")
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("key without a required permission is forbidden", func(t *testing.T) {
		other := env.seedAPIKey(t, owner, time.Now().Add(time.Hour), "billing-read")
		resp := gated(t, other.Key, other.Secret)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("expired key is forbidden", func(t *testing.T) {
		expired := env.seedAPIKey(t, owner, time.Now().Add(-time.Minute), "user-read")
		resp := gated(t, expired.Key, expired.Secret)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestAPIKeyManagement(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.seedUser(t, "alice", "alice@example.com", "pw")
	env.seedPermission(t, "user-read")

	login := env.do(t, http.MethodPost, "/v1/auth/local/login",
		map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	access, _ := tokenCookies(t, login)

	t.Run("create returns the pair once and listing includes it", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/api-keys",
			map[string]any{"name": "reporting", "permissions": []string{"user-read"}}, access)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			Key    string `json:"key"`
			Secret string `json:"secret"`
		}
		msg := decodeEnvelope(t, resp, &created)
		require.Equal(t, "Api key created", msg)
		require.Len(t, created.Key, 32)
		require.Len(t, created.Secret, 64)

		list := env.do(t, http.MethodGet, "/v1/api-keys", nil, access)
		require.Equal(t, http.StatusOK, list.StatusCode)

		var listings []domain.APIKeyListing
		msg = decodeEnvelope(t, list, &listings)
		require.Equal(t, "Retrieved all api keys", msg)
		require.Len(t, listings, 1)
		require.Equal(t, created.Key, listings[0].Key)
		require.Equal(t, created.Secret, listings[0].Secret)
		require.Equal(t, "Test alice", listings[0].User)
	})

	t.Run("unknown permission fails the create", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/api-keys",
			map[string]any{"name": "bad", "permissions": []string{"no-such"}}, access)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("requires a session", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/api-keys", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestPermissionEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.seedUser(t, "alice", "alice@example.com", "pw")

	login := env.do(t, http.MethodPost, "/v1/auth/local/login",
		map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	access, _ := tokenCookies(t, login)

	created := env.do(t, http.MethodPost, "/v1/permissions",
		map[string]string{"name": "user-read"}, access)
	require.Equal(t, http.StatusCreated, created.StatusCode)

	dup := env.do(t, http.MethodPost, "/v1/permissions",
		map[string]string{"name": "user-read"}, access)
	require.Equal(t, http.StatusConflict, dup.StatusCode)

	list := env.do(t, http.MethodGet, "/v1/permissions", nil, access)
	require.Equal(t, http.StatusOK, list.StatusCode)

	var perms []permissionResponse
	msg := decodeEnvelope(t, list, &perms)
	require.Equal(t, "Retrieved all permissions", msg)
	require.Len(t, perms, 1)
	require.Equal(t, "user-read", perms[0].Name)
}

func TestGoogleVerify(t *testing.T) {
	t.Parallel()

	t.Run("verified token for a registered email logs in", func(t *testing.T) {
		env := newTestEnv(t, &fakeGoogle{profile: google.Profile{Email: "bob@example.com", Name: "Bob"}})
		env.seedUser(t, "bob", "bob@example.com", "pw")

		resp := env.do(t, http.MethodGet, "/v1/auth/google/verify?token=raw-id-token", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		tokenCookies(t, resp)

		var session domain.Session
		msg := decodeEnvelope(t, resp, &session)
		require.Equal(t, "Google token verified", msg)
		require.Equal(t, "bob", session.Username)
	})

	t.Run("unregistered email is unauthorized", func(t *testing.T) {
		env := newTestEnv(t, &fakeGoogle{profile: google.Profile{Email: "stranger@example.com"}})

		resp := env.do(t, http.MethodGet, "/v1/auth/google/verify?token=raw-id-token", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rejected token is unauthorized", func(t *testing.T) {
		env := newTestEnv(t, &fakeGoogle{err: errors.New("bad token")})

		resp := env.do(t, http.MethodGet, "/v1/auth/google/verify?token=raw-id-token", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unconfigured provider is unavailable", func(t *testing.T) {
		env := newTestEnv(t, nil)

		resp := env.do(t, http.MethodGet, "/v1/auth/google/verify?token=raw-id-token", nil)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestUserEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.seedUser(t, "alice", "alice@example.com", "pw")

	login := env.do(t, http.MethodPost, "/v1/auth/local/login",
		map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, login.StatusCode)
	access, _ := tokenCookies(t, login)

	t.Run("create then fetch by username", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/users", map[string]string{
			"username": "bob",
			"email":    "bob@example.com",
			"name":     "Bob",
			"password": "bob-pw",
		}, access)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		got := env.do(t, http.MethodGet, "/v1/users/bob", nil, access)
		require.Equal(t, http.StatusOK, got.StatusCode)

		var u userResponse
		msg := decodeEnvelope(t, got, &u)
		require.Equal(t, "Retrieved user", msg)
		require.Equal(t, "bob", u.Username)
		require.Equal(t, "bob@example.com", u.Email)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/v1/users", map[string]string{
			"username": "alice",
			"password": "pw",
		}, access)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown username is not found", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/v1/users/nobody", nil, access)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	livez := env.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, livez.StatusCode)

	readyz := env.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, readyz.StatusCode)

	var health struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(readyz.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
}

func TestLoginRateLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.seedUser(t, "alice", "alice@example.com", "correct-pw")

	// The strict profile allows a burst of 5 per IP; the sixth attempt
	// inside the window must be throttled.
	var last *http.Response
	for range 6 {
		last = env.do(t, http.MethodPost, "/v1/auth/local/login",
			map[string]string{"username": "alice", "password": "wrong"})
	}
	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	require.NotEmpty(t, last.Header.Get("Retry-After"))
}
