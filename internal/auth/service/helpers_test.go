package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/store/drivers/sqlite"
	"github.com/warungtech/gatekit/pkg/cryptox"
	"github.com/warungtech/gatekit/pkg/idx"
	"github.com/warungtech/gatekit/pkg/jwtx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()

	access, err := jwtx.NewSigner("test-access-secret")
	require.NoError(t, err)
	refresh, err := jwtx.NewSigner("test-refresh-secret")
	require.NoError(t, err)

	return &TokenService{
		AccessSigner:  access,
		RefreshSigner: refresh,
		AccessTTL:     jwtx.DefaultAccessTokenTTL,
		RefreshTTL:    jwtx.DefaultRefreshTokenTTL,
	}
}

func seedUser(t *testing.T, st *sqlite.Store, username, email, password string) domain.User {
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
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func seedPermission(t *testing.T, st *sqlite.Store, name string) domain.Permission {
	t.Helper()

	p := domain.Permission{ID: idx.New().String(), Name: name}
	require.NoError(t, st.Permissions().CreatePermission(context.Background(), p))
	return p
}

func seedAPIKey(t *testing.T, st *sqlite.Store, owner domain.User, expiresAt time.Time, permissions ...string) domain.APIKey {
	t.Helper()
	ctx := context.Background()

	key, secret, err := cryptox.GenerateAPIKey()
	require.NoError(t, err)

	var permIDs []string
	for _, name := range permissions {
		p, err := st.Permissions().GetPermissionByName(ctx, name)
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
	require.NoError(t, st.APIKeys().CreateAPIKey(ctx, record, permIDs))
	return record
}
