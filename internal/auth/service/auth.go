package service

import (
	"context"
	"errors"
	"time"

	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/cryptox"
	"github.com/warungtech/gatekit/pkg/jwtx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

var (
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNotRegistered      = errors.New("not_registered")
)

// AuthService verifies credentials and orchestrates login and refresh.
type AuthService struct {
	Store  store.Store
	Tokens *TokenService
}

// ValidateUser checks a username/password pair against the user store.
// Unknown usernames and wrong passwords are distinct failures internally;
// the HTTP layer collapses them so login responses don't reveal which.
func (s *AuthService) ValidateUser(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	return u, nil
}

// ValidateFederated resolves a verified third-party email claim to a local
// account. Federated login never auto-provisions accounts; an unknown
// email fails with ErrNotRegistered.
func (s *AuthService) ValidateFederated(ctx context.Context, email string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrNotRegistered
		}
		return domain.User{}, err
	}
	return u, nil
}

// Revalidate confirms the identity named by a refresh token still exists
// and re-derives the trimmed claim set for the next pair. This lookup is
// what invalidates outstanding refresh tokens for deleted accounts.
func (s *AuthService) Revalidate(ctx context.Context, username string) (jwtx.Identity, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jwtx.Identity{}, ErrUserNotFound
		}
		return jwtx.Identity{}, err
	}
	return Identity(u).Trim(), nil
}

// Login issues a token pair for a verified identity and returns the
// session body for the response.
func (s *AuthService) Login(ctx context.Context, id jwtx.Identity) (domain.Session, domain.TokenPair, error) {
	now := time.Now()

	pair, err := s.Tokens.IssuePair(id, now)
	if err != nil {
		return domain.Session{}, domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("user logged in", "username", id.Username)

	return domain.Session{
		Sub:       id.Subject,
		Username:  id.Username,
		Email:     id.Email,
		Name:      id.Name,
		ExpiresIn: s.Tokens.ExpiresInHint(now),
	}, pair, nil
}

// Refresh rotates the token pair for a re-validated (trimmed) identity.
// The previous access token is unaffected; it simply runs out its TTL.
func (s *AuthService) Refresh(ctx context.Context, id jwtx.Identity) (domain.Session, domain.TokenPair, error) {
	now := time.Now()

	pair, err := s.Tokens.IssuePair(id, now)
	if err != nil {
		return domain.Session{}, domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("user token refreshed", "username", id.Username)

	return domain.Session{
		Sub:       id.Subject,
		Username:  id.Username,
		Name:      id.Name,
		ExpiresIn: s.Tokens.ExpiresInHint(now),
	}, pair, nil
}

// Identity maps a user record to the claim set minted into tokens.
// Explicit field mapping only; nothing else from the record may leak into
// a token.
func Identity(u domain.User) jwtx.Identity {
	return jwtx.Identity{
		Subject:  u.ID,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
	}
}
