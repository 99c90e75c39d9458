package service

import (
	"time"

	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/pkg/jwtx"
)

// TokenService mints token pairs. It holds one signer per scheme: two
// independent secrets so possession of the refresh secret cannot forge
// access tokens and vice versa. No state is persisted; tokens are
// self-verifying and die by expiry.
type TokenService struct {
	AccessSigner  *jwtx.Signer
	RefreshSigner *jwtx.Signer
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// IssuePair signs a fresh access/refresh pair for the identity at the
// given instant. The access token carries the identity as provided; the
// refresh token always carries the trimmed subset (no email).
func (s *TokenService) IssuePair(id jwtx.Identity, now time.Time) (domain.TokenPair, error) {
	access, err := s.AccessSigner.Sign(jwtx.NewClaims(id, s.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.RefreshSigner.Sign(jwtx.NewClaims(id.Trim(), s.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// ExpiresInHint returns the absolute expiry of an access token issued at
// now, in epoch milliseconds. Returned to clients so they can schedule
// renewal without decoding the JWT.
func (s *TokenService) ExpiresInHint(now time.Time) int64 {
	return now.Add(s.AccessTTL).UnixMilli()
}
