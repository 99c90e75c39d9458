package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. Access tokens are short-lived on purpose;
// refresh tokens keep the three-day window the platform has always used.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 72 * time.Hour
)

// Identity is the verified identity an authentication step produced. It is
// the only input the token issuer accepts, so a token can never carry
// anything that wasn't explicitly mapped here.
type Identity struct {
	Subject  string // user id
	Username string
	Email    string // empty for refresh-derived identities
	Name     string // display name
}

// Trim drops the fields a refresh-derived identity must not carry.
// Refresh tokens only ever embed subject, username and display name.
func (i Identity) Trim() Identity {
	return Identity{
		Subject:  i.Subject,
		Username: i.Username,
		Name:     i.Name,
	}
}

// Claims is the payload embedded in both access and refresh tokens.
// Access tokens carry the full identity; refresh tokens carry the trimmed
// subset (no email). Keep changes additive.
type Claims struct {
	jwt.RegisteredClaims

	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// NewClaims builds token claims for an identity with the given lifetime.
// now is passed explicitly so issuance is testable at fixed instants.
func NewClaims(id Identity, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Username: id.Username,
		Email:    id.Email,
		Name:     id.Name,
	}
}

// Identity reverses NewClaims, recovering the identity a token was minted for.
func (c Claims) Identity() Identity {
	return Identity{
		Subject:  c.Subject,
		Username: c.Username,
		Email:    c.Email,
		Name:     c.Name,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim, so two
// tokens minted at the same instant are still distinguishable.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
