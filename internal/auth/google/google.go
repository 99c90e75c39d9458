// Package google integrates the external Google identity provider. Only
// the resulting verified email/name assertion crosses into the auth core;
// account lookup and token issuance stay with the caller.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const issuerURL = "https://accounts.google.com"

var ErrNoIDToken = errors.New("google: token response carried no id_token")

type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Profile is the verified identity assertion extracted from a Google ID
// token. Email is always verified by the provider before we accept it.
type Profile struct {
	Email string
	Name  string
}

// Provider wraps the OAuth2 authorization-code flow and ID-token
// verification against Google's published keys.
type Provider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("google: discover provider: %w", err)
	}

	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthCodeURL returns the consent-page URL for the given CSRF state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange redeems an authorization code and verifies the ID token that
// comes back with it.
func (p *Provider) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("google: code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return Profile{}, ErrNoIDToken
	}
	return p.VerifyIDToken(ctx, rawIDToken)
}

// VerifyIDToken validates a raw ID token (signature, issuer, audience,
// expiry) and extracts the profile claims.
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string) (Profile, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Profile{}, fmt.Errorf("google: verify id token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Profile{}, fmt.Errorf("google: decode claims: %w", err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return Profile{}, errors.New("google: id token carries no verified email")
	}

	return Profile{Email: claims.Email, Name: claims.Name}, nil
}
