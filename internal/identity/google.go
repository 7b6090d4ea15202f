package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/snapreel/backend/internal/config"
)

// GoogleProvider exchanges authorization codes with Google and verifies the
// returned ID token against the issuer's published keys.
type GoogleProvider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider discovers the issuer's endpoints. It returns nil, nil
// when no client id is configured.
func NewGoogleProvider(ctx context.Context, cfg config.GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	return &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// AuthCodeURL is the consent page a client opens to start sign-in.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems code and verifies the ID token. redirectURI overrides the
// configured redirect when the client used a different one.
func (p *GoogleProvider) Exchange(ctx context.Context, code, redirectURI string) (GoogleIdentity, error) {
	if p == nil {
		return GoogleIdentity{}, ErrGoogleUnavailable
	}
	cfg := p.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return GoogleIdentity{}, errors.New("token response carried no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("verify id token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return GoogleIdentity{}, fmt.Errorf("decode id token claims: %w", err)
	}

	return GoogleIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

var _ GoogleExchanger = (*GoogleProvider)(nil)
