// Package identity verifies the base identity assertion that the token
// issuer accepts as proof of subject: an ID token from the external
// identity provider. Issuance trusts nothing else about the caller.
package identity

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
)

// ProviderConfig describes one upstream identity provider.
type ProviderConfig struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Assertion is a verified upstream identity.
type Assertion struct {
	Provider string
	Subject  string
	Email    string
}

// Verifier validates upstream ID tokens for one provider.
type Verifier struct {
	name         string
	oidcVerifier *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewVerifier discovers the provider's configuration and keys. The
// returned verifier caches the remote key set and refreshes it itself.
func NewVerifier(ctx context.Context, cfg ProviderConfig) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, internalerrors.Wrapf(err, "identity provider discovery for %s", cfg.Name)
	}

	scopes := append([]string{oidc.ScopeOpenID, "email"}, cfg.Scopes...)
	return &Verifier{
		name:         cfg.Name,
		oidcVerifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// NewVerifierWithKeySet builds a verifier over a fixed key set, bypassing
// discovery. Used in tests and air-gapped deployments.
func NewVerifierWithKeySet(name, issuerURL, clientID string, keySet oidc.KeySet) *Verifier {
	return &Verifier{
		name:         name,
		oidcVerifier: oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// VerifyAssertion validates a raw upstream ID token and extracts the
// subject. Every failure collapses to ErrInvalidAssertion.
func (v *Verifier) VerifyAssertion(ctx context.Context, rawIDToken string) (*Assertion, error) {
	idToken, err := v.oidcVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, internalerrors.ErrInvalidAssertion
	}

	var claims struct {
		Email string `json:"email"`
	}
	_ = idToken.Claims(&claims) // email is optional

	return &Assertion{
		Provider: v.name,
		Subject:  idToken.Subject,
		Email:    claims.Email,
	}, nil
}

// Exchange trades an authorization code at the upstream provider for its
// tokens and verifies the returned ID token.
func (v *Verifier) Exchange(ctx context.Context, code string) (*Assertion, error) {
	if v.oauth2Config == nil {
		return nil, internalerrors.ErrInvalidAssertion
	}
	oauth2Token, err := v.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, internalerrors.ErrInvalidAssertion
	}
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, internalerrors.ErrInvalidAssertion
	}
	return v.VerifyAssertion(ctx, rawIDToken)
}

// AuthCodeURL returns the upstream authorization URL for a state value.
func (v *Verifier) AuthCodeURL(state string) string {
	if v.oauth2Config == nil {
		return ""
	}
	return v.oauth2Config.AuthCodeURL(state)
}
