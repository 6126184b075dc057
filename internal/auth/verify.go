package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is the OpenID Connect issuer for Google accounts.
const GoogleIssuer = "https://accounts.google.com"

// Identity is the verified subject of an ID token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Verifier checks a raw ID token and extracts the identity.
type Verifier interface {
	Verify(ctx context.Context, rawIDToken string) (Identity, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's keys and returns a Verifier that
// checks signature, issuer, audience and expiry.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", issuer, err)
	}
	return &oidcVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, raw string) (Identity, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := tok.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("parse id token claims: %w", err)
	}
	return Identity{
		Subject:       tok.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}
