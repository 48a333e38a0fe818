// Package oidc resolves request actors from OIDC ID tokens.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/target/console-api/internal/domain/auth"
	apperrors "github.com/target/console-api/internal/errors"
)

// ResolverConfig holds configuration for the bearer token resolver.
type ResolverConfig struct {
	IssuerURL string
	ClientID  string
	// RoleClaim names the claim holding the role. It may be a string or a
	// list of strings such as a group membership claim.
	RoleClaim  string
	AdminRole  string
	HTTPClient *http.Client // Optional, defaults to a 30s client
}

// Resolver verifies bearer ID tokens and maps their claims to an Actor.
type Resolver struct {
	verifier  *gooidc.IDTokenVerifier
	roleClaim string
	adminRole string
}

// NewResolver discovers the issuer and builds a token verifier.
func NewResolver(ctx context.Context, cfg ResolverConfig) (*Resolver, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return NewResolverWithVerifier(op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}), cfg.RoleClaim, cfg.AdminRole), nil
}

// NewResolverWithVerifier builds a Resolver around an existing verifier.
func NewResolverWithVerifier(v *gooidc.IDTokenVerifier, roleClaim, adminRole string) *Resolver {
	if roleClaim == "" {
		roleClaim = "role"
	}
	if adminRole == "" {
		adminRole = string(domainauth.RoleAdmin)
	}
	return &Resolver{verifier: v, roleClaim: roleClaim, adminRole: adminRole}
}

// Resolve verifies the raw ID token and returns the actor it names.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (domainauth.Actor, error) {
	if bearer == "" {
		return domainauth.Actor{}, apperrors.Unauthorized("missing bearer token")
	}
	tok, err := r.verifier.Verify(ctx, bearer)
	if err != nil {
		return domainauth.Actor{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid bearer token")
	}

	var claims map[string]any
	if err := tok.Claims(&claims); err != nil {
		return domainauth.Actor{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "invalid token claims")
	}

	actor := domainauth.Actor{
		UserID: firstNonEmpty(stringClaim(claims, "samaccountname"), tok.Subject),
		Email:  firstNonEmpty(stringClaim(claims, "mail"), stringClaim(claims, "email")),
		Role:   domainauth.RoleUser,
	}
	if slices.Contains(listClaim(claims, r.roleClaim), r.adminRole) {
		actor.Role = domainauth.RoleAdmin
	}
	if actor.UserID == "" {
		return domainauth.Actor{}, apperrors.Unauthorized("token has no subject")
	}
	return actor, nil
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// listClaim reads a claim that may be a single string or a list of strings.
func listClaim(claims map[string]any, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
