package config

import (
	"fmt"
	"strings"
)

// AuthMode selects how request actors are resolved.
type AuthMode string

const (
	// AuthModeOIDC verifies bearer ID tokens against an OIDC issuer.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock resolves every request to the configured dev identity.
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, mock)", v)
	}
}

// OIDCConfig configures bearer token verification.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	ClientID  string `env:"CLIENT_ID"`
	// RoleClaim names the ID token claim carrying the actor's role.
	RoleClaim string `env:"ROLE_CLAIM" envDefault:"role"`
}

// DevAuthConfig is the identity used when AUTH_MODE=mock.
type DevAuthConfig struct {
	UserID string `env:"USER_ID" envDefault:"dev-user"`
	Email  string `env:"EMAIL"   envDefault:"dev@example.com"`
	Role   string `env:"ROLE"    envDefault:"admin"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	OIDC OIDCConfig `envPrefix:"AUTH_OIDC_"`

	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminRole is the role claim value that grants administrative access.
	AdminRole string `env:"AUTH_ADMIN_ROLE" envDefault:"admin"`
}
