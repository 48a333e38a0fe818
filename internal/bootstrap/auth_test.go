package bootstrap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/domain/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildActorResolverMockMode(t *testing.T) {
	resolver, err := BuildActorResolver(t.Context(), AuthConfig{
		Auth: config.AuthConfig{
			Mode:      config.AuthModeMock,
			AdminRole: "console-admin",
			DevAuth: config.DevAuthConfig{
				UserID: "dev",
				Email:  "dev@example.com",
				Role:   "console-admin",
			},
		},
		IsDev:  true,
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	actor, err := resolver.Resolve(t.Context(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "dev", actor.UserID)
	assert.Equal(t, auth.RoleAdmin, actor.Role)
}

func TestBuildActorResolverErrors(t *testing.T) {
	tests := []struct {
		name    string
		auth    config.AuthConfig
		wantErr string
	}{
		{
			name:    "oidc without issuer",
			auth:    config.AuthConfig{Mode: config.AuthModeOIDC, OIDC: config.OIDCConfig{ClientID: "console"}},
			wantErr: "AUTH_OIDC_ISSUER_URL",
		},
		{
			name:    "oidc without client id",
			auth:    config.AuthConfig{Mode: config.AuthModeOIDC, OIDC: config.OIDCConfig{IssuerURL: "https://issuer.example.com"}},
			wantErr: "AUTH_OIDC_CLIENT_ID",
		},
		{
			name:    "mock without user",
			auth:    config.AuthConfig{Mode: config.AuthModeMock},
			wantErr: "create dev auth resolver",
		},
		{
			name:    "unknown mode",
			auth:    config.AuthConfig{Mode: "saml"},
			wantErr: `unsupported auth mode "saml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver, err := BuildActorResolver(t.Context(), AuthConfig{Auth: tt.auth, Logger: discardLogger()})
			require.Error(t, err)
			assert.Nil(t, resolver)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
