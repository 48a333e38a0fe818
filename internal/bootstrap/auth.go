package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/console-api/config"
	"github.com/target/console-api/internal/adapters/devauth"
	"github.com/target/console-api/internal/adapters/oidc"
	"github.com/target/console-api/internal/core"
)

// AuthConfig contains configuration for actor resolution.
type AuthConfig struct {
	Auth   config.AuthConfig
	IsDev  bool
	Logger *slog.Logger
}

// BuildActorResolver creates the bearer credential resolver for the
// configured auth mode. OIDC discovery happens here, so ctx bounds it.
//
//nolint:ireturn // the mode picks the concrete resolver at runtime.
func BuildActorResolver(ctx context.Context, cfg AuthConfig) (core.ActorResolver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if !cfg.IsDev {
			logger.WarnContext(ctx, "mock auth enabled outside development", "user_id", cfg.Auth.DevAuth.UserID)
		}
		resolver, err := devauth.NewResolver(devauth.Config{
			UserID:    cfg.Auth.DevAuth.UserID,
			Email:     cfg.Auth.DevAuth.Email,
			Role:      cfg.Auth.DevAuth.Role,
			AdminRole: cfg.Auth.AdminRole,
		})
		if err != nil {
			return nil, fmt.Errorf("create dev auth resolver: %w", err)
		}
		logger.InfoContext(ctx, "actor resolver ready", "mode", cfg.Auth.Mode)
		return resolver, nil

	case config.AuthModeOIDC, "":
		if cfg.Auth.OIDC.IssuerURL == "" || cfg.Auth.OIDC.ClientID == "" {
			return nil, errors.New("oidc auth requires AUTH_OIDC_ISSUER_URL and AUTH_OIDC_CLIENT_ID")
		}
		resolver, err := oidc.NewResolver(ctx, oidc.ResolverConfig{
			IssuerURL: cfg.Auth.OIDC.IssuerURL,
			ClientID:  cfg.Auth.OIDC.ClientID,
			RoleClaim: cfg.Auth.OIDC.RoleClaim,
			AdminRole: cfg.Auth.AdminRole,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc resolver: %w", err)
		}
		logger.InfoContext(ctx, "actor resolver ready", "mode", config.AuthModeOIDC, "issuer", cfg.Auth.OIDC.IssuerURL)
		return resolver, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}
