// Package devauth resolves every request to a fixed identity for local development.
package devauth

import (
	"context"
	"errors"

	domainauth "github.com/target/console-api/internal/domain/auth"
)

// Config controls the dev identity.
type Config struct {
	UserID string
	Email  string
	// Role is compared to AdminRole to decide whether the actor is an admin.
	Role      string
	AdminRole string
}

// Resolver ignores the bearer credential and returns the configured actor.
type Resolver struct {
	actor domainauth.Actor
}

// NewResolver constructs a dev resolver from Config.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = string(domainauth.RoleAdmin)
	}
	role := domainauth.RoleUser
	if cfg.Role == adminRole {
		role = domainauth.RoleAdmin
	}
	return &Resolver{actor: domainauth.Actor{UserID: cfg.UserID, Email: cfg.Email, Role: role}}, nil
}

// Resolve returns the dev actor.
func (r *Resolver) Resolve(_ context.Context, _ string) (domainauth.Actor, error) {
	return r.actor, nil
}
