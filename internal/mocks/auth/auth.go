// Package auth contains hand-written test doubles for actor resolution.
package auth

import (
	"context"
	"sync"

	"github.com/target/console-api/internal/core"
	domainauth "github.com/target/console-api/internal/domain/auth"
	apperrors "github.com/target/console-api/internal/errors"
)

var _ core.ActorResolver = (*TokenResolver)(nil)

// TokenResolver maps fixed bearer tokens to actors. Unknown tokens are
// rejected as unauthorized.
type TokenResolver struct {
	mu     sync.Mutex
	actors map[string]domainauth.Actor
	calls  int
}

// NewTokenResolver returns a resolver with no known tokens.
func NewTokenResolver() *TokenResolver {
	return &TokenResolver{actors: make(map[string]domainauth.Actor)}
}

// With registers token for actor and returns the resolver for chaining.
func (r *TokenResolver) With(token string, actor domainauth.Actor) *TokenResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[token] = actor
	return r
}

// Resolve implements core.ActorResolver.
func (r *TokenResolver) Resolve(_ context.Context, bearer string) (domainauth.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	actor, ok := r.actors[bearer]
	if !ok {
		return domainauth.Actor{}, apperrors.Unauthorized("invalid bearer token")
	}
	return actor, nil
}

// Calls returns how many times Resolve ran.
func (r *TokenResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
