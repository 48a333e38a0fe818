package httpx

import (
	"context"

	domainauth "github.com/target/console-api/internal/domain/auth"
)

// actorKey is an unexported context key type to avoid collisions across packages.
type actorKey struct{}

// SetActorInContext returns a child context that carries the given actor.
func SetActorInContext(ctx context.Context, actor domainauth.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActorFromContext returns the request actor and a boolean indicating presence.
func GetActorFromContext(ctx context.Context) (domainauth.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domainauth.Actor)
	return actor, ok
}
