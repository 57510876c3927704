package auth

import (
	"context"

	"crewplan.org/internal/rbac"
)

type actorContextKey struct{}

// ContextWithActor attaches the authenticated actor to the context.
func ContextWithActor(ctx context.Context, actor rbac.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the authenticated actor from the context.
func ActorFromContext(ctx context.Context) (rbac.Actor, bool) {
	if ctx == nil {
		return rbac.Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*rbac.Actor)
	if !ok || v == nil {
		return rbac.Actor{}, false
	}
	return *v, true
}
