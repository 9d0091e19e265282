package homepage

import (
	"context"
	"strings"
)

// Authorizer is the editor capability check. RequireEditor returns the
// actor id every write is attributed to, or a *CapabilityError.
type Authorizer interface {
	RequireEditor(ctx context.Context) (string, error)
}

type actorKey struct{}

// WithActor returns a context carrying an authenticated editor id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the editor id stored by WithActor.
func ActorFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && strings.TrimSpace(id) != ""
}

// ContextAuthorizer grants the capability when the request context carries
// an actor placed there by WithActor.
type ContextAuthorizer struct{}

func (ContextAuthorizer) RequireEditor(ctx context.Context) (string, error) {
	id, ok := ActorFromContext(ctx)
	if !ok {
		return "", &CapabilityError{Reason: "no authenticated editor"}
	}
	return id, nil
}
