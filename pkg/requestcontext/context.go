// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Values are set by whatever hosts the core (middleware, a worker, a test) and
// consumed by services. Keeping this package free of net/http lets services
// import only what they need.
//
// Usage in services (read values):
//
//	actor := requestcontext.ActorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, "a1", domain.RoleAdmin)
package requestcontext

import (
	"context"
	"time"

	id "runadata/pkg/domain"
)

type (
	actorIDKey     struct{}
	actorRoleKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// ActorID retrieves the acting user's ID from the context.
// Returns the zero value if not set.
func ActorID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(actorIDKey{}).(id.UserID); ok {
		return v
	}
	return ""
}

// ActorRole retrieves the acting user's role from the context.
func ActorRole(ctx context.Context) id.Role {
	if v, ok := ctx.Value(actorRoleKey{}).(id.Role); ok {
		return v
	}
	return ""
}

// WithActor injects the acting user's identity and role into the context.
func WithActor(ctx context.Context, actor id.UserID, role id.Role) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, actor)
	return context.WithValue(ctx, actorRoleKey{}, role)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-request contexts (workers, tests that
// don't pin time).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins a specific time in a context. Used by tests and batch jobs
// that need a consistent clock across an operation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
