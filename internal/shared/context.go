package shared

import "context"

// Role names the two access levels of the system.
type Role string

const (
	// RoleAdmin has full access.
	RoleAdmin Role = "admin"
	// RoleAgent is restricted to entities it created for customers and sales.
	RoleAgent Role = "agent"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID    int64
	Email string
	Role  Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type actorContextKey struct{}

// ContextWithActor stores the acting user in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting user from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
