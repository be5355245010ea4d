package tools

import "context"

type contextKey string

const userKey contextKey = "user"

// User identifies the requesting user to tool handlers, along with any
// per-user addressing the integrations need.
type User struct {
	ID    string
	Email string
}

// WithUser attaches the requesting user to the context.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext extracts the requesting user from the context.
// Returns a zero User if not set.
func UserFromContext(ctx context.Context) User {
	if u, ok := ctx.Value(userKey).(User); ok {
		return u
	}
	return User{}
}
