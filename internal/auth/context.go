package auth

import "context"

type contextKey struct{}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
	// Source is "cognito", "authorizer" or "dev".
	Source string
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFromContext returns the caller stored by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// UserIDFromContext returns the caller's user id, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}
