package shared

import "context"

// Principal describes the authenticated actor attached to a request.
// It is produced by the identity middleware and consumed by every
// authorization check downstream.
type Principal struct {
	UserID    string
	Role      string
	RoleLevel int
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
