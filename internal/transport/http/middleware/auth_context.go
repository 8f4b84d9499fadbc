package middleware

import "context"

type ctxKey string

const ctxPrincipal ctxKey = "principal"

// Principal is the authenticated caller as seen by handlers, whether it
// arrived via a bearer token or a server session.
type Principal struct {
	UserID    string
	Email     string
	Role      string
	FirstName string
	LastName  string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok && p.UserID != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.UserID, ok
}

func RoleFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.Role, ok && p.Role != ""
}
