package etwin

import "context"

type contextKey struct {
	name string
}

var acxCtxKey = &contextKey{"acx"}

// WithAuthContext stores the caller's authentication context for
// downstream consumers.
func WithAuthContext(ctx context.Context, acx AuthContext) context.Context {
	return context.WithValue(ctx, acxCtxKey, acx)
}

// AuthContextFrom extracts the authentication context. Callers that never
// went through an authenticated entry point are guests.
func AuthContextFrom(ctx context.Context) AuthContext {
	if acx, ok := ctx.Value(acxCtxKey).(AuthContext); ok {
		return acx
	}
	return GuestAuth()
}
