package access

import "context"

type ctxKey struct{}

type scoped struct {
	principal Principal
	accessID  string
}

// WithPrincipal stores the caller and its session id (jti) on ctx.
func WithPrincipal(ctx context.Context, p Principal, accessID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, scoped{principal: p, accessID: accessID})
}

// FromContext returns the caller, or the anonymous principal.
func FromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	if v, ok := ctx.Value(ctxKey{}).(scoped); ok {
		return v.principal
	}
	return Principal{}
}

// AccessIDFromContext returns the jti of the token that authenticated the request.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(scoped); ok {
		return v.accessID
	}
	return ""
}
