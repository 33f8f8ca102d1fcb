package content

import "context"

// Principal identifies the signed-in editor.
type Principal struct {
	UID   string
	Email string
}

// SessionInspector reports whether the current call runs on behalf of an
// authenticated editor.
type SessionInspector interface {
	Principal(ctx context.Context) (Principal, bool)
}

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.UID == "" {
		return Principal{}, false
	}
	return p, true
}

// ContextSession reads the principal from the call context.
type ContextSession struct{}

func (ContextSession) Principal(ctx context.Context) (Principal, bool) {
	return PrincipalFromContext(ctx)
}

// NoSession never reports a principal. The public site runs with it.
type NoSession struct{}

func (NoSession) Principal(context.Context) (Principal, bool) { return Principal{}, false }
