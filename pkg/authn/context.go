package authn

import "context"

type contextKey struct{}

// WithIdentity returns a context carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext extracts the authenticated identity set by the
// middleware. Returns ErrNoIdentity when the request was not authenticated.
func IdentityFromContext(ctx context.Context) (*Identity, error) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, ErrNoIdentity
	}
	return identity, nil
}
