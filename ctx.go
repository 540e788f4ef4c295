package slimexpress

import (
	"context"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// ClaimsLocalsKey is where the auth middleware stores verified claims
const ClaimsLocalsKey = "user"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the TokenClaims in the given context
func WithClaimsContext(r context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the TokenClaims from the standard context
func GetClaims(ctx context.Context) (*TokenClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*TokenClaims)
	return raw, ok && raw != nil
}

// GetRouterClaims extracts the TokenClaims stored by the auth middleware,
// falling back to the request context
func GetRouterClaims(ctx router.Context) (*TokenClaims, bool) {
	if raw, ok := ctx.Locals(ClaimsLocalsKey).(*TokenClaims); ok && raw != nil {
		return raw, true
	}
	return GetClaims(ctx.Context())
}

// CurrentUserID resolves the authenticated user id or ErrTokenMissing
func CurrentUserID(ctx router.Context) (uuid.UUID, error) {
	claims, ok := GetRouterClaims(ctx)
	if !ok {
		return uuid.Nil, ErrTokenMissing
	}
	return claims.UserUUID()
}
