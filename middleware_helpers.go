package slimexpress

import (
	"context"

	"github.com/goliatone/go-router"

	"github.com/MrGharbiii/slim-express/middleware/jwtware"
)

// AccessTokenValidator lets jwtware verify access tokens with a TokenService
type AccessTokenValidator struct {
	Tokens *TokenService
}

var (
	_ jwtware.TokenValidator   = AccessTokenValidator{}
	_ jwtware.StructureChecker = AccessTokenValidator{}
	_ jwtware.AuthClaims       = (*TokenClaims)(nil)
)

func (v AccessTokenValidator) Validate(token string) (jwtware.AuthClaims, error) {
	claims, err := v.Tokens.Verify(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (v AccessTokenValidator) IsWellFormed(token string) bool {
	return v.Tokens.IsWellFormed(token)
}

// ContextEnricherAdapter stores claims in the request's user context
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	tokenClaims, ok := claims.(*TokenClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, tokenClaims)
}

// NewAuthMiddleware guards routes with a bearer access token. Rejections
// are returned as errors so the app error handler renders them.
func NewAuthMiddleware(tokens *TokenService) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		TokenValidator:  AccessTokenValidator{Tokens: tokens},
		ContextKey:      ClaimsLocalsKey,
		AuthScheme:      "Bearer",
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler: func(_ router.Context, err error) error {
			if err == jwtware.ErrJWTMissingOrMalformed {
				return ErrTokenMissing
			}
			return err
		},
	})
}
