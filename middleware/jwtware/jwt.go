package jwtware

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenHeader       = "Authorization"
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator interface for validating tokens without import cycles
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// StructureChecker is implemented by validators that can reject garbage
// before any signature work happens
type StructureChecker interface {
	IsWellFormed(tokenString string) bool
}

// AuthClaims interface for structured claims without import cycles
type AuthClaims interface {
	UserID() string
	TokenType() string
}

type Config struct {
	ErrorHandler router.ErrorHandler
	ContextKey   string
	TokenHeader  string
	AuthScheme   string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// ContextEnricher is an optional function to propagate claims to the
	// request's standard context.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context
}

func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extract := jwtFromHeader(cfg.TokenHeader, cfg.AuthScheme)
	checker, _ := cfg.TokenValidator.(StructureChecker)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw, err := extract(ctx)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if checker != nil && !checker.IsWellFormed(raw) {
				return cfg.ErrorHandler(ctx, ErrJWTMissingOrMalformed)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			}

			return next(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(router.StatusUnauthorized).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("SLIM: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenHeader == "" {
		cfg.TokenHeader = defaultTokenHeader
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// JWTExtractor pulls the raw token out of a request
type JWTExtractor func(c router.Context) (string, error)

// jwtFromHeader strips the auth scheme. A bare single token value is
// accepted as is, any other shape is malformed.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c router.Context) (string, error) {
		return parseAuthHeader(c.GetString(header, ""), authScheme)
	}
}

func parseAuthHeader(value, authScheme string) (string, error) {
	a := strings.TrimSpace(value)
	if a == "" {
		return "", ErrJWTMissingOrMalformed
	}

	l := len(authScheme)
	if l > 0 && len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
		return strings.TrimSpace(a[l:]), nil
	}

	if !strings.ContainsAny(a, " \t") && !strings.EqualFold(a, authScheme) {
		return a, nil
	}
	return "", ErrJWTMissingOrMalformed
}
