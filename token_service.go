package slimexpress

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// signingMethod is the only algorithm issued and accepted
var signingMethod = jwt.SigningMethodHS256

// TokenConfig is the immutable configuration of a TokenService
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTokenTTL
	}
	return c
}

// TokenPair is returned on login and registration. Durations are in seconds.
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
}

// TokenService issues, verifies and inspects signed tokens
type TokenService struct {
	cfg    TokenConfig
	now    func() time.Time
	logger Logger
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenClock overrides the clock used for issuing and verifying
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = resolveLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenConfig, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

// AccessTTL returns the configured access token lifetime
func (ts *TokenService) AccessTTL() time.Duration {
	return ts.cfg.AccessTTL
}

// RefreshTTL returns the configured refresh token lifetime
func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.cfg.RefreshTTL
}

func (ts *TokenService) IssueAccessToken(userID string) (string, error) {
	return ts.issue(userID, TokenTypeAccess, ts.cfg.AccessTTL)
}

func (ts *TokenService) IssueRefreshToken(userID string) (string, error) {
	return ts.issue(userID, TokenTypeRefresh, ts.cfg.RefreshTTL)
}

func (ts *TokenService) IssueTokenPair(userID string) (*TokenPair, error) {
	access, err := ts.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(ts.cfg.AccessTTL / time.Second),
		RefreshExpiresIn: int64(ts.cfg.RefreshTTL / time.Second),
	}, nil
}

func (ts *TokenService) issue(userID string, typ TokenType, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", internalError(goerrors.New("missing subject", goerrors.CategoryInternal), "failed to issue token")
	}

	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
	if ts.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{ts.cfg.Audience}
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(ts.cfg.Secret)
	if err != nil {
		return "", internalError(err, "failed to sign token")
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer, audience, expiry and type.
// Failures are ErrInvalidToken, ErrTokenExpired or ErrWrongTokenType.
func (ts *TokenService) Verify(tokenString string, expected TokenType) (*TokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.cfg.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.cfg.Issuer))
	}
	if ts.cfg.Audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.cfg.Audience))
	}

	claims := &TokenClaims{}
	token, err := jwt.NewParser(parserOptions...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return ts.cfg.Secret, nil
	})

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid),
			goerrors.Is(err, jwt.ErrTokenUnverifiable),
			goerrors.Is(err, jwt.ErrTokenMalformed):
			ts.logger.Debug("token rejected", "reason", "signature", "error", err)
			return nil, ErrInvalidToken
		case goerrors.Is(err, jwt.ErrTokenInvalidIssuer),
			goerrors.Is(err, jwt.ErrTokenInvalidAudience):
			ts.logger.Debug("token rejected", "reason", "foreign", "error", err)
			return nil, ErrInvalidToken
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			ts.logger.Debug("token rejected", "reason", "claims", "error", err)
			return nil, ErrInvalidToken
		}
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Type != expected {
		return nil, ErrWrongTokenType.Clone().WithMetadata(map[string]any{
			"expected": string(expected),
			"actual":   string(claims.Type),
		})
	}

	return claims, nil
}

// Decode reads claims without checking the signature. Diagnostics only.
func (ts *TokenService) Decode(tokenString string) *TokenClaims {
	if !ts.IsWellFormed(tokenString) {
		return nil
	}
	claims := &TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}

// IsExpired reports true for malformed tokens and tokens without expiry
func (ts *TokenService) IsExpired(tokenString string) bool {
	exp := ts.ExpiryOf(tokenString)
	if exp == nil {
		return true
	}
	return !ts.now().Before(*exp)
}

// ExpiryOf returns the exp claim or nil
func (ts *TokenService) ExpiryOf(tokenString string) *time.Time {
	claims := ts.Decode(tokenString)
	if claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	exp := claims.ExpiresAt.Time
	return &exp
}

// ExtractFromHeader strips a Bearer scheme. Headers without a scheme are
// returned as is and an empty header yields "".
func (ts *TokenService) ExtractFromHeader(header string) string {
	return ExtractBearerToken(header)
}

// IsWellFormed only checks for three non empty dot separated segments
func (ts *TokenService) IsWellFormed(tokenString string) bool {
	return IsWellFormedToken(tokenString)
}

func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	const scheme = "bearer "
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return header
}

func IsWellFormedToken(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
