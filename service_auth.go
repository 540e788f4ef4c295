package slimexpress

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// AuthResult is what register and login hand back
type AuthResult struct {
	Tokens *TokenPair
	User   *User
}

// AccessTokenResult is the outcome of a refresh
type AccessTokenResult struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// AuthService runs registration, login, refresh and logout flows
type AuthService struct {
	users       Users
	hasher      PasswordHasher
	tokens      *TokenService
	logger      Logger
	activity    ActivitySink
	now         func() time.Time
	adminEmails map[string]struct{}
	hashidIDs   bool
}

type AuthServiceOption func(*AuthService)

func WithAuthLogger(logger Logger) AuthServiceOption {
	return func(s *AuthService) {
		s.logger = resolveLogger(logger)
	}
}

func WithAuthActivitySink(sink ActivitySink) AuthServiceOption {
	return func(s *AuthService) {
		s.activity = normalizeActivitySink(sink)
	}
}

func WithAuthClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAdminEmails grants isAdmin to these addresses when they register
func WithAdminEmails(emails ...string) AuthServiceOption {
	return func(s *AuthService) {
		for _, e := range emails {
			if e = NormalizeEmail(e); e != "" {
				s.adminEmails[e] = struct{}{}
			}
		}
	}
}

// WithHashidUserIDs derives user ids from the email address
func WithHashidUserIDs(enabled bool) AuthServiceOption {
	return func(s *AuthService) {
		s.hashidIDs = enabled
	}
}

func NewAuthService(users Users, hasher PasswordHasher, tokens *TokenService, opts ...AuthServiceOption) *AuthService {
	s := &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		logger:      defLogger{},
		activity:    noopActivitySink{},
		now:         time.Now,
		adminEmails: map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Register creates a user, hashes the password once and signs the user in
func (s *AuthService) Register(ctx context.Context, email, password string) (*AuthResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	email = NormalizeEmail(email)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEntry
	} else if !HasTextCode(err, TextCodeUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("register hash password", "error", err)
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		LastLoginAt:  &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, ok := s.adminEmails[email]; ok {
		user.IsAdmin = true
	}
	if s.hashidIDs {
		user.ID = s.derivedUserID(ctx, email, user.ID)
	}

	pair, err := s.tokens.IssueTokenPair(user.ID.String())
	if err != nil {
		return nil, err
	}
	user.AddRefreshToken(pair.RefreshToken, now)

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventRegister,
		ActorID:    created.ID.String(),
		UserID:     created.ID.String(),
		OccurredAt: now,
		Metadata:   map[string]any{"is_admin": created.IsAdmin},
	})

	return &AuthResult{Tokens: pair, User: created}, nil
}

// Login answers ErrInvalidCredentials for both unknown email and bad password
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeUserNotFound) {
			s.burnHash(password)
			s.recordLoginFailure(ctx, "", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("login verify password", "user_id", user.ID.String(), "error", err)
		return nil, err
	}
	if !ok {
		s.recordLoginFailure(ctx, user.ID.String(), "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	pair, err := s.tokens.IssueTokenPair(user.ID.String())
	if err != nil {
		return nil, err
	}

	user.CleanExpiredTokens(now)
	user.AddRefreshToken(pair.RefreshToken, now)
	user.LastLoginAt = &now

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		ActorID:    saved.ID.String(),
		UserID:     saved.ID.String(),
		OccurredAt: now,
		Metadata:   map[string]any{"active_sessions": len(saved.RefreshTokens)},
	})

	return &AuthResult{Tokens: pair, User: saved}, nil
}

// RefreshAccessToken exchanges a stored refresh token for a new access token.
// The refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*AccessTokenResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if !s.tokens.IsWellFormed(refreshToken) {
		return nil, ErrInvalidToken
	}

	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !user.IsValidRefreshToken(refreshToken, s.now()) {
		return nil, ErrRefreshTokenRevoked
	}

	access, err := s.tokens.IssueAccessToken(user.ID.String())
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventTokenRefresh,
		ActorID:   user.ID.String(),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"jti": claims.TokenID()},
	})

	return &AccessTokenResult{
		AccessToken: access,
		ExpiresIn:   int64(s.tokens.AccessTTL() / time.Second),
	}, nil
}

// Logout revokes one refresh token. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.RevokeRefreshToken(refreshToken) {
		return nil
	}

	if _, err := s.users.Save(ctx, user); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		ActorID:   userID.String(),
		UserID:    userID.String(),
	})
	return nil
}

// LogoutAll revokes every refresh token of the user
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	revoked := user.RevokeAllRefreshTokens()
	if _, err := s.users.Save(ctx, user); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLogoutAll,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		Metadata:  map[string]any{"revoked": revoked},
	})
	return nil
}

// ChangePassword re-checks the current password, stores the new hash and
// signs the user out everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCurrentPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	revoked := user.RevokeAllRefreshTokens()

	if _, err := s.users.Save(ctx, user); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		Metadata:  map[string]any{"revoked_sessions": revoked},
	})
	return nil
}

// ChangeEmail moves the account to a new address. Onboarding is untouched.
func (s *AuthService) ChangeEmail(ctx context.Context, userID uuid.UUID, newEmail, password string) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCurrentPassword
	}

	newEmail = NormalizeEmail(newEmail)
	if newEmail == user.Email {
		return user, nil
	}

	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return nil, ErrDuplicateEntry
	} else if !HasTextCode(err, TextCodeUserNotFound) {
		return nil, err
	}

	previous := user.Email
	user.Email = newEmail
	user.IsEmailVerified = false

	saved, err := s.users.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventEmailChanged,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		Metadata:  map[string]any{"previous_email": previous},
	})
	return saved, nil
}

// Me loads the authenticated user
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) burnHash(password string) {
	if b, ok := s.hasher.(interface{ burn(string) }); ok {
		b.burn(password)
	}
}

func (s *AuthService) recordLoginFailure(ctx context.Context, userID, reason string) {
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		Metadata:  map[string]any{"reason": reason},
	})
}

// derivedUserID maps email to a stable id. The email may have belonged to an
// account that has since moved to another address, so an id already in use
// falls back to fallback.
func (s *AuthService) derivedUserID(ctx context.Context, email string, fallback uuid.UUID) uuid.UUID {
	id, err := hashid.NewUUID(email)
	if err != nil {
		s.logger.Warn("derive user id", "error", err)
		return fallback
	}

	_, err = s.users.GetByID(ctx, id)
	switch {
	case err == nil:
		s.logger.Info("derived user id already taken", "user_id", id.String())
		return fallback
	case HasTextCode(err, TextCodeUserNotFound):
		return id
	default:
		s.logger.Warn("derive user id lookup", "error", err)
		return fallback
	}
}
