package slimexpress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	slimexpress "github.com/MrGharbiii/slim-express"
)

type authFixture struct {
	users    *MockUsers
	clock    *fixedClock
	tokens   *slimexpress.TokenService
	activity *recordingSink
	service  *slimexpress.AuthService
}

func newAuthFixture(hasher slimexpress.PasswordHasher, opts ...slimexpress.AuthServiceOption) *authFixture {
	f := &authFixture{
		users:    &MockUsers{},
		clock:    newFixedClock(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)),
		activity: &recordingSink{},
	}
	f.tokens = newTestTokenService(f.clock)

	base := []slimexpress.AuthServiceOption{
		slimexpress.WithAuthClock(f.clock.Now),
		slimexpress.WithAuthLogger(slimexpress.NopLogger()),
		slimexpress.WithAuthActivitySink(f.activity),
	}
	f.service = slimexpress.NewAuthService(f.users, hasher, f.tokens, append(base, opts...)...)
	return f
}

func storedUser(email, password string) *slimexpress.User {
	return &slimexpress.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hashed:" + password,
	}
}

func TestAuthService_Register(t *testing.T) {
	hasher := &MockHasher{}
	hasher.On("Hash", "s3cret-pass").Return("bcrypt-hash", nil).Once()

	f := newAuthFixture(hasher)
	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, slimexpress.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*slimexpress.User")).Return(echoUser, nil)

	result, err := f.service.Register(context.Background(), "  Ada@Example.com ", "s3cret-pass")
	require.NoError(t, err)

	user := result.User
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "bcrypt-hash", user.PasswordHash)
	assert.False(t, user.IsEmailVerified)
	assert.False(t, user.IsAdmin)
	assert.False(t, user.OnboardingCompleted)
	assert.Equal(t, slimexpress.StepNotStarted, user.OnboardingStep)
	require.Len(t, user.RefreshTokens, 1)
	assert.Equal(t, result.Tokens.RefreshToken, user.RefreshTokens[0].Token)

	claims, err := f.tokens.Verify(result.Tokens.AccessToken, slimexpress.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, int64(900), result.Tokens.ExpiresIn)

	assert.Equal(t, []slimexpress.ActivityEventType{slimexpress.ActivityEventRegister}, f.activity.Types())
	hasher.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	hasher := &MockHasher{}
	f := newAuthFixture(hasher)
	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(storedUser("ada@example.com", "x"), nil)

	_, err := f.service.Register(context.Background(), "ADA@example.com", "s3cret-pass")

	require.Error(t, err)
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeDuplicateEntry))
	hasher.AssertNotCalled(t, "Hash", mock.Anything)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_RegisterRaceOnInsert(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, slimexpress.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil, slimexpress.ErrDuplicateEntry)

	_, err := f.service.Register(context.Background(), "ada@example.com", "s3cret-pass")

	require.Error(t, err)
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeDuplicateEntry))
	assert.Empty(t, f.activity.Types())
}

func TestAuthService_RegisterAdminAndHashid(t *testing.T) {
	f := newAuthFixture(plainHasher{},
		slimexpress.WithAdminEmails("Boss@Example.com"),
		slimexpress.WithHashidUserIDs(true),
	)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, slimexpress.ErrUserNotFound)
	f.users.On("GetByID", mock.Anything, mock.Anything).Return(nil, slimexpress.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(echoUser, nil)

	boss, err := f.service.Register(context.Background(), "boss@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, boss.User.IsAdmin)

	expected, err := hashid.NewUUID("boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, boss.User.ID)

	worker, err := f.service.Register(context.Background(), "worker@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.False(t, worker.User.IsAdmin)
	assert.NotEqual(t, boss.User.ID, worker.User.ID)
}

func TestAuthService_RegisterHashidAfterEmailChange(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	service := slimexpress.NewAuthService(repo, plainHasher{}, newTestTokenService(nil),
		slimexpress.WithAuthLogger(slimexpress.NopLogger()),
		slimexpress.WithHashidUserIDs(true),
	)

	first, err := service.Register(ctx, "old@example.com", "s3cret-pass")
	require.NoError(t, err)
	derived, err := hashid.NewUUID("old@example.com")
	require.NoError(t, err)
	assert.Equal(t, derived, first.User.ID)

	_, err = service.ChangeEmail(ctx, first.User.ID, "new@example.com", "s3cret-pass")
	require.NoError(t, err)

	second, err := service.Register(ctx, "old@example.com", "an0ther-pass")
	require.NoError(t, err)
	assert.NotEqual(t, first.User.ID, second.User.ID)
	assert.Equal(t, "old@example.com", second.User.Email)

	moved, err := repo.GetByID(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", moved.Email)
}

func TestAuthService_RegisterHashidLookupFailure(t *testing.T) {
	f := newAuthFixture(plainHasher{}, slimexpress.WithHashidUserIDs(true))
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, slimexpress.ErrUserNotFound)
	f.users.On("GetByID", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	f.users.On("Create", mock.Anything, mock.Anything).Return(echoUser, nil)

	result, err := f.service.Register(context.Background(), "ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	derived, err := hashid.NewUUID("ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, derived, result.User.ID)
	assert.NotEqual(t, uuid.Nil, result.User.ID)
}

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	user := storedUser("ada@example.com", "s3cret-pass")
	user.AddRefreshToken("stale", f.clock.Now().Add(-8*24*time.Hour))
	user.AddRefreshToken("live", f.clock.Now().Add(-time.Hour))

	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
	f.users.On("Save", mock.Anything, mock.Anything).Return(echoUser, nil)

	result, err := f.service.Login(context.Background(), "Ada@example.com", "s3cret-pass")
	require.NoError(t, err)

	saved := result.User
	require.NotNil(t, saved.LastLoginAt)
	assert.Equal(t, f.clock.Now(), *saved.LastLoginAt)
	require.Len(t, saved.RefreshTokens, 2)
	assert.Equal(t, "live", saved.RefreshTokens[0].Token)
	assert.Equal(t, result.Tokens.RefreshToken, saved.RefreshTokens[1].Token)
	assert.Equal(t, []slimexpress.ActivityEventType{slimexpress.ActivityEventLoginSuccess}, f.activity.Types())
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(storedUser("ada@example.com", "s3cret-pass"), nil)
	f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, slimexpress.ErrUserNotFound)

	_, wrongPassword := f.service.Login(context.Background(), "ada@example.com", "nope-nope")
	_, unknownEmail := f.service.Login(context.Background(), "ghost@example.com", "nope-nope")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.True(t, slimexpress.HasTextCode(wrongPassword, slimexpress.TextCodeInvalidCredentials))
	assert.True(t, slimexpress.HasTextCode(unknownEmail, slimexpress.TextCodeInvalidCredentials))

	f.users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, []slimexpress.ActivityEventType{
		slimexpress.ActivityEventLoginFailure,
		slimexpress.ActivityEventLoginFailure,
	}, f.activity.Types())
}

func TestAuthService_LoginUnknownEmailBurnsHash(t *testing.T) {
	hasher := slimexpress.NewBcryptHasher(0)
	f := newAuthFixture(hasher)
	f.users.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, slimexpress.ErrUserNotFound)

	_, err := f.service.Login(context.Background(), "ghost@example.com", "whatever-pass")
	assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeInvalidCredentials))
}

func TestAuthService_RefreshAccessToken(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	user := storedUser("ada@example.com", "s3cret-pass")

	pair, err := f.tokens.IssueTokenPair(user.ID.String())
	require.NoError(t, err)
	user.AddRefreshToken(pair.RefreshToken, f.clock.Now())

	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

	f.clock.Advance(20 * time.Minute)
	result, err := f.service.RefreshAccessToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	assert.Equal(t, int64(900), result.ExpiresIn)
	claims, err := f.tokens.Verify(result.AccessToken, slimexpress.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())

	assert.Len(t, user.RefreshTokens, 1, "refresh tokens are not rotated")
	f.users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_RefreshAccessTokenFailures(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	user := storedUser("ada@example.com", "s3cret-pass")
	gone := storedUser("gone@example.com", "s3cret-pass")

	pair, err := f.tokens.IssueTokenPair(user.ID.String())
	require.NoError(t, err)
	unstored, err := f.tokens.IssueRefreshToken(user.ID.String())
	require.NoError(t, err)
	orphan, err := f.tokens.IssueRefreshToken(gone.ID.String())
	require.NoError(t, err)
	notUUID, err := f.tokens.IssueRefreshToken("not-a-uuid")
	require.NoError(t, err)

	user.AddRefreshToken(pair.RefreshToken, f.clock.Now())
	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.users.On("GetByID", mock.Anything, gone.ID).Return(nil, slimexpress.ErrUserNotFound)

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{"access token", pair.AccessToken, slimexpress.TextCodeWrongTokenType},
		{"garbage", "garbage", slimexpress.TextCodeInvalidToken},
		{"empty", "", slimexpress.TextCodeInvalidToken},
		{"not stored", unstored, slimexpress.TextCodeRefreshTokenRevoked},
		{"deleted user", orphan, slimexpress.TextCodeUserNotFound},
		{"bad subject", notUUID, slimexpress.TextCodeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RefreshAccessToken(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, slimexpress.HasTextCode(err, tt.code), "got %v", err)
		})
	}

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(7*24*time.Hour + time.Second)
		_, err := f.service.RefreshAccessToken(context.Background(), pair.RefreshToken)
		require.Error(t, err)
		assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeTokenExpired))
	})
}

func TestAuthService_Logout(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	user := storedUser("ada@example.com", "s3cret-pass")
	user.AddRefreshToken("device-a", f.clock.Now())
	user.AddRefreshToken("device-b", f.clock.Now())

	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.users.On("Save", mock.Anything, mock.Anything).Return(echoUser, nil).Once()

	require.NoError(t, f.service.Logout(context.Background(), user.ID, "device-a"))
	assert.False(t, user.IsValidRefreshToken("device-a", f.clock.Now()))
	assert.True(t, user.IsValidRefreshToken("device-b", f.clock.Now()))

	require.NoError(t, f.service.Logout(context.Background(), user.ID, "device-a"), "unknown tokens are ignored")
	f.users.AssertNumberOfCalls(t, "Save", 1)
}

func TestAuthService_LogoutAll(t *testing.T) {
	f := newAuthFixture(plainHasher{})
	user := storedUser("ada@example.com", "s3cret-pass")
	user.AddRefreshToken("device-a", f.clock.Now())
	user.AddRefreshToken("device-b", f.clock.Now())

	f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	f.users.On("Save", mock.Anything, mock.MatchedBy(func(u *slimexpress.User) bool {
		return len(u.RefreshTokens) == 0
	})).Return(echoUser, nil)

	require.NoError(t, f.service.LogoutAll(context.Background(), user.ID))
	f.users.AssertExpectations(t)
	assert.Equal(t, []slimexpress.ActivityEventType{slimexpress.ActivityEventLogoutAll}, f.activity.Types())
}

func TestAuthService_ChangePassword(t *testing.T) {
	t.Run("wrong current password", func(t *testing.T) {
		f := newAuthFixture(plainHasher{})
		user := storedUser("ada@example.com", "s3cret-pass")
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		err := f.service.ChangePassword(context.Background(), user.ID, "wrong-pass", "n3w-s3cret")

		require.Error(t, err)
		assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeInvalidCurrentPasswd))
		f.users.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("success revokes sessions", func(t *testing.T) {
		f := newAuthFixture(plainHasher{})
		user := storedUser("ada@example.com", "s3cret-pass")
		user.AddRefreshToken("device-a", f.clock.Now())
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("Save", mock.Anything, mock.Anything).Return(echoUser, nil)

		require.NoError(t, f.service.ChangePassword(context.Background(), user.ID, "s3cret-pass", "n3w-s3cret"))

		assert.Equal(t, "hashed:n3w-s3cret", user.PasswordHash)
		assert.Empty(t, user.RefreshTokens)
	})
}

func TestAuthService_ChangeEmail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newAuthFixture(plainHasher{})
		user := storedUser("ada@example.com", "s3cret-pass")
		user.IsEmailVerified = true
		user.OnboardingStep = 3

		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "lovelace@example.com").Return(nil, slimexpress.ErrUserNotFound)
		f.users.On("Save", mock.Anything, mock.Anything).Return(echoUser, nil)

		updated, err := f.service.ChangeEmail(context.Background(), user.ID, "Lovelace@Example.com", "s3cret-pass")
		require.NoError(t, err)

		assert.Equal(t, "lovelace@example.com", updated.Email)
		assert.False(t, updated.IsEmailVerified)
		assert.Equal(t, 3, updated.OnboardingStep)
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newAuthFixture(plainHasher{})
		user := storedUser("ada@example.com", "s3cret-pass")
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("GetByEmail", mock.Anything, "taken@example.com").Return(storedUser("taken@example.com", "x"), nil)

		_, err := f.service.ChangeEmail(context.Background(), user.ID, "taken@example.com", "s3cret-pass")

		require.Error(t, err)
		assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeDuplicateEntry))
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture(plainHasher{})
		user := storedUser("ada@example.com", "s3cret-pass")
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		_, err := f.service.ChangeEmail(context.Background(), user.ID, "new@example.com", "nope")

		require.Error(t, err)
		assert.True(t, slimexpress.HasTextCode(err, slimexpress.TextCodeInvalidCurrentPasswd))
	})
}
