package slimexpress_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slimexpress "github.com/MrGharbiii/slim-express"
)

func TestUser_AddRefreshTokenKeepsLastFive(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &slimexpress.User{}

	for i := 0; i < 7; i++ {
		user.AddRefreshToken(fmt.Sprintf("token-%d", i), now.Add(time.Duration(i)*time.Minute))
	}

	require.Len(t, user.RefreshTokens, slimexpress.MaxRefreshTokens)
	assert.Equal(t, "token-2", user.RefreshTokens[0].Token)
	assert.Equal(t, "token-6", user.RefreshTokens[4].Token)

	later := now.Add(time.Hour)
	assert.False(t, user.IsValidRefreshToken("token-0", later))
	assert.False(t, user.IsValidRefreshToken("token-1", later))
	for i := 2; i < 7; i++ {
		assert.True(t, user.IsValidRefreshToken(fmt.Sprintf("token-%d", i), later))
	}
}

func TestUser_IsValidRefreshToken(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &slimexpress.User{}
	user.AddRefreshToken("abc", created)

	tests := []struct {
		name  string
		token string
		at    time.Time
		want  bool
	}{
		{"fresh", "abc", created.Add(time.Minute), true},
		{"just before expiry", "abc", created.Add(slimexpress.RefreshTokenLifetime - time.Second), true},
		{"at expiry", "abc", created.Add(slimexpress.RefreshTokenLifetime), false},
		{"after expiry", "abc", created.Add(8 * 24 * time.Hour), false},
		{"unknown", "xyz", created, false},
		{"empty", "", created, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, user.IsValidRefreshToken(tt.token, tt.at))
		})
	}
}

func TestUser_CleanExpiredTokens(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	user := &slimexpress.User{}
	user.AddRefreshToken("old-1", base)
	user.AddRefreshToken("old-2", base.Add(time.Hour))
	user.AddRefreshToken("new", base.Add(6*24*time.Hour))

	removed := user.CleanExpiredTokens(base.Add(7*24*time.Hour + 2*time.Hour))

	assert.Equal(t, 2, removed)
	require.Len(t, user.RefreshTokens, 1)
	assert.Equal(t, "new", user.RefreshTokens[0].Token)

	assert.Equal(t, 0, user.CleanExpiredTokens(base.Add(7*24*time.Hour+2*time.Hour)))
}

func TestUser_RevokeRefreshToken(t *testing.T) {
	now := time.Now()
	user := &slimexpress.User{}
	user.AddRefreshToken("a", now)
	user.AddRefreshToken("b", now)
	user.AddRefreshToken("c", now)

	assert.True(t, user.RevokeRefreshToken("b"))
	assert.False(t, user.RevokeRefreshToken("b"))
	assert.False(t, user.IsValidRefreshToken("b", now))
	assert.True(t, user.IsValidRefreshToken("a", now))
	assert.True(t, user.IsValidRefreshToken("c", now))

	assert.Equal(t, 2, user.RevokeAllRefreshTokens())
	assert.Empty(t, user.RefreshTokens)
	assert.False(t, user.IsValidRefreshToken("a", now))
}

func TestUser_RevokeDoesNotAffectClone(t *testing.T) {
	now := time.Now()
	user := &slimexpress.User{}
	user.AddRefreshToken("a", now)
	user.AddRefreshToken("b", now)

	clone := user.Clone()
	clone.RevokeRefreshToken("a")

	assert.True(t, user.IsValidRefreshToken("a", now))
	assert.False(t, clone.IsValidRefreshToken("a", now))
}

func TestRefreshTokenEntry_ExpiresAt(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := slimexpress.RefreshTokenEntry{Token: "t", CreatedAt: created}

	assert.Equal(t, created.Add(7*24*time.Hour), entry.ExpiresAt())
}
