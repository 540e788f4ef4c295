package slimexpress

import "time"

const (
	// MaxRefreshTokens is how many refresh tokens a user keeps across devices
	MaxRefreshTokens = 5
	// RefreshTokenLifetime bounds every stored entry regardless of the JWT exp
	RefreshTokenLifetime = 7 * 24 * time.Hour
)

// RefreshTokenEntry is one issued refresh token
type RefreshTokenEntry struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExpiresAt is CreatedAt plus RefreshTokenLifetime
func (e RefreshTokenEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(RefreshTokenLifetime)
}

func (e RefreshTokenEntry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// AddRefreshToken appends token and keeps only the most recent entries
func (u *User) AddRefreshToken(token string, now time.Time) {
	u.RefreshTokens = append(u.RefreshTokens, RefreshTokenEntry{
		Token:     token,
		CreatedAt: now.UTC(),
	})
	if n := len(u.RefreshTokens); n > MaxRefreshTokens {
		kept := make([]RefreshTokenEntry, MaxRefreshTokens)
		copy(kept, u.RefreshTokens[n-MaxRefreshTokens:])
		u.RefreshTokens = kept
	}
}

// IsValidRefreshToken is true when token is stored and inside its window
func (u *User) IsValidRefreshToken(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	for _, entry := range u.RefreshTokens {
		if entry.Token == token && !entry.expired(now) {
			return true
		}
	}
	return false
}

// CleanExpiredTokens drops expired entries and reports how many were removed
func (u *User) CleanExpiredTokens(now time.Time) int {
	kept := u.RefreshTokens[:0]
	removed := 0
	for _, entry := range u.RefreshTokens {
		if entry.expired(now) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	u.RefreshTokens = kept
	return removed
}

// RevokeRefreshToken removes one entry, used for single device logout
func (u *User) RevokeRefreshToken(token string) bool {
	for i, entry := range u.RefreshTokens {
		if entry.Token == token {
			u.RefreshTokens = append(u.RefreshTokens[:i:i], u.RefreshTokens[i+1:]...)
			return true
		}
	}
	return false
}

// RevokeAllRefreshTokens clears every entry, used for logout everywhere
func (u *User) RevokeAllRefreshTokens() int {
	n := len(u.RefreshTokens)
	u.RefreshTokens = []RefreshTokenEntry{}
	return n
}
