package slimexpress

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user document. Onboarding sections and refresh tokens are
// stored as JSON columns on the same row.
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID           `bun:"id,pk,type:uuid" json:"id"`
	Email               string              `bun:"email,notnull,unique" json:"email"`
	PasswordHash        string              `bun:"password_hash,notnull" json:"-"`
	IsEmailVerified     bool                `bun:"is_email_verified,notnull" json:"isEmailVerified"`
	IsAdmin             bool                `bun:"is_admin,notnull" json:"isAdmin"`
	RefreshTokens       []RefreshTokenEntry `bun:"refresh_tokens" json:"-"`
	LastLoginAt         *time.Time          `bun:"last_login_at,nullzero" json:"lastLoginAt,omitempty"`
	OnboardingCompleted bool                `bun:"onboarding_completed,notnull" json:"onboardingCompleted"`
	OnboardingStep      int                 `bun:"onboarding_step,notnull" json:"onboardingStep"`
	OnboardingSkipped   bool                `bun:"onboarding_skipped,notnull" json:"-"`
	ProfileCompleteness int                 `bun:"profile_completeness,notnull" json:"profileCompleteness"`
	BasicInfo           BasicInfo           `bun:"basic_info" json:"basicInfo"`
	Lifestyle           Lifestyle           `bun:"lifestyle" json:"lifestyle"`
	MedicalHistory      MedicalHistory      `bun:"medical_history" json:"medicalHistory"`
	Goals               Goals               `bun:"goals" json:"goals"`
	Preferences         Preferences         `bun:"preferences" json:"preferences"`
	DataQuality         DataQuality         `bun:"data_quality" json:"dataQuality"`
	SessionInfo         SessionInfo         `bun:"session_info" json:"sessionInfo"`
	Version             int64               `bun:"version,notnull" json:"-"`
	CreatedAt           time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt           time.Time           `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// DataQuality holds the derived section flags
type DataQuality struct {
	HasBasicInfo      bool   `json:"hasBasicInfo"`
	HasLifestyle      bool   `json:"hasLifestyle"`
	HasMedicalHistory bool   `json:"hasMedicalHistory"`
	HasGoals          bool   `json:"hasGoals"`
	HasPreferences    bool   `json:"hasPreferences"`
	CompletenessScore string `json:"completenessScore"`
}

// SessionInfo is onboarding completion telemetry
type SessionInfo struct {
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CompletionDate    string     `json:"completionDate,omitempty"`
	XP                int        `json:"xp"`
	Level             int        `json:"level"`
	SectionsCompleted int        `json:"sectionsCompleted"`
	Skipped           bool       `json:"skipped,omitempty"`
}

// UserSummary is the short user shape returned by auth endpoints
type UserSummary struct {
	ID                  uuid.UUID `json:"id"`
	Email               string    `json:"email"`
	IsEmailVerified     bool      `json:"isEmailVerified"`
	OnboardingCompleted bool      `json:"onboardingCompleted"`
	OnboardingStep      int       `json:"onboardingStep"`
	ProfileCompleteness int       `json:"profileCompleteness"`
}

// Summary strips the user down to what auth responses expose
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:                  u.ID,
		Email:               u.Email,
		IsEmailVerified:     u.IsEmailVerified,
		OnboardingCompleted: u.OnboardingCompleted,
		OnboardingStep:      u.OnboardingStep,
		ProfileCompleteness: u.ProfileCompleteness,
	}
}

// Clone copies the user. Section fields are pointers that merges replace
// and never write through, so sharing them is safe.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.RefreshTokens != nil {
		out.RefreshTokens = append([]RefreshTokenEntry(nil), u.RefreshTokens...)
	}
	return &out
}

// NormalizeEmail lowercases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
