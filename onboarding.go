package slimexpress

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	// StepNotStarted is the step of a fresh user
	StepNotStarted = 0
	// StepCompleted is the terminal step reached by completion or skip
	StepCompleted = 6

	xpPerSection    = 100
	xpCompletion    = 200
	xpPerLevel      = 250
	completionStamp = "2006-01-02"
)

// OnboardingStatus is the read model returned by status endpoints
type OnboardingStatus struct {
	OnboardingCompleted bool        `json:"onboardingCompleted"`
	OnboardingStep      int         `json:"onboardingStep"`
	ProfileCompleteness int         `json:"profileCompleteness"`
	DataQuality         DataQuality `json:"dataQuality"`
	MissingSections     []Section   `json:"missingSections"`
	NextSection         Section     `json:"nextSection,omitempty"`
	SessionInfo         SessionInfo `json:"sessionInfo"`
}

// OnboardingProfile groups the five sections
type OnboardingProfile struct {
	BasicInfo      BasicInfo      `json:"basicInfo"`
	Lifestyle      Lifestyle      `json:"lifestyle"`
	MedicalHistory MedicalHistory `json:"medicalHistory"`
	Goals          Goals          `json:"goals"`
	Preferences    Preferences    `json:"preferences"`
}

// DecodeSectionPatch parses a request body into the patch type for section,
// normalises it and runs boundary validation. JSON nulls decode to absent.
func DecodeSectionPatch(section Section, body []byte) (SectionPatch, error) {
	if len(body) == 0 {
		body = []byte("{}")
	}

	var patch SectionPatch
	var err error
	switch section {
	case SectionBasicInfo:
		var p BasicInfo
		err = json.Unmarshal(body, &p)
		patch = p.normalize()
	case SectionLifestyle:
		var p Lifestyle
		err = json.Unmarshal(body, &p)
		patch = p
	case SectionMedicalHistory:
		var p MedicalHistory
		err = json.Unmarshal(body, &p)
		patch = p
	case SectionGoals:
		var p Goals
		err = json.Unmarshal(body, &p)
		patch = p.normalize()
	case SectionPreferences:
		var p Preferences
		err = json.Unmarshal(body, &p)
		patch = p
	default:
		_, perr := ParseSection(string(section))
		return nil, perr
	}

	if err != nil {
		return nil, NewValidationError("invalid section payload", map[string]string{
			string(section): err.Error(),
		})
	}

	if err := patch.Validate(); err != nil {
		return nil, AsValidationError(err, fmt.Sprintf("invalid %s data", section))
	}

	return patch, nil
}

// ApplySectionUpdate merges patch into a copy of user and runs every derived
// transition. The input user is left untouched.
func ApplySectionUpdate(user *User, patch SectionPatch, now time.Time) *User {
	next := user.Clone()
	now = now.UTC()

	patch.mergeInto(next, now)
	refreshDataQuality(next)
	autoCompleted := maybeAutoComplete(next, now)

	// an empty patch only refreshes completedAt
	if !autoCompleted && !patch.IsEmpty() {
		advanceStep(next, patch.Section())
	}

	return next
}

// CompleteOnboarding finishes onboarding once the required sections are in
func CompleteOnboarding(user *User, now time.Time) (*User, error) {
	next := user.Clone()
	refreshDataQuality(next)

	if missing := MissingSections(next); len(missing) > 0 {
		return nil, incompleteSectionsError(missing)
	}

	if next.OnboardingCompleted && !next.SessionInfo.Skipped {
		return next, nil
	}

	markCompleted(next, now.UTC(), false)
	return next, nil
}

// SkipOnboarding marks onboarding done regardless of section state
func SkipOnboarding(user *User, now time.Time) *User {
	next := user.Clone()
	refreshDataQuality(next)

	if next.OnboardingCompleted {
		return next
	}

	markCompleted(next, now.UTC(), true)
	return next
}

// MissingSections lists required sections that lack required fields
func MissingSections(user *User) []Section {
	missing := []Section{}
	flags := requiredFlags(user)
	for _, s := range RequiredSections {
		if !flags[s] {
			missing = append(missing, s)
		}
	}
	return missing
}

// StatusOf builds the read model for a user
func StatusOf(user *User) OnboardingStatus {
	u := user.Clone()
	refreshDataQuality(u)

	status := OnboardingStatus{
		OnboardingCompleted: u.OnboardingCompleted,
		OnboardingStep:      u.OnboardingStep,
		ProfileCompleteness: u.ProfileCompleteness,
		DataQuality:         u.DataQuality,
		MissingSections:     MissingSections(u),
		SessionInfo:         u.SessionInfo,
	}

	if len(status.MissingSections) > 0 {
		status.NextSection = status.MissingSections[0]
	} else if !u.DataQuality.HasPreferences && !u.OnboardingCompleted {
		status.NextSection = SectionPreferences
	}

	return status
}

// ProfileOf extracts the five sections
func ProfileOf(user *User) OnboardingProfile {
	return OnboardingProfile{
		BasicInfo:      user.BasicInfo,
		Lifestyle:      user.Lifestyle,
		MedicalHistory: user.MedicalHistory,
		Goals:          user.Goals,
		Preferences:    user.Preferences,
	}
}

// SectionOf returns the stored value of one section
func SectionOf(user *User, section Section) any {
	switch section {
	case SectionBasicInfo:
		return user.BasicInfo
	case SectionLifestyle:
		return user.Lifestyle
	case SectionMedicalHistory:
		return user.MedicalHistory
	case SectionGoals:
		return user.Goals
	case SectionPreferences:
		return user.Preferences
	}
	return nil
}

// Completeness is round(100 * completed / required)
func Completeness(completed int) int {
	return int(math.Round(100 * float64(completed) / float64(len(RequiredSections))))
}

// maybeAutoComplete finishes onboarding when the last required section lands
func maybeAutoComplete(user *User, now time.Time) bool {
	if user.OnboardingCompleted || user.ProfileCompleteness < 100 {
		return false
	}
	markCompleted(user, now, false)
	return true
}

func advanceStep(user *User, section Section) {
	if user.OnboardingStep >= StepCompleted {
		return
	}
	if step := section.Step(); step > user.OnboardingStep {
		user.OnboardingStep = step
	}
}

func markCompleted(user *User, now time.Time, skipped bool) {
	user.OnboardingCompleted = true
	user.OnboardingStep = StepCompleted

	touched := touchedSections(user)
	xp := touched * xpPerSection
	if !skipped {
		xp += xpCompletion
	}

	user.SessionInfo = SessionInfo{
		CompletedAt:       &now,
		CompletionDate:    now.Format(completionStamp),
		XP:                xp,
		Level:             1 + xp/xpPerLevel,
		SectionsCompleted: touched,
		Skipped:           skipped,
	}
}

func refreshDataQuality(user *User) {
	flags := requiredFlags(user)

	count := 0
	for _, s := range RequiredSections {
		if flags[s] {
			count++
		}
	}

	user.ProfileCompleteness = Completeness(count)
	user.OnboardingSkipped = user.SessionInfo.Skipped
	user.DataQuality = DataQuality{
		HasBasicInfo:      flags[SectionBasicInfo],
		HasLifestyle:      flags[SectionLifestyle],
		HasMedicalHistory: flags[SectionMedicalHistory],
		HasGoals:          flags[SectionGoals],
		HasPreferences:    user.Preferences.CompletedAt != nil,
		CompletenessScore: fmt.Sprintf("%d%%", user.ProfileCompleteness),
	}
}

func requiredFlags(user *User) map[Section]bool {
	return map[Section]bool{
		SectionBasicInfo:      user.BasicInfo.complete(),
		SectionLifestyle:      user.Lifestyle.complete(),
		SectionMedicalHistory: user.MedicalHistory.complete(),
		SectionGoals:          user.Goals.complete(),
	}
}

func touchedSections(user *User) int {
	n := 0
	for _, at := range []*time.Time{
		user.BasicInfo.CompletedAt,
		user.Lifestyle.CompletedAt,
		user.MedicalHistory.CompletedAt,
		user.Goals.CompletedAt,
		user.Preferences.CompletedAt,
	} {
		if at != nil {
			n++
		}
	}
	return n
}
