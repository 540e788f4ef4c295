package slimexpress

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// Section names one onboarding sub document
type Section string

const (
	SectionBasicInfo      Section = "basicInfo"
	SectionLifestyle      Section = "lifestyle"
	SectionMedicalHistory Section = "medicalHistory"
	SectionGoals          Section = "goals"
	SectionPreferences    Section = "preferences"
)

// Sections in step order
var Sections = []Section{
	SectionBasicInfo,
	SectionLifestyle,
	SectionMedicalHistory,
	SectionGoals,
	SectionPreferences,
}

// RequiredSections gate completion and count toward completeness
var RequiredSections = []Section{
	SectionBasicInfo,
	SectionLifestyle,
	SectionMedicalHistory,
	SectionGoals,
}

// Step returns the fixed onboarding step for the section, 0 if unknown
func (s Section) Step() int {
	for i, known := range Sections {
		if known == s {
			return i + 1
		}
	}
	return 0
}

// ParseSection validates a section name taken from a route
func ParseSection(name string) (Section, error) {
	s := Section(name)
	if s.Step() == 0 {
		return "", NewValidationError("unknown onboarding section", map[string]string{
			"section": "must be one of basicInfo, lifestyle, medicalHistory, goals, preferences",
		})
	}
	return s, nil
}

// SectionPatch is a partial write to one section. Nil fields are absent.
type SectionPatch interface {
	Section() Section
	IsEmpty() bool
	Validate() error
	mergeInto(u *User, now time.Time)
}

// Enumerations accepted at the boundary
const (
	GoalWeightLoss         = "weight-loss"
	GoalMuscleGain         = "muscle-gain"
	GoalMaintainWeight     = "maintain-weight"
	GoalImproveEndurance   = "improve-endurance"
	GoalImproveFlexibility = "improve-flexibility"
	GoalGeneralFitness     = "general-fitness"
)

var (
	goalValues = []any{
		GoalWeightLoss, GoalMuscleGain, GoalMaintainWeight,
		GoalImproveEndurance, GoalImproveFlexibility, GoalGeneralFitness,
	}
	exerciseFrequencies = []any{"never", "1-2-times", "3-4-times", "5-6-times", "daily"}
	activityLevels      = []any{"sedentary", "light", "moderate", "active", "very-active"}
	genders             = []any{"male", "female", "other", "prefer-not-to-say"}
	unitSystems         = []any{"metric", "imperial"}
	workoutTimes        = []any{"morning", "afternoon", "evening", "flexible"}

	clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

	goalAliases = map[string]string{
		"lose-weight":         GoalWeightLoss,
		"fat-loss":            GoalWeightLoss,
		"lose-fat":            GoalWeightLoss,
		"weight-loss":         GoalWeightLoss,
		"build-muscle":        GoalMuscleGain,
		"gain-muscle":         GoalMuscleGain,
		"muscle-gain":         GoalMuscleGain,
		"maintain":            GoalMaintainWeight,
		"maintenance":         GoalMaintainWeight,
		"maintain-weight":     GoalMaintainWeight,
		"endurance":           GoalImproveEndurance,
		"build-endurance":     GoalImproveEndurance,
		"improve-endurance":   GoalImproveEndurance,
		"flexibility":         GoalImproveFlexibility,
		"improve-flexibility": GoalImproveFlexibility,
		"general-fitness":     GoalGeneralFitness,
		"general-health":      GoalGeneralFitness,
		"stay-healthy":        GoalGeneralFitness,
		"overall-health":      GoalGeneralFitness,
	}
)

// NormalizeGoal maps camelCase, snake_case and alias spellings onto the
// hyphenated vocabulary. Unknown values come back kebab cased.
func NormalizeGoal(goal string) string {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return goal
	}

	var b strings.Builder
	prevLower := false
	for _, r := range goal {
		switch {
		case r == '_' || r == ' ' || r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteRune('-')
			}
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteRune('-')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}

	kebab := strings.Trim(b.String(), "-")
	if canonical, ok := goalAliases[kebab]; ok {
		return canonical
	}
	return kebab
}

type BasicInfo struct {
	Name        *string    `json:"name,omitempty"`
	DateOfBirth *string    `json:"dateOfBirth,omitempty"`
	Height      *float64   `json:"height,omitempty"`
	Weight      *float64   `json:"weight,omitempty"`
	PhoneNumber *string    `json:"phoneNumber,omitempty"`
	Location    *string    `json:"location,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (b BasicInfo) Section() Section { return SectionBasicInfo }

func (b BasicInfo) IsEmpty() bool {
	return b.Name == nil && b.DateOfBirth == nil && b.Height == nil &&
		b.Weight == nil && b.PhoneNumber == nil && b.Location == nil
}

func (b BasicInfo) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&b.DateOfBirth, validation.NilOrNotEmpty, validation.Date("2006-01-02"), validation.By(ageBetween(13, 120))),
		validation.Field(&b.Height, validation.NilOrNotEmpty, validation.Min(50.0), validation.Max(300.0)),
		validation.Field(&b.Weight, validation.NilOrNotEmpty, validation.Min(20.0), validation.Max(500.0)),
		validation.Field(&b.PhoneNumber, validation.By(validPhoneNumber)),
		validation.Field(&b.Location, validation.Length(0, 200)),
	)
}

func (b BasicInfo) complete() bool {
	return hasText(b.Name) && hasText(b.DateOfBirth) && hasNumber(b.Height) && hasNumber(b.Weight)
}

// normalize rewrites the phone number to E.164
func (b BasicInfo) normalize() BasicInfo {
	if b.PhoneNumber == nil {
		return b
	}
	if num, err := phonenumbers.Parse(*b.PhoneNumber, "ZZ"); err == nil && phonenumbers.IsValidNumber(num) {
		formatted := phonenumbers.Format(num, phonenumbers.E164)
		b.PhoneNumber = &formatted
	}
	return b
}

func (b BasicInfo) mergeInto(u *User, now time.Time) {
	dst := u.BasicInfo
	merge(&dst.Name, b.Name)
	merge(&dst.DateOfBirth, b.DateOfBirth)
	merge(&dst.Height, b.Height)
	merge(&dst.Weight, b.Weight)
	merge(&dst.PhoneNumber, b.PhoneNumber)
	merge(&dst.Location, b.Location)
	dst.CompletedAt = &now
	u.BasicInfo = dst
}

type Lifestyle struct {
	WakeUpTime         *string    `json:"wakeUpTime,omitempty"`
	SleepTime          *string    `json:"sleepTime,omitempty"`
	ExerciseFrequency  *string    `json:"exerciseFrequency,omitempty"`
	ActivityLevel      *string    `json:"activityLevel,omitempty"`
	WorkSchedule       *string    `json:"workSchedule,omitempty"`
	SleepHours         *float64   `json:"sleepHours,omitempty"`
	StressLevel        *int       `json:"stressLevel,omitempty"`
	DietType           *string    `json:"dietType,omitempty"`
	SmokingStatus      *string    `json:"smokingStatus,omitempty"`
	AlcoholConsumption *string    `json:"alcoholConsumption,omitempty"`
	WaterIntakeLiters  *float64   `json:"waterIntakeLiters,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

func (l Lifestyle) Section() Section { return SectionLifestyle }

func (l Lifestyle) IsEmpty() bool {
	return l.WakeUpTime == nil && l.SleepTime == nil && l.ExerciseFrequency == nil &&
		l.ActivityLevel == nil && l.WorkSchedule == nil && l.SleepHours == nil &&
		l.StressLevel == nil && l.DietType == nil && l.SmokingStatus == nil &&
		l.AlcoholConsumption == nil && l.WaterIntakeLiters == nil
}

func (l Lifestyle) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.WakeUpTime, validation.NilOrNotEmpty, validation.Match(clockTime).Error("must be HH:MM")),
		validation.Field(&l.SleepTime, validation.NilOrNotEmpty, validation.Match(clockTime).Error("must be HH:MM")),
		validation.Field(&l.ExerciseFrequency, validation.NilOrNotEmpty, validation.In(exerciseFrequencies...)),
		validation.Field(&l.ActivityLevel, validation.In(activityLevels...)),
		validation.Field(&l.WorkSchedule, validation.Length(0, 100)),
		validation.Field(&l.SleepHours, validation.Min(0.0), validation.Max(24.0)),
		validation.Field(&l.StressLevel, validation.Min(1), validation.Max(10)),
		validation.Field(&l.DietType, validation.Length(0, 100)),
		validation.Field(&l.SmokingStatus, validation.Length(0, 50)),
		validation.Field(&l.AlcoholConsumption, validation.Length(0, 50)),
		validation.Field(&l.WaterIntakeLiters, validation.Min(0.0), validation.Max(20.0)),
	)
}

func (l Lifestyle) complete() bool {
	return hasText(l.WakeUpTime) && hasText(l.SleepTime) && hasText(l.ExerciseFrequency)
}

func (l Lifestyle) mergeInto(u *User, now time.Time) {
	dst := u.Lifestyle
	merge(&dst.WakeUpTime, l.WakeUpTime)
	merge(&dst.SleepTime, l.SleepTime)
	merge(&dst.ExerciseFrequency, l.ExerciseFrequency)
	merge(&dst.ActivityLevel, l.ActivityLevel)
	merge(&dst.WorkSchedule, l.WorkSchedule)
	merge(&dst.SleepHours, l.SleepHours)
	merge(&dst.StressLevel, l.StressLevel)
	merge(&dst.DietType, l.DietType)
	merge(&dst.SmokingStatus, l.SmokingStatus)
	merge(&dst.AlcoholConsumption, l.AlcoholConsumption)
	merge(&dst.WaterIntakeLiters, l.WaterIntakeLiters)
	dst.CompletedAt = &now
	u.Lifestyle = dst
}

// LabResults is the most recent blood panel a user reported
type LabResults struct {
	TestDate               *string  `json:"testDate,omitempty"`
	BloodPressureSystolic  *int     `json:"bloodPressureSystolic,omitempty"`
	BloodPressureDiastolic *int     `json:"bloodPressureDiastolic,omitempty"`
	CholesterolTotal       *float64 `json:"cholesterolTotal,omitempty"`
	BloodSugarFasting      *float64 `json:"bloodSugarFasting,omitempty"`
	HemoglobinA1c          *float64 `json:"hemoglobinA1c,omitempty"`
	Notes                  *string  `json:"notes,omitempty"`
}

func (r LabResults) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TestDate, validation.Date("2006-01-02")),
		validation.Field(&r.BloodPressureSystolic, validation.Min(50), validation.Max(300)),
		validation.Field(&r.BloodPressureDiastolic, validation.Min(30), validation.Max(200)),
		validation.Field(&r.CholesterolTotal, validation.Min(0.0), validation.Max(1000.0)),
		validation.Field(&r.BloodSugarFasting, validation.Min(0.0), validation.Max(1000.0)),
		validation.Field(&r.HemoglobinA1c, validation.Min(0.0), validation.Max(25.0)),
		validation.Field(&r.Notes, validation.Length(0, 1000)),
	)
}

type MedicalHistory struct {
	Gender        *string     `json:"gender,omitempty"`
	Conditions    []string    `json:"conditions,omitempty"`
	Medications   []string    `json:"medications,omitempty"`
	Allergies     []string    `json:"allergies,omitempty"`
	Injuries      []string    `json:"injuries,omitempty"`
	Surgeries     []string    `json:"surgeries,omitempty"`
	FamilyHistory *string     `json:"familyHistory,omitempty"`
	LabResults    *LabResults `json:"labResults,omitempty"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
}

func (m MedicalHistory) Section() Section { return SectionMedicalHistory }

func (m MedicalHistory) IsEmpty() bool {
	return m.Gender == nil && m.Conditions == nil && m.Medications == nil &&
		m.Allergies == nil && m.Injuries == nil && m.Surgeries == nil &&
		m.FamilyHistory == nil && m.LabResults == nil
}

func (m MedicalHistory) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Gender, validation.NilOrNotEmpty, validation.In(genders...)),
		validation.Field(&m.Conditions, validation.Length(0, 50)),
		validation.Field(&m.Medications, validation.Length(0, 50)),
		validation.Field(&m.Allergies, validation.Length(0, 50)),
		validation.Field(&m.Injuries, validation.Length(0, 50)),
		validation.Field(&m.Surgeries, validation.Length(0, 50)),
		validation.Field(&m.FamilyHistory, validation.Length(0, 1000)),
		validation.Field(&m.LabResults),
	)
}

func (m MedicalHistory) complete() bool {
	return hasText(m.Gender)
}

func (m MedicalHistory) mergeInto(u *User, now time.Time) {
	dst := u.MedicalHistory
	merge(&dst.Gender, m.Gender)
	mergeSlice(&dst.Conditions, m.Conditions)
	mergeSlice(&dst.Medications, m.Medications)
	mergeSlice(&dst.Allergies, m.Allergies)
	mergeSlice(&dst.Injuries, m.Injuries)
	mergeSlice(&dst.Surgeries, m.Surgeries)
	merge(&dst.FamilyHistory, m.FamilyHistory)
	merge(&dst.LabResults, m.LabResults)
	dst.CompletedAt = &now
	u.MedicalHistory = dst
}

type Goals struct {
	PrimaryGoal         *string    `json:"primaryGoal,omitempty"`
	TargetWeight        *float64   `json:"targetWeight,omitempty"`
	SecondaryGoals      []string   `json:"secondaryGoals,omitempty"`
	TimeframeWeeks      *int       `json:"timeframeWeeks,omitempty"`
	WeeklyWorkoutTarget *int       `json:"weeklyWorkoutTarget,omitempty"`
	Motivation          *string    `json:"motivation,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"`
}

func (g Goals) Section() Section { return SectionGoals }

func (g Goals) IsEmpty() bool {
	return g.PrimaryGoal == nil && g.TargetWeight == nil && g.SecondaryGoals == nil &&
		g.TimeframeWeeks == nil && g.WeeklyWorkoutTarget == nil && g.Motivation == nil
}

func (g Goals) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.PrimaryGoal, validation.NilOrNotEmpty, validation.In(goalValues...)),
		validation.Field(&g.TargetWeight, validation.NilOrNotEmpty, validation.Min(20.0), validation.Max(500.0)),
		validation.Field(&g.SecondaryGoals, validation.Length(0, 5), validation.By(eachIn(goalValues))),
		validation.Field(&g.TimeframeWeeks, validation.Min(1), validation.Max(520)),
		validation.Field(&g.WeeklyWorkoutTarget, validation.Min(0), validation.Max(14)),
		validation.Field(&g.Motivation, validation.Length(0, 500)),
	)
}

func (g Goals) complete() bool {
	return hasText(g.PrimaryGoal) && hasNumber(g.TargetWeight)
}

// normalize folds goal spellings into the canonical vocabulary
func (g Goals) normalize() Goals {
	if g.PrimaryGoal != nil {
		goal := NormalizeGoal(*g.PrimaryGoal)
		g.PrimaryGoal = &goal
	}
	if g.SecondaryGoals != nil {
		out := make([]string, 0, len(g.SecondaryGoals))
		for _, s := range g.SecondaryGoals {
			out = append(out, NormalizeGoal(s))
		}
		g.SecondaryGoals = out
	}
	return g
}

func (g Goals) mergeInto(u *User, now time.Time) {
	dst := u.Goals
	merge(&dst.PrimaryGoal, g.PrimaryGoal)
	merge(&dst.TargetWeight, g.TargetWeight)
	mergeSlice(&dst.SecondaryGoals, g.SecondaryGoals)
	merge(&dst.TimeframeWeeks, g.TimeframeWeeks)
	merge(&dst.WeeklyWorkoutTarget, g.WeeklyWorkoutTarget)
	merge(&dst.Motivation, g.Motivation)
	dst.CompletedAt = &now
	u.Goals = dst
}

type Preferences struct {
	Units                  *string    `json:"units,omitempty"`
	WorkoutTypes           []string   `json:"workoutTypes,omitempty"`
	WorkoutDurationMinutes *int       `json:"workoutDurationMinutes,omitempty"`
	PreferredWorkoutTime   *string    `json:"preferredWorkoutTime,omitempty"`
	Equipment              []string   `json:"equipment,omitempty"`
	DietaryRestrictions    []string   `json:"dietaryRestrictions,omitempty"`
	NotificationsEnabled   *bool      `json:"notificationsEnabled,omitempty"`
	Language               *string    `json:"language,omitempty"`
	CompletedAt            *time.Time `json:"completedAt,omitempty"`
}

func (p Preferences) Section() Section { return SectionPreferences }

func (p Preferences) IsEmpty() bool {
	return p.Units == nil && p.WorkoutTypes == nil && p.WorkoutDurationMinutes == nil &&
		p.PreferredWorkoutTime == nil && p.Equipment == nil && p.DietaryRestrictions == nil &&
		p.NotificationsEnabled == nil && p.Language == nil
}

func (p Preferences) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Units, validation.In(unitSystems...)),
		validation.Field(&p.WorkoutTypes, validation.Length(0, 20)),
		validation.Field(&p.WorkoutDurationMinutes, validation.Min(5), validation.Max(300)),
		validation.Field(&p.PreferredWorkoutTime, validation.In(workoutTimes...)),
		validation.Field(&p.Equipment, validation.Length(0, 50)),
		validation.Field(&p.DietaryRestrictions, validation.Length(0, 50)),
		validation.Field(&p.Language, validation.Length(2, 10)),
	)
}

func (p Preferences) mergeInto(u *User, now time.Time) {
	dst := u.Preferences
	merge(&dst.Units, p.Units)
	mergeSlice(&dst.WorkoutTypes, p.WorkoutTypes)
	merge(&dst.WorkoutDurationMinutes, p.WorkoutDurationMinutes)
	merge(&dst.PreferredWorkoutTime, p.PreferredWorkoutTime)
	mergeSlice(&dst.Equipment, p.Equipment)
	mergeSlice(&dst.DietaryRestrictions, p.DietaryRestrictions)
	merge(&dst.NotificationsEnabled, p.NotificationsEnabled)
	merge(&dst.Language, p.Language)
	dst.CompletedAt = &now
	u.Preferences = dst
}

func merge[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func mergeSlice[T any](dst *[]T, src []T) {
	if src != nil {
		*dst = src
	}
}

func hasText(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func hasNumber(f *float64) bool {
	return f != nil && *f > 0
}

func validPhoneNumber(value any) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, "ZZ")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid international phone number")
	}
	return nil
}

func ageBetween(minYears, maxYears int) validation.RuleFunc {
	return func(value any) error {
		v, isNil := validation.Indirect(value)
		if isNil {
			return nil
		}
		s, _ := v.(string)
		dob, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
		now := time.Now().UTC()
		if dob.After(now.AddDate(-minYears, 0, 0)) || dob.Before(now.AddDate(-maxYears, 0, 0)) {
			return fmt.Errorf("age must be between %d and %d years", minYears, maxYears)
		}
		return nil
	}
}

func eachIn(allowed []any) validation.RuleFunc {
	return func(value any) error {
		items, _ := value.([]string)
		for _, item := range items {
			found := false
			for _, a := range allowed {
				if a == any(item) {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("contains an unsupported value: %s", item)
			}
		}
		return nil
	}
}
