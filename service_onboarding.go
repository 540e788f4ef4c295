package slimexpress

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SectionUpdateResult is returned after a section write
type SectionUpdateResult struct {
	Section Section
	Data    any
	Status  OnboardingStatus
	User    *User
}

// OnboardingService persists onboarding transitions
type OnboardingService struct {
	users    Users
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

type OnboardingServiceOption func(*OnboardingService)

func WithOnboardingLogger(logger Logger) OnboardingServiceOption {
	return func(s *OnboardingService) {
		s.logger = resolveLogger(logger)
	}
}

func WithOnboardingActivitySink(sink ActivitySink) OnboardingServiceOption {
	return func(s *OnboardingService) {
		s.activity = normalizeActivitySink(sink)
	}
}

func WithOnboardingClock(now func() time.Time) OnboardingServiceOption {
	return func(s *OnboardingService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewOnboardingService(users Users, opts ...OnboardingServiceOption) *OnboardingService {
	s := &OnboardingService{
		users:    users,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// UpdateSection applies a validated patch. Either the whole transition is
// saved or nothing is.
func (s *OnboardingService) UpdateSection(ctx context.Context, userID uuid.UUID, patch SectionPatch) (*SectionUpdateResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	wasCompleted := user.OnboardingCompleted
	next := ApplySectionUpdate(user, patch, s.now())

	saved, err := s.users.Save(ctx, next)
	if err != nil {
		return nil, err
	}

	section := patch.Section()
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventSectionUpdated,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		Metadata: map[string]any{
			"section":      string(section),
			"step":         saved.OnboardingStep,
			"completeness": saved.ProfileCompleteness,
		},
	})

	if !wasCompleted && saved.OnboardingCompleted {
		s.logger.Info("onboarding auto completed", "user_id", userID.String(), "section", string(section))
		recordActivity(ctx, s.activity, s.logger, ActivityEvent{
			EventType: ActivityEventOnboardingDone,
			ActorID:   userID.String(),
			UserID:    userID.String(),
			Metadata:  map[string]any{"automatic": true},
		})
	}

	return &SectionUpdateResult{
		Section: section,
		Data:    SectionOf(saved, section),
		Status:  StatusOf(saved),
		User:    saved,
	}, nil
}

// Complete finishes onboarding or fails with INCOMPLETE_SECTIONS
func (s *OnboardingService) Complete(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	next, err := CompleteOnboarding(user, s.now())
	if err != nil {
		return nil, err
	}

	saved, err := s.users.Save(ctx, next)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventOnboardingDone,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		Metadata:  map[string]any{"xp": saved.SessionInfo.XP, "level": saved.SessionInfo.Level},
	})

	return saved, nil
}

// Skip finishes onboarding without checking sections
func (s *OnboardingService) Skip(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	saved, err := s.users.Save(ctx, SkipOnboarding(user, s.now()))
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventOnboardingSkipped,
		ActorID:   userID.String(),
		UserID:    userID.String(),
		Metadata:  map[string]any{"completeness": saved.ProfileCompleteness},
	})

	return saved, nil
}

func (s *OnboardingService) Status(ctx context.Context, userID uuid.UUID) (OnboardingStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return OnboardingStatus{}, err
	}
	return StatusOf(user), nil
}

func (s *OnboardingService) Profile(ctx context.Context, userID uuid.UUID) (OnboardingProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return OnboardingProfile{}, err
	}
	return ProfileOf(user), nil
}
