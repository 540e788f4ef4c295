package slimexpress

import (
	"context"

	"github.com/google/uuid"
)

// UserPage is one page of an admin listing
type UserPage struct {
	Users []*User `json:"users"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Pages int     `json:"pages"`
}

// AdminService backs the reporting endpoints
type AdminService struct {
	users    Users
	logger   Logger
	activity ActivitySink
}

type AdminServiceOption func(*AdminService)

func WithAdminLogger(logger Logger) AdminServiceOption {
	return func(s *AdminService) {
		s.logger = resolveLogger(logger)
	}
}

func WithAdminActivitySink(sink ActivitySink) AdminServiceOption {
	return func(s *AdminService) {
		s.activity = normalizeActivitySink(sink)
	}
}

func NewAdminService(users Users, opts ...AdminServiceOption) *AdminService {
	s := &AdminService{
		users:    users,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// RequireAdmin loads the actor and fails with ErrForbidden unless it is an admin
func (s *AdminService) RequireAdmin(ctx context.Context, actorID uuid.UUID) (*User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return actor, nil
}

func (s *AdminService) ListUsers(ctx context.Context, filter UserFilter) (*UserPage, error) {
	filter = filter.normalize()

	records, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	pages := total / filter.Limit
	if total%filter.Limit != 0 {
		pages++
	}

	return &UserPage{
		Users: records,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
		Pages: pages,
	}, nil
}

func (s *AdminService) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// DeleteUser is the only hard delete in the system
func (s *AdminService) DeleteUser(ctx context.Context, actorID, id uuid.UUID) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Warn("user deleted", "actor_id", actorID.String(), "user_id", id.String())
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		ActorID:   actorID.String(),
		UserID:    id.String(),
	})
	return nil
}

func (s *AdminService) Stats(ctx context.Context) (*OnboardingStats, error) {
	return s.users.Stats(ctx)
}
