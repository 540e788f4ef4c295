package slimexpress

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister          ActivityEventType = "auth.register"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefresh      ActivityEventType = "auth.token.refresh"
	ActivityEventLogout            ActivityEventType = "auth.logout"
	ActivityEventLogoutAll         ActivityEventType = "auth.logout_all"
	ActivityEventPasswordChanged   ActivityEventType = "auth.password.changed"
	ActivityEventEmailChanged      ActivityEventType = "auth.email.changed"
	ActivityEventSectionUpdated    ActivityEventType = "onboarding.section.updated"
	ActivityEventOnboardingDone    ActivityEventType = "onboarding.completed"
	ActivityEventOnboardingSkipped ActivityEventType = "onboarding.skipped"
	ActivityEventUserDeleted       ActivityEventType = "admin.user.deleted"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	ActorID    string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LoggingActivitySink writes every event to a Logger at info level.
func LoggingActivitySink(logger Logger) ActivitySink {
	logger = resolveLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		args := []any{"event", string(event.EventType), "user_id", event.UserID}
		if event.ActorID != "" && event.ActorID != event.UserID {
			args = append(args, "actor_id", event.ActorID)
		}
		for k, v := range event.Metadata {
			args = append(args, k, v)
		}
		logger.Info("activity", args...)
		return nil
	})
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("activity sink failed", "event", string(event.EventType), "error", err)
	}
}
