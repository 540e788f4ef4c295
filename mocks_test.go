package slimexpress_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	slimexpress "github.com/MrGharbiii/slim-express"
)

// MockUsers implements slimexpress.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Create(ctx context.Context, user *slimexpress.User) (*slimexpress.User, error) {
	args := m.Called(ctx, user)
	switch v := args.Get(0).(type) {
	case func(*slimexpress.User) *slimexpress.User:
		return v(user), args.Error(1)
	case *slimexpress.User:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*slimexpress.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*slimexpress.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*slimexpress.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*slimexpress.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Save(ctx context.Context, user *slimexpress.User) (*slimexpress.User, error) {
	args := m.Called(ctx, user)
	switch v := args.Get(0).(type) {
	case func(*slimexpress.User) *slimexpress.User:
		return v(user), args.Error(1)
	case *slimexpress.User:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) List(ctx context.Context, filter slimexpress.UserFilter) ([]*slimexpress.User, int, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]*slimexpress.User)
	return records, args.Int(1), args.Error(2)
}

func (m *MockUsers) Stats(ctx context.Context) (*slimexpress.OnboardingStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*slimexpress.OnboardingStats)
	return stats, args.Error(1)
}

func (m *MockUsers) PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// echoUser makes Create and Save return the user they were given
func echoUser(u *slimexpress.User) *slimexpress.User {
	return u
}

// MockHasher implements slimexpress.PasswordHasher
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) Hash(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockHasher) Verify(plaintext, hash string) (bool, error) {
	args := m.Called(plaintext, hash)
	return args.Bool(0), args.Error(1)
}

// MockLogger implements slimexpress.Logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

// recordingSink keeps every activity event it receives
type recordingSink struct {
	mu     sync.Mutex
	events []slimexpress.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event slimexpress.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) Types() []slimexpress.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]slimexpress.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

// plainHasher is a fast reversible PasswordHasher for service tests
type plainHasher struct{}

func (plainHasher) Hash(plaintext string) (string, error) {
	return "hashed:" + plaintext, nil
}

func (plainHasher) Verify(plaintext, hash string) (bool, error) {
	return hash == "hashed:"+plaintext, nil
}

// fixedClock returns a controllable clock for expiry tests
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testSecret = "test-secret-with-at-least-32-bytes!!"

func newTestTokenService(clock *fixedClock) *slimexpress.TokenService {
	opts := []slimexpress.TokenServiceOption{slimexpress.WithTokenLogger(slimexpress.NopLogger())}
	if clock != nil {
		opts = append(opts, slimexpress.WithTokenClock(clock.Now))
	}
	return slimexpress.NewTokenService(slimexpress.TokenConfig{
		Secret:   []byte(testSecret),
		Issuer:   "slim-express",
		Audience: "slim-express-users",
	}, opts...)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func boolPtr(b bool) *bool { return &b }

func testEmail(n int) string { return fmt.Sprintf("user%d@example.com", n) }
