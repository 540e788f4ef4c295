package slimexpress

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often expired refresh tokens are pruned
const DefaultSweepInterval = time.Hour

// RefreshTokenSweeper prunes expired refresh token entries in the background
type RefreshTokenSweeper struct {
	users    Users
	interval time.Duration
	logger   Logger
	now      func() time.Time
}

type SweeperOption func(*RefreshTokenSweeper)

func WithSweeperLogger(logger Logger) SweeperOption {
	return func(s *RefreshTokenSweeper) {
		s.logger = resolveLogger(logger)
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *RefreshTokenSweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRefreshTokenSweeper(users Users, interval time.Duration, opts ...SweeperOption) *RefreshTokenSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &RefreshTokenSweeper{
		users:    users,
		interval: interval,
		logger:   defLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Sweep runs a single pass
func (s *RefreshTokenSweeper) Sweep(ctx context.Context) (int, error) {
	removed, err := s.users.PruneExpiredRefreshTokens(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("refresh token sweep failed", "error", err, "removed", removed)
		return removed, err
	}
	if removed > 0 {
		s.logger.Info("refresh token sweep", "removed", removed)
	}
	return removed, nil
}

// Run sweeps once immediately and then on every tick until ctx is done
func (s *RefreshTokenSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_, _ = s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}

// Start runs the sweeper in its own goroutine. The returned channel is
// closed once the last sweep has returned.
func (s *RefreshTokenSweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}
