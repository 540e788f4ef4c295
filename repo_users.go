package slimexpress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const pruneBatchSize = 100

type users struct {
	repo         repository.Repository[*User]
	db           *bun.DB
	versionCheck bool
	now          func() time.Time
}

// UsersTx adds transaction aware variants to Users
type UsersTx interface {
	Users
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	SaveTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
}

var _ UsersTx = (*users)(nil)

type UsersOption func(*users)

// WithUsersVersionCheck rejects saves made from a stale copy of the user
func WithUsersVersionCheck(enabled bool) UsersOption {
	return func(u *users) {
		u.versionCheck = enabled
	}
}

// WithUsersClock overrides the clock stamping updated_at
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) UsersTx {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		repo: repo,
		db:   db,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user, a.now())

	created, err := a.repo.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEntry
		}
		return nil, internalError(err, "failed to create user")
	}
	return created, nil
}

func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.mapReadError(err)
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.mapReadError(err)
	}
	return record, nil
}

func (a *users) Save(ctx context.Context, user *User) (*User, error) {
	return a.SaveTx(ctx, a.db, user)
}

// SaveTx replaces the whole row. With version checks enabled the write only
// lands if nobody saved since the user was read.
func (a *users) SaveTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, ErrUserNotFound
	}

	prevVersion := user.Version
	prevUpdated := user.UpdatedAt

	user.Email = NormalizeEmail(user.Email)
	user.Version = prevVersion + 1
	user.UpdatedAt = a.now().UTC()
	refreshDataQuality(user)

	q := tx.NewUpdate().
		Model(user).
		ExcludeColumn("id", "created_at").
		WherePK()
	if a.versionCheck {
		q = q.Where("?TableAlias.version = ?", prevVersion)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		user.Version, user.UpdatedAt = prevVersion, prevUpdated
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEntry
		}
		return nil, internalError(err, "failed to save user")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		user.Version, user.UpdatedAt = prevVersion, prevUpdated
		if a.versionCheck {
			return nil, ErrConcurrentUpdate.Clone().WithMetadata(map[string]any{
				"user_id": user.ID.String(),
				"version": prevVersion,
			})
		}
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (a *users) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	if err != nil {
		return internalError(err, "failed to delete user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (a *users) List(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	filter = filter.normalize()

	records := []*User{}
	q := a.db.NewSelect().Model(&records)
	if filter.Search != "" {
		q = q.Where("?TableAlias.email LIKE ?", "%"+filter.Search+"%")
	}
	if filter.OnboardingCompleted != nil {
		q = q.Where("?TableAlias.onboarding_completed = ?", *filter.OnboardingCompleted)
	}

	total, err := q.
		Order("created_at DESC", "id ASC").
		Limit(filter.Limit).
		Offset(filter.offset()).
		ScanAndCount(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, internalError(err, "failed to list users")
	}

	return records, total, nil
}

type onboardingAggregate struct {
	Total           int     `bun:"total"`
	Completed       int     `bun:"completed"`
	AvgCompleteness float64 `bun:"avg_completeness"`
}

type stepCount struct {
	Step  int `bun:"step"`
	Count int `bun:"count"`
}

func (a *users) Stats(ctx context.Context) (*OnboardingStats, error) {
	agg := onboardingAggregate{}
	err := a.db.NewSelect().
		Model((*User)(nil)).
		ColumnExpr("COUNT(*) AS total").
		ColumnExpr("COALESCE(SUM(CASE WHEN ?TableAlias.onboarding_completed THEN 1 ELSE 0 END), 0) AS completed").
		ColumnExpr("COALESCE(AVG(CASE WHEN ?TableAlias.onboarding_skipped THEN NULL ELSE ?TableAlias.profile_completeness END), 0) AS avg_completeness").
		Scan(ctx, &agg)
	if err != nil {
		return nil, internalError(err, "failed to aggregate users")
	}

	steps := []stepCount{}
	err = a.db.NewSelect().
		Model((*User)(nil)).
		ColumnExpr("?TableAlias.onboarding_step AS step").
		ColumnExpr("COUNT(*) AS count").
		GroupExpr("?TableAlias.onboarding_step").
		Scan(ctx, &steps)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to aggregate onboarding steps")
	}

	stats := &OnboardingStats{
		TotalUsers:          agg.Total,
		CompletedOnboarding: agg.Completed,
		AverageCompleteness: agg.AvgCompleteness,
		StepDistribution:    map[int]int{},
	}
	for _, s := range steps {
		stats.StepDistribution[s.Step] = s.Count
	}
	return stats, nil
}

// PruneExpiredRefreshTokens strips expired refresh token entries from every
// stored user and returns how many entries were removed. Each write is
// conditioned on the version that was read, so a user saved in between keeps
// its row untouched until the next pass.
func (a *users) PruneExpiredRefreshTokens(ctx context.Context, now time.Time) (int, error) {
	removed := 0

	for offset := 0; ; offset += pruneBatchSize {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		batch := []*User{}
		err := a.db.NewSelect().
			Model(&batch).
			Column("id", "refresh_tokens", "version").
			Order("id ASC").
			Limit(pruneBatchSize).
			Offset(offset).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return removed, internalError(err, "failed to load refresh tokens")
		}

		for _, u := range batch {
			n := u.CleanExpiredTokens(now)
			if n == 0 {
				continue
			}

			prevVersion := u.Version
			u.Version = prevVersion + 1

			res, err := a.db.NewUpdate().
				Model(u).
				Column("refresh_tokens", "version").
				WherePK().
				Where("?TableAlias.version = ?", prevVersion).
				Exec(ctx)
			if err != nil {
				return removed, internalError(err, "failed to prune refresh tokens")
			}
			if affected, err := res.RowsAffected(); err == nil && affected == 0 {
				continue
			}
			removed += n
		}

		if len(batch) < pruneBatchSize {
			return removed, nil
		}
	}
}

func (a *users) mapReadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return ErrUserNotFound
	}
	return internalError(err, "failed to load user")
}

func prepareUserDefaults(user *User, now time.Time) {
	if user == nil {
		return
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	user.Email = NormalizeEmail(user.Email)

	if user.RefreshTokens == nil {
		user.RefreshTokens = []RefreshTokenEntry{}
	}

	now = now.UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	refreshDataQuality(user)
}
