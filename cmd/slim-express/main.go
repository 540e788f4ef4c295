package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"

	slimexpress "github.com/MrGharbiii/slim-express"
	"github.com/MrGharbiii/slim-express/activitymap"
	"github.com/MrGharbiii/slim-express/config"
)

type App struct {
	cfg    *config.Config
	logger *slimexpress.SlogLogger
	db     *bun.DB
	repo   slimexpress.RepositoryManager
	srv    router.Server[*fiber.App]
	tokens *slimexpress.TokenService

	sweeper     *slimexpress.RefreshTokenSweeper
	sweeperDone <-chan struct{}
}

func (a *App) GetLogger(name string) slimexpress.Logger {
	return a.logger.With("component", name)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	app := &App{
		cfg:    cfg,
		logger: slimexpress.NewSlogLogger(newSlog(cfg)),
	}

	if cfg.Debug {
		app.logger.Debug("configuration loaded", "config", print.MaybePrettyJSON(redacted(cfg)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := WithPersistence(ctx, app); err != nil {
		app.logger.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app)

	app.sweeperDone = app.sweeper.Start(ctx)

	go func() {
		app.logger.Info("http server listening", "addr", cfg.HTTP.Addr, "env", cfg.Env)
		if err := app.srv.Serve(cfg.HTTP.Addr); err != nil {
			app.logger.Error("http server stopped", "error", err)
			cancel()
		}
	}()

	WaitExitSignal(ctx)
	cancel()

	shutdown(app)
}

func newSlog(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := slimexpress.OpenDB(app.cfg.DB.Driver, app.cfg.DB.DSN)
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if app.cfg.DB.AutoMigrate {
		if err := slimexpress.Migrate(ctx, db); err != nil {
			return err
		}
		app.logger.Info("migrations applied", "driver", app.cfg.DB.Driver)
	}

	app.db = db
	app.repo = slimexpress.NewRepositoryManager(db,
		slimexpress.WithUsersVersionCheck(app.cfg.DB.OptimisticLock),
	)
	app.repo.MustValidate()

	return nil
}

func WithHTTPServer(app *App) {
	cfg := app.cfg
	users := app.repo.Users()

	app.tokens = slimexpress.NewTokenService(slimexpress.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.JWTIssuer,
		Audience:   cfg.Auth.JWTAudience,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	}, slimexpress.WithTokenLogger(app.GetLogger("tokens")))

	activity := slimexpress.LoggingActivitySink(app.GetLogger("activity"))
	if cfg.Activity.Format == "json" {
		activity = activitymap.NewJSONSink(os.Stdout)
	}

	authSvc := slimexpress.NewAuthService(users,
		slimexpress.NewBcryptHasher(cfg.Auth.HashCost),
		app.tokens,
		slimexpress.WithAuthLogger(app.GetLogger("auth")),
		slimexpress.WithAuthActivitySink(activity),
		slimexpress.WithAdminEmails(cfg.Auth.AdminEmails...),
		slimexpress.WithHashidUserIDs(cfg.Auth.HashidUserIDs),
	)

	onboardingSvc := slimexpress.NewOnboardingService(users,
		slimexpress.WithOnboardingLogger(app.GetLogger("onboarding")),
		slimexpress.WithOnboardingActivitySink(activity),
	)

	adminSvc := slimexpress.NewAdminService(users,
		slimexpress.WithAdminLogger(app.GetLogger("admin")),
		slimexpress.WithAdminActivitySink(activity),
	)

	app.sweeper = slimexpress.NewRefreshTokenSweeper(users, cfg.Auth.SweepInterval,
		slimexpress.WithSweeperLogger(app.GetLogger("sweeper")),
	)

	ctrl := &slimexpress.Controller{
		Auth:       authSvc,
		Onboarding: onboardingSvc,
		Admin:      adminSvc,
		Tokens:     app.tokens,
		DB:         app.repo,
		Logger:     app.GetLogger("http"),
		Debug:      cfg.Debug,
	}

	app.srv = slimexpress.NewHTTPApp(slimexpress.HTTPOptions{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		BodyLimit:    cfg.HTTP.BodyLimit,
		AllowOrigins: cfg.CORS.AllowOrigins,
		RateLimitMax: cfg.RateLimit.Max,
		RateLimitTTL: cfg.RateLimit.Window,
		AccessLog:    slimexpress.StdoutAccessLog(),
		Debug:        cfg.Debug,
	}, ctrl)
}

// WaitExitSignal blocks until SIGINT/SIGTERM or ctx is cancelled
func WaitExitSignal(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		slog.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}
}

func shutdown(app *App) {
	if app.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := app.srv.Shutdown(ctx); err != nil {
			app.logger.Error("http shutdown", "error", err)
		}
		cancel()
	}
	if app.sweeperDone != nil {
		select {
		case <-app.sweeperDone:
		case <-time.After(10 * time.Second):
			app.logger.Warn("refresh token sweeper did not stop in time")
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("close database", "error", err)
		}
	}
	app.logger.Info("bye")
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = "********"
	}
	return out
}
