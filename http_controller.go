package slimexpress

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Pinger reports database health
type Pinger interface {
	Ping(ctx context.Context) error
}

type validatable interface {
	Validate() error
}

// Controller wires the services to router handlers
type Controller struct {
	Auth       *AuthService
	Onboarding *OnboardingService
	Admin      *AdminService
	Tokens     *TokenService
	DB         Pinger
	Logger     Logger
	Debug      bool
}

func (ctrl *Controller) logger() Logger {
	return resolveLogger(ctrl.Logger)
}

// RegisterRoutes mounts every endpoint on app
func RegisterRoutes[T any](app router.Router[T], ctrl *Controller) {
	protected := NewAuthMiddleware(ctrl.Tokens)

	app.Get("/health", ctrl.Health).SetName("health.get")
	app.Get("/health/ready", ctrl.Ready).SetName("health.ready.get")

	auth := app.Group("/auth")
	auth.Post("/signup", ctrl.Signup).SetName("auth.signup.post")
	auth.Post("/signin", ctrl.Signin).SetName("auth.signin.post")
	auth.Post("/refresh-token", ctrl.RefreshToken).SetName("auth.refresh.post")

	users := app.Group("/users")
	users.Get("/me", ctrl.Me, protected).SetName("users.me.get")
	users.Post("/logout", ctrl.Logout, protected).SetName("users.logout.post")
	users.Post("/logout-all", ctrl.LogoutAll, protected).SetName("users.logout-all.post")
	users.Put("/password", ctrl.ChangePassword, protected).SetName("users.password.put")
	users.Put("/email", ctrl.ChangeEmail, protected).SetName("users.email.put")

	onboarding := app.Group("/onboarding")
	onboarding.Get("/status", ctrl.OnboardingStatus, protected).SetName("onboarding.status.get")
	onboarding.Get("/profile", ctrl.OnboardingProfile, protected).SetName("onboarding.profile.get")
	onboarding.Post("/complete", ctrl.CompleteOnboarding, protected).SetName("onboarding.complete.post")
	onboarding.Post("/skip", ctrl.SkipOnboarding, protected).SetName("onboarding.skip.post")
	onboarding.Put("/:section", ctrl.UpdateSection, protected).SetName("onboarding.section.put")

	if ctrl.Admin == nil {
		return
	}

	adminOnly := func(next router.HandlerFunc) router.HandlerFunc {
		return protected(ctrl.requireAdmin(next))
	}

	admin := app.Group("/admin")
	admin.Get("/users", ctrl.ListUsers, adminOnly).SetName("admin.users.list")
	admin.Get("/users/:id", ctrl.GetUser, adminOnly).SetName("admin.users.get")
	admin.Delete("/users/:id", ctrl.DeleteUser, adminOnly).SetName("admin.users.delete")
	admin.Get("/stats", ctrl.Stats, adminOnly).SetName("admin.stats.get")
}

func (ctrl *Controller) Health(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{"status": "ok"})
}

func (ctrl *Controller) Ready(ctx router.Context) error {
	if ctrl.DB != nil {
		if err := ctrl.DB.Ping(ctx.Context()); err != nil {
			ctrl.logger().Error("readiness check failed", "error", err)
			return ctx.JSON(http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		}
	}
	return ctx.JSON(router.StatusOK, map[string]any{"status": "ready"})
}

func (ctrl *Controller) Signup(ctx router.Context) error {
	payload := SignupRequest{}
	if err := bindAndValidate(ctx, &payload); err != nil {
		return err
	}

	result, err := ctrl.Auth.Register(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	ctrl.logger().Debug("user registered", "user", print.MaybePrettyJSON(result.User.Summary()))

	return ctx.JSON(http.StatusCreated, authResponse("User registered successfully", result))
}

func (ctrl *Controller) Signin(ctx router.Context) error {
	payload := SigninRequest{}
	if err := bindAndValidate(ctx, &payload); err != nil {
		return err
	}

	result, err := ctrl.Auth.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, authResponse("Signed in successfully", result))
}

func (ctrl *Controller) RefreshToken(ctx router.Context) error {
	payload := RefreshTokenRequest{}
	if err := bindAndValidate(ctx, &payload); err != nil {
		return err
	}

	result, err := ctrl.Auth.RefreshAccessToken(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"tokens":  result,
	})
}

func (ctrl *Controller) Me(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	user, err := ctrl.Auth.Me(ctx.Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "user": user})
}

func (ctrl *Controller) Logout(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	payload := LogoutRequest{}
	if err := bindAndValidate(ctx, &payload); err != nil {
		return err
	}

	if err := ctrl.Auth.Logout(ctx.Context(), userID, payload.RefreshToken); err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (ctrl *Controller) LogoutAll(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	if err := ctrl.Auth.LogoutAll(ctx.Context(), userID); err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "message": "Logged out from all devices"})
}

func (ctrl *Controller) ChangePassword(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	payload := ChangePasswordRequest{}
	if err := bindAndValidate(ctx, &payload); err != nil {
		return err
	}

	if err := ctrl.Auth.ChangePassword(ctx.Context(), userID, payload.CurrentPassword, payload.NewPassword); err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed, please sign in again",
	})
}

func (ctrl *Controller) ChangeEmail(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	payload := ChangeEmailRequest{}
	if err := bindAndValidate(ctx, &payload); err != nil {
		return err
	}

	user, err := ctrl.Auth.ChangeEmail(ctx.Context(), userID, payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "user": user.Summary()})
}

func (ctrl *Controller) UpdateSection(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	section, err := ParseSection(ctx.Param("section"))
	if err != nil {
		return err
	}

	raw := json.RawMessage{}
	if err := ctx.Bind(&raw); err != nil {
		return NewValidationError("invalid request body", map[string]string{"body": err.Error()})
	}

	patch, err := DecodeSectionPatch(section, raw)
	if err != nil {
		return err
	}

	ctrl.logger().Debug("onboarding section update",
		"user_id", userID.String(),
		"section", string(section),
		"patch", print.MaybePrettyJSON(patch),
	)

	result, err := ctrl.Onboarding.UpdateSection(ctx.Context(), userID, patch)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":          true,
		"message":          string(section) + " updated successfully",
		"section":          result.Data,
		"onboardingStatus": result.Status,
	})
}

func (ctrl *Controller) CompleteOnboarding(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	user, err := ctrl.Onboarding.Complete(ctx.Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":          true,
		"message":          "Onboarding completed",
		"onboardingStatus": StatusOf(user),
	})
}

func (ctrl *Controller) SkipOnboarding(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	user, err := ctrl.Onboarding.Skip(ctx.Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success":          true,
		"message":          "Onboarding skipped",
		"onboardingStatus": StatusOf(user),
	})
}

func (ctrl *Controller) OnboardingStatus(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	status, err := ctrl.Onboarding.Status(ctx.Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "onboardingStatus": status})
}

func (ctrl *Controller) OnboardingProfile(ctx router.Context) error {
	userID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	profile, err := ctrl.Onboarding.Profile(ctx.Context(), userID)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "profile": profile})
}

func (ctrl *Controller) requireAdmin(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		userID, err := CurrentUserID(ctx)
		if err != nil {
			return err
		}

		if _, err := ctrl.Admin.RequireAdmin(ctx.Context(), userID); err != nil {
			if HasTextCode(err, TextCodeUserNotFound) {
				return ErrForbidden
			}
			return err
		}

		return next(ctx)
	}
}

func (ctrl *Controller) ListUsers(ctx router.Context) error {
	filter := UserFilter{
		Page:   queryInt(ctx, "page", 1),
		Limit:  queryInt(ctx, "limit", 20),
		Search: ctx.Query("search"),
	}

	if raw := strings.TrimSpace(ctx.Query("onboardingCompleted")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return NewValidationError("invalid query", map[string]string{
				"onboardingCompleted": "must be true or false",
			})
		}
		filter.OnboardingCompleted = &v
	}

	page, err := ctrl.Admin.ListUsers(ctx.Context(), filter)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "data": page})
}

func (ctrl *Controller) GetUser(ctx router.Context) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	user, err := ctrl.Admin.GetUser(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "user": user})
}

func (ctrl *Controller) DeleteUser(ctx router.Context) error {
	actorID, err := CurrentUserID(ctx)
	if err != nil {
		return err
	}

	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := ctrl.Admin.DeleteUser(ctx.Context(), actorID, id); err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "message": "User deleted"})
}

func (ctrl *Controller) Stats(ctx router.Context) error {
	stats, err := ctrl.Admin.Stats(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, map[string]any{"success": true, "stats": stats})
}

func authResponse(message string, result *AuthResult) map[string]any {
	return map[string]any{
		"success":          true,
		"message":          message,
		"token":            result.Tokens.AccessToken,
		"refreshToken":     result.Tokens.RefreshToken,
		"expiresIn":        result.Tokens.ExpiresIn,
		"refreshExpiresIn": result.Tokens.RefreshExpiresIn,
		"user":             result.User.Summary(),
	}
}

func bindAndValidate(ctx router.Context, dst validatable) error {
	if err := ctx.Bind(dst); err != nil {
		return NewValidationError("invalid request body", map[string]string{"body": err.Error()})
	}
	if err := dst.Validate(); err != nil {
		return AsValidationError(err, "invalid request")
	}
	return nil
}

func queryInt(ctx router.Context, name string, def int) int {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func paramUUID(ctx router.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		return uuid.Nil, NewValidationError("invalid identifier", map[string]string{name: "must be a UUID"})
	}
	return id, nil
}
