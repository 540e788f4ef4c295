// Package slimexpress is the backend of a fitness app: account
// authentication plus a multi-section onboarding questionnaire.
//
// Accounts:
//   - AuthService registers users, signs them in and hands out an access and
//     refresh token pair signed by TokenService. Refresh tokens are stored on
//     the user document, at most MaxRefreshTokens per user, and are revoked by
//     logout, logout-all and password changes.
//   - Login failures never reveal whether the email exists.
//
// Onboarding:
//   - A user fills five sections (basicInfo, lifestyle, medicalHistory, goals,
//     preferences). The first four are required; once all of them carry their
//     required fields onboarding completes automatically.
//   - ApplySectionUpdate, CompleteOnboarding and SkipOnboarding are pure
//     transitions over a copy of the user. OnboardingService loads, applies
//     and saves them so a failed save leaves nothing half written.
//
// Activity sinks:
//   - ActivitySink receives audit events for auth, onboarding and admin
//     actions. Sinks run best-effort; errors are logged and never fail the
//     request.
//
// HTTP:
//   - NewHTTPApp mounts the Controller routes through go-router's fiber
//     adapter. Handlers take a router.Context. Every failure is
//     a go-errors error rendered by NewErrorHandler as
//     {"success": false, "error": {"code", "message", "details"}}.
package slimexpress
