package slimexpress

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Text codes rendered to clients. They are stable API.
const (
	TextCodeValidation           = "VALIDATION_ERROR"
	TextCodeDuplicateEntry       = "DUPLICATE_ENTRY"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeInvalidToken         = "INVALID_TOKEN"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeWrongTokenType       = "WRONG_TOKEN_TYPE"
	TextCodeTokenMissing         = "TOKEN_MISSING"
	TextCodeRefreshTokenRevoked  = "REFRESH_TOKEN_REVOKED"
	TextCodeUserNotFound         = "USER_NOT_FOUND"
	TextCodeIncompleteSections   = "INCOMPLETE_SECTIONS"
	TextCodeInvalidCurrentPasswd = "INVALID_CURRENT_PASSWORD"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeConcurrentUpdate     = "CONCURRENT_UPDATE"
	TextCodeRateLimited          = "RATE_LIMITED"
	TextCodeInternal             = "INTERNAL_ERROR"
)

var (
	// ErrDuplicateEntry is returned when an email is already registered
	ErrDuplicateEntry = goerrors.New("email is already registered", goerrors.CategoryConflict).
				WithTextCode(TextCodeDuplicateEntry).
				WithCode(goerrors.CodeBadRequest)

	// ErrInvalidCredentials is shared by "unknown email" and "wrong password"
	ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
				WithTextCode(TextCodeInvalidCredentials).
				WithCode(goerrors.CodeUnauthorized)

	ErrInvalidToken = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
			WithTextCode(TextCodeInvalidToken).
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenExpired = goerrors.New("authentication token has expired", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeUnauthorized)

	ErrWrongTokenType = goerrors.New("wrong token type", goerrors.CategoryAuth).
				WithTextCode(TextCodeWrongTokenType).
				WithCode(goerrors.CodeUnauthorized)

	ErrTokenMissing = goerrors.New("missing or malformed authorization header", goerrors.CategoryAuth).
			WithTextCode(TextCodeTokenMissing).
			WithCode(goerrors.CodeUnauthorized)

	// ErrRefreshTokenRevoked means the token verified but is no longer stored for the user
	ErrRefreshTokenRevoked = goerrors.New("refresh token has been revoked or is unknown", goerrors.CategoryAuth).
				WithTextCode(TextCodeRefreshTokenRevoked).
				WithCode(goerrors.CodeUnauthorized)

	ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
			WithTextCode(TextCodeUserNotFound).
			WithCode(goerrors.CodeNotFound)

	ErrIncompleteSections = goerrors.New("required onboarding sections are incomplete", goerrors.CategoryValidation).
				WithTextCode(TextCodeIncompleteSections).
				WithCode(goerrors.CodeBadRequest)

	ErrInvalidCurrentPassword = goerrors.New("current password is incorrect", goerrors.CategoryValidation).
					WithTextCode(TextCodeInvalidCurrentPasswd).
					WithCode(goerrors.CodeBadRequest)

	ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(goerrors.CodeForbidden)

	ErrConcurrentUpdate = goerrors.New("user was modified by another request", goerrors.CategoryConflict).
				WithTextCode(TextCodeConcurrentUpdate).
				WithCode(goerrors.CodeConflict)

	ErrRateLimited = goerrors.New("too many requests, try again later", goerrors.CategoryRateLimit).
			WithTextCode(TextCodeRateLimited).
			WithCode(http.StatusTooManyRequests)
)

// HasTextCode reports whether err carries the given go-errors text code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// NewValidationError builds a VALIDATION_ERROR with per field messages.
func NewValidationError(message string, fields map[string]string) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest)
	if len(fields) > 0 {
		err = err.WithMetadata(map[string]any{"fields": fields})
	}
	return err
}

// AsValidationError converts ozzo validation output into a VALIDATION_ERROR.
// Errors that are not validation.Errors are returned untouched.
func AsValidationError(err error, message string) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return NewValidationError(message, FormatValidationErrors(verrs))
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return internalError(err, "validation failed")
	}

	return NewValidationError(err.Error(), nil)
}

// FormatValidationErrors flattens nested ozzo errors into dotted field names.
func FormatValidationErrors(verrs validation.Errors) map[string]string {
	out := map[string]string{}
	flattenValidation("", verrs, out)
	return out
}

func flattenValidation(prefix string, verrs validation.Errors, out map[string]string) {
	keys := make([]string, 0, len(verrs))
	for k := range verrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		var nested validation.Errors
		if errors.As(verrs[k], &nested) {
			flattenValidation(name, nested, out)
			continue
		}
		out[name] = verrs[k].Error()
	}
}

func incompleteSectionsError(missing []Section) *goerrors.Error {
	names := make([]string, 0, len(missing))
	for _, s := range missing {
		names = append(names, string(s))
	}
	return ErrIncompleteSections.Clone().
		WithMetadata(map[string]any{"missing": names})
}

func internalError(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if isPgUniqueViolation(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
