package slimexpress

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const genericErrorMessage = "An unexpected server error occurred"

// ErrorBody is the error part of every failed response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// NewErrorHandler renders go-errors as JSON. Internal details are only sent
// to clients in debug mode; they are always logged.
func NewErrorHandler(logger Logger, debug bool) fiber.ErrorHandler {
	logger = resolveLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		richErr := toRichError(err)
		status := statusFor(richErr)

		args := []any{
			"status", status,
			"code", richErr.TextCode,
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID(c),
		}

		body := ErrorBody{
			Code:    richErr.TextCode,
			Message: richErr.Message,
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed", append(args, "error", err.Error())...)
			if !debug {
				body.Message = genericErrorMessage
			} else {
				body.Details = err.Error()
			}
		} else {
			if len(richErr.Metadata) > 0 {
				body.Details = richErr.Metadata
			}
			logger.Debug("request rejected", append(args, "details", print.MaybePrettyJSON(richErr.Metadata))...)
		}

		return c.Status(status).JSON(ErrorResponse{Success: false, Error: body})
	}
}

func toRichError(err error) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.TextCode == "" {
			richErr = richErr.Clone().WithTextCode(textCodeForCategory(richErr.Category))
		}
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "request timed out").
			WithTextCode("TIMEOUT").
			WithCode(http.StatusServiceUnavailable)
	}

	return internalError(err, genericErrorMessage)
}

func fromFiberError(fe *fiber.Error) *goerrors.Error {
	switch fe.Code {
	case fiber.StatusNotFound:
		return goerrors.New(fe.Message, goerrors.CategoryNotFound).
			WithTextCode("ROUTE_NOT_FOUND").
			WithCode(fe.Code)
	case fiber.StatusMethodNotAllowed:
		return goerrors.New(fe.Message, goerrors.CategoryBadInput).
			WithTextCode("METHOD_NOT_ALLOWED").
			WithCode(fe.Code)
	case fiber.StatusTooManyRequests:
		return ErrRateLimited
	case fiber.StatusRequestEntityTooLarge:
		return goerrors.New(fe.Message, goerrors.CategoryBadInput).
			WithTextCode("PAYLOAD_TOO_LARGE").
			WithCode(fe.Code)
	}

	if fe.Code >= http.StatusInternalServerError {
		return internalError(fe, genericErrorMessage)
	}

	return goerrors.New(fe.Message, goerrors.CategoryBadInput).
		WithTextCode(TextCodeValidation).
		WithCode(fe.Code)
}

func statusFor(richErr *goerrors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func textCodeForCategory(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return TextCodeValidation
	case goerrors.CategoryAuth:
		return TextCodeInvalidToken
	case goerrors.CategoryAuthz:
		return TextCodeForbidden
	case goerrors.CategoryNotFound:
		return TextCodeUserNotFound
	case goerrors.CategoryRateLimit:
		return TextCodeRateLimited
	default:
		return TextCodeInternal
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
