package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/localshop/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status     int    `json:"status"`
	Code       string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message    string `json:"message"` // Human-readable message
	RequestID  string `json:"request_id,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"` // Seconds, on 429 only
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errRateLimited returns 429 with the Retry-After header and body field set.
func errRateLimited(c *fiber.Ctx, seconds int) error {
	reqID, _ := c.Locals("requestid").(string)
	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
	return c.Status(fiber.StatusTooManyRequests).JSON(APIError{
		Status:     fiber.StatusTooManyRequests,
		Code:       "rate_limited",
		Message:    "too many requests, please try again later",
		RequestID:  reqID,
		RetryAfter: seconds,
	})
}

// writeError maps a domain error onto its HTTP status.
func writeError(c *fiber.Ctx, err error) error {
	var rl *domain.RateLimitedError
	switch {
	case errors.As(err, &rl):
		return errRateLimited(c, rl.RetryAfterSeconds())
	case errors.Is(err, domain.ErrRateLimited):
		return errRateLimited(c, 1)
	case errors.Is(err, domain.ErrInvalidInput):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return newError(c, fiber.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return newError(c, fiber.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrResolutionFailed), errors.Is(err, domain.ErrLocationUnresolved):
		return newError(c, fiber.StatusUnprocessableEntity, "unresolvable_location", err.Error())
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return errInternal(c, "internal server error")
}

// ErrorHandler is the fiber.Config.ErrorHandler: errors escaping handlers
// and middleware still get the APIError body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		var code string
		switch fe.Code {
		case fiber.StatusNotFound:
			code = "not_found"
		case fiber.StatusMethodNotAllowed:
			code = "method_not_allowed"
		case fiber.StatusRequestTimeout:
			code = "timeout"
		case fiber.StatusRequestEntityTooLarge:
			code = "payload_too_large"
		default:
			if fe.Code < fiber.StatusInternalServerError {
				code = "bad_request"
			} else {
				code = "internal_error"
			}
		}
		return newError(c, fe.Code, code, fe.Message)
	}
	return writeError(c, err)
}
