package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"consdocs/internal/http/middleware"
	"consdocs/internal/query"
	"consdocs/internal/storage"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal error details.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// mapQueryError translates query/storage sentinel errors into HTTP responses.
func mapQueryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		return writeError(c, fiber.StatusBadRequest, "EMPTY_QUERY", "query must not be empty")
	case errors.Is(err, query.ErrUnknownSystem):
		return writeError(c, fiber.StatusBadRequest, "UNKNOWN_SYSTEM", "unknown system category")
	case errors.Is(err, query.ErrInvalidThreshold):
		return writeError(c, fiber.StatusBadRequest, "INVALID_THRESHOLD", "threshold must be between 0 and 1")
	case errors.Is(err, query.ErrSemanticUnavailable):
		return writeError(c, fiber.StatusServiceUnavailable, "SEMANTIC_UNAVAILABLE", "semantic search is not configured")
	case errors.Is(err, storage.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
