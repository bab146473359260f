package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"inbox_server/pkg/apperr"
	"inbox_server/pkg/logger"
	"inbox_server/pkg/metrics"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler is a centralized error handler for Fiber
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		response := ErrorResponse{
			Success:   false,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		var status int
		var appErr *apperr.AppError
		var fiberErr *fiber.Error

		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			response.Error = ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}

			log := logger.WithContext(c.UserContext()).With().
				Str("request_id", requestID).
				Str("error_code", appErr.Code).
				Err(appErr.Err).
				Logger()
			if status >= 500 {
				log.Error().Msgf("Internal error: %s", appErr.Message)
			} else {
				log.Warn().Msgf("Client error: %s", appErr.Message)
			}

		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			response.Error = ErrorDetail{
				Code:    mapHTTPStatusToCode(fiberErr.Code),
				Message: fiberErr.Message,
			}

		default:
			status = fiber.StatusInternalServerError
			response.Error = ErrorDetail{
				Code:    apperr.CodeInternalError,
				Message: "An unexpected error occurred",
			}

			l := logger.WithError(err)
			l.Error().
				Str("request_id", requestID).
				Str("stack", string(debug.Stack())).
				Msg("Unexpected error")
		}

		return c.Status(status).JSON(response)
	}
}

// RequestID middleware adds a unique request ID to each request
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs incoming requests and their responses
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID, _ := c.Locals("request_id").(string)

		err := c.Next()

		status := c.Response().StatusCode()
		metrics.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))

		log := logger.WithFields(map[string]any{
			"request_id":  requestID,
			"method":      c.Method(),
			"path":        c.Path(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"ip":          c.IP(),
		})

		switch {
		case status >= 500:
			log.Error().Msgf("Request failed: %s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn().Msgf("Request error: %s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info().Msgf("Request completed: %s %s -> %d", c.Method(), c.Path(), status)
		}

		return err
	}
}

// Recover middleware recovers from panics
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)

				log := logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				})
				log.Error().Msg("Panic recovered")

				err = c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
					Success:   false,
					RequestID: requestID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Error: ErrorDetail{
						Code:    apperr.CodeInternalError,
						Message: "An unexpected error occurred",
					},
				})
			}
		}()
		return c.Next()
	}
}

// SecurityHeaders adds security headers to all responses
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case 400:
		return apperr.CodeBadRequest
	case 404:
		return apperr.CodeNotFound
	case 405:
		return "METHOD_NOT_ALLOWED"
	case 409:
		return apperr.CodeBusy
	case 413:
		return "PAYLOAD_TOO_LARGE"
	case 422:
		return apperr.CodeValidationFailed
	case 429:
		return "RATE_LIMITED"
	case 500:
		return apperr.CodeInternalError
	case 502, 503, 504:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
