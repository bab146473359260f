package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"inbox_server/pkg/apperr"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// APIError represents a standard API error
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse sends data in the standard envelope.
func SuccessResponse(c *fiber.Ctx, status int, data interface{}) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// AppErrorResponse handles apperr.AppError and returns appropriate response
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(appErr.Status).JSON(APIResponse{
		Success:   false,
		Error:     &APIError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// parseBody decodes the JSON body or returns a BAD_REQUEST error.
func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	return nil
}
