// internal/utils/response.go
package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// APIResponse is the envelope every /api/v1 endpoint returns
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Meta      *ListMeta   `json:"meta,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError represents error information
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ListMeta describes a bounded list result
type ListMeta struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

func respond(c *gin.Context, statusCode int, body APIResponse) {
	body.Timestamp = time.Now().UTC()
	body.RequestID = c.GetString(RequestIDKey)
	c.JSON(statusCode, body)
}

// SuccessResponse wraps data in the success envelope
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	respond(c, statusCode, APIResponse{Success: true, Message: message, Data: data})
}

// ListResponse adds count and the applied limit so clients can page
func ListResponse(c *gin.Context, message string, data interface{}, count, limit int) {
	respond(c, http.StatusOK, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    &ListMeta{Count: count, Limit: limit},
	})
}

// ErrorResponse derives the error code from the status. err, when set,
// becomes the details field.
func ErrorResponse(c *gin.Context, statusCode int, message string, err error) {
	apiError := &APIError{Code: getErrorCode(statusCode), Message: message}
	if err != nil {
		apiError.Details = err.Error()
	}
	respond(c, statusCode, APIResponse{Message: message, Error: apiError})
}

// ValidationErrorResponse reports per-field problems as a 400
func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	respond(c, http.StatusBadRequest, APIResponse{
		Message: "Validation failed",
		Error:   &APIError{Code: "VALIDATION_ERROR", Message: "Request validation failed"},
		Data:    gin.H{"validation_errors": errors},
	})
}

// getErrorCode returns error code based on HTTP status
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusGatewayTimeout:
		return "TIMEOUT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
