// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"biosignal-service/internal/monitor"
	"biosignal-service/internal/repository"
	"biosignal-service/internal/service"
)

// requestTimeout bounds how long a request waits on the acquisition loop
const requestTimeout = 5 * time.Second

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, monitor.ErrSessionActive),
		errors.Is(err, monitor.ErrSessionInactive),
		errors.Is(err, service.ErrAlreadyConnected):
		return http.StatusConflict
	case errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotConnected),
		errors.Is(err, service.ErrServiceStopped),
		errors.Is(err, service.ErrStoreUnavailable),
		errors.Is(err, service.ErrNoPortFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
