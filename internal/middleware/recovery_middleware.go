// internal/middleware/recovery_middleware.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biosignal-service/internal/utils"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope. Responses
// already on the wire, including upgraded WebSocket streams, are only logged.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log := utils.LoggerWithRequestID(logger, c.GetString(utils.RequestIDKey))
		log.Error("Handler panicked",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Bool("response_written", c.Writer.Written()),
			zap.Stack("stacktrace"),
		)

		if c.Writer.Written() {
			c.Abort()
			return
		}
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
		c.Abort()
	})
}
