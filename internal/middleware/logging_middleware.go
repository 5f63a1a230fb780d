// internal/middleware/logging_middleware.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"biosignal-service/internal/utils"
)

func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		// Probes would drown everything else
		if c.Writer.Status() < 400 && isProbe(c.Request.URL.Path) {
			return
		}

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(startTime),
		)
	}
}

func isProbe(path string) bool {
	return strings.HasSuffix(path, "/live") || strings.HasSuffix(path, "/ready")
}
