package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"biosignal-service/internal/config"
	"biosignal-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(utils.RequestIDKey))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Body.String())
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	require.Len(t, rec.Body.String(), 36)
	require.Equal(t, rec.Body.String(), rec.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(RequestIDMiddleware(), RecoveryMiddleware(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) {
		panic("decoder exploded")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	require.Equal(t, "req-1", body.RequestID)

	entries := logs.FilterMessage("Handler panicked").All()
	require.Len(t, entries, 1)
	require.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
}

func TestLoggingMiddlewareSkipsHealthyProbes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := gin.New()
	router.Use(LoggingMiddleware(utils.NewServiceLogger(zap.New(core), "http-server")))
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/monitor/status", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/live", nil))
	require.Zero(t, logs.Len())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/monitor/status", nil))
	entries := logs.FilterMessage("API request").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	require.Equal(t, int64(http.StatusServiceUnavailable), entries[0].ContextMap()["status_code"])
}

func TestCORSMiddlewareAllowsConfiguredOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware(&config.SecurityConfig{AllowedOrigins: []string{"http://dashboard.local"}}))
	router.GET("/api/v1/monitor/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/monitor/metrics", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://dashboard.local", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
