// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"biosignal-service/internal/config"
)

const defaultLogFile = "./logs/biosignal-service.log"

// NewLogger builds the process logger from the logging section. Output is
// stdout, stderr, or a file path rotated by lumberjack.
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	sink, err := logSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	core := zapcore.NewCore(logEncoder(cfg.Format), sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func logEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	if format == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	// Sample timestamps matter at 125 Hz, second resolution is not enough
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func logSink(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	path := cfg.Output
	if path == "" {
		path = defaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}), nil
}

// CloseLogger flushes buffered entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}

// LoggerWithRequestID scopes a logger to one HTTP request
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String("request_id", requestID))
}

// SourceLogger is bound to one open byte source
type SourceLogger struct {
	*zap.Logger
}

func NewSourceLogger(baseLogger *zap.Logger, sourceType, description string) *SourceLogger {
	return &SourceLogger{
		Logger: baseLogger.With(
			zap.String("component", "source"),
			zap.String("source_type", sourceType),
			zap.String("source", description),
		),
	}
}

// LogConnection records an open or close of the source
func (sl *SourceLogger) LogConnection(action string, success bool, err error) {
	if err != nil {
		sl.Error("Source "+action+" failed", zap.Bool("success", success), zap.Error(err))
		return
	}
	sl.Info("Source "+action, zap.Bool("success", success))
}

// LogReadFailure records a poll cycle that was abandoned after a read error
func (sl *SourceLogger) LogReadFailure(err error, consecutive int) {
	sl.Warn("Poll cycle aborted",
		zap.Error(err),
		zap.Int("consecutive_failures", consecutive),
	)
}

// ServiceLogger tags entries with the owning component
type ServiceLogger struct {
	*zap.Logger
}

func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	return &ServiceLogger{
		Logger: baseLogger.With(
			zap.String("component", "service"),
			zap.String("service", serviceName),
		),
	}
}

// LogServiceStart logs the effective settings. Credentials are left out.
func (sl *ServiceLogger) LogServiceStart(version string, cfg *config.Config) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.String("environment", cfg.App.Environment),
		zap.String("listen", cfg.Server.Host+":"+cfg.Server.Port),
		zap.String("source_type", cfg.Source.Type),
		zap.String("serial_port", cfg.Serial.Port),
		zap.Int("baud_rate", cfg.Serial.BaudRate),
		zap.Int("sampling_rate", cfg.Acquisition.SamplingRate),
		zap.Duration("session_duration", cfg.Acquisition.SessionDuration),
		zap.Bool("database_enabled", cfg.Database.Enabled),
	)
}

func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// LogAPIRequest picks the level from the response status
func (sl *ServiceLogger) LogAPIRequest(method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	switch {
	case statusCode >= 500:
		level = zapcore.ErrorLevel
	case statusCode >= 400:
		level = zapcore.WarnLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
			zap.String("client_ip", clientIP),
			zap.String("user_agent", userAgent),
		)
	}
}

// LogDatabaseQuery logs at debug, or at error when the query failed
func (sl *ServiceLogger) LogDatabaseQuery(query string, args []interface{}, duration time.Duration, err error) {
	if err != nil {
		sl.Error("Database query failed", zap.String("query", query), zap.Duration("duration", duration), zap.Error(err))
		return
	}
	sl.Debug("Database query executed", zap.String("query", query), zap.Any("args", args), zap.Duration("duration", duration))
}
