// Package logger configures the process-wide structured logger.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON-encoded SugaredLogger writing to stdout at the given
// level. Unknown level strings fall back to info.
func New(level string) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(os.Stdout),
		Level(level),
	)
	return zap.New(core).Sugar()
}

// Level maps a level string (as used by the LOG_LEVEL environment variable)
// to a zap level, defaulting to info.
func Level(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
