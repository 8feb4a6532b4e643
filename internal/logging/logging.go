// internal/logging/logging.go
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	logger  = zap.NewNop()
	rotator *lumberjack.Logger
)

// Init builds the process logger. Console output goes to stderr so that
// reports printed on stdout stay clean; when logPath is set, JSON lines are
// also written to a size-rotated file.
func Init(logPath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		rotator = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), level))
	}

	logger = zap.New(zapcore.NewTee(cores...))
	return nil
}

// Close flushes the logger and reverts to a no-op logger.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeLocked()
}

func closeLocked() error {
	_ = logger.Sync()
	logger = zap.NewNop()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

// L returns the current process logger.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// LogEvent logs a formatted informational message.
func LogEvent(format string, args ...any) {
	L().Info(fmt.Sprintf(format, args...))
}

// LogRequest logs one completed HTTP exchange.
func LogRequest(requestID, method, path string, status int, elapsed time.Duration) {
	L().Info("request",
		zap.String("request_id", requestID),
		zap.String("method", strings.ToUpper(strings.TrimSpace(method))),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
	)
}

// LogPayload logs a payload at debug level, rendered with formatPayload.
func LogPayload(msg string, payload any) {
	L().Debug(msg, zap.String("payload", formatPayload(payload)))
}

func formatPayload(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "null"
	case string:
		if strings.TrimSpace(v) == "" {
			return `""`
		}
		return v
	case []byte:
		if len(v) == 0 {
			return "[]"
		}
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
