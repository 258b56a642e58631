// Package zlog provides the process-wide structured logger. Log files are
// rotated under the configured log directory; the console gets a readable
// development encoding. Before Init the logger is a no-op, so library
// packages can log unconditionally.
package zlog

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init builds the global logger writing to dir/longform.log and stderr.
// Debug lowers the level and enables caller annotations.
func Init(dir string, debug bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "longform.log"),
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(os.Stderr), level),
	)

	opts := []zap.Option{}
	if debug {
		opts = append(opts, zap.AddCaller())
	}

	mu.Lock()
	logger = zap.New(core, opts...)
	mu.Unlock()
	return nil
}

// L returns the current global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L().Sync()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { L().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { L().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }
