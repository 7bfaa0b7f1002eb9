// File: internal/observability/logger.go
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/focuswarden/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once
)

const ansiReset = "\x1b[0m"

// palette holds the color names the logger config accepts. Anything else
// prints the level uncolored.
var palette = map[string]string{
	"red":    "\x1b[31m",
	"green":  "\x1b[32m",
	"yellow": "\x1b[33m",
	"cyan":   "\x1b[36m",
}

// Initialize builds the global logger. Only the first call has any effect;
// the CLI calls it once per process from its pre-run hook.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)
		_ = level.UnmarshalText([]byte(cfg.Level))

		cores := []zapcore.Core{zapcore.NewCore(newEncoder(cfg.Format, cfg.Colors), console, level)}
		if cfg.LogFile != "" {
			cores = append(cores, fileCore(cfg, level))
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}
		logger := zap.New(zapcore.NewTee(cores...), opts...)
		if cfg.ServiceName != "" {
			logger = logger.Named(cfg.ServiceName)
		}
		globalLogger.Store(logger)
		zap.ReplaceGlobals(logger)
	})
}

// InitializeLogger logs to stderr so that audit reports and fixed HTML on
// stdout stay clean.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stderr))
}

// ResetForTest clears the global logger so the next Initialize takes effect.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// fileCore writes rotated JSON lines regardless of the console format.
func fileCore(cfg config.LoggerConfig, level zapcore.LevelEnabler) zapcore.Core {
	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
	return zapcore.NewCore(newEncoder("json", config.ColorConfig{}), sink, level)
}

func newEncoder(format string, colors config.ColorConfig) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format != "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = levelColors(colors)
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(name + ".") }
	return zapcore.NewConsoleEncoder(ec)
}

// levelColors resolves the configured names once. The panic and fatal
// levels borrow the error color unless they name their own.
func levelColors(c config.ColorConfig) zapcore.LevelEncoder {
	orError := func(name string) string {
		if name == "" {
			return c.Error
		}
		return name
	}
	codes := map[zapcore.Level]string{
		zapcore.DebugLevel:  palette[c.Debug],
		zapcore.InfoLevel:   palette[c.Info],
		zapcore.WarnLevel:   palette[c.Warn],
		zapcore.ErrorLevel:  palette[c.Error],
		zapcore.DPanicLevel: palette[orError(c.DPanic)],
		zapcore.PanicLevel:  palette[orError(c.Panic)],
		zapcore.FatalLevel:  palette[orError(c.Fatal)],
	}
	return func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if code := codes[l]; code != "" {
			enc.AppendString(code + l.CapitalString() + ansiReset)
			return
		}
		enc.AppendString(l.CapitalString())
	}
}

// GetLogger returns the global logger, or a development logger named
// "fallback" before Initialize has run.
func GetLogger() *zap.Logger {
	if logger := globalLogger.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Global logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !isTerminalSyncError(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// isTerminalSyncError matches the errors fsync returns for ttys and pipes.
func isTerminalSyncError(err error) bool {
	msg := err.Error()
	for _, s := range []string{"sync /dev/std", "invalid argument", "operation not supported", "inappropriate ioctl"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
