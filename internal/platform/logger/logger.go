// Package logger adapts zap to contracts.Logger. Output goes to one or more
// zapcore.Core handlers, normally the ones registered under
// logger.handler.{name} in the resource registry.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jardisPsr/foundation/internal/platform/config"
	"github.com/jardisPsr/foundation/pkg/contracts"
	"github.com/jardisPsr/foundation/pkg/resource"
)

// ConsoleHandler is the handler name the bootstrap registers when no handler
// is present.
const ConsoleHandler = "console"

var _ contracts.Logger = (*Logger)(nil)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger writing to the given cores. Without cores it falls back
// to a single console core on stderr.
func New(cfg config.LogConfig, cores ...zapcore.Core) (*Logger, error) {
	if len(cores) == 0 {
		core, err := NewConsoleCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = []zapcore.Core{core}
	}
	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: z.Sugar()}, nil
}

// NewConsoleCore builds a stderr core. Production mode encodes JSON, anything
// else uses the human readable development encoder.
func NewConsoleCore(cfg config.LogConfig) (zapcore.Core, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Mode) {
	case "prod", "production":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	return zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level)), nil
}

// FromRegistry builds a logger from every zapcore.Core registered under
// logger.handler.*, in handler-name order. Entries of another type are
// skipped.
func FromRegistry(reg contracts.ResourceRegistry, cfg config.LogConfig) (*Logger, error) {
	handlers := resource.LoggerHandlers(reg)
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	cores := make([]zapcore.Core, 0, len(names))
	for _, name := range names {
		if core, ok := handlers[name].(zapcore.Core); ok {
			cores = append(cores, core)
		}
	}
	return New(cfg, cores...)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...any) contracts.Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...)}
}

var redactedKeys = []string{"password", "secret", "token", "dsn", "authorization"}

func sanitizeKVs(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		out = append(out, kv[i], sanitizeValue(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val any) any {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, k := range redactedKeys {
		if strings.Contains(key, k) {
			return "[REDACTED]"
		}
	}
	return val
}
