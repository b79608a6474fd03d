package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "console", "text":
		return FormatConsole
	default:
		return FormatJSON
	}
}

func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type Options struct {
	Level  string
	Format string
	App    string
}

// New arma el logger de la app. json va a stdout con timestamps ISO8601;
// console usa la config de desarrollo de zap.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	var cfg zap.Config
	if ParseFormat(opts.Format) == FormatConsole {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = level
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = level
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if app := strings.TrimSpace(opts.App); app != "" {
		l = l.With(zap.String("app", app))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		l = l.With(zap.String("hostname", hostname))
	}
	return l, nil
}

// NewFromEnv crea logger desde env:
// - LOG_LEVEL=debug|info|warn|error (default info)
// - LOG_FORMAT=json|console (default json)
// - APP_NAME=dose-mate (opcional)
func NewFromEnv() (*zap.Logger, error) {
	return New(Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		App:    os.Getenv("APP_NAME"),
	})
}
