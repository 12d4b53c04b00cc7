package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.SugaredLogger

func init() {
	Configure(os.Getenv("ENVIRONMENT"), os.Getenv("LOG_LEVEL"))
}

// Configure rebuilds the package logger. Development uses a console encoder
// with debug enabled; everything else logs JSON at info unless level says otherwise.
func Configure(environment, level string) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}
	if base != nil {
		_ = base.Sync()
	}
	base = l.Sugar()
}

// Replace swaps the underlying logger, mostly for tests that want to observe output.
func Replace(l *zap.Logger) {
	base = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func Info(format string, v ...interface{}) {
	base.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	base.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	base.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	base.Warnf(format, v...)
}

// Critical is reserved for ledger integrity failures. Operators alert on
// the "alert" field, so the process keeps running.
func Critical(format string, v ...interface{}) {
	base.With("alert", "integrity").Errorf("CRITICAL: "+format, v...)
}

// With returns a structured child logger.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return base.With(keysAndValues...)
}

func Sync() {
	_ = base.Sync()
}
