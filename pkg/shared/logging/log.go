// Package logging provides the structured logger shared by every windowing
// operator, plus the standard context.Context propagation helpers used to
// hand a request-scoped logger down through operator construction.
package logging

import (
	"context"
	"os"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a new zap.SugaredLogger. Set WINDOWCORE_DEBUG=true to
// get human-readable development output instead of the production JSON
// encoder. WINDOWCORE_LOG_LEVEL (debug/info/warn/error/dpanic/panic/fatal;
// default debug in development mode, info in production) raises or lowers
// verbosity independently of that choice; an unparseable value is ignored
// and the mode's default level is kept.
func NewLogger() *zap.SugaredLogger {
	var config zap.Config
	debugMode, ok := os.LookupEnv("WINDOWCORE_DEBUG")
	if ok && debugMode == "true" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.OutputPaths = []string{"stdout"}
	if levelStr, ok := os.LookupEnv("WINDOWCORE_LOG_LEVEL"); ok {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(levelStr)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named("windowcore").Sugar()
}

// Tag returns a copy of logger annotated with the operator name and
// instance ID that metrics.NewRecorder labels its samples with, so a log
// line and a metric series emitted by the same running grouper, sliding
// combiner, or session operator instance can be correlated by grepping
// either field. Operator constructors call this on cfg.Logger whether it
// was left to default to NewLogger or supplied by the caller.
func Tag(logger *zap.SugaredLogger, operatorName, instanceID string) *zap.SugaredLogger {
	return logger.With("operator", operatorName, "instance", instanceID)
}

type loggerKey struct{}

// WithLogger returns a copy of parent context in which the
// value associated with logger key is the supplied logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger in the context, falling back to a fresh
// default logger when none was attached.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return NewLogger()
}
