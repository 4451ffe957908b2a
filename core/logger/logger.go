// Package logger configures the application-wide zap logger and carries the
// emitting component's name through the context.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the application-wide logger.
var Logger *zap.Logger

type componentNameKeyType string

const componentNameKey componentNameKeyType = "componentName"

func init() {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	var err error
	Logger, err = config.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(Logger)
}

// SetLevel adjusts the global log level at runtime (driven by config).
func SetLevel(level string) {
	var l zapcore.Level
	if err := l.Set(level); err != nil {
		return
	}
	Logger = Logger.WithOptions(zap.IncreaseLevel(l))
	zap.ReplaceGlobals(Logger)
}

// WithComponentName returns a context carrying the component name, attached
// to every log line emitted under it.
func WithComponentName(ctx context.Context, componentName string) context.Context {
	return context.WithValue(ctx, componentNameKey, componentName)
}

func componentField(ctx context.Context) zap.Field {
	if name, ok := ctx.Value(componentNameKey).(string); ok {
		return zap.String("component", name)
	}
	return zap.Skip()
}

// Debug logs at debug level with the context's component name.
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Debug(msg, append(fields, componentField(ctx))...)
}

// Info logs at info level with the context's component name.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Info(msg, append(fields, componentField(ctx))...)
}

// Warn logs at warn level with the context's component name.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Warn(msg, append(fields, componentField(ctx))...)
}

// Error logs at error level with the context's component name.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Logger.Error(msg, append(fields, componentField(ctx))...)
}
