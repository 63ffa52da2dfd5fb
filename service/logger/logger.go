package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerContextKeyType string

const loggerContextKey loggerContextKeyType = "logger.entry"

var defaultLogger = logrus.New()

// For returns a log entry for ctx. Fields added with NewContextWithFields
// are carried on every entry logged through the returned value. A nil ctx
// returns the default entry.
func For(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return logrus.NewEntry(defaultLogger)
	}
	if entry, ok := ctx.Value(loggerContextKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(defaultLogger)
}

// NewContextWithFields returns a ctx whose logger carries the given fields
// in addition to any fields already present.
func NewContextWithFields(ctx context.Context, fields logrus.Fields) context.Context {
	entry := For(ctx).WithFields(fields)
	return context.WithValue(ctx, loggerContextKey, entry)
}

// SetLoggerOptions applies options to the process-wide logger.
func SetLoggerOptions(optionsF func(logger *logrus.Logger)) {
	optionsF(defaultLogger)
}
