// Package zaplogger adapts go.uber.org/zap to the logger.Logger interface.
package zaplogger

import (
	"go.uber.org/zap"

	"github.com/get-eventually/tracker/logger"
)

// Logger is a zap.Logger usable as a logger.Logger.
type Logger zap.Logger

var _ logger.Logger = (*Logger)(nil)

func zapFields(fields []logger.Field) []zap.Field {
	out := make([]zap.Field, len(fields))

	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
		if err, ok := f.Value.(error); ok && f.Key == "error" {
			out[i] = zap.Error(err)
		}
	}

	return out
}

func (l *Logger) zap() *zap.Logger { return (*zap.Logger)(l) }

// Debug implements logger.Logger.
func (l *Logger) Debug(msg string, fields ...logger.Field) { l.zap().Debug(msg, zapFields(fields)...) }

// Info implements logger.Logger.
func (l *Logger) Info(msg string, fields ...logger.Field) { l.zap().Info(msg, zapFields(fields)...) }

// Error implements logger.Logger.
func (l *Logger) Error(msg string, fields ...logger.Field) { l.zap().Error(msg, zapFields(fields)...) }

// Wrap returns l as a Logger.
func Wrap(l *zap.Logger) *Logger {
	return (*Logger)(l)
}

// New builds a zap production Logger, or a development one
// when development is true.
func New(development bool) (*Logger, error) {
	build := zap.NewProduction
	if development {
		build = zap.NewDevelopment
	}

	l, err := build()
	if err != nil {
		return nil, err
	}

	return Wrap(l), nil
}
