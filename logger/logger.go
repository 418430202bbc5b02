// Package logger defines the structured logger used by the library
// components, so that applications can plug in their logging library of choice.
package logger

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// With returns the Field for key and value.
func With(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Err returns the Field carrying err under the "error" key.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Logger writes structured entries at debug, info and error level.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Debug logs on l at debug level. A nil l discards the entry.
func Debug(l Logger, msg string, fields ...Field) {
	if l != nil {
		l.Debug(msg, fields...)
	}
}

// Info logs on l at info level. A nil l discards the entry.
func Info(l Logger, msg string, fields ...Field) {
	if l != nil {
		l.Info(msg, fields...)
	}
}

// Error logs on l at error level. A nil l discards the entry.
func Error(l Logger, msg string, fields ...Field) {
	if l != nil {
		l.Error(msg, fields...)
	}
}

// WithFields returns a Logger that adds the fields to every entry,
// or nil if the provided logger is nil.
func WithFields(l Logger, fields ...Field) Logger {
	if l == nil {
		return nil
	}

	return fieldsLogger{next: l, fields: fields}
}

type fieldsLogger struct {
	next   Logger
	fields []Field
}

func (l fieldsLogger) merge(fields []Field) []Field {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)

	return append(merged, fields...)
}

func (l fieldsLogger) Debug(msg string, fields ...Field) { l.next.Debug(msg, l.merge(fields)...) }
func (l fieldsLogger) Info(msg string, fields ...Field)  { l.next.Info(msg, l.merge(fields)...) }
func (l fieldsLogger) Error(msg string, fields ...Field) { l.next.Error(msg, l.merge(fields)...) }
