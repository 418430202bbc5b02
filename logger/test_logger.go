package logger

import (
	"fmt"
	"strings"
	"testing"
)

var _ Logger = Test{}

// Test is a logger.Logger implementation using a testing.TB instance.
type Test struct{ tb testing.TB }

// NewTest returns a new logger using the provided testing.TB instance.
func NewTest(tb testing.TB) Test {
	return Test{tb: tb}
}

func (t Test) log(level, msg string, fields []Field) {
	t.tb.Helper()

	var sb strings.Builder

	for _, field := range fields {
		fmt.Fprintf(&sb, " %s=%v", field.Key, field.Value)
	}

	t.tb.Logf("[%s] %s%s", level, msg, sb.String())
}

// Debug uses t.Logf to print a debug message.
func (t Test) Debug(msg string, fields ...Field) { t.log("debug", msg, fields) }

// Info uses t.Logf to print an info message.
func (t Test) Info(msg string, fields ...Field) { t.log("info", msg, fields) }

// Error uses t.Logf to print an error message.
func (t Test) Error(msg string, fields ...Field) { t.log("error", msg, fields) }
