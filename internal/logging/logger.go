// Package logging provides the structured Logger used across jrefetch and a
// loggo-backed implementation of it.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/juju/loggo/v2"
)

// RootModule is the loggo module all jrefetch loggers live under.
const RootModule = "jrefetch"

// Logger provides structured logging for acquisition operations.
// Components accept this interface so callers can plug in their own implementation.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &noopLogger{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// loggoLogger adapts a loggo.Logger to the Logger interface.
type loggoLogger struct {
	logger loggo.Logger
}

// New returns a Logger writing to the loggo module "jrefetch.<component>".
func New(component string) Logger {
	name := RootModule
	if component != "" {
		name = RootModule + "." + component
	}
	return &loggoLogger{logger: loggo.GetLogger(name)}
}

func (l *loggoLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugf("%s", render(msg, keysAndValues))
}

func (l *loggoLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infof("%s", render(msg, keysAndValues))
}

func (l *loggoLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warningf("%s", render(msg, keysAndValues))
}

func (l *loggoLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorf("%s", render(msg, keysAndValues))
}

// render appends key=value pairs to msg. A dangling key is paired with "(MISSING)".
func render(msg string, keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		var value interface{} = "(MISSING)"
		if i+1 < len(keysAndValues) {
			value = keysAndValues[i+1]
		}
		fmt.Fprintf(&b, " %s=%v", key, value)
	}
	return b.String()
}

// Configure sets the level of the jrefetch module tree, e.g. "DEBUG" or "WARNING".
// An empty level leaves the current configuration untouched.
func Configure(level string) error {
	if level == "" {
		return nil
	}
	lvl, ok := loggo.ParseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if err := loggo.ConfigureLoggers(fmt.Sprintf("%s=%s", RootModule, lvl)); err != nil {
		return fmt.Errorf("configure loggers: %w", err)
	}
	return nil
}

// SetOutput sends every log line to w instead of the default writer.
func SetOutput(w io.Writer) error {
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, loggo.DefaultFormatter)); err != nil {
		return fmt.Errorf("replace log writer: %w", err)
	}
	return nil
}
