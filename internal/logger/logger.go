// Package logger wraps zerolog behind a small facade shared by every
// component. Init wires the process-wide sink once at startup; New hands
// out a Logger value for code that takes an injected dependency instead.
package logger

import (
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

var log zerolog.Logger

// LogEvent wraps a zerolog event so callers depend on this package rather
// than on zerolog directly.
type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) { e.Event.Msg(msg) }

func (e *LogEvent) Send() { e.Event.Send() }

// Init configures the process-wide logger. Debug wins over verbose when
// both are set. Service mode drops timestamps, since the service manager
// journal stamps every line itself.
func Init(debug, verbose, isService bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string { return "" }
	}

	level := zerolog.WarnLevel
	switch {
	case debug:
		level = zerolog.DebugLevel
	case verbose:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log = zerolog.New(output).With().Timestamp().Logger()
}

// IsService reports whether the process appears to run under a service
// manager rather than an interactive shell.
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Event constructors, one per level. Before Init runs the zero-value
// logger discards everything, so package-level logging stays safe in tests.
func Debug() *LogEvent { return &LogEvent{log.Debug()} }
func Info() *LogEvent  { return &LogEvent{log.Info()} }
func Warn() *LogEvent  { return &LogEvent{log.Warn()} }
func Error() *LogEvent { return &LogEvent{log.Error()} }
func Fatal() *LogEvent { return &LogEvent{log.Fatal()} }

// ErrorWithCode logs a coded error with its code and cause as fields.
func ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.Error(), err)}
}

// FatalWithCode logs a coded error and exits the process.
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{withCode(log.Fatal(), err)}
}

func withCode(event *zerolog.Event, err errors.Error) *zerolog.Event {
	return event.
		Str("error_code", string(err.Code())).
		AnErr("error", err.Unwrap()).
		Str("error_message", err.Error())
}

// defaultLogger adapts the package-level functions to the Logger interface.
type defaultLogger struct{}

// New returns a Logger backed by the package-level logger.
func New() Logger {
	return defaultLogger{}
}

func (defaultLogger) Debug() *LogEvent { return Debug() }
func (defaultLogger) Info() *LogEvent  { return Info() }
func (defaultLogger) Warn() *LogEvent  { return Warn() }
func (defaultLogger) Error() *LogEvent { return Error() }

func (defaultLogger) ErrorWithCode(err errors.Error) *LogEvent {
	return ErrorWithCode(err)
}
