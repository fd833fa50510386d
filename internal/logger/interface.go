package logger

import "codeberg.org/mutker/nvidiamon/internal/errors"

// Logger is the injected logging dependency. Fatal stays off the interface
// so only the entry point can terminate the process.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
}
