package errors

// Shared error codes. Packages with richer failure modes define their own
// codes next to the code that raises them.
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrBindFlags        ErrorCode = "bind_flags_failed"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrInvalidInterval  ErrorCode = "invalid_interval"
	ErrInvalidThreshold ErrorCode = "invalid_threshold"

	// Lifecycle errors
	ErrAlreadyRunning ErrorCode = "already_running"
	ErrMainLoop       ErrorCode = "main_loop_failed"

	// Resource errors
	ErrResourceNotFound ErrorCode = "resource_not_found"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrUnavailable:      "Service unavailable",
	ErrInvalidConfig:    "Invalid configuration",
	ErrBindFlags:        "Failed to bind flags",
	ErrReadConfig:       "Failed to read configuration",
	ErrInvalidInterval:  "Invalid interval value",
	ErrInvalidThreshold: "Invalid threshold value",
	ErrAlreadyRunning:   "Another instance is already running",
	ErrMainLoop:         "Error in main loop",
	ErrResourceNotFound: "Resource not found",
}

// GetErrorMessage returns the catalog text for a code. Codes without an
// entry fall back to the code string itself.
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
