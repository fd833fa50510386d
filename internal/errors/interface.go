package errors

// ErrorCode identifies one failure mode. Codes are stable strings so log
// output and tests can match on them across releases.
type ErrorCode string

// Error is a coded error. An explicit message overrides the catalog text
// for the code, and data carries structured context into log output.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors. Callers typically construct one per function
// instead of sharing an instance.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
