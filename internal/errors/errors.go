package errors

import (
	"errors"
	"fmt"
)

// Re-exported so callers never need the standard library package alongside
// this one.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type codedError struct {
	code    ErrorCode
	message string
	cause   error
	data    any
}

func (e *codedError) Error() string {
	msg := e.message
	if msg == "" {
		msg = GetErrorMessage(e.code)
	}

	switch {
	case e.data != nil:
		return fmt.Sprintf("%s: %v", msg, e.data)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}

	return msg
}

func (e *codedError) Code() ErrorCode { return e.code }

func (e *codedError) GetData() any { return e.data }

func (e *codedError) Unwrap() error { return e.cause }

func (e *codedError) WithMessage(msg string) Error {
	clone := *e
	clone.message = msg

	return &clone
}

func (e *codedError) WithData(data any) Error {
	clone := *e
	clone.data = data

	return &clone
}

type factory struct{}

// New creates a Factory for building coded errors.
func New() Factory {
	return factory{}
}

func (factory) New(code ErrorCode) Error {
	return &codedError{code: code}
}

func (factory) Wrap(code ErrorCode, err error) Error {
	return &codedError{code: code, cause: err}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &codedError{code: code, message: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &codedError{code: code, data: data}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var coded Error
	for As(err, &coded) {
		if coded.Code() == code {
			return true
		}
		err = coded.Unwrap()
	}

	return false
}
