package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess      Code = 0
	CodeInternal     Code = 1
	CodeUsage        Code = 2
	CodeAuth         Code = 10
	CodeRateLimited  Code = 11
	CodeUnavailable  Code = 12
	CodeUnsupported  Code = 13
	CodeBlocked      Code = 16
	CodeInvalidInput Code = 20
	CodeUnresolved   Code = 21
	CodeExecutor     Code = 22
	CodeLLM          Code = 23
)

// Error carries a stable code next to a human-readable message.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}

// TypeName maps a code to the error type emitted in output envelopes.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeBlocked:
		return "blocked"
	case CodeInvalidInput:
		return "invalid_input"
	case CodeUnresolved:
		return "unresolved"
	case CodeExecutor:
		return "executor_error"
	case CodeLLM:
		return "llm_error"
	default:
		return "internal_error"
	}
}
