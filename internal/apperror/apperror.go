package apperror

import "errors"

type Code string

const (
	Invalid     Code = "INVALID"
	NotFound    Code = "NOT_FOUND"
	Unavailable Code = "UNAVAILABLE"
	Internal    Code = "INTERNAL"
)

type AppError struct {
	code    Code
	message string
	err     error
}

func New(code Code, message string) *AppError {
	return &AppError{code: code, message: message}
}

// Wrap attaches a code and message to an underlying error, keeping it
// reachable through errors.Is/As.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{code: code, message: message, err: err}
}

func (e *AppError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *AppError) Code() Code      { return e.code }
func (e *AppError) Message() string { return e.message }
func (e *AppError) Unwrap() error   { return e.err }

// CodeOf extracts the code from err, or Internal when err carries none.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code()
	}
	return Internal
}
