package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMalformedRecord = errors.New("malformed record line")
	ErrValueOverflow   = errors.New("value exceeds 32-bit range")
	ErrCorruptIndex    = errors.New("corrupt index")
	ErrIndexNotFound   = errors.New("index not found")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrInternal        = errors.New("internal error")
	ErrTimeout         = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrMalformedRecord), errors.Is(err, ErrValueOverflow):
		return http.StatusBadRequest
	case errors.Is(err, ErrCorruptIndex), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
