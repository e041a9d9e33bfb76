package shared

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// AppError is an error the HTTP boundary knows how to render: a stable
// machine code, a client-safe message and the status to respond with.
// Wrapped causes stay server-side for diagnostics and never reach the
// response body.
type AppError struct {
	Code       string
	Message    string
	StatusCode int
	Details    interface{}
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, StatusCode: http.StatusBadRequest, Err: err}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, StatusCode: http.StatusNotFound}
}

func NewValidationError(details interface{}) *AppError {
	return &AppError{Code: CodeValidationError, Message: "Validation failed", StatusCode: http.StatusUnprocessableEntity, Details: details}
}

func NewTooManyRequestsError(message string) *AppError {
	return &AppError{Code: CodeTooManyRequests, Message: message, StatusCode: http.StatusTooManyRequests}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternalError, Message: "Internal server error", StatusCode: http.StatusInternalServerError, Err: err}
}

func NewServiceUnavailableError(err error, message string) *AppError {
	return &AppError{Code: CodeServiceUnavailable, Message: message, StatusCode: http.StatusServiceUnavailable, Err: err}
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsTooManyRequests reports whether err is the limiter's rejection.
func IsTooManyRequests(err error) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == CodeTooManyRequests
}
