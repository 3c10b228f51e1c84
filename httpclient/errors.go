package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ClassifiedError is an error that carries a failure class used by the
// retry loop and the auth recovery flow.
type ClassifiedError interface {
	error
	Class() ErrorClass
}

// ErrorClass is the category a request failure falls into.
type ErrorClass string

const (
	ClassTimeout ErrorClass = "timeout"
	ClassNetwork ErrorClass = "network"
	ClassAuth    ErrorClass = "auth"
	ClassUnknown ErrorClass = "unknown"
)

// timeoutError represents an attempt that was aborted after its deadline.
type timeoutError struct {
	message string
	timeout time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
}

func (e *timeoutError) Class() ErrorClass {
	return ClassTimeout
}

// networkError represents a connection-level failure.
type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Class() ErrorClass {
	return ClassNetwork
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// StatusError represents a non-2xx response. 401 and 403 classify as auth,
// everything else as unknown; the api layer decides what to do with each.
type StatusError struct {
	message    string
	statusCode int
	body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (status: %d)", e.message, e.statusCode)
}

func (e *StatusError) Class() ErrorClass {
	if e.statusCode == 401 || e.statusCode == 403 {
		return ClassAuth
	}
	return ClassUnknown
}

func (e *StatusError) StatusCode() int {
	return e.statusCode
}

func (e *StatusError) Body() []byte {
	return e.body
}

// validationError represents a request rejected before any attempt was made.
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Class() ErrorClass {
	return ClassUnknown
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, timeout time.Duration) ClassifiedError {
	return &timeoutError{
		message: message,
		timeout: timeout,
	}
}

// NewNetworkError creates a new network error.
func NewNetworkError(message string, wrapped error) ClassifiedError {
	return &networkError{
		message: message,
		wrapped: wrapped,
	}
}

// NewStatusError creates a new status error.
func NewStatusError(message string, statusCode int, body []byte) *StatusError {
	return &StatusError{
		message:    message,
		statusCode: statusCode,
		body:       body,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message, field string) ClassifiedError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// Classify maps an arbitrary error into one of the four failure classes.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}

	return ClassUnknown
}

// IsClass checks if an error classifies as the given class.
func IsClass(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}
	return Classify(err) == class
}

// IsStatusError checks if an error is a status error with a specific code.
func IsStatusError(err error, statusCode int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode() == statusCode
	}
	return false
}

// IsSuccessStatus checks if a status code represents success (2xx).
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
