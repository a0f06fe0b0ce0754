package ports

import (
	"errors"
	"fmt"
)

// ErrorCategory normalizes gateway failures.
type ErrorCategory string

const (
	CategoryRejected    ErrorCategory = "rejected"
	CategoryNotFound    ErrorCategory = "not_found"
	CategoryTimeout     ErrorCategory = "timeout"
	CategoryUnavailable ErrorCategory = "unavailable"
	CategoryBadData     ErrorCategory = "bad_data"
	CategoryInternal    ErrorCategory = "internal"
)

// GatewayError is returned by every adapter. Message is the backend-provided
// text and is what the user sees; it may be empty.
type GatewayError struct {
	Gateway   string
	Operation string
	Category  ErrorCategory
	Message   string
	Err       error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Category)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Gateway, e.Operation, msg, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Gateway, e.Operation, msg)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError builds a GatewayError.
func NewGatewayError(gateway, operation string, category ErrorCategory, message string, err error) *GatewayError {
	return &GatewayError{
		Gateway:   gateway,
		Operation: operation,
		Category:  category,
		Message:   message,
		Err:       err,
	}
}

// IsNotFound reports whether err is a gateway not-found failure.
func IsNotFound(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Category == CategoryNotFound
}

// UserMessage extracts the message to surface for err, or fallback when the
// backend gave none.
func UserMessage(err error, fallback string) string {
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return fallback
}

// CategoryOf returns the category of err, CategoryInternal for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return CategoryInternal
}
