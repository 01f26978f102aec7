package apiclient

import (
	"errors"
	"fmt"
)

// Kind tells which failure an Error stands for.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the single error shape every Client method fails with, whether
// the failure happened on the network, in the HTTP exchange or while
// decoding the payload.
type Error struct {
	Kind    Kind
	Status  int // HTTP status, 0 when no response was received
	Message string
	// Fields holds per-field messages of a validation failure.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts an *Error from err. Any other error is wrapped as KindUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// IsNotFound reports whether err is a NotFound failure.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}

// IsValidation reports whether err is a Validation failure.
func IsValidation(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindValidation
}

func transportError(status int, message string, err error) *Error {
	if message == "" {
		message = "Request failed"
	}
	return &Error{Kind: KindTransport, Status: status, Message: message, Err: err}
}
