package api

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the client can return.
type Kind int

const (
	// KindUnknown covers failures that fit no other kind, such as an
	// undecodable success body.
	KindUnknown Kind = iota
	// KindNetwork means no response was received.
	KindNetwork
	// KindUnauthorized means the session is no longer valid.
	KindUnauthorized
	// KindValidation is a 4xx response carrying a structured error code.
	KindValidation
	// KindServer is a 5xx or otherwise unclassified non-2xx response.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// SessionExpiredMessage is reported when a token refresh fails.
const SessionExpiredMessage = "Session expired. Please log in again."

// Error is the single error type returned by Client and passed through
// unchanged by the layers above it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError builds a client-side validation failure, used when a
// precondition fails before any request is made.
func NewValidationError(code, message string, details any) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: "Unable to reach the server. Check your connection.",
		Err:     err,
	}
}

func unknownError(msg string, err error) *Error {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Kind: KindUnknown, Message: msg, Err: err}
}

func unauthorizedError(err error) *Error {
	return &Error{
		Kind:    KindUnauthorized,
		Status:  401,
		Message: SessionExpiredMessage,
		Err:     err,
	}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// KindOf returns the kind of err. Errors from outside this package are
// KindUnknown.
func KindOf(err error) Kind {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether err ended the session.
func IsUnauthorized(err error) bool {
	return err != nil && KindOf(err) == KindUnauthorized
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return err != nil && KindOf(err) == KindNetwork
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
