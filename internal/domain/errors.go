// Package domain provides the canonical request, record and error types for the gateway.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a gateway error.
type ErrorType string

const (
	// ErrorTypeValidation indicates malformed or missing request fields.
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeConfiguration indicates missing credentials or endpoints for a provider.
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeTransport indicates a network failure talking to a provider.
	ErrorTypeTransport ErrorType = "transport"

	// ErrorTypeTimeout indicates a provider call exceeded its time bound.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeProvider indicates the provider answered with a failure status.
	ErrorTypeProvider ErrorType = "provider"

	// ErrorTypeDecode indicates the provider response could not be decoded.
	ErrorTypeDecode ErrorType = "decode"

	// ErrorTypeStorage indicates an artifact store failure.
	ErrorTypeStorage ErrorType = "storage"

	// ErrorTypeForbidden indicates an ownership mismatch.
	ErrorTypeForbidden ErrorType = "forbidden"

	// ErrorTypeNotFound indicates a referenced record does not exist.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeUnauthenticated indicates the caller identity could not be established.
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"

	// ErrorTypeInternal indicates an unexpected failure inside the gateway.
	ErrorTypeInternal ErrorType = "internal"
)

// FailureReason is the provider adapter's classification of a failed call.
// RetryPolicy switches on it; nothing downstream inspects message text.
type FailureReason string

const (
	ReasonNone        FailureReason = ""
	ReasonBusy        FailureReason = "busy"
	ReasonBadRequest  FailureReason = "bad_request"
	ReasonAuth        FailureReason = "auth"
	ReasonQuota       FailureReason = "quota"
	ReasonServer      FailureReason = "server"
	ReasonUnavailable FailureReason = "unavailable"
)

// Transient reports whether a failure with this reason is safe to retry.
func (r FailureReason) Transient() bool {
	return r == ReasonBusy || r == ReasonUnavailable
}

// GatewayError is the single error type surfaced by the gateway.
type GatewayError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Reason is the provider failure classification, if any
	Reason FailureReason `json:"reason,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Provider names the upstream that produced the error
	Provider string `json:"provider,omitempty"`

	// Body is the raw provider error payload, surfaced verbatim
	Body string `json:"body,omitempty"`

	// StatusCode is the upstream status code or an explicit HTTP status override
	StatusCode int `json:"-"`

	// Err is the underlying cause
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Reason != ReasonNone {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Reason, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Transient reports whether the error is eligible for the retry budget:
// transport failures and provider failures with a transient reason.
func (e *GatewayError) Transient() bool {
	switch e.Type {
	case ErrorTypeTransport:
		return true
	case ErrorTypeProvider:
		return e.Reason.Transient()
	}
	return false
}

// HTTPStatusCode returns the status the gateway answers its own caller with.
func (e *GatewayError) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUnauthenticated:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeTransport, ErrorTypeDecode:
		return http.StatusBadGateway
	case ErrorTypeProvider:
		switch {
		case e.Reason.Transient():
			return http.StatusServiceUnavailable
		case e.Reason == ReasonQuota:
			return http.StatusTooManyRequests
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewGatewayError creates a new gateway error.
func NewGatewayError(errType ErrorType, message string) *GatewayError {
	return &GatewayError{
		Type:    errType,
		Message: message,
	}
}

// WithReason sets the failure classification.
func (e *GatewayError) WithReason(reason FailureReason) *GatewayError {
	e.Reason = reason
	return e
}

// WithProvider sets the upstream name.
func (e *GatewayError) WithProvider(provider string) *GatewayError {
	e.Provider = provider
	return e
}

// WithBody attaches the raw provider error payload.
func (e *GatewayError) WithBody(body []byte) *GatewayError {
	e.Body = string(body)
	return e
}

// WithStatusCode records the upstream status code.
func (e *GatewayError) WithStatusCode(code int) *GatewayError {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *GatewayError) WithCause(err error) *GatewayError {
	e.Err = err
	return e
}

// Convenience constructors

// ErrValidation creates a validation error.
func ErrValidation(format string, args ...any) *GatewayError {
	return NewGatewayError(ErrorTypeValidation, fmt.Sprintf(format, args...))
}

// ErrConfiguration creates a configuration error.
func ErrConfiguration(format string, args ...any) *GatewayError {
	return NewGatewayError(ErrorTypeConfiguration, fmt.Sprintf(format, args...))
}

// ErrTransport wraps a network failure.
func ErrTransport(err error) *GatewayError {
	return NewGatewayError(ErrorTypeTransport, fmt.Sprintf("request failed: %v", err)).WithCause(err)
}

// ErrTimeout creates a timeout error.
func ErrTimeout(format string, args ...any) *GatewayError {
	return NewGatewayError(ErrorTypeTimeout, fmt.Sprintf(format, args...))
}

// ErrProvider creates a provider failure carrying the raw body.
func ErrProvider(status int, reason FailureReason, body []byte) *GatewayError {
	return NewGatewayError(ErrorTypeProvider, fmt.Sprintf("upstream returned status %d", status)).
		WithStatusCode(status).
		WithReason(reason).
		WithBody(body)
}

// ErrDecode wraps a response decoding failure.
func ErrDecode(err error) *GatewayError {
	return NewGatewayError(ErrorTypeDecode, fmt.Sprintf("failed to decode response: %v", err)).WithCause(err)
}

// ErrStorage wraps an artifact store failure.
func ErrStorage(op string, err error) *GatewayError {
	return NewGatewayError(ErrorTypeStorage, fmt.Sprintf("%s: %v", op, err)).WithCause(err)
}

// ErrForbidden creates an ownership error.
func ErrForbidden(format string, args ...any) *GatewayError {
	return NewGatewayError(ErrorTypeForbidden, fmt.Sprintf(format, args...))
}

// ErrNotFound creates a not found error.
func ErrNotFound(format string, args ...any) *GatewayError {
	return NewGatewayError(ErrorTypeNotFound, fmt.Sprintf(format, args...))
}

// ErrUnauthenticated creates an authentication error.
func ErrUnauthenticated(format string, args ...any) *GatewayError {
	return NewGatewayError(ErrorTypeUnauthenticated, fmt.Sprintf(format, args...))
}

// AsGatewayError extracts a *GatewayError from err's chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// IsType reports whether err carries a GatewayError of the given type.
func IsType(err error, errType ErrorType) bool {
	gwErr, ok := AsGatewayError(err)
	return ok && gwErr.Type == errType
}

// ToGatewayError converts any error to a *GatewayError. Unknown errors become
// internal failures.
func ToGatewayError(err error) *GatewayError {
	if gwErr, ok := AsGatewayError(err); ok {
		return gwErr
	}
	return NewGatewayError(ErrorTypeInternal, err.Error()).WithCause(err)
}
