package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGatewayError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected string
	}{
		{
			name:     "type and message",
			err:      &GatewayError{Type: ErrorTypeValidation, Message: "prompt is required"},
			expected: "validation: prompt is required",
		},
		{
			name:     "provider with reason",
			err:      &GatewayError{Type: ErrorTypeProvider, Reason: ReasonBusy, Provider: "elevenlabs", Message: "upstream returned status 503"},
			expected: "provider (busy): elevenlabs: upstream returned status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGatewayError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *GatewayError
		expected int
	}{
		{"validation", ErrValidation("x"), http.StatusBadRequest},
		{"unauthenticated", ErrUnauthenticated("x"), http.StatusUnauthorized},
		{"forbidden", ErrForbidden("x"), http.StatusForbidden},
		{"not found", ErrNotFound("x"), http.StatusNotFound},
		{"timeout", ErrTimeout("x"), http.StatusGatewayTimeout},
		{"transport", ErrTransport(errors.New("dial")), http.StatusBadGateway},
		{"decode", ErrDecode(errors.New("eof")), http.StatusBadGateway},
		{"busy provider", ErrProvider(503, ReasonBusy, nil), http.StatusServiceUnavailable},
		{"quota provider", ErrProvider(429, ReasonQuota, nil), http.StatusTooManyRequests},
		{"bad request provider", ErrProvider(400, ReasonBadRequest, nil), http.StatusBadGateway},
		{"storage", ErrStorage("upload", errors.New("denied")), http.StatusInternalServerError},
		{"configuration", ErrConfiguration("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGatewayError_Transient(t *testing.T) {
	if !ErrProvider(503, ReasonBusy, nil).Transient() {
		t.Error("busy provider error should be transient")
	}
	if !ErrProvider(503, ReasonUnavailable, nil).Transient() {
		t.Error("unavailable provider error should be transient")
	}
	if ErrProvider(400, ReasonBadRequest, nil).Transient() {
		t.Error("bad request should not be transient")
	}
	if ErrTimeout("slow").WithReason(ReasonBusy).Transient() {
		t.Error("timeout must never be transient")
	}
	if !ErrTransport(errors.New("connection reset")).Transient() {
		t.Error("transport error should be transient")
	}
	if ErrStorage("upload", errors.New("denied")).Transient() {
		t.Error("storage error should not be transient")
	}
}

func TestAsGatewayError_Wrapped(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("generate image: %w", ErrTransport(cause))

	gwErr, ok := AsGatewayError(err)
	if !ok {
		t.Fatal("AsGatewayError() ok = false, want true")
	}
	if gwErr.Type != ErrorTypeTransport {
		t.Errorf("Type = %v, want %v", gwErr.Type, ErrorTypeTransport)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !IsType(err, ErrorTypeTransport) {
		t.Error("IsType(err, transport) = false, want true")
	}
}

func TestToGatewayError_Unknown(t *testing.T) {
	gwErr := ToGatewayError(errors.New("boom"))
	if gwErr.Type != ErrorTypeInternal {
		t.Errorf("Type = %v, want %v", gwErr.Type, ErrorTypeInternal)
	}
	if gwErr.HTTPStatusCode() != http.StatusInternalServerError {
		t.Errorf("HTTPStatusCode() = %d, want 500", gwErr.HTTPStatusCode())
	}
}

func TestErrProvider_KeepsBody(t *testing.T) {
	body := []byte(`{"detail":{"status":"system_busy"}}`)
	err := ErrProvider(429, ReasonBusy, body).WithProvider("elevenlabs")
	if err.Body != string(body) {
		t.Errorf("Body = %q, want %q", err.Body, body)
	}
	if err.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", err.StatusCode)
	}
}
