package provider

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

var (
	busyMarkers = [][]byte{
		[]byte("busy"),
		[]byte("temporarily unavailable"),
		[]byte("overloaded"),
		[]byte("currently loading"),
		[]byte("try again later"),
	}
	quotaMarkers = [][]byte{
		[]byte("quota"),
		[]byte("insufficient credits"),
		[]byte("exceeds your"),
	}
)

func containsAny(body []byte, markers [][]byte) bool {
	lower := bytes.ToLower(body)
	for _, m := range markers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}

// ClassifyGeneric inspects the payload first and falls back to the status.
func ClassifyGeneric(status int, body []byte) domain.FailureReason {
	switch {
	case containsAny(body, quotaMarkers):
		return domain.ReasonQuota
	case containsAny(body, busyMarkers):
		return domain.ReasonBusy
	}
	return classifyStatus(status)
}

func classifyStatus(status int) domain.FailureReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ReasonAuth
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return domain.ReasonQuota
	case status == http.StatusServiceUnavailable || status == 529:
		return domain.ReasonUnavailable
	case status >= 500:
		return domain.ReasonServer
	default:
		return domain.ReasonBadRequest
	}
}

// googleError is the error envelope used by Google APIs.
type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ClassifyGoogle maps the canonical status of a Google API error envelope.
func ClassifyGoogle(status int, body []byte) domain.FailureReason {
	var env googleError
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Status == "" {
		return ClassifyGeneric(status, body)
	}
	switch env.Error.Status {
	case "UNAVAILABLE":
		return domain.ReasonUnavailable
	case "RESOURCE_EXHAUSTED":
		if containsAny([]byte(env.Error.Message), busyMarkers) {
			return domain.ReasonBusy
		}
		return domain.ReasonQuota
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return domain.ReasonAuth
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "NOT_FOUND", "OUT_OF_RANGE":
		return domain.ReasonBadRequest
	case "INTERNAL", "UNKNOWN", "DEADLINE_EXCEEDED":
		if containsAny([]byte(env.Error.Message), busyMarkers) {
			return domain.ReasonBusy
		}
		return domain.ReasonServer
	}
	return ClassifyGeneric(status, body)
}
