package provider

import (
	"strings"
	"testing"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

func TestClassifyGeneric(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.FailureReason
	}{
		{"busy marker on 429", 429, `{"detail":{"status":"system_busy"}}`, domain.ReasonBusy},
		{"busy marker on 500", 500, `The server is temporarily unavailable`, domain.ReasonBusy},
		{"model loading", 503, `{"error":"Model stabilityai/sdxl is currently loading"}`, domain.ReasonBusy},
		{"quota on 429", 429, `{"detail":{"status":"quota_exceeded"}}`, domain.ReasonQuota},
		{"plain 503", 503, ``, domain.ReasonUnavailable},
		{"plain 500", 500, `oops`, domain.ReasonServer},
		{"auth", 401, `{"detail":{"status":"invalid_api_key"}}`, domain.ReasonAuth},
		{"bad request", 400, `{"error":"bad input"}`, domain.ReasonBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyGeneric(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("ClassifyGeneric() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyGoogle(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.FailureReason
	}{
		{"unavailable", 503, `{"error":{"code":503,"message":"The model is overloaded. Please try again later.","status":"UNAVAILABLE"}}`, domain.ReasonUnavailable},
		{"quota", 429, `{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`, domain.ReasonQuota},
		{"invalid key", 400, `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`, domain.ReasonBadRequest},
		{"permission", 403, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`, domain.ReasonAuth},
		{"not an envelope", 503, `upstream connect error`, domain.ReasonUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyGoogle(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("ClassifyGoogle() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncatePrompt(t *testing.T) {
	long := strings.Repeat("a", 1500)
	got, truncated := TruncatePrompt(long, MaxPromptLength)
	if !truncated {
		t.Fatal("truncated = false, want true")
	}
	if want := strings.Repeat("a", 1000) + "..."; got != want {
		t.Errorf("len(got) = %d, want %d", len(got), len(want))
	}

	short := "a red fox"
	got, truncated = TruncatePrompt(short, MaxPromptLength)
	if truncated || got != short {
		t.Errorf("TruncatePrompt(%q) = %q, %v", short, got, truncated)
	}

	exact := strings.Repeat("b", 1000)
	if _, truncated := TruncatePrompt(exact, MaxPromptLength); truncated {
		t.Error("prompt of exactly the limit should not be truncated")
	}

	multibyte := strings.Repeat("ữ", 1001)
	got, _ = TruncatePrompt(multibyte, MaxPromptLength)
	if n := len([]rune(got)); n != 1003 {
		t.Errorf("rune length = %d, want 1003", n)
	}
}
