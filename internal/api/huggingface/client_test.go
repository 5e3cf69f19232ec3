package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

func TestClient_TextToImage(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x42}, 64)...)

	var got TextToImageRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("server: unmarshal request: %v", err)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
	}))
	defer srv.Close()

	c := NewClient("hf_token", WithModelURL("model1", srv.URL), WithHTTPClient(srv.Client()))
	data, err := c.TextToImage(context.Background(), "model1", NewRequest("a red fox", "blurry"))
	if err != nil {
		t.Fatalf("TextToImage() error = %v", err)
	}

	if !bytes.Equal(data, jpeg) {
		t.Errorf("image bytes differ")
	}
	if auth != "Bearer hf_token" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer hf_token")
	}
	if got.Inputs != "a red fox" || got.Parameters.NegativePrompt != "blurry" {
		t.Errorf("request = %+v", got)
	}
	if got.Parameters.NumInferenceSteps != 28 || !got.Options.WaitForModel {
		t.Errorf("request defaults = %+v", got)
	}
}

func TestClient_TextToImage_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		ctype      string
		body       string
		wantType   domain.ErrorType
		wantReason domain.FailureReason
	}{
		{"loading", http.StatusServiceUnavailable, "application/json", `{"error":"Model is currently loading","estimated_time":42.5}`, domain.ErrorTypeProvider, domain.ReasonBusy},
		{"unauthorized", http.StatusUnauthorized, "application/json", `{"error":"Invalid credentials in Authorization header"}`, domain.ErrorTypeProvider, domain.ReasonAuth},
		{"json on 200", http.StatusOK, "application/json", `{"error":"nope"}`, domain.ErrorTypeDecode, domain.ReasonNone},
		{"empty", http.StatusOK, "image/jpeg", ``, domain.ErrorTypeDecode, domain.ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("k", WithModelURL("model1", srv.URL), WithHTTPClient(srv.Client()))
			_, err := c.TextToImage(context.Background(), "model1", NewRequest("x", ""))

			gwErr, ok := domain.AsGatewayError(err)
			if !ok {
				t.Fatalf("TextToImage() error = %v, want GatewayError", err)
			}
			if gwErr.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", gwErr.Type, tt.wantType)
			}
			if gwErr.Reason != tt.wantReason {
				t.Errorf("Reason = %v, want %v", gwErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestClient_UnknownModel(t *testing.T) {
	c := NewClient("k")
	_, err := c.TextToImage(context.Background(), "model9", NewRequest("x", ""))
	if !domain.IsType(err, domain.ErrorTypeConfiguration) {
		t.Fatalf("TextToImage() error = %v, want configuration error", err)
	}
}
