package elevenlabs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/testutil"
)

func TestClient_SoundGeneration_Cassette(t *testing.T) {
	if os.Getenv("ELEVENLABS_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: ELEVENLABS_API_KEY not set")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "elevenlabs_sound")
	defer cleanup()

	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		apiKey = testutil.RedactedKey
	}

	c := NewClient(apiKey, WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	audio, err := c.SoundGeneration(context.Background(), &SoundRequest{
		Text:            "rain on a tin roof",
		DurationSeconds: DefaultDuration,
		PromptInfluence: DefaultPromptInfluence,
	})
	if err != nil {
		t.Fatalf("SoundGeneration() error = %v", err)
	}
	if len(audio) == 0 {
		t.Error("Expected audio bytes")
	}
}

func TestClient_TextToSpeech(t *testing.T) {
	var got SpeechRequest
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("xi-api-key")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("server: unmarshal request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	c := NewClient("xi", WithSpeechURL(srv.URL+"/v1/text-to-speech/"), WithHTTPClient(srv.Client()))
	audio, err := c.TextToSpeech(context.Background(), "pNInz6obpgDQGcFmaJgB", &SpeechRequest{
		Text:          "xin chào",
		VoiceSettings: VoiceSettings{Speed: DefaultSpeed, Stability: DefaultStability, SimilarityBoost: DefaultSimilarity},
	})
	if err != nil {
		t.Fatalf("TextToSpeech() error = %v", err)
	}

	if string(audio) != "ID3audio" {
		t.Errorf("audio = %q", audio)
	}
	if path != "/v1/text-to-speech/pNInz6obpgDQGcFmaJgB" {
		t.Errorf("path = %q", path)
	}
	if key != "xi" {
		t.Errorf("xi-api-key = %q, want xi", key)
	}
	if got.ModelID != DefaultModelID {
		t.Errorf("model_id = %q, want %q", got.ModelID, DefaultModelID)
	}
	if got.VoiceSettings.SimilarityBoost != 0.75 {
		t.Errorf("similarity_boost = %v, want 0.75", got.VoiceSettings.SimilarityBoost)
	}
}

func TestClient_ErrorBodySurfacedVerbatim(t *testing.T) {
	const body = `{"detail":{"status":"system_busy","message":"We are experiencing heavy traffic"}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient("xi", WithSoundURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.SoundGeneration(context.Background(), &SoundRequest{Text: "x", DurationSeconds: 5, PromptInfluence: 0.3})

	gwErr, ok := domain.AsGatewayError(err)
	if !ok {
		t.Fatalf("SoundGeneration() error = %v, want GatewayError", err)
	}
	if gwErr.Body != body {
		t.Errorf("Body = %q, want %q", gwErr.Body, body)
	}
	if gwErr.Reason != domain.ReasonBusy {
		t.Errorf("Reason = %v, want busy", gwErr.Reason)
	}
	if gwErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", gwErr.StatusCode)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   domain.FailureReason
	}{
		{429, `{"detail":{"status":"too_many_concurrent_requests"}}`, domain.ReasonBusy},
		{401, `{"detail":{"status":"quota_exceeded"}}`, domain.ReasonQuota},
		{401, `{"detail":{"status":"invalid_api_key"}}`, domain.ReasonAuth},
		{400, `{"detail":{"status":"voice_not_found"}}`, domain.ReasonBadRequest},
		{500, `internal`, domain.ReasonServer},
	}
	for _, tt := range tests {
		if got := classify(tt.status, []byte(tt.body)); got != tt.want {
			t.Errorf("classify(%d, %s) = %v, want %v", tt.status, tt.body, got, tt.want)
		}
	}
}
