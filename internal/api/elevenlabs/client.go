// Package elevenlabs is a client for the ElevenLabs text-to-speech and sound
// generation endpoints.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/provider"
)

const (
	// Name identifies the provider in errors and logs.
	Name = "elevenlabs"

	defaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultModelID is the speech model used for every request.
	DefaultModelID = "eleven_turbo_v2_5"

	DefaultSpeed           = 1.0
	DefaultStability       = 0.5
	DefaultSimilarity      = 0.75
	DefaultDuration        = 5.0
	DefaultPromptInfluence = 0.3
)

// VoiceSettings tune the synthesized voice.
type VoiceSettings struct {
	Speed           float64 `json:"speed"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// SpeechRequest is the text-to-speech request body.
type SpeechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// SoundRequest is the sound-generation request body.
type SoundRequest struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
	PromptInfluence float64 `json:"prompt_influence"`
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithSpeechURL sets the text-to-speech base URL; the voice id is appended.
func WithSpeechURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.speechURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithSoundURL sets the sound-generation URL.
func WithSoundURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.soundURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client authenticates with the xi-api-key header.
type Client struct {
	apiKey     string
	speechURL  string
	soundURL   string
	httpClient *http.Client
}

// NewClient creates a new ElevenLabs client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		speechURL:  defaultBaseURL + "/text-to-speech",
		soundURL:   defaultBaseURL + "/sound-generation",
		httpClient: provider.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TextToSpeech returns MP3 audio for text spoken by voiceID.
func (c *Client) TextToSpeech(ctx context.Context, voiceID string, req *SpeechRequest) ([]byte, error) {
	if req.ModelID == "" {
		req.ModelID = DefaultModelID
	}
	return c.audio(ctx, c.speechURL+"/"+url.PathEscape(voiceID), req)
}

// SoundGeneration returns MP3 audio for a sound-effect prompt.
func (c *Client) SoundGeneration(ctx context.Context, req *SoundRequest) ([]byte, error) {
	return c.audio(ctx, c.soundURL, req)
}

func (c *Client) audio(ctx context.Context, endpoint string, body any) ([]byte, error) {
	if err := provider.RequireKey(Name, c.apiKey); err != nil {
		return nil, err
	}

	resp, err := provider.Exchange(ctx, c.httpClient, &provider.Request{
		Provider: Name,
		URL:      endpoint,
		Header: http.Header{
			"Xi-Api-Key": {c.apiKey},
			"Accept":     {"audio/mpeg"},
		},
		Body:     body,
		Classify: classify,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, domain.ErrDecode(errors.New("empty audio")).WithProvider(Name)
	}
	if resp.ContentType() == "application/json" {
		return nil, domain.ErrDecode(errors.New("expected audio, got application/json")).WithProvider(Name).WithBody(resp.Body)
	}
	return resp.Body, nil
}

// apiError is the ElevenLabs error envelope.
type apiError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// classify maps detail.status to a failure reason.
func classify(status int, body []byte) domain.FailureReason {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil {
		switch e.Detail.Status {
		case "system_busy", "too_many_concurrent_requests", "service_unavailable":
			return domain.ReasonBusy
		case "quota_exceeded", "payment_required":
			return domain.ReasonQuota
		case "invalid_api_key", "missing_permissions", "unauthorized":
			return domain.ReasonAuth
		case "voice_not_found", "invalid_request", "text_too_long", "invalid_uid":
			return domain.ReasonBadRequest
		}
	}
	return provider.ClassifyGeneric(status, body)
}
