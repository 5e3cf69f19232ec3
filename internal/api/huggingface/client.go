// Package huggingface is a client for Hugging Face text-to-image inference.
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/provider"
)

// Name identifies the provider in errors and logs.
const Name = "huggingface"

const defaultInferenceSteps = 28

// DefaultModelURLs maps model selectors to inference endpoints.
var DefaultModelURLs = map[string]string{
	"model1": "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-xl-base-1.0",
	"model2": "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-3.5-large",
}

// TextToImageRequest is the inference request body.
type TextToImageRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters Parameters `json:"parameters"`
	Options    Options    `json:"options"`
}

// Parameters tune generation.
type Parameters struct {
	NegativePrompt    string `json:"negative_prompt"`
	NumInferenceSteps int    `json:"num_inference_steps"`
}

// Options control the inference API itself.
type Options struct {
	WaitForModel bool `json:"wait_for_model"`
}

// NewRequest shapes a prompt into an inference request.
func NewRequest(prompt, negativePrompt string) *TextToImageRequest {
	return &TextToImageRequest{
		Inputs: prompt,
		Parameters: Parameters{
			NegativePrompt:    negativePrompt,
			NumInferenceSteps: defaultInferenceSteps,
		},
		Options: Options{WaitForModel: true},
	}
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithModelURL overrides the endpoint for one model selector.
func WithModelURL(model, url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.modelURLs[model] = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client posts prompts to per-model inference endpoints with a bearer token.
type Client struct {
	apiKey     string
	modelURLs  map[string]string
	httpClient *http.Client
}

// NewClient creates a new Hugging Face client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		modelURLs:  make(map[string]string, len(DefaultModelURLs)),
		httpClient: provider.NewHTTPClient(),
	}
	for k, v := range DefaultModelURLs {
		c.modelURLs[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TextToImage returns the generated image bytes.
func (c *Client) TextToImage(ctx context.Context, model string, req *TextToImageRequest) ([]byte, error) {
	if err := provider.RequireKey(Name, c.apiKey); err != nil {
		return nil, err
	}
	endpoint, ok := c.modelURLs[model]
	if !ok {
		return nil, domain.ErrConfiguration("no endpoint for model %q", model).WithProvider(Name)
	}

	resp, err := provider.Exchange(ctx, c.httpClient, &provider.Request{
		Provider: Name,
		URL:      endpoint,
		Header: http.Header{
			"Authorization": {"Bearer " + c.apiKey},
			"Accept":        {"image/jpeg"},
		},
		Body:     req,
		Classify: classify,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Body) == 0 {
		return nil, domain.ErrDecode(errors.New("empty image")).WithProvider(Name)
	}
	if ct := resp.ContentType(); ct == "application/json" || strings.HasPrefix(ct, "text/") {
		return nil, domain.ErrDecode(fmt.Errorf("expected image, got %s", ct)).WithProvider(Name).WithBody(resp.Body)
	}
	return resp.Body, nil
}

// inferenceError is the body of a failed inference call.
type inferenceError struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// classify treats a cold-starting model (one reporting estimated_time) as busy.
func classify(status int, body []byte) domain.FailureReason {
	var e inferenceError
	if err := json.Unmarshal(body, &e); err == nil && e.EstimatedTime > 0 {
		return domain.ReasonBusy
	}
	return provider.ClassifyGeneric(status, body)
}
