// Package gemini is a client for the Gemini generateContent endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/provider"
)

const (
	// Name identifies the provider in errors and logs.
	Name = "gemini"

	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

	defaultTemperature     = 0.5
	defaultMaxOutputTokens = 1500
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithEndpoint sets the full generateContent URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client calls generateContent with an API key.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new Gemini client. An empty key is accepted; every call
// then fails with a ConfigurationError.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: provider.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewRequest shapes a conversation into a generateContent request. Any role
// other than "user" is sent as "model".
func NewRequest(messages []domain.ChatMessage) *GenerateContentRequest {
	contents := make([]Content, 0, len(messages))
	for _, m := range messages {
		role := "model"
		if m.Role == "user" {
			role = "user"
		}
		contents = append(contents, Content{Role: role, Parts: []Part{{Text: m.Text}}})
	}
	return &GenerateContentRequest{
		Contents: contents,
		GenerationConfig: GenerationConfig{
			Temperature:     defaultTemperature,
			MaxOutputTokens: defaultMaxOutputTokens,
		},
	}
}

// GenerateContent sends one generateContent request. A well-formed JSON body
// whose shape does not match is returned with no candidates and Raw set.
func (c *Client) GenerateContent(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	if err := provider.RequireKey(Name, c.apiKey); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, domain.ErrConfiguration("invalid endpoint %q: %v", c.endpoint, err).WithProvider(Name)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	resp, err := provider.Exchange(ctx, c.httpClient, &provider.Request{
		Provider: Name,
		URL:      u.String(),
		Body:     req,
		Classify: provider.ClassifyGoogle,
	})
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.Body) {
		return nil, domain.ErrDecode(errors.New("response is not JSON")).WithProvider(Name).WithBody(resp.Body)
	}

	var out GenerateContentResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return &GenerateContentResponse{Raw: resp.Body}, nil
	}
	out.Raw = resp.Body
	return &out, nil
}
