// Package vision is a client for Google Cloud Vision text detection.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/provider"
)

const (
	// Name identifies the provider in errors and logs.
	Name = "vision"

	defaultEndpoint = "https://vision.googleapis.com/v1/images:annotate"
)

type annotateRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    image     `json:"image"`
	Features []feature `json:"features"`
}

type image struct {
	Content string `json:"content"`
}

type feature struct {
	Type string `json:"type"`
}

type annotateResponse struct {
	Responses []imageResponse `json:"responses"`
}

type imageResponse struct {
	TextAnnotations []entityAnnotation `json:"textAnnotations"`
	Error           *status            `json:"error,omitempty"`
}

type entityAnnotation struct {
	Locale      string `json:"locale,omitempty"`
	Description string `json:"description"`
}

type status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithEndpoint sets the images:annotate URL.
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

// Client calls images:annotate with an API key.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new Vision client.
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

// DetectText returns the first text annotation's description, or "" when the
// image contains no text.
func (c *Client) DetectText(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", domain.ErrValidation("image is empty")
	}
	if err := provider.RequireKey(Name, c.apiKey); err != nil {
		return "", err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", domain.ErrConfiguration("invalid endpoint %q: %v", c.endpoint, err).WithProvider(Name)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	resp, err := provider.Exchange(ctx, c.httpClient, &provider.Request{
		Provider: Name,
		URL:      u.String(),
		Body: annotateRequest{Requests: []imageRequest{{
			Image:    image{Content: base64.StdEncoding.EncodeToString(img)},
			Features: []feature{{Type: "TEXT_DETECTION"}},
		}}},
		Classify: provider.ClassifyGoogle,
	})
	if err != nil {
		return "", err
	}

	var out annotateResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", domain.ErrDecode(err).WithProvider(Name).WithBody(resp.Body)
	}

	for _, r := range out.Responses {
		if r.Error != nil && r.Error.Message != "" {
			return "", domain.ErrProvider(resp.StatusCode, domain.ReasonBadRequest, resp.Body).WithProvider(Name)
		}
		if len(r.TextAnnotations) > 0 {
			return r.TextAnnotations[0].Description, nil
		}
	}
	return "", nil
}
