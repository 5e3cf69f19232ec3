package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

// Classifier maps a failed upstream response to a typed failure reason.
type Classifier func(status int, body []byte) domain.FailureReason

// NewHTTPClient returns a client whose transport emits OpenTelemetry spans.
// It has no timeout of its own; Policy bounds each attempt.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Request describes one outbound call.
type Request struct {
	Provider string
	Method   string
	URL      string
	Header   http.Header
	Body     any
	Classify Classifier
}

// Response is a successful (2xx) upstream reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the response media type without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// Exchange issues exactly one HTTP request. Network failures become
// TransportError and non-2xx statuses become ProviderError carrying the raw
// body and the classifier's reason.
func Exchange(ctx context.Context, client *http.Client, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, domain.ErrConfiguration("invalid endpoint %q: %v", RedactURL(req.URL), redact(err)).WithProvider(req.Provider)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport(redact(err)).WithProvider(req.Provider)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrTransport(fmt.Errorf("failed to read response: %w", err)).WithProvider(req.Provider)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		classify := req.Classify
		if classify == nil {
			classify = ClassifyGeneric
		}
		return nil, domain.ErrProvider(resp.StatusCode, classify(resp.StatusCode, respBody), respBody).
			WithProvider(req.Provider)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// RequireKey fails with a ConfigurationError when a provider credential is absent.
func RequireKey(provider, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return domain.ErrConfiguration("no API key configured").WithProvider(provider)
	}
	return nil
}

// RedactedKey replaces credential query values in errors and logs.
const RedactedKey = "REDACTED"

// RedactURL replaces the "key" query parameter some providers authenticate
// with. Input that does not parse is not echoed back.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if !q.Has("key") {
		return raw
	}
	q.Set("key", RedactedKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// redact rewrites the URL carried by a *url.Error so the message is safe to
// return to callers. The wrapped cause is kept for errors.Is.
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	return &url.Error{Op: urlErr.Op, URL: RedactURL(urlErr.URL), Err: urlErr.Err}
}
