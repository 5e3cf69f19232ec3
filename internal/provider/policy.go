// Package provider holds the call policy shared by every upstream adapter:
// a per-attempt timeout guard and a retry loop keyed on typed failure reasons.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/genai-gateway/internal/domain"
)

const (
	// DefaultMaxRetries is the number of re-issues after the first attempt.
	DefaultMaxRetries = 3
	// DefaultBaseDelay is the first backoff delay; each retry doubles it.
	DefaultBaseDelay = 5 * time.Second
	// DefaultMaxDelay caps the backoff delay.
	DefaultMaxDelay = 60 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy bounds every attempt with a timeout and re-issues transient failures
// with exponential backoff.
type Policy struct {
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	sleep      SleepFunc
	logger     *slog.Logger
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithMaxRetries sets the retry budget. Zero disables retries.
func WithMaxRetries(n int) PolicyOption {
	return func(p *Policy) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithBackoff sets the first delay and the cap.
func WithBackoff(base, max time.Duration) PolicyOption {
	return func(p *Policy) {
		if base > 0 {
			p.baseDelay = base
		}
		if max > 0 {
			p.maxDelay = max
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep SleepFunc) PolicyOption {
	return func(p *Policy) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for retry notices.
func WithLogger(logger *slog.Logger) PolicyOption {
	return func(p *Policy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPolicy creates a policy whose attempts are each bounded by timeout.
func NewPolicy(timeout time.Duration, opts ...PolicyOption) *Policy {
	p := &Policy{
		timeout:    timeout,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
		sleep:      sleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the per-attempt bound.
func (p *Policy) Timeout() time.Duration {
	return p.timeout
}

// Backoff returns the delay before retry number attempt (zero-based).
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, fails permanently, or exhausts the retry
// budget. Transport failures and provider failures whose reason is transient
// are retried; a timed-out attempt is returned at once as a TimeoutError.
func (p *Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		lastErr = p.guard(ctx, name, fn)
		if lastErr == nil {
			return nil
		}

		if !isTransient(lastErr) {
			return lastErr
		}

		if attempt == p.maxRetries {
			break
		}

		delay := p.Backoff(attempt)
		p.logger.Warn("provider call failed, retrying",
			slog.String("provider", name),
			slog.String("error", lastErr.Error()),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
		)
		trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
			attribute.String("provider", name),
			attribute.Int("attempt", attempt+1),
			attribute.String("backoff", delay.String()),
		))

		if err := p.sleep(ctx, delay); err != nil {
			return domain.ErrTimeout("%s: cancelled while waiting to retry", name).WithProvider(name).WithCause(err)
		}
	}

	gwErr, _ := domain.AsGatewayError(lastErr)
	exhausted := *gwErr
	exhausted.Message = fmt.Sprintf("%s after %d attempts", gwErr.Message, p.maxRetries+1)
	exhausted.Err = lastErr
	return &exhausted
}

// guard runs a single attempt under the per-attempt timeout.
func (p *Policy) guard(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if p.timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err == nil {
		return nil
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout("no response within %s", p.timeout).WithProvider(name).WithCause(err)
	}
	return err
}

func isTransient(err error) bool {
	gwErr, ok := domain.AsGatewayError(err)
	return ok && gwErr.Transient()
}
