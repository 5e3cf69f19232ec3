// Package gateway runs each generation end to end: provider call under the
// retry and timeout policy, artifact upload, URL signing, and the history
// append. It also owns ownership-checked deletion.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/genai-gateway/internal/api/elevenlabs"
	"github.com/tjfontaine/genai-gateway/internal/api/gemini"
	"github.com/tjfontaine/genai-gateway/internal/api/huggingface"
	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/provider"
	"github.com/tjfontaine/genai-gateway/internal/storage"
	"github.com/tjfontaine/genai-gateway/internal/tokens"
)

// DefaultURLTTL is how long retrieval URLs stay valid.
const DefaultURLTTL = 7 * 24 * time.Hour

// Per-modality attempt timeouts.
const (
	DefaultChatTimeout   = 120 * time.Second
	DefaultImageTimeout  = 300 * time.Second
	DefaultSpeechTimeout = 120 * time.Second
	DefaultMusicTimeout  = 120 * time.Second
	DefaultOCRTimeout    = 120 * time.Second
)

// ChatProvider continues a conversation.
type ChatProvider interface {
	GenerateContent(ctx context.Context, req *gemini.GenerateContentRequest) (*gemini.GenerateContentResponse, error)
}

// ImageProvider renders a prompt to JPEG bytes.
type ImageProvider interface {
	TextToImage(ctx context.Context, model string, req *huggingface.TextToImageRequest) ([]byte, error)
}

// SpeechProvider synthesizes MP3 speech.
type SpeechProvider interface {
	TextToSpeech(ctx context.Context, voiceID string, req *elevenlabs.SpeechRequest) ([]byte, error)
}

// MusicProvider generates MP3 sound clips.
type MusicProvider interface {
	SoundGeneration(ctx context.Context, req *elevenlabs.SoundRequest) ([]byte, error)
}

// OCRProvider extracts text from an image.
type OCRProvider interface {
	DetectText(ctx context.Context, img []byte) (string, error)
}

// Providers is the set of upstream adapters. A nil entry makes that modality
// fail with a ConfigurationError.
type Providers struct {
	Chat   ChatProvider
	Image  ImageProvider
	Speech SpeechProvider
	Music  MusicProvider
	OCR    OCRProvider
}

// Gateway is the orchestrator.
type Gateway struct {
	ledger    storage.HistoryLedger
	artifacts storage.ArtifactStore

	mu        sync.RWMutex
	providers Providers

	policies map[domain.Modality]*provider.Policy
	urlTTL   time.Duration
	budget   *tokens.Budget
	clock    *storage.KeyClock
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithProviders sets the upstream adapters.
func WithProviders(p Providers) Option {
	return func(g *Gateway) {
		g.providers = p
	}
}

// WithPolicy overrides the call policy for one modality.
func WithPolicy(m domain.Modality, p *provider.Policy) Option {
	return func(g *Gateway) {
		if p != nil {
			g.policies[m] = p
		}
	}
}

// WithURLTTL sets the retrieval URL lifetime.
func WithURLTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.urlTTL = ttl
		}
	}
}

// WithTokenBudget sets the chat transcript budget.
func WithTokenBudget(b *tokens.Budget) Option {
	return func(g *Gateway) {
		if b != nil {
			g.budget = b
		}
	}
}

// WithKeyClock sets the timestamp source for artifact keys.
func WithKeyClock(c *storage.KeyClock) Option {
	return func(g *Gateway) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// DefaultPolicies returns the standard policy per modality, each using the
// given options (retry budget, backoff, logger).
func DefaultPolicies(opts ...provider.PolicyOption) map[domain.Modality]*provider.Policy {
	return map[domain.Modality]*provider.Policy{
		domain.ModalityChat:   provider.NewPolicy(DefaultChatTimeout, opts...),
		domain.ModalityImage:  provider.NewPolicy(DefaultImageTimeout, opts...),
		domain.ModalitySpeech: provider.NewPolicy(DefaultSpeechTimeout, opts...),
		domain.ModalityMusic:  provider.NewPolicy(DefaultMusicTimeout, opts...),
		domain.ModalityOCR:    provider.NewPolicy(DefaultOCRTimeout, opts...),
	}
}

// New creates a gateway over the given ledger and artifact store.
func New(ledger storage.HistoryLedger, artifacts storage.ArtifactStore, opts ...Option) (*Gateway, error) {
	if ledger == nil {
		return nil, domain.ErrConfiguration("history ledger is required")
	}
	if artifacts == nil {
		return nil, domain.ErrConfiguration("artifact store is required")
	}

	g := &Gateway{
		ledger:    ledger,
		artifacts: artifacts,
		policies:  DefaultPolicies(),
		urlTTL:    DefaultURLTTL,
		clock:     storage.NewKeyClock(nil),
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/tjfontaine/genai-gateway/internal/gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.budget == nil {
		g.budget = tokens.NewBudget(tokens.DefaultBudget)
	}
	return g, nil
}

// SetProviders swaps the upstream adapters, e.g. after a credential rotation.
// Requests already in flight keep the adapters they started with.
func (g *Gateway) SetProviders(p Providers) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.providers = p
}

func (g *Gateway) snapshot() Providers {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.providers
}

func (g *Gateway) policy(m domain.Modality) *provider.Policy {
	if p, ok := g.policies[m]; ok {
		return p
	}
	return provider.NewPolicy(DefaultChatTimeout, provider.WithLogger(g.logger))
}

// Generate validates req, dispatches it to its modality, and returns the
// result once the artifact and history record are both durable.
func (g *Gateway) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "gateway.generate", trace.WithAttributes(
		attribute.String("modality", string(req.Modality())),
	))
	defer span.End()

	providers := g.snapshot()

	var (
		result *domain.GenerationResult
		err    error
	)
	switch p := req.Payload.(type) {
	case *domain.ChatRequest:
		result, err = g.chat(ctx, providers.Chat, req.Owner, p)
	case *domain.ImageRequest:
		result, err = g.image(ctx, providers.Image, req.Owner, p)
	case *domain.SpeechRequest:
		result, err = g.speech(ctx, providers.Speech, req.Owner, p)
	case *domain.MusicRequest:
		result, err = g.music(ctx, providers.Music, req.Owner, p)
	case *domain.OCRRequest:
		result, err = g.ocr(ctx, providers.OCR, p)
	default:
		err = domain.ErrValidation("unsupported payload %T", req.Payload)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("generation failed",
			slog.String("owner", string(req.Owner)),
			slog.String("modality", string(req.Modality())),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("record_id", result.RecordID))
	g.logger.Info("generation complete",
		slog.String("owner", string(req.Owner)),
		slog.String("modality", string(result.Modality)),
		slog.Int64("record_id", result.RecordID),
		slog.String("storage_path", result.StoragePath),
	)
	return result, nil
}

// stage runs fn inside a child span.
func (g *Gateway) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// call runs one provider exchange under the modality's policy.
func (g *Gateway) call(ctx context.Context, m domain.Modality, name string, fn func(ctx context.Context) error) error {
	return g.stage(ctx, "provider.call", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("provider", name))
		return g.policy(m).Do(ctx, name, fn)
	})
}

// upload stores data under a fresh key for owner and returns its path.
func (g *Gateway) upload(ctx context.Context, m domain.Modality, owner domain.Identity, conversationID, ext, contentType string, data []byte) (string, error) {
	key := storage.ArtifactKey(storage.Kind(m), owner, conversationID, g.clock.Next(), ext)

	var path string
	err := g.stage(ctx, "artifact.upload", func(ctx context.Context) error {
		var err error
		path, err = g.artifacts.Upload(ctx, key, contentType, data)
		if err != nil {
			if _, ok := domain.AsGatewayError(err); !ok {
				err = domain.ErrStorage("upload", err)
			}
		}
		return err
	})
	return path, err
}

// sign mints a retrieval URL for path. A signing failure is logged and the
// storage path is returned instead, since the artifact itself is durable.
func (g *Gateway) sign(ctx context.Context, path string) string {
	var signed string
	err := g.stage(ctx, "artifact.sign", func(ctx context.Context) error {
		var err error
		signed, err = g.artifacts.SignURL(ctx, path, g.urlTTL)
		return err
	})
	if err != nil {
		g.logger.Warn("failed to sign artifact URL, using storage path",
			slog.String("storage_path", path),
			slog.String("error", err.Error()),
		)
		return path
	}
	return signed
}

// record runs a ledger append. When it fails after an upload, the artifact
// is deleted so no orphan is left behind; the janitor catches any that
// survive a failed compensation.
func (g *Gateway) record(ctx context.Context, path string, appendFn func(ctx context.Context) (int64, error)) (int64, error) {
	var id int64
	err := g.stage(ctx, "ledger.append", func(ctx context.Context) error {
		var err error
		id, err = appendFn(ctx)
		return err
	})
	if err == nil {
		return id, nil
	}

	if path != "" {
		if delErr := g.artifacts.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			g.logger.Error("failed to remove artifact after ledger failure",
				slog.String("storage_path", path),
				slog.String("error", delErr.Error()),
			)
		}
	}
	if _, ok := domain.AsGatewayError(err); !ok {
		err = domain.ErrStorage("record history", err)
	}
	return 0, err
}
