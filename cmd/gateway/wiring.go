package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tjfontaine/genai-gateway/internal/api/elevenlabs"
	"github.com/tjfontaine/genai-gateway/internal/api/gemini"
	"github.com/tjfontaine/genai-gateway/internal/api/huggingface"
	"github.com/tjfontaine/genai-gateway/internal/api/vision"
	"github.com/tjfontaine/genai-gateway/internal/auth"
	"github.com/tjfontaine/genai-gateway/internal/config"
	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/gateway"
	"github.com/tjfontaine/genai-gateway/internal/janitor"
	"github.com/tjfontaine/genai-gateway/internal/provider"
	"github.com/tjfontaine/genai-gateway/internal/server"
	"github.com/tjfontaine/genai-gateway/internal/storage"
	"github.com/tjfontaine/genai-gateway/internal/storage/bolt"
	"github.com/tjfontaine/genai-gateway/internal/storage/gcs"
	"github.com/tjfontaine/genai-gateway/internal/storage/memory"
	"github.com/tjfontaine/genai-gateway/internal/storage/sqlite"
)

func openLedger(cfg config.LedgerConfig) (storage.HistoryLedger, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.New(cfg.Path)
	case "memory":
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
}

// artifactBackend bundles the selected store with what the HTTP layer needs
// from it. opener is nil unless the gateway serves the bytes itself.
type artifactBackend struct {
	store  janitor.Artifacts
	opener server.ArtifactOpener
	close  func() error
}

func (a *artifactBackend) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

func openArtifacts(ctx context.Context, cfg config.ArtifactsConfig, signer *auth.Authenticator) (*artifactBackend, error) {
	switch cfg.Backend {
	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			SignerEmail:     cfg.SignerEmail,
			SignerKey:       []byte(cfg.SigningKey),
		})
		if err != nil {
			return nil, err
		}
		return &artifactBackend{store: store, close: store.Close}, nil
	case "bolt":
		store, err := bolt.Open(cfg.BoltPath, cfg.PublicBaseURL, signer)
		if err != nil {
			return nil, err
		}
		return &artifactBackend{store: store, opener: store, close: store.Close}, nil
	case "memory":
		return &artifactBackend{store: memory.NewArtifacts()}, nil
	}
	return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
}

// buildProviders creates fresh upstream clients. It runs again on every
// config reload so rotated keys take effect for the next request.
func buildProviders(cfg config.ProvidersConfig) gateway.Providers {
	hfOpts := make([]huggingface.ClientOption, 0, len(cfg.HuggingFace.ModelURLs))
	for model, u := range cfg.HuggingFace.ModelURLs {
		hfOpts = append(hfOpts, huggingface.WithModelURL(model, u))
	}
	voice := elevenlabs.NewClient(cfg.ElevenLabs.APIKey,
		elevenlabs.WithSpeechURL(cfg.ElevenLabs.SpeechURL),
		elevenlabs.WithSoundURL(cfg.ElevenLabs.SoundURL))

	return gateway.Providers{
		Chat:   gemini.NewClient(cfg.Gemini.APIKey, gemini.WithEndpoint(cfg.Gemini.Endpoint)),
		Image:  huggingface.NewClient(cfg.HuggingFace.APIKey, hfOpts...),
		Speech: voice,
		Music:  voice,
		OCR:    vision.NewClient(cfg.Vision.APIKey, vision.WithEndpoint(cfg.Vision.Endpoint)),
	}
}

func buildPolicies(cfg *config.Config, logger *slog.Logger) map[domain.Modality]*provider.Policy {
	timeouts := map[domain.Modality]time.Duration{
		domain.ModalityChat:   cfg.Timeouts.Chat,
		domain.ModalityImage:  cfg.Timeouts.Image,
		domain.ModalitySpeech: cfg.Timeouts.Speech,
		domain.ModalityMusic:  cfg.Timeouts.Music,
		domain.ModalityOCR:    cfg.Timeouts.OCR,
	}
	policies := make(map[domain.Modality]*provider.Policy, len(timeouts))
	for m, timeout := range timeouts {
		policies[m] = provider.NewPolicy(timeout,
			provider.WithMaxRetries(cfg.Retry.MaxRetries),
			provider.WithBackoff(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
			provider.WithLogger(logger.With(slog.String("modality", string(m)))))
	}
	return policies
}
