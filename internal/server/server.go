package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/storage/bolt"
)

// Gateway is the orchestrator the handlers drive.
type Gateway interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
	ListChat(ctx context.Context, owner domain.Identity, conversationID string) ([]domain.ChatRecord, error)
	ListImages(ctx context.Context, owner domain.Identity) ([]domain.ImageRecord, error)
	ListSpeech(ctx context.Context, owner domain.Identity) ([]domain.SpeechRecord, error)
	ListMusic(ctx context.Context, owner domain.Identity) ([]domain.MusicRecord, error)
	Delete(ctx context.Context, owner domain.Identity, modality domain.Modality, id int64) error
}

// ArtifactOpener serves artifacts behind signed links.
type ArtifactOpener interface {
	Open(ctx context.Context, key, token string) (*bolt.Object, error)
}

// Config holds the HTTP settings.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	// MaxBodyBytes bounds JSON and upload bodies.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes is used when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 10 << 20

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
	http   *http.Server

	gw      Gateway
	maxBody int64
}

// New builds the router. artifacts may be nil when the artifact store signs
// its own URLs (GCS).
func New(cfg Config, gw Gateway, resolver IdentityResolver, artifacts ArtifactOpener, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Router:  chi.NewRouter(),
		Port:    cfg.Port,
		logger:  logger,
		gw:      gw,
		maxBody: cfg.MaxBodyBytes,
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}

	r := s.Router
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "genai-gateway")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if artifacts != nil {
		r.Get(bolt.RoutePrefix+"*", s.handleArtifact(artifacts))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(resolver))
		r.Use(TimeoutMiddleware(cfg.RequestTimeout))

		r.Get("/voices", s.handleVoices)
		r.Post("/chat", s.handleChat)
		r.Post("/images", s.handleImage)
		r.Post("/speech", s.handleSpeech)
		r.Post("/music", s.handleMusic)
		r.Post("/ocr", s.handleOCR)
		r.Get("/history/{modality}", s.handleHistory)
		r.Delete("/history/{modality}/{id}", s.handleDelete)
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
