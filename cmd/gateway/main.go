package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/genai-gateway/internal/auth"
	"github.com/tjfontaine/genai-gateway/internal/config"
	"github.com/tjfontaine/genai-gateway/internal/domain"
	"github.com/tjfontaine/genai-gateway/internal/gateway"
	"github.com/tjfontaine/genai-gateway/internal/janitor"
	"github.com/tjfontaine/genai-gateway/internal/server"
	"github.com/tjfontaine/genai-gateway/internal/telemetry"
	"github.com/tjfontaine/genai-gateway/internal/tokens"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := domain.ValidateCatalogs(); err != nil {
		log.Fatalf("Invalid built-in catalog: %v", err)
	}

	watcher, err := config.NewWatcher(*configPath, logger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	shutdownTracer, err := telemetry.InitTracer(telemetry.ServiceName, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var authOpts []auth.Option
	if cfg.Auth.Issuer != "" {
		authOpts = append(authOpts, auth.WithIssuer(cfg.Auth.Issuer))
	}
	authn, err := auth.NewAuthenticator([]byte(cfg.Auth.JWTSecret), authOpts...)
	if err != nil {
		log.Fatalf("Failed to create authenticator: %v", err)
	}

	ledger, err := openLedger(cfg.Ledger)
	if err != nil {
		log.Fatalf("Failed to open history ledger: %v", err)
	}
	defer ledger.Close()

	artifacts, err := openArtifacts(ctx, cfg.Artifacts, authn)
	if err != nil {
		log.Fatalf("Failed to open artifact store: %v", err)
	}
	defer artifacts.Close()

	gwOpts := []gateway.Option{
		gateway.WithProviders(buildProviders(cfg.Providers)),
		gateway.WithURLTTL(cfg.Artifacts.URLTTL),
		gateway.WithTokenBudget(tokens.NewBudget(cfg.Providers.Gemini.TokenBudget)),
		gateway.WithLogger(logger),
	}
	for m, p := range buildPolicies(cfg, logger) {
		gwOpts = append(gwOpts, gateway.WithPolicy(m, p))
	}
	gw, err := gateway.New(ledger, artifacts.store, gwOpts...)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	var jan *janitor.Janitor
	if cfg.Janitor.Enabled {
		jan = janitor.New(artifacts.store, ledger,
			janitor.WithGracePeriod(cfg.Janitor.GracePeriod),
			janitor.WithLogger(logger))
		if err := jan.Start(cfg.Janitor.Schedule); err != nil {
			log.Fatalf("Failed to start janitor: %v", err)
		}
	}

	if err := watcher.Watch(ctx, func(next *config.Config) {
		gw.SetProviders(buildProviders(next.Providers))
		logger.Info("provider credentials reloaded")
	}); err != nil {
		logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
	}

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}, gw, authn, artifacts.opener, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.String("ledger", cfg.Ledger.Driver),
		slog.String("artifacts", cfg.Artifacts.Backend),
		slog.Bool("janitor", cfg.Janitor.Enabled))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping gateway")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	if jan != nil {
		if err := jan.Stop(shutdownCtx); err != nil {
			logger.Error("janitor stop error", slog.String("error", err.Error()))
		}
	}

	logger.Info("gateway shutdown complete")
}
