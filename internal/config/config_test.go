package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GENAI_AUTH__JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Load() port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.BaseDelay != 5*time.Second || cfg.Retry.MaxDelay != time.Minute {
		t.Errorf("Load() retry = %+v", cfg.Retry)
	}
	if cfg.Timeouts.Image != 300*time.Second || cfg.Timeouts.Chat != 120*time.Second {
		t.Errorf("Load() timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Artifacts.Backend != "bolt" || cfg.Artifacts.URLTTL != 7*24*time.Hour {
		t.Errorf("Load() artifacts = %+v", cfg.Artifacts)
	}
	if !cfg.Janitor.Enabled || cfg.Janitor.Schedule != "@hourly" || cfg.Janitor.GracePeriod != time.Hour {
		t.Errorf("Load() janitor = %+v", cfg.Janitor)
	}
	if cfg.Providers.Gemini.TokenBudget != 8000 {
		t.Errorf("Load() token budget = %d, want 8000", cfg.Providers.Gemini.TokenBudget)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Setenv("HF_TOKEN", "hf-abc")
	t.Setenv("GENAI_SERVER__PORT", "9000")

	path := writeConfig(t, t.TempDir(), `
server:
  port: 7000
  request_timeout: 2m
auth:
  jwt_secret: file-secret
artifacts:
  backend: gcs
  bucket: media-bucket
providers:
  huggingface:
    api_key: ${HF_TOKEN}
    model_urls:
      model2: http://hf.local/sd3
retry:
  max_retries: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Load() port = %v, want env override 9000", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 2*time.Minute {
		t.Errorf("Load() request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Providers.HuggingFace.APIKey != "hf-abc" {
		t.Errorf("Load() huggingface key = %q, want hf-abc", cfg.Providers.HuggingFace.APIKey)
	}
	if got := cfg.Providers.HuggingFace.ModelURLs["model2"]; got != "http://hf.local/sd3" {
		t.Errorf("Load() model2 url = %q", got)
	}
	if cfg.Artifacts.Bucket != "media-bucket" || cfg.Retry.MaxRetries != 1 {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"no secret", "server:\n  port: 1\n", "jwt_secret"},
		{"gcs without bucket", "auth:\n  jwt_secret: x\nartifacts:\n  backend: gcs\n", "artifacts.bucket"},
		{"unknown backend", "auth:\n  jwt_secret: x\nartifacts:\n  backend: s3\n", "artifacts.backend"},
		{"unknown ledger", "auth:\n  jwt_secret: x\nledger:\n  driver: postgres\n", "ledger.driver"},
		{"inverted delays", "auth:\n  jwt_secret: x\nretry:\n  base_delay: 2m\n  max_delay: 1m\n", "retry delays"},
		{"zero timeout", "auth:\n  jwt_secret: x\ntimeouts:\n  ocr: 0s\n", "timeouts.ocr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR_FOR_TEST}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "auth:\n  jwt_secret: x\nproviders:\n  gemini:\n    api_key: old\n")

	w, err := NewWatcher(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()
	if got := w.Current().Providers.Gemini.APIKey; got != "old" {
		t.Fatalf("Current() gemini key = %q, want old", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan *Config, 4)
	if err := w.Watch(ctx, func(c *Config) { changed <- c }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// An invalid edit is skipped.
	writeConfig(t, dir, "auth:\n  jwt_secret: \"\"\n")
	writeConfig(t, dir, "auth:\n  jwt_secret: x\nproviders:\n  gemini:\n    api_key: new\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Providers.Gemini.APIKey == "new" {
				if w.Current().Providers.Gemini.APIKey != "new" {
					t.Error("Current() not updated")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
