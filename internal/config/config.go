// Package config loads gateway settings from an optional YAML file overlaid
// with GENAI_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when Load is given no path.
const DefaultPath = "config.yaml"

// EnvPrefix marks environment overrides. Nested keys use "__", so
// GENAI_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "GENAI_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Ledger    LedgerConfig    `koanf:"ledger"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Providers ProvidersConfig `koanf:"providers"`
	Retry     RetryConfig     `koanf:"retry"`
	Timeouts  TimeoutsConfig  `koanf:"timeouts"`
	Janitor   JanitorConfig   `koanf:"janitor"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	Issuer    string `koanf:"issuer"`
}

type LedgerConfig struct {
	Driver string `koanf:"driver"` // sqlite, memory
	Path   string `koanf:"path"`
}

type ArtifactsConfig struct {
	Backend string        `koanf:"backend"` // gcs, bolt, memory
	URLTTL  time.Duration `koanf:"url_ttl"`

	// GCS
	Bucket          string `koanf:"bucket"`
	CredentialsFile string `koanf:"credentials_file"`
	SignerEmail     string `koanf:"signer_email"`
	SigningKey      string `koanf:"signing_key"` // PEM; usually "${GCS_SIGNING_KEY}"

	// bolt
	BoltPath      string `koanf:"bolt_path"`
	PublicBaseURL string `koanf:"public_base_url"`
}

type ProvidersConfig struct {
	Gemini      GeminiConfig      `koanf:"gemini"`
	HuggingFace HuggingFaceConfig `koanf:"huggingface"`
	ElevenLabs  ElevenLabsConfig  `koanf:"elevenlabs"`
	Vision      VisionConfig      `koanf:"vision"`
}

type GeminiConfig struct {
	APIKey      string `koanf:"api_key"`
	Endpoint    string `koanf:"endpoint"`
	TokenBudget int    `koanf:"token_budget"`
}

type HuggingFaceConfig struct {
	APIKey    string            `koanf:"api_key"`
	ModelURLs map[string]string `koanf:"model_urls"` // selector -> inference URL
}

type ElevenLabsConfig struct {
	APIKey    string `koanf:"api_key"`
	SpeechURL string `koanf:"speech_url"`
	SoundURL  string `koanf:"sound_url"`
}

type VisionConfig struct {
	APIKey   string `koanf:"api_key"`
	Endpoint string `koanf:"endpoint"`
}

type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries"`
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxDelay   time.Duration `koanf:"max_delay"`
}

type TimeoutsConfig struct {
	Chat   time.Duration `koanf:"chat"`
	Image  time.Duration `koanf:"image"`
	Speech time.Duration `koanf:"speech"`
	Music  time.Duration `koanf:"music"`
	OCR    time.Duration `koanf:"ocr"`
}

type JanitorConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Schedule    string        `koanf:"schedule"`
	GracePeriod time.Duration `koanf:"grace_period"`
}

var defaults = map[string]any{
	"server.port":            8080,
	"server.request_timeout": "15m",
	"server.max_body_bytes":  10 << 20,

	"ledger.driver": "sqlite",
	"ledger.path":   "data/history.db",

	"artifacts.backend":         "bolt",
	"artifacts.url_ttl":         "168h",
	"artifacts.bolt_path":       "data/artifacts.db",
	"artifacts.public_base_url": "http://localhost:8080",

	"providers.gemini.token_budget": 8000,

	"retry.max_retries": 3,
	"retry.base_delay":  "5s",
	"retry.max_delay":   "60s",

	"timeouts.chat":   "120s",
	"timeouts.image":  "300s",
	"timeouts.speech": "120s",
	"timeouts.music":  "120s",
	"timeouts.ocr":    "120s",

	"janitor.enabled":      true,
	"janitor.schedule":     "@hourly",
	"janitor.grace_period": "1h",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty; a missing file is not an error),
// applies environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.expandSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandSecrets() {
	for _, s := range []*string{
		&c.Auth.JWTSecret,
		&c.Artifacts.CredentialsFile,
		&c.Artifacts.SigningKey,
		&c.Providers.Gemini.APIKey,
		&c.Providers.HuggingFace.APIKey,
		&c.Providers.ElevenLabs.APIKey,
		&c.Providers.Vision.APIKey,
	} {
		*s = substituteEnvVars(*s)
	}
}

// Validate rejects settings the gateway cannot start with. Missing provider
// keys are allowed; those modalities fail per request instead.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Ledger.Driver {
	case "sqlite":
		if c.Ledger.Path == "" {
			return errors.New("ledger.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown ledger.driver %q", c.Ledger.Driver)
	}
	switch c.Artifacts.Backend {
	case "gcs":
		if c.Artifacts.Bucket == "" {
			return errors.New("artifacts.bucket is required for the gcs backend")
		}
	case "bolt":
		if c.Artifacts.BoltPath == "" {
			return errors.New("artifacts.bolt_path is required for the bolt backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend)
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must not be negative")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return errors.New("retry delays must satisfy 0 < base_delay <= max_delay")
	}
	for name, d := range map[string]time.Duration{
		"chat": c.Timeouts.Chat, "image": c.Timeouts.Image, "speech": c.Timeouts.Speech,
		"music": c.Timeouts.Music, "ocr": c.Timeouts.OCR,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
