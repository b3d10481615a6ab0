package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Logging    LoggingConfig    `toml:"logging"`
	Extraction ExtractionConfig `toml:"extraction"`
	Storage    StorageConfig    `toml:"storage"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Addr                string   `toml:"addr"`
	CORSAllowedOrigins  []string `toml:"cors_allowed_origins"`
	MaxConnections      int      `toml:"max_connections"`
	ReadTimeoutSeconds  int      `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `toml:"write_timeout_seconds"`
	MaxUploadMB         int      `toml:"max_upload_mb"`
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ExtractionConfig represents the vision model configuration
type ExtractionConfig struct {
	Provider       string  `toml:"provider"` // "openai" or "gemini"
	Model          string  `toml:"model"`
	BaseURL        string  `toml:"base_url"`
	OpenAIAPIKey   string  `toml:"openai_api_key"`
	GeminiAPIKey   string  `toml:"gemini_api_key"`
	GeminiEndpoint string  `toml:"gemini_endpoint"` // empty uses the SDK default
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"` // 0 keeps the transport default
	PromptPath     string  `toml:"prompt_path"`
	MaxImageMB     int     `toml:"max_image_mb"`
}

// StorageConfig represents the record store configuration
type StorageConfig struct {
	Driver      string `toml:"driver"` // "memory", "sqlite" or "postgres"
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
	SeedSamples bool   `toml:"seed_samples"`
}

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Default returns the configuration used when no file overrides a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:                ":8080",
			MaxConnections:      128,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 180,
			MaxUploadMB:         20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Extraction: ExtractionConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			BaseURL:        "https://api.openai.com/v1/",
			MaxTokens:      4000,
			Temperature:    0.2,
			TimeoutSeconds: 120,
			MaxImageMB:     20,
		},
		Storage: StorageConfig{
			Driver:      "memory",
			SQLitePath:  "inspections.db",
			SeedSamples: true,
		},
	}
}

// Load reads the TOML file at path (optional), a .env file in the working
// directory (optional) and environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"OPENAI_API_KEY":       &c.Extraction.OpenAIAPIKey,
		"GEMINI_API_KEY":       &c.Extraction.GeminiAPIKey,
		"DATABASE_URL":         &c.Storage.PostgresDSN,
		"INSPECT_ADDR":         &c.Server.Addr,
		"INSPECT_LOG_LEVEL":    &c.Logging.Level,
		"INSPECT_PROVIDER":     &c.Extraction.Provider,
		"INSPECT_MODEL":        &c.Extraction.Model,
		"INSPECT_STORE_DRIVER": &c.Storage.Driver,
	}
	for key, dst := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
}

// Validate checks that the selected provider and store can be constructed
func (c *Config) Validate() error {
	switch c.Extraction.Provider {
	case "openai":
		if strings.TrimSpace(c.Extraction.OpenAIAPIKey) == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai provider", ErrInvalid)
		}
	case "gemini":
		if strings.TrimSpace(c.Extraction.GeminiAPIKey) == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for the gemini provider", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown extraction provider %q", ErrInvalid, c.Extraction.Provider)
	}

	if c.Extraction.Model == "" {
		return fmt.Errorf("%w: extraction model is empty", ErrInvalid)
	}
	if c.Extraction.MaxImageMB <= 0 {
		return fmt.Errorf("%w: max_image_mb must be > 0", ErrInvalid)
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is empty", ErrInvalid)
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalid, c.Storage.Driver)
	}

	return nil
}
