// Package config provides application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables (runtime override)
//  2. Config file (~/.lore/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories:
//   - AI: provider, model, embedder model and dimensions
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: similarity threshold and result cap
//   - Chat: step budget, turn timeout, auto-ingest policy
//
// Validation lives in validation.go and uses sentinel errors so callers
// can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
)

// Retrieval policy defaults. The threshold and cap are the values the test
// suite pins; they may be overridden in config but these are the documented
// defaults.
const (
	DefaultRetrievalThreshold = 0.5
	DefaultRetrievalLimit     = 4
)

// DefaultEmbedderModel is the default embedding model. text-embedding-004
// style Gemini embedders support output truncation; the dimensionality
// below must match the embeddings table's vector column.
const DefaultEmbedderModel = "gemini-embedding-001"

// DefaultEmbedderDimensions is the vector dimensionality the store is
// migrated with. A mismatch between the embedder's output and this value
// is a fatal configuration error.
const DefaultEmbedderDimensions = 1536

// Chat loop defaults.
const (
	// DefaultMaxSteps bounds model-decision steps per user turn.
	DefaultMaxSteps = 5

	// DefaultTurnTimeoutSeconds bounds the wall clock of one whole turn,
	// covering all model and tool round-trips.
	DefaultTurnTimeoutSeconds = 30
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`
	ModelName string `mapstructure:"model_name" json:"model_name"` // provider-qualified, e.g. "googleai/gemini-2.5-flash"

	// Embedding configuration
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimensions int    `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`

	// Retrieval policy
	RetrievalThreshold float64 `mapstructure:"retrieval_threshold" json:"retrieval_threshold"`
	RetrievalLimit     int     `mapstructure:"retrieval_limit" json:"retrieval_limit"`

	// Chat loop policy
	MaxSteps           int  `mapstructure:"max_steps" json:"max_steps"`
	TurnTimeoutSeconds int  `mapstructure:"turn_timeout_seconds" json:"turn_timeout_seconds"`
	AutoIngest         bool `mapstructure:"auto_ingest" json:"auto_ingest"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: never serialized
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Logging
	LogJSON bool `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".lore")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")

	// Embedding defaults
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimensions", DefaultEmbedderDimensions)

	// Retrieval defaults
	v.SetDefault("retrieval_threshold", DefaultRetrievalThreshold)
	v.SetDefault("retrieval_limit", DefaultRetrievalLimit)

	// Chat loop defaults
	v.SetDefault("max_steps", DefaultMaxSteps)
	v.SetDefault("turn_timeout_seconds", DefaultTurnTimeoutSeconds)
	v.SetDefault("auto_ingest", true)

	// PostgreSQL defaults for local development
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "lore")
	v.SetDefault("postgres_password", "lore_dev_password")
	v.SetDefault("postgres_db_name", "lore")
	v.SetDefault("postgres_ssl_mode", "disable")

	// HTTP server defaults
	v.SetDefault("listen_addr", "localhost:8080")

	// Logging defaults
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "LORE_PROVIDER")
	mustBind("model_name", "LORE_MODEL_NAME")
	mustBind("embedder_model", "LORE_EMBEDDER_MODEL")
	mustBind("listen_addr", "LORE_LISTEN_ADDR")
	mustBind("auto_ingest", "LORE_AUTO_INGEST")
	mustBind("log_json", "LORE_LOG_JSON")
}
