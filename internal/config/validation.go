package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimensions indicates the embedder dimensionality
	// does not match what the store schema expects.
	ErrInvalidEmbedderDimensions = errors.New("invalid embedder dimensions")

	// ErrInvalidRetrievalThreshold indicates the similarity threshold is
	// outside the cosine similarity range.
	ErrInvalidRetrievalThreshold = errors.New("invalid retrieval threshold")

	// ErrInvalidRetrievalLimit indicates the result cap is not positive.
	ErrInvalidRetrievalLimit = errors.New("invalid retrieval limit")

	// ErrInvalidMaxSteps indicates the step budget is out of range.
	ErrInvalidMaxSteps = errors.New("invalid max steps")

	// ErrInvalidTurnTimeout indicates the turn timeout is not positive.
	ErrInvalidTurnTimeout = errors.New("invalid turn timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// MaxStepsCeiling is the absolute maximum step budget. The orchestrator's
// loop bound is the primary guard against runaway tool-call cost; allowing
// an arbitrarily large budget would defeat it.
const MaxStepsCeiling = 25

// Validate checks the configuration and fails fast with a sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Provider != ProviderGoogleAI {
		return fmt.Errorf("%w: %q (supported: %s)", ErrInvalidProvider, c.Provider, ProviderGoogleAI)
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidEmbedderModel)
	}
	if c.EmbedderDimensions <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidEmbedderDimensions, c.EmbedderDimensions)
	}

	if c.RetrievalThreshold < -1 || c.RetrievalThreshold > 1 {
		return fmt.Errorf("%w: %g (cosine similarity range is [-1, 1])", ErrInvalidRetrievalThreshold, c.RetrievalThreshold)
	}
	if c.RetrievalLimit <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidRetrievalLimit, c.RetrievalLimit)
	}

	if c.MaxSteps <= 0 || c.MaxSteps > MaxStepsCeiling {
		return fmt.Errorf("%w: %d (must be in 1..%d)", ErrInvalidMaxSteps, c.MaxSteps, MaxStepsCeiling)
	}
	if c.TurnTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: %d seconds", ErrInvalidTurnTimeout, c.TurnTimeoutSeconds)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
