// Package knowledge manages the knowledge base: resources, their chunk
// embeddings, and similarity retrieval over them.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/lorebase/lore/internal/chunk"
	"github.com/lorebase/lore/internal/embed"
)

// CreatedMessage is the confirmation returned to the model after a
// successful ingestion.
const CreatedMessage = "Resource successfully created and embedded."

// ErrEmptyContent indicates ingestion was asked to store nothing.
var ErrEmptyContent = errors.New("resource content is empty")

// Storage is what the service needs from the persistence layer.
// *Store satisfies it.
type Storage interface {
	CreateResource(ctx context.Context, content string, chunks []Chunk) (Resource, error)
	SearchChunks(ctx context.Context, vector []float32, threshold float64, limit int) ([]Match, error)
	DeleteResource(ctx context.Context, id uuid.UUID) error
	ListResources(ctx context.Context) ([]Resource, error)
}

// Service ties chunking, embedding, and storage together. It implements
// the two sides of the knowledge base: ingestion and retrieval.
//
// Service is safe for concurrent use.
type Service struct {
	store     Storage
	embedder  embed.Client
	threshold float64
	limit     int
	logger    *slog.Logger
}

// NewService creates a Service. threshold is the minimum similarity a
// chunk must exceed to be retrieved; limit caps the number of matches.
func NewService(store Storage, embedder embed.Client, threshold float64, limit int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		limit:     limit,
		logger:    logger,
	}
}

// AddResource chunks content, embeds every chunk, and stores the
// resource with its embeddings atomically. On success it returns
// CreatedMessage, suitable for feeding straight back to the model.
func (s *Service) AddResource(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	chunks := chunk.Split(content)
	if len(chunks) == 0 {
		return "", ErrEmptyContent
	}

	vectors, err := s.embedder.EmbedMany(ctx, chunks)
	if err != nil {
		return "", fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return "", fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	embedded := make([]Chunk, len(chunks))
	for i, c := range chunks {
		embedded[i] = Chunk{Content: c, Embedding: vectors[i]}
	}

	res, err := s.store.CreateResource(ctx, content, embedded)
	if err != nil {
		return "", fmt.Errorf("store resource: %w", err)
	}

	s.logger.Info("resource ingested", "resource_id", res.ID, "chunks", len(embedded))
	return CreatedMessage, nil
}

// FindRelevant embeds the question and returns the stored chunks most
// similar to it, strongest match first. An empty result means the
// knowledge base has nothing relevant, not an error.
func (s *Service) FindRelevant(ctx context.Context, question string) ([]Match, error) {
	vector, err := s.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := s.store.SearchChunks(ctx, vector, s.threshold, s.limit)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("retrieval done", "matches", len(matches))
	return matches, nil
}

// DeleteResource removes a resource and, through the schema's cascade,
// all embeddings derived from it.
func (s *Service) DeleteResource(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteResource(ctx, id)
}

// ListResources returns all stored resources, newest first.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.store.ListResources(ctx)
}
