package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
)

// GenkitClient implements Client on top of a Genkit ai.Embedder.
//
// Safe for concurrent use; the embedder itself carries no per-call state.
type GenkitClient struct {
	embedder   ai.Embedder
	dimensions int
	logger     *slog.Logger
}

// NewGenkitClient wraps embedder as a Client. dimensions is the vector
// length the knowledge store is migrated with; every response vector is
// checked against it (<= 0 disables the check, used by tests).
func NewGenkitClient(embedder ai.Embedder, dimensions int, logger *slog.Logger) (*GenkitClient, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitClient{
		embedder:   embedder,
		dimensions: dimensions,
		logger:     logger,
	}, nil
}

// EmbedOne embeds a single query string after cleanup.
func (c *GenkitClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{CleanQuery(text)})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedMany embeds a batch of chunk texts in one request.
// The response order matches the input order.
func (c *GenkitClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, texts)
}

func (c *GenkitClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]*ai.Document, len(texts))
	for i, t := range texts {
		input[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrService, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			ErrService, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrService, i)
		}
		vectors[i] = e.Embedding
	}

	if err := checkDimensions(vectors, c.dimensions); err != nil {
		return nil, err
	}

	c.logger.Debug("embedded texts", "count", len(texts))
	return vectors, nil
}
