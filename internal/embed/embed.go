// Package embed turns text into fixed-dimension vectors via an external
// embedding service.
//
// Calls are not cached and not retried here; a failed call surfaces as an
// error wrapping ErrService and the caller decides what to tell the model.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrService indicates the external embedding service call failed
// (network, quota, or a malformed response).
var ErrService = errors.New("embedding service error")

// ErrDimensionMismatch indicates the service returned a vector whose
// dimensionality does not match the knowledge store's configuration.
// This is a fatal configuration error, not a transient failure.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Client produces embedding vectors for chunks and queries.
//
// Both methods are order-preserving: the i-th output vector corresponds
// to the i-th input text.
type Client interface {
	// EmbedOne embeds a single query string. Literal `\n` sequences are
	// replaced with spaces before embedding.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany embeds a batch of chunk texts in one service call.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// CleanQuery replaces literal backslash-n sequences with spaces.
// Queries typed by the model (or pasted by a user) sometimes carry
// escaped newlines that degrade embedding quality.
func CleanQuery(text string) string {
	return strings.ReplaceAll(text, `\n`, " ")
}

// checkDimensions verifies every vector has the expected length.
// want <= 0 disables the check.
func checkDimensions(vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: vector %d has %d dimensions, store expects %d",
				ErrDimensionMismatch, i, len(v), want)
		}
	}
	return nil
}
