package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a unit of source material added to the knowledge base.
// Its content is chunked and embedded at creation time; the derived
// embeddings share the resource's lifecycle and are removed with it.
type Resource struct {
	ID        uuid.UUID
	Content   string
	CreatedAt time.Time
}

// Chunk is one embeddable piece of a resource, paired with its vector.
type Chunk struct {
	Content   string
	Embedding []float32
}

// Match is a retrieved chunk with its cosine similarity to the query,
// in [0, 1] for the vectors we store. Higher is more similar.
type Match struct {
	Content    string
	Similarity float64
}
