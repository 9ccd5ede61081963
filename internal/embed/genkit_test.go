package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr   error
	dimensions int
	inputs     [][]string // recorded input texts per call
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	var texts []string
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			texts = append(texts, doc.Content[0].Text)
		}
	}
	m.inputs = append(m.inputs, texts)

	if m.embedErr != nil {
		return nil, m.embedErr
	}

	resp := &ai.EmbedResponse{}
	for i := range req.Input {
		vec := make([]float32, m.dimensions)
		// Distinct per-index values so order preservation is observable.
		vec[0] = float32(i + 1)
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

func TestCleanQuery(t *testing.T) {
	got := CleanQuery(`what\nis\nthe\ncapital`)
	want := "what is the capital"
	if got != want {
		t.Errorf("CleanQuery = %q, want %q", got, want)
	}

	// Actual newline characters are not the target, only literal \n.
	if got := CleanQuery("line1\nline2"); got != "line1\nline2" {
		t.Errorf("real newline should pass through, got %q", got)
	}
}

func TestEmbedOne_CleansQuery(t *testing.T) {
	m := &mockEmbedder{dimensions: 4}
	c, err := NewGenkitClient(m, 4, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.EmbedOne(context.Background(), `sky\ncolor`); err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}

	if len(m.inputs) != 1 || len(m.inputs[0]) != 1 {
		t.Fatalf("expected one call with one input, got %#v", m.inputs)
	}
	if m.inputs[0][0] != "sky color" {
		t.Errorf("query not cleaned before embedding: %q", m.inputs[0][0])
	}
}

func TestEmbedMany_OrderPreserving(t *testing.T) {
	m := &mockEmbedder{dimensions: 4}
	c, err := NewGenkitClient(m, 4, nil)
	if err != nil {
		t.Fatal(err)
	}

	vectors, err := c.EmbedMany(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: first element %v", i, v[0])
		}
	}
}

func TestEmbedMany_EmptyInput(t *testing.T) {
	m := &mockEmbedder{dimensions: 4}
	c, _ := NewGenkitClient(m, 4, nil)

	vectors, err := c.EmbedMany(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedMany(nil): %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil result for empty input, got %#v", vectors)
	}
	if len(m.inputs) != 0 {
		t.Error("empty input must not hit the embedding service")
	}
}

func TestEmbed_ServiceError(t *testing.T) {
	m := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	c, _ := NewGenkitClient(m, 4, nil)

	_, err := c.EmbedOne(context.Background(), "q")
	if !errors.Is(err, ErrService) {
		t.Errorf("got %v, want ErrService", err)
	}
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	m := &mockEmbedder{dimensions: 8}
	c, _ := NewGenkitClient(m, 1536, nil)

	_, err := c.EmbedMany(context.Background(), []string{"a"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestNewGenkitClient_RequiresEmbedder(t *testing.T) {
	if _, err := NewGenkitClient(nil, 4, nil); err == nil {
		t.Error("expected error for nil embedder")
	}
}
