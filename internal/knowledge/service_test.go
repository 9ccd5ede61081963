package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lorebase/lore/internal/embed"
)

// mockStorage records calls and returns scripted results.
type mockStorage struct {
	createdContent string
	createdChunks  []Chunk
	createErr      error

	searchVector    []float32
	searchThreshold float64
	searchLimit     int
	searchResult    []Match
	searchErr       error

	deletedID uuid.UUID
	deleteErr error

	listResult []Resource
	listErr    error
}

func (m *mockStorage) CreateResource(ctx context.Context, content string, chunks []Chunk) (Resource, error) {
	m.createdContent = content
	m.createdChunks = chunks
	if m.createErr != nil {
		return Resource{}, m.createErr
	}
	return Resource{ID: uuid.New(), Content: content}, nil
}

func (m *mockStorage) SearchChunks(ctx context.Context, vector []float32, threshold float64, limit int) ([]Match, error) {
	m.searchVector = vector
	m.searchThreshold = threshold
	m.searchLimit = limit
	return m.searchResult, m.searchErr
}

func (m *mockStorage) DeleteResource(ctx context.Context, id uuid.UUID) error {
	m.deletedID = id
	return m.deleteErr
}

func (m *mockStorage) ListResources(ctx context.Context) ([]Resource, error) {
	return m.listResult, m.listErr
}

// mockEmbedClient returns predictable vectors keyed by input order.
type mockEmbedClient struct {
	oneVector []float32
	oneErr    error
	manyErr   error

	embeddedTexts []string
	queryText     string
}

func (m *mockEmbedClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	m.queryText = text
	if m.oneErr != nil {
		return nil, m.oneErr
	}
	if m.oneVector != nil {
		return m.oneVector, nil
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedClient) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	m.embeddedTexts = texts
	if m.manyErr != nil {
		return nil, m.manyErr
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 2}
	}
	return vectors, nil
}

func newTestService(store *mockStorage, embedder *mockEmbedClient) *Service {
	return NewService(store, embedder, 0.5, 4, nil)
}

func TestAddResource(t *testing.T) {
	store := &mockStorage{}
	embedder := &mockEmbedClient{}
	svc := newTestService(store, embedder)

	msg, err := svc.AddResource(context.Background(), "The sky is blue. Water is wet.")
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if msg != CreatedMessage {
		t.Errorf("message = %q, want %q", msg, CreatedMessage)
	}

	if store.createdContent != "The sky is blue. Water is wet." {
		t.Errorf("stored content = %q", store.createdContent)
	}
	if len(store.createdChunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(store.createdChunks))
	}
	if store.createdChunks[0].Content != "The sky is blue" {
		t.Errorf("chunk 0 = %q", store.createdChunks[0].Content)
	}
	if store.createdChunks[1].Content != " Water is wet" {
		t.Errorf("chunk 1 = %q", store.createdChunks[1].Content)
	}
	// Chunk i must carry vector i.
	if store.createdChunks[1].Embedding[0] != 1 {
		t.Error("chunk/vector pairing lost")
	}
}

func TestAddResource_EmptyContent(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t", "...", ". . ."} {
		store := &mockStorage{}
		svc := newTestService(store, &mockEmbedClient{})

		_, err := svc.AddResource(context.Background(), content)
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("AddResource(%q) = %v, want ErrEmptyContent", content, err)
		}
		if store.createdContent != "" {
			t.Errorf("AddResource(%q) reached storage", content)
		}
	}
}

func TestAddResource_EmbedFailure(t *testing.T) {
	store := &mockStorage{}
	embedder := &mockEmbedClient{manyErr: embed.ErrService}
	svc := newTestService(store, embedder)

	_, err := svc.AddResource(context.Background(), "Some fact.")
	if !errors.Is(err, embed.ErrService) {
		t.Errorf("got %v, want wrapped embed.ErrService", err)
	}
	if store.createdContent != "" {
		t.Error("nothing should be stored when embedding fails")
	}
}

func TestAddResource_StoreFailure(t *testing.T) {
	store := &mockStorage{createErr: errors.New("connection reset")}
	svc := newTestService(store, &mockEmbedClient{})

	_, err := svc.AddResource(context.Background(), "Some fact.")
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("store failure not surfaced: %v", err)
	}
}

func TestFindRelevant(t *testing.T) {
	store := &mockStorage{
		searchResult: []Match{
			{Content: "The sky is blue", Similarity: 0.91},
			{Content: "Oceans look blue", Similarity: 0.72},
		},
	}
	embedder := &mockEmbedClient{oneVector: []float32{0.1, 0.2, 0.3}}
	svc := newTestService(store, embedder)

	matches, err := svc.FindRelevant(context.Background(), "what color is the sky?")
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Similarity < matches[1].Similarity {
		t.Error("matches not in descending similarity order")
	}
	if store.searchThreshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", store.searchThreshold)
	}
	if store.searchLimit != 4 {
		t.Errorf("limit = %v, want 4", store.searchLimit)
	}
	if store.searchVector[0] != 0.1 {
		t.Error("search did not use the query embedding")
	}
}

func TestFindRelevant_NoMatches(t *testing.T) {
	store := &mockStorage{}
	svc := newTestService(store, &mockEmbedClient{})

	matches, err := svc.FindRelevant(context.Background(), "unknown topic")
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestFindRelevant_EmbedFailure(t *testing.T) {
	embedder := &mockEmbedClient{oneErr: embed.ErrService}
	svc := newTestService(&mockStorage{}, embedder)

	_, err := svc.FindRelevant(context.Background(), "anything")
	if !errors.Is(err, embed.ErrService) {
		t.Errorf("got %v, want wrapped embed.ErrService", err)
	}
}

func TestDeleteResource(t *testing.T) {
	store := &mockStorage{}
	svc := newTestService(store, &mockEmbedClient{})

	id := uuid.New()
	if err := svc.DeleteResource(context.Background(), id); err != nil {
		t.Fatalf("DeleteResource: %v", err)
	}
	if store.deletedID != id {
		t.Errorf("deleted %v, want %v", store.deletedID, id)
	}
}

func TestDeleteResource_NotFound(t *testing.T) {
	store := &mockStorage{deleteErr: ErrResourceNotFound}
	svc := newTestService(store, &mockEmbedClient{})

	err := svc.DeleteResource(context.Background(), uuid.New())
	if !errors.Is(err, ErrResourceNotFound) {
		t.Errorf("got %v, want ErrResourceNotFound", err)
	}
}
