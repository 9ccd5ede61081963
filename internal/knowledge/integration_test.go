//go:build integration

package knowledge_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/lorebase/lore/internal/knowledge"
	"github.com/lorebase/lore/internal/testutil"
)

const vectorDims = 1536

// keywordEmbed is a deterministic stand-in for the embedding service.
// Each keyword owns one dimension; texts embed to the normalized sum of
// their keyword axes. Texts sharing keywords are similar, others are
// orthogonal.
type keywordEmbed struct {
	keywords []string
}

func newKeywordEmbed(keywords ...string) *keywordEmbed {
	return &keywordEmbed{keywords: keywords}
}

func (k *keywordEmbed) vector(text string) []float32 {
	v := make([]float32, vectorDims)
	lower := strings.ToLower(text)
	var norm float64
	for i, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			v[i] = 1
			norm++
		}
	}
	if norm == 0 {
		// Unknown text gets its own axis so it matches nothing.
		v[vectorDims-1] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (k *keywordEmbed) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return k.vector(text), nil
}

func (k *keywordEmbed) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = k.vector(t)
	}
	return out, nil
}

func setupService(t *testing.T) (*knowledge.Service, *knowledge.Store, *testutil.TestDB) {
	t.Helper()

	tdb, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store := knowledge.NewStore(tdb.Pool, nil)
	embedder := newKeywordEmbed("sky", "water", "blue", "wet")
	svc := knowledge.NewService(store, embedder, 0.5, 4, nil)
	return svc, store, tdb
}

func TestRoundTrip(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	msg, err := svc.AddResource(ctx, "The sky is blue. Water is wet.")
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if msg != knowledge.CreatedMessage {
		t.Errorf("message = %q", msg)
	}

	matches, err := svc.FindRelevant(ctx, "what color is the sky")
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches for an on-topic question")
	}

	top := matches[0]
	if strings.TrimSpace(top.Content) != "The sky is blue" {
		t.Errorf("top match = %q, want the sky chunk", top.Content)
	}
	if top.Similarity <= 0.5 {
		t.Errorf("top similarity = %v, want > 0.5", top.Similarity)
	}
	for _, m := range matches[1:] {
		if m.Similarity > top.Similarity {
			t.Error("matches not in descending order")
		}
		if strings.TrimSpace(m.Content) == "Water is wet" && m.Similarity >= top.Similarity {
			t.Error("off-topic chunk ranked above the on-topic one")
		}
	}
}

func TestEmptyStore(t *testing.T) {
	svc, _, _ := setupService(t)

	matches, err := svc.FindRelevant(context.Background(), "anything at all")
	if err != nil {
		t.Fatalf("FindRelevant on empty store: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches from an empty store", len(matches))
	}
}

func TestThresholdAndCap(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	// Six sentences about the sky, one about nothing relevant.
	var sb strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&sb, "Sky fact number %d. ", i)
	}
	sb.WriteString("Unrelated gardening trivia.")
	if _, err := svc.AddResource(ctx, sb.String()); err != nil {
		t.Fatalf("AddResource: %v", err)
	}

	matches, err := svc.FindRelevant(ctx, "tell me about the sky")
	if err != nil {
		t.Fatalf("FindRelevant: %v", err)
	}
	if len(matches) > 4 {
		t.Errorf("got %d matches, cap is 4", len(matches))
	}
	for i, m := range matches {
		if m.Similarity <= 0.5 {
			t.Errorf("match %d similarity %v below threshold", i, m.Similarity)
		}
		if i > 0 && m.Similarity > matches[i-1].Similarity {
			t.Error("matches not sorted descending")
		}
		if strings.Contains(m.Content, "gardening") {
			t.Error("orthogonal chunk leaked past the threshold")
		}
	}
}

func TestCascadeDelete(t *testing.T) {
	svc, _, tdb := setupService(t)
	ctx := context.Background()

	if _, err := svc.AddResource(ctx, "The sky is blue. Water is wet."); err != nil {
		t.Fatalf("AddResource: %v", err)
	}

	resources, err := svc.ListResources(ctx)
	if err != nil {
		t.Fatalf("ListResources: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("got %d resources, want 1", len(resources))
	}

	if err := svc.DeleteResource(ctx, resources[0].ID); err != nil {
		t.Fatalf("DeleteResource: %v", err)
	}

	var count int
	if err := tdb.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		t.Fatalf("count embeddings: %v", err)
	}
	if count != 0 {
		t.Errorf("%d embeddings survived the cascade", count)
	}

	matches, err := svc.FindRelevant(ctx, "what color is the sky")
	if err != nil {
		t.Fatalf("FindRelevant after delete: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("retrieval returned deleted content: %v", matches)
	}
}

func TestDeleteMissingResource(t *testing.T) {
	svc, _, _ := setupService(t)

	err := svc.DeleteResource(context.Background(), uuid.New())
	if !errors.Is(err, knowledge.ErrResourceNotFound) {
		t.Errorf("err = %v, want ErrResourceNotFound", err)
	}
}

func TestIngestionAtomicity(t *testing.T) {
	_, store, tdb := setupService(t)
	ctx := context.Background()

	// A chunk with the wrong dimensionality fails the embedding insert
	// after the resource row is written; the transaction must roll both
	// back.
	good := make([]float32, vectorDims)
	good[0] = 1
	_, err := store.CreateResource(ctx, "Doomed resource.", []knowledge.Chunk{
		{Content: "Doomed resource", Embedding: good},
		{Content: "bad", Embedding: []float32{1, 2, 3}},
	})
	if err == nil {
		t.Fatal("expected dimension mismatch to fail the insert")
	}

	var resources, embeddings int
	if err := tdb.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM resources").Scan(&resources); err != nil {
		t.Fatal(err)
	}
	if err := tdb.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&embeddings); err != nil {
		t.Fatal(err)
	}
	if resources != 0 || embeddings != 0 {
		t.Errorf("partial write survived: %d resources, %d embeddings", resources, embeddings)
	}
}
