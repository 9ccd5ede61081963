package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrResourceNotFound indicates the requested resource does not exist.
var ErrResourceNotFound = errors.New("resource not found")

// DB is the subset of pgxpool.Pool the store needs. Defined here, by the
// consumer, so tests and transactions can stand in for the pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	insertResourceSQL = `INSERT INTO resources (content) VALUES ($1) RETURNING id, created_at`

	insertEmbeddingSQL = `INSERT INTO embeddings (resource_id, content, embedding) VALUES ($1, $2, $3)`

	searchChunksSQL = `SELECT content, 1 - (embedding <=> $1) AS similarity
FROM embeddings
WHERE 1 - (embedding <=> $1) > $2
ORDER BY similarity DESC
LIMIT $3`

	deleteResourceSQL = `DELETE FROM resources WHERE id = $1`

	listResourcesSQL = `SELECT id, content, created_at FROM resources ORDER BY created_at DESC`
)

// Store persists resources and their chunk embeddings in PostgreSQL
// with pgvector for similarity search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a Store over db. logger may be nil.
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// CreateResource inserts a resource and all of its chunk embeddings in a
// single transaction. Either everything lands or nothing does.
func (s *Store) CreateResource(ctx context.Context, content string, chunks []Chunk) (Resource, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Resource{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	res := Resource{Content: content}
	if err := tx.QueryRow(ctx, insertResourceSQL, content).Scan(&res.ID, &res.CreatedAt); err != nil {
		return Resource{}, fmt.Errorf("insert resource: %w", err)
	}

	for i, c := range chunks {
		vec := pgvector.NewVector(c.Embedding)
		if _, err := tx.Exec(ctx, insertEmbeddingSQL, res.ID, c.Content, vec); err != nil {
			return Resource{}, fmt.Errorf("insert embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Resource{}, fmt.Errorf("commit resource: %w", err)
	}

	s.logger.Debug("resource created", "resource_id", res.ID, "chunks", len(chunks))
	return res, nil
}

// SearchChunks returns chunks whose cosine similarity to vector is
// strictly above threshold, most similar first, at most limit rows.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, threshold float64, limit int) ([]Match, error) {
	rows, err := s.db.Query(ctx, searchChunksSQL, pgvector.NewVector(vector), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// DeleteResource removes a resource. Its embeddings go with it via the
// foreign key's ON DELETE CASCADE.
func (s *Store) DeleteResource(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteResourceSQL, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, id)
	}
	s.logger.Debug("resource deleted", "resource_id", id)
	return nil
}

// ListResources returns all resources, newest first.
func (s *Store) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := s.db.Query(ctx, listResourcesSQL)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.Content, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return resources, nil
}
