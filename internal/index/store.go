package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/botdock/botdock/internal/model"
	apperr "github.com/botdock/botdock/internal/pkg/errors"
)

// Store keeps one logical vector index per chatbot on top of a shared
// pgvector table. The namespace is the chatbot id; the registry row pins
// the dimension the namespace was created with.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ensure lazily creates the namespace. Concurrent calls from parallel chunk
// workers race on the insert; ON CONFLICT DO NOTHING makes "already exists"
// a success. A dimension mismatch against an existing namespace is a fatal
// configuration error, never retried.
func (s *Store) Ensure(ctx context.Context, chatbotID string, dimension int) error {
	const insert = `
		INSERT INTO index_registry (chatbot_id, dimension, ctime)
		VALUES ($1, $2, (EXTRACT(EPOCH FROM now()) * 1000)::BIGINT)
		ON CONFLICT (chatbot_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, chatbotID, dimension); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexProvider, err)
	}
	const query = `SELECT dimension FROM index_registry WHERE chatbot_id = $1`
	var existing int
	if err := s.db.QueryRowContext(ctx, query, chatbotID).Scan(&existing); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexProvider, err)
	}
	if existing != dimension {
		return fmt.Errorf("%w: index for chatbot %s has dimension %d, embedder produces %d",
			apperr.ErrIndexProvider, chatbotID, existing, dimension)
	}
	return nil
}

// ValidateSchema compares the configured embedding dimension against the
// chunk_vectors embedding column, which carries the dimension as its typmod.
// Called once at startup so a misconfigured dimension stops the process
// instead of failing every upsert at runtime.
func (s *Store) ValidateSchema(ctx context.Context, dimension int) error {
	const query = `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'chunk_vectors'::regclass AND attname = 'embedding'
	`
	var columnDim int
	if err := s.db.QueryRowContext(ctx, query).Scan(&columnDim); err != nil {
		return fmt.Errorf("%w: read embedding column dimension: %v", apperr.ErrIndexProvider, err)
	}
	if columnDim != dimension {
		return fmt.Errorf("%w: chunk_vectors.embedding is vector(%d), embedder produces %d",
			apperr.ErrIndexProvider, columnDim, dimension)
	}
	return nil
}

// Exists reports whether the chatbot has a namespace at all.
func (s *Store) Exists(ctx context.Context, chatbotID string) (bool, error) {
	const query = `SELECT 1 FROM index_registry WHERE chatbot_id = $1`
	var one int
	err := s.db.QueryRowContext(ctx, query, chatbotID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upsert writes one chunk vector keyed by (document_id, chunk_index), so
// re-ingesting a document overwrites instead of duplicating.
func (s *Store) Upsert(ctx context.Context, chunk *model.ChunkVector) error {
	const query = `
		INSERT INTO chunk_vectors (document_id, chunk_index, chatbot_id, chunk_text, source_ref, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			chatbot_id = EXCLUDED.chatbot_id,
			chunk_text = EXCLUDED.chunk_text,
			source_ref = EXCLUDED.source_ref,
			embedding = EXCLUDED.embedding,
			ctime = EXCLUDED.ctime
	`
	_, err := s.db.ExecContext(ctx, query,
		chunk.DocumentID,
		chunk.ChunkIndex,
		chunk.ChatbotID,
		chunk.Text,
		chunk.SourceRef,
		pgvector.NewVector(chunk.Embedding),
		chunk.Ctime,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexProvider, err)
	}
	return nil
}

// Search returns up to k chunks nearest to the query vector within the
// chatbot's namespace, best first. A chatbot that never had a document
// ingested has no namespace; that is an empty result, not an error.
func (s *Store) Search(ctx context.Context, chatbotID string, query []float32, k int) ([]model.ScoredChunk, error) {
	exists, err := s.Exists(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	const stmt = `
		SELECT document_id, chunk_index, chunk_text, source_ref,
		       1 - (embedding <=> $2) AS score
		FROM chunk_vectors
		WHERE chatbot_id = $1
		ORDER BY embedding <=> $2, ctime
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, stmt, chatbotID, pgvector.NewVector(query), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []model.ScoredChunk
	for rows.Next() {
		var hit model.ScoredChunk
		if err := rows.Scan(&hit.DocumentID, &hit.ChunkIndex, &hit.Text, &hit.SourceRef, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// GetChunk looks a chunk up by its upsert key.
func (s *Store) GetChunk(ctx context.Context, documentID string, chunkIndex int) (*model.ChunkVector, error) {
	const query = `
		SELECT document_id, chunk_index, chatbot_id, chunk_text, source_ref, embedding, ctime
		FROM chunk_vectors
		WHERE document_id = $1 AND chunk_index = $2
	`
	row := s.db.QueryRowContext(ctx, query, documentID, chunkIndex)
	var chunk model.ChunkVector
	var embedding pgvector.Vector
	err := row.Scan(&chunk.DocumentID, &chunk.ChunkIndex, &chunk.ChatbotID, &chunk.Text, &chunk.SourceRef, &embedding, &chunk.Ctime)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	chunk.Embedding = embedding.Slice()
	return &chunk, nil
}

// DeleteByDocument removes every vector the document contributed. Used by
// the cascade when a document is deleted.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	const query = `DELETE FROM chunk_vectors WHERE document_id = $1`
	res, err := s.db.ExecContext(ctx, query, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
