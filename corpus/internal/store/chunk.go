package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/savoir/dbopen"
)

// Chunk source types.
const (
	SourceWebsite = "website"
	SourceFile    = "file"
)

// Chunk is one stored text segment. SourceRef is the page URL for
// website chunks and the ingested file id for file chunks.
type Chunk struct {
	ID         string
	SourceID   string
	SourceRef  string
	SourceType string
	ChunkIndex int
	Text       string
	WordCount  int
	CreatedAt  int64
}

const chunkColumns = `id, source_id, source_ref, source_type, chunk_index,
	text, word_count, created_at`

// InsertChunks stores a batch of chunks in a single transaction.
func (s *Store) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		return insertChunksTx(ctx, tx, chunks)
	})
}

// ReplaceChunks atomically replaces one source's chunks for a source_ref
// with a new batch. An empty batch clears the ref. The delete is scoped
// to the source so two sources ingesting the same URL stay independent.
func (s *Store) ReplaceChunks(ctx context.Context, sourceID, sourceRef string, chunks []*Chunk) error {
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM content_chunks WHERE source_id = ? AND source_ref = ?`,
			sourceID, sourceRef); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		return insertChunksTx(ctx, tx, chunks)
	})
}

func insertChunksTx(ctx context.Context, tx *sql.Tx, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO content_chunks (`+chunkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.ExecContext(ctx,
			c.ID, c.SourceID, c.SourceRef, c.SourceType, c.ChunkIndex,
			c.Text, c.WordCount, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return nil
}

// ListRecentBySource returns the most recent chunks for a source, newest
// ref first, in-ref order preserved. Limit defaults to 500.
func (s *Store) ListRecentBySource(ctx context.Context, sourceID string, limit int) ([]*Chunk, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM content_chunks
		WHERE source_id = ?
		ORDER BY created_at DESC, source_ref, chunk_index
		LIMIT ?`, sourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceRef, &c.SourceType,
			&c.ChunkIndex, &c.Text, &c.WordCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// ListChunksByRef returns one source's chunks for a source_ref in index
// order.
func (s *Store) ListChunksByRef(ctx context.Context, sourceID, sourceRef string) ([]*Chunk, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM content_chunks
		WHERE source_id = ? AND source_ref = ? ORDER BY chunk_index`, sourceID, sourceRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SourceRef, &c.SourceType,
			&c.ChunkIndex, &c.Text, &c.WordCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		result = append(result, &c)
	}
	return result, rows.Err()
}

// CountChunksByRef returns the number of chunks one source stores for a
// source_ref.
func (s *Store) CountChunksByRef(ctx context.Context, sourceID, sourceRef string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_chunks WHERE source_id = ? AND source_ref = ?`,
		sourceID, sourceRef).Scan(&n)
	return n, err
}
