package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/savoir/dbopen"
)

// IngestedFile is one uploaded file and its processing state.
type IngestedFile struct {
	ID           string
	SourceID     string
	Filename     string
	MimeType     string
	SizeBytes    int64
	BlobPath     string
	TextLength   int
	MetadataJSON string
	Processed    bool
	ErrorDetail  string
	CreatedAt    int64
	ProcessedAt  int64
}

const fileColumns = `id, source_id, filename, mime_type, size_bytes, blob_path,
	text_length, metadata_json, processed, error_detail, created_at, processed_at`

// InsertFile stores a new unprocessed file row.
func (s *Store) InsertFile(ctx context.Context, f *IngestedFile) error {
	if f.MetadataJSON == "" {
		f.MetadataJSON = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ingested_files (`+fileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SourceID, f.Filename, f.MimeType, f.SizeBytes, f.BlobPath,
		f.TextLength, f.MetadataJSON, boolInt(f.Processed), f.ErrorDetail,
		f.CreatedAt, f.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile returns a file row by id, or ErrNotFound.
func (s *Store) GetFile(ctx context.Context, id string) (*IngestedFile, error) {
	return s.scanFile(s.DB.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM ingested_files WHERE id = ?`, id))
}

// LatestFileBySource returns the most recently uploaded file for a
// source, or ErrNotFound.
func (s *Store) LatestFileBySource(ctx context.Context, sourceID string) (*IngestedFile, error) {
	return s.scanFile(s.DB.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM ingested_files
		WHERE source_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sourceID))
}

// ListFilesBySource returns all file rows for a source, newest first.
func (s *Store) ListFilesBySource(ctx context.Context, sourceID string) ([]*IngestedFile, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM ingested_files
		WHERE source_id = ? ORDER BY created_at DESC, id DESC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*IngestedFile
	for rows.Next() {
		f, err := s.scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// MarkFileProcessed records a successful processing pass.
func (s *Store) MarkFileProcessed(ctx context.Context, id string, textLength int, metadataJSON string, processedAt int64) error {
	if metadataJSON == "" {
		metadataJSON = "{}"
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE ingested_files
		SET processed = 1, text_length = ?, metadata_json = ?, error_detail = '',
			processed_at = ?
		WHERE id = ?`,
		textLength, metadataJSON, processedAt, id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// MarkFileFailed records a failed processing pass. The processed flag and
// existing chunks are left alone so a prior successful pass stays usable.
func (s *Store) MarkFileFailed(ctx context.Context, id, detail string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE ingested_files SET error_detail = ? WHERE id = ?`,
		detail, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// DeleteSource removes all file rows and chunks for a source in one
// transaction. It returns the blob paths of the deleted files so the
// caller can remove the bytes afterwards.
func (s *Store) DeleteSource(ctx context.Context, sourceID string) ([]string, error) {
	files, err := s.ListFilesBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM content_chunks WHERE source_id = ?`, sourceID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM ingested_files WHERE source_id = ?`, sourceID); err != nil {
			return fmt.Errorf("delete files: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		if f.BlobPath != "" {
			paths = append(paths, f.BlobPath)
		}
	}
	return paths, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanFile(row rowScanner) (*IngestedFile, error) {
	var f IngestedFile
	var processed int
	err := row.Scan(&f.ID, &f.SourceID, &f.Filename, &f.MimeType, &f.SizeBytes,
		&f.BlobPath, &f.TextLength, &f.MetadataJSON, &processed,
		&f.ErrorDetail, &f.CreatedAt, &f.ProcessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.Processed = processed != 0
	return &f, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
