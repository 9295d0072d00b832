package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/savoir/chunker"
	"github.com/hazyhaar/savoir/corpus/internal/export"
	"github.com/hazyhaar/savoir/corpus/internal/store"
)

// ProcessFile validates an upload, stores its bytes, extracts text, and
// replaces the source's chunks. Validation happens before any side effect.
func (svc *Service) ProcessFile(ctx context.Context, sourceID string, up Upload, opts *ProcessOptions) (*IngestResult, error) {
	if sourceID == "" || up.Filename == "" {
		return nil, fmt.Errorf("%w: source id and filename are required", ErrInvalidInput)
	}
	size := up.Size
	if size == 0 {
		size = int64(len(up.Data))
	}
	if size > svc.config.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, svc.config.MaxFileSize)
	}
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidInput)
	}
	if !svc.extract.CanExtract(up.MimeType, up.Data) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, up.MimeType)
	}

	blobPath, err := svc.blobs.Write(up.Filename, up.Data)
	if err != nil {
		return nil, fmt.Errorf("corpus: store upload: %w", err)
	}

	file := &store.IngestedFile{
		ID:        svc.newFileID(),
		SourceID:  sourceID,
		Filename:  up.Filename,
		MimeType:  up.MimeType,
		SizeBytes: size,
		BlobPath:  blobPath,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := svc.store.InsertFile(ctx, file); err != nil {
		svc.blobs.Delete(blobPath)
		return nil, fmt.Errorf("corpus: record upload: %w", err)
	}

	return svc.processStoredFile(ctx, file, up.Data, opts)
}

// ReprocessFile re-reads the stored bytes of a source's latest upload and
// runs the pipeline again, e.g. with a different chunk size. The existing
// chunks survive unless the new pass succeeds.
func (svc *Service) ReprocessFile(ctx context.Context, sourceID string, opts *ProcessOptions) (*IngestResult, error) {
	if sourceID == "" {
		return nil, fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}
	file, err := svc.store.LatestFileBySource(ctx, sourceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no file for source %s", ErrNotFound, sourceID)
	}
	if err != nil {
		return nil, err
	}

	data, err := svc.blobs.Read(file.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileMissing, file.BlobPath)
	}
	return svc.processStoredFile(ctx, file, data, opts)
}

// DeleteIngestedSource removes a source's file rows and chunks in one
// transaction, then deletes the stored bytes best-effort.
func (svc *Service) DeleteIngestedSource(ctx context.Context, sourceID string) error {
	if sourceID == "" {
		return fmt.Errorf("%w: source id is required", ErrInvalidInput)
	}
	files, err := svc.store.ListFilesBySource(ctx, sourceID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: source %s", ErrNotFound, sourceID)
	}

	paths, err := svc.store.DeleteSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("corpus: delete source %s: %w", sourceID, err)
	}
	for _, p := range paths {
		if err := svc.blobs.Delete(p); err != nil {
			svc.logger.Warn("delete blob", "path", p, "error", err)
		}
	}
	svc.logger.Info("source deleted", "source_id", sourceID, "files", len(files))
	return nil
}

// processStoredFile runs extract → chunk → replace → mark processed for
// bytes already persisted in the blob store.
func (svc *Service) processStoredFile(ctx context.Context, file *store.IngestedFile, data []byte, opts *ProcessOptions) (*IngestResult, error) {
	chunkSize := svc.config.ChunkSize
	if opts != nil && opts.ChunkSize > 0 {
		chunkSize = opts.ChunkSize
	}

	res, err := svc.extract.Extract(file.MimeType, data)
	if err != nil {
		return nil, svc.failFile(ctx, file, fmt.Errorf("extract %s: %w", file.Filename, err))
	}

	parts := chunker.Split(res.Text, chunker.Options{ChunkSize: chunkSize})
	now := time.Now().UnixMilli()
	chunks := make([]*store.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &store.Chunk{
			ID:         svc.newChunkID(),
			SourceID:   file.SourceID,
			SourceRef:  file.ID,
			SourceType: store.SourceFile,
			ChunkIndex: p.Index,
			Text:       p.Text,
			WordCount:  p.WordCount,
			CreatedAt:  now,
		}
	}
	if err := svc.store.ReplaceChunks(ctx, file.SourceID, file.ID, chunks); err != nil {
		return nil, svc.failFile(ctx, file, fmt.Errorf("store chunks: %w", err))
	}

	metaJSON := metadataJSON(res.Metadata)
	if err := svc.store.MarkFileProcessed(ctx, file.ID, len(res.Text), metaJSON, now); err != nil {
		return nil, svc.failFile(ctx, file, fmt.Errorf("mark processed: %w", err))
	}

	if svc.exporter != nil {
		_, err := svc.exporter.WriteText(ctx, export.Metadata{
			SourceID:   file.SourceID,
			SourceRef:  file.ID,
			SourceType: store.SourceFile,
			Title:      file.Filename,
		}, res.Text)
		if err != nil {
			svc.logger.Warn("export file", "file_id", file.ID, "error", err)
		}
	}

	svc.publisher.Publish(ctx, EventFileProcessed, "", FileProcessedPayload{
		FileID:     file.ID,
		SourceID:   file.SourceID,
		Filename:   file.Filename,
		TextLength: len(res.Text),
		ChunkCount: len(chunks),
	})
	svc.logger.Info("file processed", "file_id", file.ID, "filename", file.Filename, "chunks", len(chunks))

	return &IngestResult{
		FileID:     file.ID,
		SourceID:   file.SourceID,
		Filename:   file.Filename,
		TextLength: len(res.Text),
		ChunkCount: len(chunks),
		Metadata:   res.Metadata,
	}, nil
}

// failFile records a failed pass and publishes file:failed. The file row
// keeps any earlier successful state.
func (svc *Service) failFile(ctx context.Context, file *store.IngestedFile, cause error) error {
	if err := svc.store.MarkFileFailed(ctx, file.ID, cause.Error()); err != nil {
		svc.logger.Error("record file failure", "file_id", file.ID, "error", err)
	}
	svc.publisher.Publish(ctx, EventFileFailed, "", FileFailedPayload{
		FileID:   file.ID,
		SourceID: file.SourceID,
		Filename: file.Filename,
		Error:    cause.Error(),
	})
	svc.logger.Warn("file processing failed", "file_id", file.ID, "error", cause)
	return fmt.Errorf("corpus: %w", cause)
}

func metadataJSON(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
