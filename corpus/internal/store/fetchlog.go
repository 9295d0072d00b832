package store

import (
	"context"
	"fmt"
)

// FetchEntry is one logged fetch attempt within a crawl job.
type FetchEntry struct {
	ID           string
	JobID        string
	URL          string
	Status       string // "ok" or "error"
	StatusCode   int
	ErrorMessage string
	DurationMS   int64
	FetchedAt    int64
}

// LogFetch appends one fetch attempt to the log.
func (s *Store) LogFetch(ctx context.Context, e *FetchEntry) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO fetch_log (id, job_id, url, status, status_code,
		error_message, duration_ms, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.JobID, e.URL, e.Status, e.StatusCode,
		e.ErrorMessage, e.DurationMS, e.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("log fetch: %w", err)
	}
	return nil
}

// ListFetchLog returns the fetch log for a job, newest first.
func (s *Store) ListFetchLog(ctx context.Context, jobID string, limit int) ([]*FetchEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, job_id, url, status, status_code, error_message,
		duration_ms, fetched_at
		FROM fetch_log WHERE job_id = ?
		ORDER BY fetched_at DESC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*FetchEntry
	for rows.Next() {
		var e FetchEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.URL, &e.Status, &e.StatusCode,
			&e.ErrorMessage, &e.DurationMS, &e.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan fetch entry: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
