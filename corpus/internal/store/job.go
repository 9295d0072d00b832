package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Crawl job statuses. Terminal statuses are absorbing: FinishJob only
// transitions jobs still queued or running.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// CrawlJob is one crawl run.
type CrawlJob struct {
	ID             string
	SourceID       string
	StartURL       string
	MaxDepth       int
	MaxPages       int
	Status         string
	TotalPages     int
	CompletedPages int
	FailedPages    int
	ErrorsJSON     string
	CreatedAt      int64
	StartedAt      int64
	FinishedAt     int64
}

const jobColumns = `id, source_id, start_url, max_depth, max_pages, status,
	total_pages, completed_pages, failed_pages, errors_json,
	created_at, started_at, finished_at`

// InsertJob stores a new queued crawl job.
func (s *Store) InsertJob(ctx context.Context, job *CrawlJob) error {
	if job.Status == "" {
		job.Status = JobQueued
	}
	if job.ErrorsJSON == "" {
		job.ErrorsJSON = "[]"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO crawl_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourceID, job.StartURL, job.MaxDepth, job.MaxPages,
		job.Status, job.TotalPages, job.CompletedPages, job.FailedPages,
		job.ErrorsJSON, job.CreatedAt, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob returns a crawl job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*CrawlJob, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM crawl_jobs WHERE id = ?`, id)

	var j CrawlJob
	err := row.Scan(&j.ID, &j.SourceID, &j.StartURL, &j.MaxDepth, &j.MaxPages,
		&j.Status, &j.TotalPages, &j.CompletedPages, &j.FailedPages,
		&j.ErrorsJSON, &j.CreatedAt, &j.StartedAt, &j.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

// MarkJobRunning transitions a queued job to running.
func (s *Store) MarkJobRunning(ctx context.Context, id string, startedAt int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET status = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		JobRunning, startedAt, id, JobQueued)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

// UpdateJobProgress refreshes the running counters.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, total, completed, failed int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs SET total_pages = ?, completed_pages = ?, failed_pages = ?
		WHERE id = ?`,
		total, completed, failed, id)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// FinishJob moves a job to a terminal status with final counts. A job
// already in a terminal status is left untouched.
func (s *Store) FinishJob(ctx context.Context, id, status string, total, completed, failed int, errorsJSON string, finishedAt int64) error {
	if errorsJSON == "" {
		errorsJSON = "[]"
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE crawl_jobs
		SET status = ?, total_pages = ?, completed_pages = ?, failed_pages = ?,
			errors_json = ?, finished_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		status, total, completed, failed, errorsJSON, finishedAt,
		id, JobQueued, JobRunning)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}
