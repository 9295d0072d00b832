package store

import "database/sql"

// Schema is the complete corpus schema.
const Schema = `
-- Crawl jobs, one row per StartCrawl
CREATE TABLE IF NOT EXISTS crawl_jobs (
    id              TEXT PRIMARY KEY,
    source_id       TEXT NOT NULL,
    start_url       TEXT NOT NULL,
    max_depth       INTEGER NOT NULL,
    max_pages       INTEGER NOT NULL,
    status          TEXT NOT NULL DEFAULT 'queued',
    total_pages     INTEGER NOT NULL DEFAULT 0,
    completed_pages INTEGER NOT NULL DEFAULT 0,
    failed_pages    INTEGER NOT NULL DEFAULT 0,
    errors_json     TEXT NOT NULL DEFAULT '[]',
    created_at      INTEGER NOT NULL,
    started_at      INTEGER NOT NULL DEFAULT 0,
    finished_at     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_crawl_jobs_source ON crawl_jobs(source_id, created_at DESC);

-- Uploaded files and their processing state
CREATE TABLE IF NOT EXISTS ingested_files (
    id            TEXT PRIMARY KEY,
    source_id     TEXT NOT NULL,
    filename      TEXT NOT NULL,
    mime_type     TEXT NOT NULL,
    size_bytes    INTEGER NOT NULL,
    blob_path     TEXT NOT NULL,
    text_length   INTEGER NOT NULL DEFAULT 0,
    metadata_json TEXT NOT NULL DEFAULT '{}',
    processed     INTEGER NOT NULL DEFAULT 0,
    error_detail  TEXT NOT NULL DEFAULT '',
    created_at    INTEGER NOT NULL,
    processed_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_ingested_files_source ON ingested_files(source_id, created_at DESC);

-- Chunked text from both crawled pages and processed files.
-- source_ref is the page URL or the ingested file id; chunk_index is
-- gapless and zero-based within one source_ref.
CREATE TABLE IF NOT EXISTS content_chunks (
    id           TEXT PRIMARY KEY,
    source_id    TEXT NOT NULL,
    source_ref   TEXT NOT NULL,
    source_type  TEXT NOT NULL,
    chunk_index  INTEGER NOT NULL,
    text         TEXT NOT NULL,
    word_count   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_chunks_source ON content_chunks(source_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_content_chunks_ref ON content_chunks(source_ref, chunk_index);

-- Fetch log (observability)
CREATE TABLE IF NOT EXISTS fetch_log (
    id            TEXT PRIMARY KEY,
    job_id        TEXT NOT NULL REFERENCES crawl_jobs(id) ON DELETE CASCADE,
    url           TEXT NOT NULL,
    status        TEXT NOT NULL,
    status_code   INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    fetched_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_job ON fetch_log(job_id, fetched_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
