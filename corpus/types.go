package corpus

import "time"

// Page is the extracted content of one fetched web page.
type Page struct {
	URL        string       `json:"url"`
	StatusCode int          `json:"status_code"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Metadata   PageMetadata `json:"metadata"`
	Links      []string     `json:"links"`
	Images     []string     `json:"images"`
	Headings   Headings     `json:"headings"`
	WordCount  int          `json:"word_count"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// PageMetadata carries the standard meta tags of a page.
type PageMetadata struct {
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Author      string `json:"author"`
}

// Headings lists a page's h1/h2/h3 texts.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

// CrawlOptions tune one crawl run. Zero values fall back to the service
// configuration.
type CrawlOptions struct {
	MaxDepth       int      `json:"max_depth"`
	MaxPages       int      `json:"max_pages"`
	FollowExternal bool     `json:"follow_external"`
	IncludePaths   []string `json:"include_paths"`
	ExcludePaths   []string `json:"exclude_paths"`
	// DisableSitemap skips the best-effort /sitemap.xml seeding of the
	// first crawl level. Sitemap discovery is on by default.
	DisableSitemap bool `json:"disable_sitemap"`
}

// PageError is one failed fetch within a crawl.
type PageError struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// JobStatus is the externally visible state of a crawl job.
type JobStatus struct {
	JobID          string      `json:"job_id"`
	SourceID       string      `json:"source_id"`
	StartURL       string      `json:"start_url"`
	Status         string      `json:"status"`
	TotalPages     int         `json:"total_pages"`
	CompletedPages int         `json:"completed_pages"`
	FailedPages    int         `json:"failed_pages"`
	Errors         []PageError `json:"errors,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	StartedAt      time.Time   `json:"started_at,omitzero"`
	FinishedAt     time.Time   `json:"finished_at,omitzero"`
}

// Upload is one file submitted for ingestion.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// ProcessOptions tune file processing. Zero values fall back to the
// service configuration.
type ProcessOptions struct {
	ChunkSize int `json:"chunk_size"`
}

// IngestResult summarizes one processed file.
type IngestResult struct {
	FileID     string            `json:"file_id"`
	SourceID   string            `json:"source_id"`
	Filename   string            `json:"filename"`
	TextLength int               `json:"text_length"`
	ChunkCount int               `json:"chunk_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// RetrievalCandidate is one relevance-ranked snippet.
type RetrievalCandidate struct {
	ChunkID string  `json:"chunk_id"`
	Title   string  `json:"title"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}
