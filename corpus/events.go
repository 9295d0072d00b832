package corpus

// Event names published through notify.Publisher.
const (
	EventCrawlProgress  = "crawl:progress"
	EventCrawlCompleted = "crawl:completed"
	EventCrawlError     = "crawl:error"
	EventFileProcessed  = "file:processed"
	EventFileFailed     = "file:failed"
)

// CrawlProgressPayload accompanies EventCrawlProgress after every fetch.
type CrawlProgressPayload struct {
	JobID          string  `json:"job_id"`
	TotalPages     int     `json:"total_pages"`
	CompletedPages int     `json:"completed_pages"`
	FailedPages    int     `json:"failed_pages"`
	Percentage     float64 `json:"percentage"`
	CurrentURL     string  `json:"current_url"`
	CurrentDepth   int     `json:"current_depth"`
}

// CrawlCompletedPayload accompanies EventCrawlCompleted.
type CrawlCompletedPayload struct {
	JobID           string      `json:"job_id"`
	Status          string      `json:"status"`
	TotalPages      int         `json:"total_pages"`
	CompletedPages  int         `json:"completed_pages"`
	FailedPages     int         `json:"failed_pages"`
	DurationSeconds float64     `json:"duration_seconds"`
	Errors          []PageError `json:"errors,omitempty"`
}

// CrawlErrorPayload accompanies EventCrawlError when a job fails outright.
type CrawlErrorPayload struct {
	JobID     string `json:"job_id"`
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

// FileProcessedPayload accompanies EventFileProcessed.
type FileProcessedPayload struct {
	FileID     string `json:"file_id"`
	SourceID   string `json:"source_id"`
	Filename   string `json:"filename"`
	TextLength int    `json:"text_length"`
	ChunkCount int    `json:"chunk_count"`
}

// FileFailedPayload accompanies EventFileFailed.
type FileFailedPayload struct {
	FileID   string `json:"file_id"`
	SourceID string `json:"source_id"`
	Filename string `json:"filename"`
	Error    string `json:"error"`
}
