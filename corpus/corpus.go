// Package corpus builds a chatbot knowledge corpus from crawled websites
// and uploaded files, and serves relevance-ranked snippets from it.
package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/savoir/chunker"
	"github.com/hazyhaar/savoir/corpus/internal/blob"
	"github.com/hazyhaar/savoir/corpus/internal/crawl"
	"github.com/hazyhaar/savoir/corpus/internal/export"
	"github.com/hazyhaar/savoir/corpus/internal/extractor"
	"github.com/hazyhaar/savoir/corpus/internal/fetch"
	"github.com/hazyhaar/savoir/corpus/internal/sitemap"
	"github.com/hazyhaar/savoir/corpus/internal/store"
	"github.com/hazyhaar/savoir/idgen"
	"github.com/hazyhaar/savoir/notify"
	"github.com/hazyhaar/savoir/safeweb"
)

// Service is the corpus orchestrator.
type Service struct {
	store     *store.Store
	blobs     *blob.Store
	fetcher   *fetch.Fetcher
	sitemaps  *sitemap.Discoverer
	extract   *extractor.Registry
	registry  crawl.Registry
	exporter  *export.Writer // nil when ExportDir is unset
	publisher notify.Publisher
	scorer    ChunkScorer
	logger    *slog.Logger
	config    *Config

	newJobID   idgen.Generator
	newFileID  idgen.Generator
	newChunkID idgen.Generator
	newLogID   idgen.Generator

	urlValidator func(string) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a corpus Service on an already-opened database. The schema
// is applied idempotently.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("corpus: apply schema: %w", err)
	}

	blobs, err := blob.New(cfg.BlobDir, nil)
	if err != nil {
		return nil, fmt.Errorf("corpus: blob store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc := &Service{
		store:     store.New(db),
		blobs:     blobs,
		sitemaps:  sitemap.New(sitemap.Config{Timeout: cfg.SitemapTimeout, Logger: logger}),
		extract:   extractor.NewRegistry(),
		registry:  crawl.NewMemoryRegistry(),
		publisher: notify.Discard{},
		scorer:    LexicalScorer{},
		logger:    logger,
		config:    cfg,

		newJobID:   idgen.Prefixed("job_", idgen.UUIDv7()),
		newFileID:  idgen.Prefixed("file_", idgen.UUIDv7()),
		newChunkID: idgen.Prefixed("chk_", idgen.UUIDv7()),
		newLogID:   idgen.Prefixed("fl_", idgen.UUIDv7()),

		urlValidator: safeweb.ValidateURL,
		ctx:          ctx,
		cancel:       cancel,
	}

	if cfg.ExportDir != "" {
		svc.exporter = export.NewWriter(cfg.ExportDir, nil)
	}

	for _, opt := range opts {
		opt(svc)
	}

	// The fetcher shares the service validator unless the fetch config
	// carries its own, so WithURLValidator governs fetch-time SSRF checks
	// as well as start-URL validation.
	fetchCfg := cfg.Fetch
	if fetchCfg.URLValidator == nil {
		fetchCfg.URLValidator = svc.urlValidator
	}
	svc.fetcher = fetch.New(fetchCfg)

	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithPublisher sets the event publisher (default: notify.Discard).
func WithPublisher(p notify.Publisher) ServiceOption {
	return func(svc *Service) { svc.publisher = p }
}

// WithURLValidator overrides URL validation (default: safeweb.ValidateURL).
// Use in tests with httptest servers that listen on loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// WithScorer replaces the retrieval scoring strategy.
func WithScorer(s ChunkScorer) ServiceOption {
	return func(svc *Service) { svc.scorer = s }
}

// WithRegistry replaces the in-process cancellation registry.
func WithRegistry(r crawl.Registry) ServiceOption {
	return func(svc *Service) { svc.registry = r }
}

// Close stops running crawls and waits for their goroutines to exit.
func (svc *Service) Close() error {
	svc.cancel()
	svc.wg.Wait()
	svc.logger.Info("corpus: closed")
	return nil
}

// StartCrawl validates the start URL, records a queued job, and launches
// the traversal in a background goroutine. Returns the job id immediately.
func (svc *Service) StartCrawl(ctx context.Context, sourceID, startURL string, opts CrawlOptions) (string, error) {
	if sourceID == "" || startURL == "" {
		return "", fmt.Errorf("%w: source id and start URL are required", ErrInvalidInput)
	}
	if err := svc.urlValidator(startURL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cfg := svc.crawlConfig(opts)
	job := &store.CrawlJob{
		ID:        svc.newJobID(),
		SourceID:  sourceID,
		StartURL:  startURL,
		MaxDepth:  cfg.MaxDepth,
		MaxPages:  cfg.MaxPages,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := svc.store.InsertJob(ctx, job); err != nil {
		return "", fmt.Errorf("corpus: insert job: %w", err)
	}

	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		svc.runCrawl(svc.ctx, job, cfg, opts)
	}()

	svc.logger.Info("crawl started", "job_id", job.ID, "source_id", sourceID, "url", startURL)
	return job.ID, nil
}

// CancelCrawl requests cancellation of a running job. Returns true when
// the job existed and was still cancellable; the in-flight fetch finishes
// before the job stops.
func (svc *Service) CancelCrawl(ctx context.Context, jobID string) (bool, error) {
	job, err := svc.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return false, err
	}
	if job.Status != store.JobQueued && job.Status != store.JobRunning {
		return false, nil
	}
	svc.registry.Cancel(jobID)
	svc.logger.Info("crawl cancellation requested", "job_id", jobID)
	return true, nil
}

// CrawlStatus returns the current state of a job.
func (svc *Service) CrawlStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := svc.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return jobStatus(job), nil
}

// ScrapeSinglePage fetches one page, persists its chunks under the page
// URL, and returns the extracted content.
func (svc *Service) ScrapeSinglePage(ctx context.Context, sourceID, pageURL string) (*Page, error) {
	if sourceID == "" || pageURL == "" {
		return nil, fmt.Errorf("%w: source id and URL are required", ErrInvalidInput)
	}
	if err := svc.urlValidator(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fp, err := svc.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("corpus: fetch %s: %w", pageURL, err)
	}

	if err := svc.persistPage(ctx, sourceID, fp, 0); err != nil {
		return nil, err
	}
	return pageFromFetch(fp), nil
}

// crawlConfig merges per-job options over the service defaults.
func (svc *Service) crawlConfig(opts CrawlOptions) crawl.Config {
	cfg := svc.config.Crawl
	if opts.MaxDepth > 0 {
		cfg.MaxDepth = opts.MaxDepth
	}
	if opts.MaxPages > 0 {
		cfg.MaxPages = opts.MaxPages
	}
	return cfg
}

// runCrawl owns one crawl job from running to terminal status.
func (svc *Service) runCrawl(ctx context.Context, job *store.CrawlJob, cfg crawl.Config, opts CrawlOptions) {
	logger := svc.logger.With("job_id", job.ID)
	started := time.Now()

	if err := svc.store.MarkJobRunning(ctx, job.ID, started.UnixMilli()); err != nil {
		svc.failCrawl(ctx, job.ID, nil, fmt.Errorf("mark running: %w", err))
		return
	}
	defer svc.registry.Forget(job.ID)

	filter, err := crawl.NewFilter(job.StartURL, opts.FollowExternal, opts.IncludePaths, opts.ExcludePaths)
	if err != nil {
		svc.failCrawl(ctx, job.ID, nil, fmt.Errorf("bad start URL: %w", err))
		return
	}

	seeds := []string{job.StartURL}
	if !opts.DisableSitemap {
		for _, e := range svc.sitemaps.Discover(ctx, fetch.Origin(job.StartURL)) {
			seeds = append(seeds, e.URL)
		}
	}

	var persistErr error
	frontier := crawl.New(svc.loggedFetch(job.ID), svc.registry, cfg, logger)
	res, err := frontier.Run(ctx, crawl.Job{
		ID:     job.ID,
		Seeds:  seeds,
		Filter: filter,
		Sink: func(ctx context.Context, page *fetch.Page, depth int) error {
			if err := svc.persistPage(ctx, job.SourceID, page, depth); err != nil {
				persistErr = err
				return err
			}
			return nil
		},
		Progress: func(ctx context.Context, p crawl.Progress) {
			total := p.Completed + p.Failed + p.Queued
			if err := svc.store.UpdateJobProgress(ctx, job.ID, total, p.Completed, p.Failed); err != nil {
				logger.Warn("update progress", "error", err)
			}
			svc.publisher.Publish(ctx, EventCrawlProgress, job.ID, CrawlProgressPayload{
				JobID:          job.ID,
				TotalPages:     total,
				CompletedPages: p.Completed,
				FailedPages:    p.Failed,
				Percentage:     percentage(p.Completed+p.Failed, total),
				CurrentURL:     p.URL,
				CurrentDepth:   p.Depth,
			})
		},
	})
	if err != nil {
		svc.failCrawl(ctx, job.ID, res, err)
		return
	}
	if persistErr != nil && res.Pages == 0 {
		// Nothing could be stored; the job itself failed.
		svc.failCrawl(ctx, job.ID, res, persistErr)
		return
	}

	status := store.JobCompleted
	if res.Cancelled {
		status = store.JobCancelled
	}
	total := res.Pages + res.Failed
	errsJSON, _ := json.Marshal(pageErrors(res.Errors))
	if err := svc.store.FinishJob(ctx, job.ID, status, total, res.Pages, res.Failed, string(errsJSON), time.Now().UnixMilli()); err != nil {
		svc.failCrawl(ctx, job.ID, res, fmt.Errorf("finish job: %w", err))
		return
	}

	svc.publisher.Publish(ctx, EventCrawlCompleted, job.ID, CrawlCompletedPayload{
		JobID:           job.ID,
		Status:          status,
		TotalPages:      total,
		CompletedPages:  res.Pages,
		FailedPages:     res.Failed,
		DurationSeconds: time.Since(started).Seconds(),
		Errors:          pageErrors(res.Errors),
	})
	logger.Info("crawl done", "status", status, "pages", res.Pages, "failed", res.Failed)
}

// failCrawl moves a job to failed and publishes crawl:error. When a
// partial Result exists its counts and per-page errors are kept, with
// the fatal cause appended to the error list.
func (svc *Service) failCrawl(ctx context.Context, jobID string, res *crawl.Result, cause error) {
	svc.logger.Error("crawl failed", "job_id", jobID, "error", cause)
	var total, completed, failed int
	errs := []PageError{{Message: cause.Error()}}
	if res != nil {
		total = res.Pages + res.Failed
		completed = res.Pages
		failed = res.Failed
		errs = append(pageErrors(res.Errors), errs...)
	}
	errsJSON, _ := json.Marshal(errs)
	if err := svc.store.FinishJob(ctx, jobID, store.JobFailed, total, completed, failed,
		string(errsJSON), time.Now().UnixMilli()); err != nil {
		svc.logger.Error("record crawl failure", "job_id", jobID, "error", err)
	}
	svc.publisher.Publish(ctx, EventCrawlError, jobID, CrawlErrorPayload{
		JobID:     jobID,
		Error:     cause.Error(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// loggedFetch wraps the fetcher to append each attempt to the fetch log.
func (svc *Service) loggedFetch(jobID string) crawl.FetchFunc {
	return func(ctx context.Context, rawURL string) (*fetch.Page, error) {
		start := time.Now()
		page, err := svc.fetcher.Fetch(ctx, rawURL)

		entry := &store.FetchEntry{
			ID:         svc.newLogID(),
			JobID:      jobID,
			URL:        rawURL,
			Status:     "ok",
			DurationMS: time.Since(start).Milliseconds(),
			FetchedAt:  time.Now().UnixMilli(),
		}
		if err != nil {
			entry.Status = "error"
			entry.ErrorMessage = err.Error()
			var fe *fetch.Error
			if errors.As(err, &fe) {
				entry.StatusCode = fe.StatusCode
			}
		} else {
			entry.StatusCode = page.StatusCode
		}
		if logErr := svc.store.LogFetch(ctx, entry); logErr != nil {
			svc.logger.Debug("fetch log write failed", "job_id", jobID, "error", logErr)
		}
		return page, err
	}
}

// persistPage chunks a fetched page and replaces its stored chunks, then
// feeds the export buffer when one is configured.
func (svc *Service) persistPage(ctx context.Context, sourceID string, page *fetch.Page, depth int) error {
	parts := chunker.Split(page.Content, chunker.Options{ChunkSize: svc.config.ChunkSize})
	now := time.Now().UnixMilli()

	chunks := make([]*store.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &store.Chunk{
			ID:         svc.newChunkID(),
			SourceID:   sourceID,
			SourceRef:  page.URL,
			SourceType: store.SourceWebsite,
			ChunkIndex: p.Index,
			Text:       p.Text,
			WordCount:  p.WordCount,
			CreatedAt:  now,
		}
	}
	if err := svc.store.ReplaceChunks(ctx, sourceID, page.URL, chunks); err != nil {
		return fmt.Errorf("corpus: store chunks for %s: %w", page.URL, err)
	}

	if svc.exporter != nil {
		meta := export.Metadata{
			SourceID:   sourceID,
			SourceRef:  page.URL,
			SourceType: store.SourceWebsite,
			Title:      page.Title,
		}
		// Crawled pages export their sanitized HTML as markdown; the
		// plain-text path stays as the fallback for bodies we never saw.
		var err error
		if page.HTML != "" {
			_, err = svc.exporter.WriteHTML(ctx, meta, page.HTML)
		} else {
			_, err = svc.exporter.WriteText(ctx, meta, page.Content)
		}
		if err != nil {
			svc.logger.Warn("export page", "url", page.URL, "error", err)
		}
	}
	return nil
}

func jobStatus(job *store.CrawlJob) *JobStatus {
	s := &JobStatus{
		JobID:          job.ID,
		SourceID:       job.SourceID,
		StartURL:       job.StartURL,
		Status:         job.Status,
		TotalPages:     job.TotalPages,
		CompletedPages: job.CompletedPages,
		FailedPages:    job.FailedPages,
		CreatedAt:      time.UnixMilli(job.CreatedAt),
	}
	if job.StartedAt > 0 {
		s.StartedAt = time.UnixMilli(job.StartedAt)
	}
	if job.FinishedAt > 0 {
		s.FinishedAt = time.UnixMilli(job.FinishedAt)
	}
	if job.ErrorsJSON != "" && job.ErrorsJSON != "[]" {
		if err := json.Unmarshal([]byte(job.ErrorsJSON), &s.Errors); err != nil {
			s.Errors = []PageError{{Message: job.ErrorsJSON}}
		}
	}
	return s
}

func pageFromFetch(fp *fetch.Page) *Page {
	return &Page{
		URL:        fp.URL,
		StatusCode: fp.StatusCode,
		Title:      fp.Title,
		Content:    fp.Content,
		Metadata: PageMetadata{
			Description: fp.Metadata.Description,
			Keywords:    fp.Metadata.Keywords,
			Author:      fp.Metadata.Author,
		},
		Links:     fp.Links,
		Images:    fp.Images,
		Headings:  Headings{H1: fp.Headings.H1, H2: fp.Headings.H2, H3: fp.Headings.H3},
		WordCount: fp.WordCount,
		FetchedAt: fp.FetchedAt,
	}
}

func pageErrors(errs []crawl.PageError) []PageError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]PageError, len(errs))
	for i, e := range errs {
		out[i] = PageError{URL: e.URL, Message: e.Message}
	}
	return out
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(done) / float64(total)
}

// sourceLabel renders the human-readable origin of a chunk.
func sourceLabel(sourceType, ref, filename string) string {
	if sourceType == store.SourceFile {
		if filename != "" {
			return "File: " + filename
		}
		return "File: " + ref
	}
	return "Website: " + ref
}

// truncate shortens text to about max runes on a word boundary.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
