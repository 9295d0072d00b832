// Package crawl implements the breadth-first crawl frontier: seed URLs
// are fetched level by level, discovered links are filtered and deduped,
// and the walk stops at the depth limit, the page budget, or a
// cancellation request.
package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/savoir/corpus/internal/fetch"
)

// FetchFunc retrieves and extracts a single page.
type FetchFunc func(ctx context.Context, rawURL string) (*fetch.Page, error)

// PageSink receives each successfully fetched page.
type PageSink func(ctx context.Context, page *fetch.Page, depth int) error

// ProgressFunc is invoked after every fetch attempt.
type ProgressFunc func(ctx context.Context, p Progress)

// Progress is a snapshot of a running crawl.
type Progress struct {
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Queued    int    `json:"queued"`
	Depth     int    `json:"depth"`
	URL       string `json:"url"`
}

// PageError records a single failed fetch.
type PageError struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Result summarizes a finished crawl.
type Result struct {
	Pages     int
	Failed    int
	Errors    []PageError
	Cancelled bool
}

// Config bounds a crawl.
type Config struct {
	// MaxDepth is the number of levels fetched. 1 crawls only the seeds.
	// Default: 3.
	MaxDepth int
	// MaxPages caps successfully fetched pages across all levels.
	// Default: 50.
	MaxPages int
	// Delay is the politeness pause between consecutive fetches.
	// Default: 1s.
	Delay time.Duration
}

func (c *Config) defaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
}

// Job describes one crawl run.
type Job struct {
	ID       string
	Seeds    []string
	Filter   *Filter
	Sink     PageSink
	Progress ProgressFunc
}

// Frontier walks a site breadth-first.
type Frontier struct {
	fetch    FetchFunc
	registry Registry
	config   Config
	logger   *slog.Logger
}

// New creates a Frontier.
func New(fetchFn FetchFunc, registry Registry, cfg Config, logger *slog.Logger) *Frontier {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Frontier{
		fetch:    fetchFn,
		registry: registry,
		config:   cfg,
		logger:   logger,
	}
}

// Run executes a crawl job and blocks until it finishes. The walk stops
// early when the context is cancelled or the job is cancelled through
// the registry; either way the pages already delivered to the sink are
// kept and the partial Result is returned.
func (f *Frontier) Run(ctx context.Context, job Job) (*Result, error) {
	visited := make(map[string]bool)
	var level []string
	for _, seed := range job.Seeds {
		n := fetch.Normalize(seed)
		if visited[n] || !job.Filter.Allow(n) {
			continue
		}
		visited[n] = true
		level = append(level, n)
	}

	res := &Result{}
	attempts := 0

	for depth := 0; depth < f.config.MaxDepth && len(level) > 0; depth++ {
		var next []string

		for i, pageURL := range level {
			if ctx.Err() != nil || f.registry.IsCancelled(job.ID) {
				res.Cancelled = true
				f.logger.Info("crawl cancelled", "job_id", job.ID, "pages", res.Pages)
				return res, nil
			}
			if res.Pages >= f.config.MaxPages {
				f.logger.Info("crawl page budget reached", "job_id", job.ID, "pages", res.Pages)
				return res, nil
			}

			if attempts > 0 {
				if err := sleepCtx(ctx, f.config.Delay); err != nil {
					res.Cancelled = true
					return res, nil
				}
			}
			attempts++

			page, err := f.fetch(ctx, pageURL)
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, PageError{URL: pageURL, Message: err.Error()})
				f.logger.Warn("crawl fetch failed", "job_id", job.ID, "url", pageURL, "error", err)
				f.report(ctx, job, res, depth, pageURL, len(level)-i-1+len(next))
				continue
			}

			if err := job.Sink(ctx, page, depth); err != nil {
				res.Failed++
				res.Errors = append(res.Errors, PageError{URL: pageURL, Message: err.Error()})
				f.logger.Warn("crawl sink failed", "job_id", job.ID, "url", pageURL, "error", err)
				f.report(ctx, job, res, depth, pageURL, len(level)-i-1+len(next))
				continue
			}
			res.Pages++

			if depth+1 < f.config.MaxDepth {
				for _, link := range page.Links {
					n := fetch.Normalize(link)
					if visited[n] || !job.Filter.Allow(n) {
						continue
					}
					visited[n] = true
					next = append(next, n)
				}
			}

			f.report(ctx, job, res, depth, pageURL, len(level)-i-1+len(next))
		}

		level = next
	}

	f.logger.Info("crawl finished", "job_id", job.ID, "pages", res.Pages, "failed", res.Failed)
	return res, nil
}

func (f *Frontier) report(ctx context.Context, job Job, res *Result, depth int, url string, queued int) {
	if job.Progress == nil {
		return
	}
	job.Progress(ctx, Progress{
		Completed: res.Pages,
		Failed:    res.Failed,
		Queued:    queued,
		Depth:     depth,
		URL:       url,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
