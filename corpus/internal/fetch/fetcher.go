// Package fetch retrieves single web pages and extracts their text,
// links, images, headings, and metadata for the ingestion pipeline.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/savoir/safeweb"
)

// Metadata holds the standard meta tags read from a page.
type Metadata struct {
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Author      string `json:"author"`
}

// Headings collects the h1/h2/h3 text of a page.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

// Page is the outcome of one successful fetch+extract. Immutable once
// returned; the crawler consumes it to produce chunks and a frontier level.
type Page struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	// HTML is the raw response body, kept for downstream consumers that
	// want more than the extracted text (e.g. the markdown export).
	HTML string `json:"-"`
	Metadata   Metadata  `json:"metadata"`
	Links      []string  `json:"links"`
	Images     []string  `json:"images"`
	Headings   Headings  `json:"headings"`
	WordCount  int       `json:"word_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Error is a per-URL fetch failure: network error, timeout, or a terminal
// HTTP status. Recorded in the job's error list, never fatal to a crawl.
type Error struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config configures the fetcher.
type Config struct {
	Timeout      time.Duration // per-fetch timeout. Default: 10s.
	MaxBytes     int64         // max response body size. Default: 10MB.
	MaxRedirects int           // redirect cap. Default: 5.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch and on every redirect hop
	// (SSRF prevention). Default: safeweb.ValidateURL.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = 5
	}
	if c.UserAgent == "" {
		c.UserAgent = "savoir-corpus/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = safeweb.ValidateURL
	}
}

// Fetcher performs HTTP requests and HTML extraction.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher with SSRF protection on redirects.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	maxRedirects := cfg.MaxRedirects
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a URL and extracts its content. Returns *Error on
// timeout, network failure, or terminal status >= 400.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	body, err := safeweb.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	// The response may have been redirected; extraction resolves relative
	// URLs against the final location.
	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page, err := Extract(body, finalURL)
	if err != nil {
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("extract: %w", err)}
	}
	page.URL = url
	page.StatusCode = resp.StatusCode
	page.HTML = string(body)
	page.FetchedAt = time.Now().UTC()
	return page, nil
}

// Origin returns the scheme://host[:port] prefix of a URL, or "" when the
// URL does not parse.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Normalize strips fragments and trailing slashes so the visited set
// treats https://a/b and https://a/b/#x as one page.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	s := u.String()
	if strings.HasSuffix(u.Path, "/") && u.Path != "/" {
		s = strings.TrimSuffix(s, "/")
	}
	return s
}
