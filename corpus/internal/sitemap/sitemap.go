// Package sitemap discovers crawl seed URLs from a site's sitemap.xml.
//
// Discovery is strictly best-effort: a missing, slow, or malformed sitemap
// yields an empty result and a debug log line, never an error. The crawl
// proceeds from the start URL alone.
package sitemap

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/savoir/safeweb"
)

// Entry is one <url> element of a sitemap.
type Entry struct {
	URL        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlset struct {
	URLs []Entry `xml:"url"`
}

// Discoverer fetches and parses sitemaps.
type Discoverer struct {
	client   *http.Client
	logger   *slog.Logger
	maxBytes int64
}

// Config configures a Discoverer.
type Config struct {
	Timeout  time.Duration // default: 10s
	MaxBytes int64         // default: 5MB
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates a Discoverer.
func New(cfg Config) *Discoverer {
	cfg.defaults()
	return &Discoverer{
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
		maxBytes: cfg.MaxBytes,
	}
}

// Discover fetches {origin}/sitemap.xml and returns its entries. Any
// failure returns an empty slice.
func (d *Discoverer) Discover(ctx context.Context, origin string) []Entry {
	target := origin + "/sitemap.xml"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		d.logger.Debug("sitemap: bad request", "url", target, "error", err)
		return nil
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("sitemap: fetch failed", "url", target, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Debug("sitemap: not available", "url", target, "status", resp.StatusCode)
		return nil
	}

	body, err := safeweb.LimitedReadAll(resp.Body, d.maxBytes)
	if err != nil {
		d.logger.Debug("sitemap: read failed", "url", target, "error", err)
		return nil
	}

	var set urlset
	if err := xml.Unmarshal(body, &set); err != nil {
		d.logger.Debug("sitemap: parse failed", "url", target, "error", err)
		return nil
	}

	var entries []Entry
	for _, e := range set.URLs {
		if e.URL != "" {
			entries = append(entries, e)
		}
	}
	d.logger.Debug("sitemap: discovered", "url", target, "entries", len(entries))
	return entries
}
