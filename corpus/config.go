package corpus

import (
	"time"

	"github.com/hazyhaar/savoir/corpus/internal/crawl"
	"github.com/hazyhaar/savoir/corpus/internal/fetch"
)

// Config holds the service-wide defaults. Per-operation options override
// the crawl and chunking values.
type Config struct {
	// Crawl bounds: depth (levels fetched), page budget, politeness delay.
	Crawl crawl.Config
	// Fetch tunes the HTTP client: timeout, body cap, redirect cap, UA.
	Fetch fetch.Config
	// ChunkSize is the word count per stored chunk. Default: 500.
	ChunkSize int
	// MaxFileSize caps uploads in bytes. Default: 10 MiB.
	MaxFileSize int64
	// RetrievalWindow bounds how many recent chunks retrieval scans.
	// Default: 500.
	RetrievalWindow int
	// RetrievalTopK is the default number of candidates returned. Default: 5.
	RetrievalTopK int
	// BlobDir is where uploaded bytes are stored. Default: "data/blobs".
	BlobDir string
	// ExportDir, when set, enables the markdown export buffer.
	ExportDir string
	// SitemapTimeout bounds sitemap discovery. Default: 10s.
	SitemapTimeout time.Duration
}

func defaultConfig() *Config {
	return &Config{}
}

func (c *Config) defaults() {
	c.Crawl = crawlDefaults(c.Crawl)
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 10 * 1024 * 1024
	}
	if c.RetrievalWindow <= 0 {
		c.RetrievalWindow = 500
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 5
	}
	if c.BlobDir == "" {
		c.BlobDir = "data/blobs"
	}
	if c.SitemapTimeout <= 0 {
		c.SitemapTimeout = 10 * time.Second
	}
}

// crawlDefaults mirrors crawl.Config defaults so a zero service Config is
// fully specified before per-job overrides are applied.
func crawlDefaults(c crawl.Config) crawl.Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 3
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	return c
}
