package sitemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://docs.example/guide</loc>
    <lastmod>2025-11-02</lastmod>
    <changefreq>weekly</changefreq>
    <priority>0.8</priority>
  </url>
  <url>
    <loc>https://docs.example/api</loc>
  </url>
  <url>
    <loc></loc>
  </url>
</urlset>`

// WHAT: parses a well-formed sitemap into seed entries.
// WHY: sitemap seeds let the crawl reach pages not linked from the start page.
func TestDiscoverParsesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sampleSitemap))
	}))
	defer srv.Close()

	d := New(Config{})
	entries := d.Discover(context.Background(), srv.URL)

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 (empty <loc> skipped)", len(entries))
	}
	if entries[0].URL != "https://docs.example/guide" {
		t.Errorf("first entry = %q", entries[0].URL)
	}
	if entries[0].LastMod != "2025-11-02" {
		t.Errorf("lastmod = %q", entries[0].LastMod)
	}
	if entries[0].Priority != "0.8" {
		t.Errorf("priority = %q", entries[0].Priority)
	}
	if entries[1].URL != "https://docs.example/api" {
		t.Errorf("second entry = %q", entries[1].URL)
	}
}

// WHAT: a missing sitemap yields an empty result, not an error.
func TestDiscoverMissingSitemap(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d := New(Config{})
	if entries := d.Discover(context.Background(), srv.URL); len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

// WHAT: malformed XML yields an empty result.
func TestDiscoverMalformedXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<urlset><url><loc>broken"))
	}))
	defer srv.Close()

	d := New(Config{})
	if entries := d.Discover(context.Background(), srv.URL); len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}

// WHAT: an unreachable host yields an empty result.
func TestDiscoverUnreachable(t *testing.T) {
	d := New(Config{})
	if entries := d.Discover(context.Background(), "http://127.0.0.1:1"); len(entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(entries))
	}
}
