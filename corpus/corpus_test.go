package corpus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/savoir/corpus/internal/crawl"
	"github.com/hazyhaar/savoir/corpus/internal/store"
	"github.com/hazyhaar/savoir/dbopen"
	_ "modernc.org/sqlite"
)

// recorder collects published events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(_ context.Context, event, jobID string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	db := dbopen.OpenMemory(t)
	cfg := &Config{
		BlobDir:   t.TempDir(),
		ChunkSize: 5,
	}
	cfg.Crawl.Delay = time.Millisecond

	opts = append([]ServiceOption{
		WithURLValidator(func(string) error { return nil }),
	}, opts...)
	svc, err := New(db, cfg, nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func waitForJob(t *testing.T, svc *Service, jobID string) *JobStatus {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		status, err := svc.CrawlStatus(context.Background(), jobID)
		if err != nil {
			t.Fatal(err)
		}
		switch status.Status {
		case "completed", "failed", "cancelled":
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status")
	return nil
}

func page(title, body string, links ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + title + "</title></head><body><main><p>" + body + "</p>")
	for _, l := range links {
		sb.WriteString(`<a href="` + l + `">link</a>`)
	}
	sb.WriteString("</main></body></html>")
	return sb.String()
}

// mockSite serves a small site: a homepage linking three pages, plus an
// external link and a stylesheet that must be filtered out.
func mockSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page("Home", "Welcome to the product documentation portal for everyone",
			"/install", "/pricing", "/faq", "https://elsewhere.example/off-site", "/theme.css"))
	})
	mux.HandleFunc("/install", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Install", "Run the installer and follow the setup wizard steps", "/install/advanced"))
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Pricing", "The premium plan costs twenty euros per month billed yearly"))
	})
	mux.HandleFunc("/faq", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("FAQ", "Frequently asked questions about refunds upgrades and cancellation"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// WHAT: end-to-end crawl of a mocked site — depth 2 fetches the homepage
// and its three links, filters the external link and the stylesheet, and
// stores at least one chunk per page.
func TestCrawlEndToEnd(t *testing.T) {
	srv := mockSite(t)
	rec := &recorder{}
	svc := newTestService(t, WithPublisher(rec))
	ctx := context.Background()

	jobID, err := svc.StartCrawl(ctx, "src_site", srv.URL, CrawlOptions{MaxDepth: 2, MaxPages: 5})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(jobID, "job_") {
		t.Errorf("jobID = %q", jobID)
	}

	status := waitForJob(t, svc, jobID)
	if status.Status != "completed" {
		t.Fatalf("status = %q, errors = %+v", status.Status, status.Errors)
	}
	// Homepage + /install + /pricing + /faq. /install/advanced is depth 2,
	// beyond MaxDepth=2; the external link and the stylesheet are filtered.
	if status.CompletedPages != 4 {
		t.Errorf("completed = %d, want 4", status.CompletedPages)
	}
	if status.FailedPages != 0 {
		t.Errorf("failed = %d: %+v", status.FailedPages, status.Errors)
	}

	for _, path := range []string{"", "/install", "/pricing", "/faq"} {
		n, err := svc.store.CountChunksByRef(ctx, "src_site", srv.URL+path)
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			t.Errorf("no chunks stored for %s%s", srv.URL, path)
		}
	}

	if rec.count(EventCrawlCompleted) != 1 {
		t.Errorf("crawl:completed events = %d", rec.count(EventCrawlCompleted))
	}
	if rec.count(EventCrawlProgress) == 0 {
		t.Error("no crawl:progress events")
	}

	// Fetch log has one entry per attempt.
	log, err := svc.store.ListFetchLog(ctx, jobID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 4 {
		t.Errorf("fetch log entries = %d, want 4", len(log))
	}
}

// WHAT: sitemap entries join the first crawl level by default, so a page
// unreachable by links still gets crawled.
func TestCrawlSitemapSeeds(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page("Home", "A homepage without a single outgoing link anywhere"))
	})
	mux.HandleFunc("/hidden", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("Hidden", "An orphan page only the sitemap knows about"))
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%s/hidden</loc></url>
</urlset>`, srvURL)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	svc := newTestService(t)
	ctx := context.Background()

	jobID, err := svc.StartCrawl(ctx, "src_map", srv.URL, CrawlOptions{MaxDepth: 1, MaxPages: 10})
	if err != nil {
		t.Fatal(err)
	}
	status := waitForJob(t, svc, jobID)
	if status.Status != "completed" {
		t.Fatalf("status = %q: %+v", status.Status, status.Errors)
	}
	if status.CompletedPages != 2 {
		t.Errorf("completed = %d, want homepage + sitemap orphan", status.CompletedPages)
	}
	if n, _ := svc.store.CountChunksByRef(ctx, "src_map", srv.URL+"/hidden"); n == 0 {
		t.Error("orphan page has no chunks")
	}

	// Opting out keeps the crawl on link-reachable pages only.
	jobID, err = svc.StartCrawl(ctx, "src_nomap", srv.URL, CrawlOptions{MaxDepth: 1, MaxPages: 10, DisableSitemap: true})
	if err != nil {
		t.Fatal(err)
	}
	if status = waitForJob(t, svc, jobID); status.CompletedPages != 1 {
		t.Errorf("completed = %d with sitemap disabled, want 1", status.CompletedPages)
	}
}

// WHAT: the page budget stops the crawl even when more links exist.
func TestCrawlPageBudget(t *testing.T) {
	srv := mockSite(t)
	svc := newTestService(t)

	jobID, err := svc.StartCrawl(context.Background(), "src_budget", srv.URL, CrawlOptions{MaxDepth: 3, MaxPages: 2})
	if err != nil {
		t.Fatal(err)
	}
	status := waitForJob(t, svc, jobID)
	if status.Status != "completed" {
		t.Fatalf("status = %q", status.Status)
	}
	if status.CompletedPages != 2 {
		t.Errorf("completed = %d, want 2", status.CompletedPages)
	}
}

// WHAT: cancelling a running job lands it in cancelled with partial pages
// kept, and a second cancel reports false.
func TestCancelCrawl(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow" {
			<-release
		}
		fmt.Fprint(w, page("Page", "some words to keep the chunker busy here", "/slow", "/other"))
	}))
	t.Cleanup(func() { once.Do(func() { close(release) }); srv.Close() })

	svc := newTestService(t)
	ctx := context.Background()

	jobID, err := svc.StartCrawl(ctx, "src_cancel", srv.URL, CrawlOptions{MaxDepth: 3, MaxPages: 10})
	if err != nil {
		t.Fatal(err)
	}

	// Wait until the job is actually running, then cancel.
	deadline := time.Now().Add(5 * time.Second)
	for {
		status, err := svc.CrawlStatus(ctx, jobID)
		if err != nil {
			t.Fatal(err)
		}
		if status.Status == "running" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never started running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ok, err := svc.CancelCrawl(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("cancel reported false for a running job")
	}
	once.Do(func() { close(release) })

	status := waitForJob(t, svc, jobID)
	if status.Status != "cancelled" {
		t.Fatalf("status = %q, want cancelled", status.Status)
	}

	if ok, _ := svc.CancelCrawl(ctx, jobID); ok {
		t.Error("cancel of a finished job reported true")
	}
}

// WHAT: a crawl that dies mid-flight keeps the counts it already earned.
// WHY: a failed job must report its partial progress and the full error
// list so the caller can tell how far it got, not a blank 0/0/0.
func TestFailedCrawlKeepsPartialCounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	job := &store.CrawlJob{
		ID:        "job_partial",
		SourceID:  "src_partial",
		StartURL:  "https://site.example",
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := svc.store.InsertJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	res := &crawl.Result{
		Pages:  2,
		Failed: 1,
		Errors: []crawl.PageError{{URL: "https://site.example/broken", Message: "fetch https://site.example/broken: status 500"}},
	}
	svc.failCrawl(ctx, job.ID, res, errors.New("store chunks: disk I/O error"))

	status, err := svc.CrawlStatus(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != "failed" {
		t.Fatalf("status = %q, want failed", status.Status)
	}
	if status.TotalPages != 3 || status.CompletedPages != 2 || status.FailedPages != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1",
			status.TotalPages, status.CompletedPages, status.FailedPages)
	}
	if len(status.Errors) != 2 {
		t.Fatalf("got %d errors, want the page error plus the fatal cause: %+v", len(status.Errors), status.Errors)
	}
	if status.Errors[0].URL != "https://site.example/broken" {
		t.Errorf("first error = %+v, want the per-page failure", status.Errors[0])
	}
	if !strings.Contains(status.Errors[1].Message, "disk I/O error") {
		t.Errorf("last error = %+v, want the fatal cause", status.Errors[1])
	}
}

func TestCancelCrawlNotFound(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CancelCrawl(context.Background(), "job_nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// WHAT: StartCrawl rejects missing input and invalid URLs before any row
// is written.
func TestStartCrawlValidation(t *testing.T) {
	svc := newTestService(t, WithURLValidator(func(u string) error {
		if strings.Contains(u, "forbidden") {
			return errors.New("blocked")
		}
		return nil
	}))
	ctx := context.Background()

	if _, err := svc.StartCrawl(ctx, "", "https://x", CrawlOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty source err = %v", err)
	}
	if _, err := svc.StartCrawl(ctx, "s", "", CrawlOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty url err = %v", err)
	}
	if _, err := svc.StartCrawl(ctx, "s", "https://forbidden.example", CrawlOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("validator err = %v", err)
	}
}

// WHAT: scraping one page stores chunks under the page URL and returns
// the extracted content.
func TestScrapeSinglePage(t *testing.T) {
	srv := mockSite(t)
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.ScrapeSinglePage(ctx, "src_scrape", srv.URL+"/pricing")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Pricing" {
		t.Errorf("title = %q", p.Title)
	}
	if !strings.Contains(p.Content, "premium plan") {
		t.Errorf("content = %q", p.Content)
	}

	n, err := svc.store.CountChunksByRef(ctx, "src_scrape", srv.URL+"/pricing")
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Error("no chunks stored")
	}
}

// WHAT: with an export buffer configured, a scraped page lands as a .md
// file whose body is the page HTML sanitized and converted to markdown.
func TestScrapeExportsMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Guide</title></head><body><main>
<p>The <strong>premium</strong> plan includes priority support.</p>
<script>alert("nope")</script>
</main></body></html>`)
	}))
	t.Cleanup(srv.Close)

	exportDir := t.TempDir()
	db := dbopen.OpenMemory(t)
	cfg := &Config{BlobDir: t.TempDir(), ExportDir: exportDir, ChunkSize: 5}
	svc, err := New(db, cfg, nil, WithURLValidator(func(string) error { return nil }))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })

	if _, err := svc.ScrapeSinglePage(context.Background(), "src_md", srv.URL); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(exportDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("exported files = %d, want 1", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(exportDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	body := string(data)
	if !strings.Contains(body, "**premium**") {
		t.Errorf("HTML not converted to markdown: %q", body)
	}
	if strings.Contains(body, "<strong>") || strings.Contains(body, "alert(") {
		t.Errorf("raw or unsanitized HTML leaked: %q", body)
	}
	if !strings.Contains(body, "source_id: src_md") {
		t.Errorf("frontmatter missing source id: %q", body)
	}
}

// WHAT: two sources scraping the same URL keep independent chunk sets;
// the second scrape must not wipe the first source's copy.
func TestScrapeSharedURLAcrossSources(t *testing.T) {
	srv := mockSite(t)
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ScrapeSinglePage(ctx, "src_a", srv.URL+"/pricing"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ScrapeSinglePage(ctx, "src_b", srv.URL+"/pricing"); err != nil {
		t.Fatal(err)
	}

	for _, src := range []string{"src_a", "src_b"} {
		if n, _ := svc.store.CountChunksByRef(ctx, src, srv.URL+"/pricing"); n == 0 {
			t.Errorf("%s has no chunks for the shared URL", src)
		}
		hits, err := svc.Retrieve(ctx, src, "premium plan", 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) == 0 {
			t.Errorf("%s retrieves nothing from the shared URL", src)
		}
	}
}

// WHAT: a text upload flows through blob → extract → chunk → processed,
// with the chunk count following the requested chunk size.
func TestProcessFile(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, WithPublisher(rec))
	ctx := context.Background()

	text := strings.Repeat("alpha beta gamma delta epsilon ", 4) // 20 words
	res, err := svc.ProcessFile(ctx, "src_txt", Upload{
		Filename: "notes.txt",
		MimeType: "text/plain",
		Data:     []byte(text),
	}, &ProcessOptions{ChunkSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.FileID, "file_") {
		t.Errorf("file id = %q", res.FileID)
	}
	// 20 words at size 8 -> 8/8/4.
	if res.ChunkCount != 3 {
		t.Errorf("chunks = %d, want 3", res.ChunkCount)
	}

	file, err := svc.store.GetFile(ctx, res.FileID)
	if err != nil {
		t.Fatal(err)
	}
	if !file.Processed {
		t.Error("file not marked processed")
	}
	if !svc.blobs.Exists(file.BlobPath) {
		t.Error("blob missing after processing")
	}
	if rec.count(EventFileProcessed) != 1 {
		t.Errorf("file:processed events = %d", rec.count(EventFileProcessed))
	}
}

// WHAT: oversized and unsupported uploads are rejected before any side
// effect — no file row, no blob.
func TestProcessFileValidation(t *testing.T) {
	svc := newTestService(t)
	svc.config.MaxFileSize = 100
	ctx := context.Background()

	_, err := svc.ProcessFile(ctx, "src_big", Upload{
		Filename: "big.txt", MimeType: "text/plain", Data: make([]byte, 200),
	}, nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversized err = %v", err)
	}

	_, err = svc.ProcessFile(ctx, "src_bin", Upload{
		Filename: "tool.exe", MimeType: "application/octet-stream",
		Data: []byte{0x4d, 0x5a, 0x00, 0x01},
	}, nil)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("unsupported err = %v", err)
	}

	for _, src := range []string{"src_big", "src_bin"} {
		if files, _ := svc.store.ListFilesBySource(ctx, src); len(files) != 0 {
			t.Errorf("rejected upload left a file row for %s", src)
		}
	}
}

// WHAT: a Word upload degrades to the placeholder instead of failing.
func TestProcessFileDocPlaceholder(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.ProcessFile(context.Background(), "src_doc", Upload{
		Filename: "report.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:     []byte{0x50, 0x4b, 0x03, 0x04},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metadata["placeholder"] != "true" {
		t.Errorf("metadata = %v", res.Metadata)
	}
	if res.ChunkCount == 0 {
		t.Error("placeholder produced no chunks")
	}
}

// WHAT: reprocessing reuses the stored bytes with new options and
// replaces the chunks atomically.
func TestReprocessFile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	text := strings.Repeat("one two three four five ", 4) // 20 words
	first, err := svc.ProcessFile(ctx, "src_re", Upload{
		Filename: "doc.txt", MimeType: "text/plain", Data: []byte(text),
	}, &ProcessOptions{ChunkSize: 20})
	if err != nil {
		t.Fatal(err)
	}
	if first.ChunkCount != 1 {
		t.Fatalf("first pass chunks = %d, want 1", first.ChunkCount)
	}

	second, err := svc.ReprocessFile(ctx, "src_re", &ProcessOptions{ChunkSize: 5})
	if err != nil {
		t.Fatal(err)
	}
	if second.ChunkCount != 4 {
		t.Errorf("second pass chunks = %d, want 4", second.ChunkCount)
	}
	if second.FileID != first.FileID {
		t.Errorf("reprocess created a new file row: %q vs %q", second.FileID, first.FileID)
	}

	if n, _ := svc.store.CountChunksByRef(ctx, "src_re", first.FileID); n != 4 {
		t.Errorf("stored chunks = %d, want 4 after reprocess", n)
	}
}

// WHAT: reprocessing with the blob gone is ErrFileMissing.
func TestReprocessFileMissingBlob(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.ProcessFile(ctx, "src_gone", Upload{
		Filename: "doc.txt", MimeType: "text/plain", Data: []byte("hello there friend"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	file, _ := svc.store.GetFile(ctx, res.FileID)
	if err := svc.blobs.Delete(file.BlobPath); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ReprocessFile(ctx, "src_gone", nil); !errors.Is(err, ErrFileMissing) {
		t.Errorf("err = %v, want ErrFileMissing", err)
	}
}

// WHAT: deleting a source removes rows, chunks, and blobs; deleting an
// unknown source is ErrNotFound.
func TestDeleteIngestedSource(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	res, err := svc.ProcessFile(ctx, "src_del", Upload{
		Filename: "bye.txt", MimeType: "text/plain", Data: []byte("short lived content here"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	file, _ := svc.store.GetFile(ctx, res.FileID)

	if err := svc.DeleteIngestedSource(ctx, "src_del"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.store.GetFile(ctx, res.FileID); err == nil {
		t.Error("file row survived delete")
	}
	if svc.blobs.Exists(file.BlobPath) {
		t.Error("blob survived delete")
	}
	if n, _ := svc.store.CountChunksByRef(ctx, "src_del", res.FileID); n != 0 {
		t.Errorf("chunks survived delete: %d", n)
	}

	if err := svc.DeleteIngestedSource(ctx, "src_absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// WHAT: status lookups for unknown jobs are ErrNotFound.
func TestCrawlStatusNotFound(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.CrawlStatus(context.Background(), "job_ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
