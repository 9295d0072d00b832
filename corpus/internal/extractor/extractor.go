// Package extractor turns uploaded file bytes into plain text, dispatched
// by MIME type. PDF goes through pdfcpu, CSV through encoding/csv, plain
// text passes through normalised. Word documents and unreadable PDFs
// degrade to a placeholder rather than failing the upload.
package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned for MIME types with no registered extractor
// and content that does not look like text.
var ErrUnsupported = errors.New("extractor: unsupported content type")

// Result is the outcome of one extraction.
type Result struct {
	Text     string
	Metadata map[string]string
}

// Func extracts text from raw file bytes.
type Func func(data []byte) (*Result, error)

// Registry dispatches extraction by MIME type.
type Registry struct {
	byMime map[string]Func
}

// NewRegistry returns a Registry with the default extractors registered.
func NewRegistry() *Registry {
	r := &Registry{byMime: make(map[string]Func)}
	r.Register("application/pdf", extractPDFDegraded)
	r.Register("text/csv", ExtractCSV)
	r.Register("application/csv", ExtractCSV)
	r.Register("text/plain", ExtractText)
	r.Register("text/markdown", ExtractText)
	r.Register("application/msword", ExtractDocPlaceholder)
	r.Register("application/vnd.openxmlformats-officedocument.wordprocessingml.document", ExtractDocPlaceholder)
	return r
}

// extractPDFDegraded falls back to a placeholder when pdfcpu cannot
// recover any text, so a scanned or broken PDF does not fail the upload.
func extractPDFDegraded(data []byte) (*Result, error) {
	res, err := ExtractPDF(data)
	if err == nil {
		return res, nil
	}
	return &Result{
		Text: pdfPlaceholder,
		Metadata: map[string]string{
			"extractor":   "pdf-placeholder",
			"placeholder": "true",
			"error":       err.Error(),
		},
	}, nil
}

// Register binds a MIME type to an extractor, replacing any previous one.
func (r *Registry) Register(mime string, fn Func) {
	r.byMime[normalizeMime(mime)] = fn
}

// Supported reports whether a MIME type has a registered extractor.
func (r *Registry) Supported(mime string) bool {
	_, ok := r.byMime[normalizeMime(mime)]
	return ok
}

// Extract dispatches to the extractor registered for the MIME type. An
// unregistered type falls back to plain-text extraction when the bytes
// look like text, and returns ErrUnsupported otherwise.
func (r *Registry) Extract(mime string, data []byte) (*Result, error) {
	if fn, ok := r.byMime[normalizeMime(mime)]; ok {
		return fn(data)
	}
	if looksLikeText(data) {
		return ExtractText(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, mime)
}

// CanExtract reports whether Extract would dispatch to an extractor
// rather than return ErrUnsupported.
func (r *Registry) CanExtract(mime string, data []byte) bool {
	return r.Supported(mime) || looksLikeText(data)
}

// normalizeMime lowercases and strips parameters ("text/csv; charset=utf-8").
func normalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// looksLikeText is a cheap binary sniff: NUL bytes mean binary.
func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	return true
}
