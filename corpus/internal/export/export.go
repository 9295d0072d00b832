// Package export writes corpus content as .md files to a filesystem
// buffer for asynchronous consumption by a downstream RAG pipeline.
//
// Each file carries YAML frontmatter with source metadata; the body is
// the extracted text, or sanitized HTML converted to markdown. Files are
// written atomically (write .tmp then rename) so a consumer never sees a
// partial file.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/savoir/idgen"
)

// Metadata describes the source of an exported file.
type Metadata struct {
	ID         string
	SourceID   string
	SourceRef  string // page URL or ingested file id
	SourceType string // "website" or "file"
	Title      string
	ExportedAt time.Time
}

// Writer deposits .md files into a buffer directory.
type Writer struct {
	dir      string
	newID    idgen.Generator
	sanitize *bluemonday.Policy
}

// NewWriter creates a Writer targeting dir. The directory is created on
// first write.
func NewWriter(dir string, gen idgen.Generator) *Writer {
	if gen == nil {
		gen = idgen.Default
	}
	return &Writer{
		dir:      dir,
		newID:    gen,
		sanitize: bluemonday.UGCPolicy(),
	}
}

// WriteText creates a .md file with frontmatter and a plain-text body.
// Returns the path of the written file.
func (w *Writer) WriteText(ctx context.Context, meta Metadata, text string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: mkdir %s: %w", w.dir, err)
	}
	if meta.ID == "" {
		meta.ID = w.newID()
	}
	if meta.ExportedAt.IsZero() {
		meta.ExportedAt = time.Now()
	}

	target := filepath.Join(w.dir, meta.ID+".md")
	tmp := target + ".tmp"

	content := frontmatter(meta) + text
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("export: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("export: rename: %w", err)
	}
	return target, nil
}

// WriteHTML sanitizes raw HTML, converts it to markdown, and writes it
// like WriteText.
func (w *Writer) WriteHTML(ctx context.Context, meta Metadata, rawHTML string) (string, error) {
	clean := w.sanitize.Sanitize(rawHTML)
	md, err := htmltomarkdown.ConvertString(clean)
	if err != nil {
		return "", fmt.Errorf("export: convert html: %w", err)
	}
	return w.WriteText(ctx, meta, md)
}

func frontmatter(m Metadata) string {
	return "---\n" +
		"id: " + m.ID + "\n" +
		"source_id: " + m.SourceID + "\n" +
		"source_ref: " + yamlEscape(m.SourceRef) + "\n" +
		"source_type: " + m.SourceType + "\n" +
		"title: " + yamlEscape(m.Title) + "\n" +
		"exported_at: " + m.ExportedAt.UTC().Format(time.RFC3339) + "\n" +
		"---\n\n"
}

// yamlEscape quotes a value when it contains YAML-significant characters.
func yamlEscape(s string) string {
	if !strings.ContainsAny(s, ":#'\"{}[],&*?|-<>=!%@`\n") {
		return s
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteByte(s[i])
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
