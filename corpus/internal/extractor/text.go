package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ExtractText passes plain text through with line endings normalised and
// invalid UTF-8 dropped.
func ExtractText(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, fmt.Errorf("no text content")
	}

	return &Result{
		Text:     text,
		Metadata: map[string]string{"extractor": "text"},
	}, nil
}

// pdfPlaceholder is stored when a PDF yields no recoverable text, so the
// upload still succeeds and the source can be reprocessed later.
const pdfPlaceholder = "This PDF could not be converted to text. It may be scanned, " +
	"encrypted, or image-only. Re-upload a text-based version to make its content searchable."

// docPlaceholder is stored for Word uploads so the source stays listed
// and can be reprocessed once a converter is wired in.
const docPlaceholder = "This document was uploaded in a Word format that is not yet " +
	"converted to text. Re-upload it as PDF or plain text to make its content searchable."

// ExtractDocPlaceholder degrades .doc/.docx uploads to a placeholder
// instead of rejecting them.
func ExtractDocPlaceholder(data []byte) (*Result, error) {
	return &Result{
		Text: docPlaceholder,
		Metadata: map[string]string{
			"extractor":   "doc-placeholder",
			"placeholder": "true",
		},
	}, nil
}
