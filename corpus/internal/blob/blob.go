// Package blob stores uploaded file bytes on the local filesystem under
// collision-resistant generated names.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/savoir/idgen"
	"github.com/hazyhaar/savoir/safeweb"
)

// Store writes and reads blobs under a base directory. Paths returned by
// Write and accepted by Read/Delete are relative to that directory.
type Store struct {
	base  string
	newID idgen.Generator
}

// New creates a Store rooted at base, creating the directory if needed.
func New(base string, gen idgen.Generator) (*Store, error) {
	if gen == nil {
		gen = idgen.UUIDv7()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("blob: mkdir: %w", err)
	}
	return &Store{base: base, newID: gen}, nil
}

// Write stores data under a generated name that keeps the original
// extension, and returns the relative path.
func (s *Store) Write(filename string, data []byte) (string, error) {
	name := s.newID()
	if ext := sanitizeExt(filepath.Ext(filename)); ext != "" {
		name += ext
	}

	full := filepath.Join(s.base, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write: %w", err)
	}
	return name, nil
}

// Read returns the bytes stored at a relative path.
func (s *Store) Read(relPath string) ([]byte, error) {
	full, err := safeweb.SafePath(s.base, relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	return data, nil
}

// Exists reports whether a blob is present at a relative path.
func (s *Store) Exists(relPath string) bool {
	full, err := safeweb.SafePath(s.base, relPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// Delete removes the blob at a relative path. Missing blobs are not an
// error.
func (s *Store) Delete(relPath string) error {
	full, err := safeweb.SafePath(s.base, relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete: %w", err)
	}
	return nil
}

// sanitizeExt keeps only short alphanumeric extensions; anything else is
// dropped rather than written to disk.
func sanitizeExt(ext string) string {
	if ext == "" || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
		if !ok {
			return ""
		}
	}
	return strings.ToLower(ext)
}
