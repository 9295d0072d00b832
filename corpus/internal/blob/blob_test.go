package blob

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/savoir/safeweb"
)

// WHAT: bytes round-trip through Write and Read, with the original
// extension preserved on the generated name.
func TestWriteRead(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("%PDF-1.4 fake body")
	path, err := s.Write("Manual V2.PDF", data)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, ".pdf") {
		t.Errorf("path = %q, want .pdf suffix", path)
	}
	if strings.Contains(path, "Manual") {
		t.Errorf("path %q leaks the original filename", path)
	}

	got, err := s.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read bytes differ from written bytes")
	}
	if !s.Exists(path) {
		t.Error("Exists = false for a written blob")
	}
}

// WHAT: two writes of the same filename land under distinct names.
func TestWriteNoCollision(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	p1, err := s.Write("same.txt", []byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.Write("same.txt", []byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatalf("both writes produced %q", p1)
	}
}

// WHAT: a suspicious extension is dropped rather than written to disk.
func TestWriteSanitizesExtension(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Write("evil.sh;rm -rf", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(path, ";") || strings.Contains(path, " ") {
		t.Errorf("path = %q carries unsanitized extension", path)
	}
}

// WHAT: Read rejects path traversal instead of escaping the base dir.
func TestReadRejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Read("../../etc/passwd"); !errors.Is(err, safeweb.ErrPathTraversal) {
		t.Errorf("err = %v, want ErrPathTraversal", err)
	}
}

// WHAT: Delete removes the blob and tolerates a second call.
func TestDelete(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	path, err := s.Write("note.txt", []byte("bye"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(path); err != nil {
		t.Fatal(err)
	}
	if s.Exists(path) {
		t.Error("blob still exists after delete")
	}
	if err := s.Delete(path); err != nil {
		t.Errorf("second delete errored: %v", err)
	}
}
