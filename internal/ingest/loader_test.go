package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/askdoc-io/docquery/internal/domain"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoad_SplitsPagesOnFormFeed(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "report.txt", "page one\ntext\fpage two\f\fpage three")

	segs, err := NewFileLoader(dir).Load(context.Background(), "report.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(segs))
	}
	for i, seg := range segs {
		if seg.Page != i+1 {
			t.Errorf("page %d numbered %d", i+1, seg.Page)
		}
	}
	if segs[0].Text != "page one\ntext" {
		t.Errorf("unexpected first page: %q", segs[0].Text)
	}
}

func TestLoad_SinglePageWithoutFormFeed(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "note.md", "just one page")

	segs, err := NewFileLoader(dir).Load(context.Background(), "note.md")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(segs) != 1 || segs[0].Page != 1 {
		t.Fatalf("expected a single page, got %+v", segs)
	}
}

func TestLoad_MissingDocumentIsNotFound(t *testing.T) {
	_, err := NewFileLoader(t.TempDir()).Load(context.Background(), "absent.txt")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoad_EmptyDocumentIsNotFound(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "empty.txt", "  \n\f  ")

	_, err := NewFileLoader(dir).Load(context.Background(), "empty.txt")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty file, got %v", err)
	}
}

func TestLoad_StripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "safe.txt", "content")

	segs, err := NewFileLoader(dir).Load(context.Background(), "../../safe.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if segs[0].Text != "content" {
		t.Errorf("unexpected text %q", segs[0].Text)
	}
}

func TestList_FiltersNonTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "b.txt", "x")
	writeDoc(t, dir, "a.md", "x")
	writeDoc(t, dir, "skip.bin", "x")

	names, err := NewFileLoader(dir).List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 || names[0] != "a.md" || names[1] != "b.txt" {
		t.Fatalf("unexpected listing %v", names)
	}
}
