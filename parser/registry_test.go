package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	for _, format := range []string{"md", "markdown", "txt", "pdf"} {
		if _, err := r.Get(format); err != nil {
			t.Errorf("Get(%q): %v", format, err)
		}
	}
	if _, err := r.Get("docx"); err == nil {
		t.Error("Get(docx) should fail")
	}
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "design.md")
	if err := os.WriteFile(path, []byte("#### Chapter 1: Start\nText.\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	doc, err := NewRegistry().ReadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if len(doc.Chapters) != 1 || doc.Chapters[0].Title != "Start" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestReadDocumentUnsupportedFormat(t *testing.T) {
	if _, err := NewRegistry().ReadDocument(context.Background(), "design.docx"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
