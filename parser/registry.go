package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileParser extracts raw document text from a file of a specific format.
type FileParser interface {
	Extract(ctx context.Context, path string) (string, error)
	SupportedFormats() []string
}

// Registry maps file extensions to format parsers.
type Registry struct {
	parsers map[string]FileParser
}

// NewRegistry creates a registry with the built-in text and PDF parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]FileParser)}
	for _, p := range []FileParser{&TextParser{}, &PDFParser{}} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

// Register adds or replaces the parser for a format.
func (r *Registry) Register(format string, p FileParser) {
	r.parsers[format] = p
}

// Get returns the parser for a format.
func (r *Registry) Get(format string) (FileParser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

// ReadDocument extracts text from the file and parses it into a Document.
func (r *Registry) ReadDocument(ctx context.Context, path string) (*Document, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	p, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	text, err := p.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// TextParser handles markdown and plain text files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"md", "markdown", "txt"} }

func (p *TextParser) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	return string(data), nil
}
