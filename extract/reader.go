package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/hybridrag/core"
)

// ErrUnsupportedFormat is returned for files no Reader understands.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrNoText is returned when a file holds no extractable text.
var ErrNoText = errors.New("no extractable text")

// Reader extracts the pages of one file.
type Reader interface {
	ReadFile(ctx context.Context, path string) (*core.DocumentInput, error)
}

// ForFile picks a Reader by the file's extension.
func ForFile(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".text":
		return TextReader{}, nil
	case ".pdf":
		return PDFReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// TextReader reads UTF-8 text files. Form feeds separate pages.
type TextReader struct{}

// ReadFile implements Reader.
func (TextReader) ReadFile(ctx context.Context, path string) (*core.DocumentInput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return newInput(path, strings.Split(string(data), "\f"))
}

// PDFReader reads PDF files one page at a time.
type PDFReader struct{}

// ReadFile implements Reader. Pages without a content stream become empty
// pages so page numbers match the PDF.
func (PDFReader) ReadFile(ctx context.Context, path string) (*core.DocumentInput, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, r.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", i+1, err)
		}
		pages[i] = text
	}
	return newInput(path, pages)
}

func newInput(path string, pages []string) (*core.DocumentInput, error) {
	empty := true
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			empty = false
			break
		}
	}
	if empty {
		return nil, fmt.Errorf("%w: %s", ErrNoText, filepath.Base(path))
	}
	return &core.DocumentInput{Filename: filepath.Base(path), Pages: pages}, nil
}
