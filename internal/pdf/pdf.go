// Package pdf wraps local PDF manipulation: metadata/annotation stripping
// and compression via pdfcpu, and direct page text extraction via MuPDF for
// files too large to send to the remote extractor.
package pdf

import (
	"fmt"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rmreedy/docpipe/internal/pipeline"
)

// Tool is the pdfcpu-backed PDF toolkit.
type Tool struct{}

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Sanitize writes a copy of in to out with annotations, bookmarks, and
// document properties removed.
func (Tool) Sanitize(in, out string) error {
	cfg := relaxedConfig()
	if err := api.RemoveAnnotationsFile(in, out, nil, nil, nil, cfg, false); err != nil {
		return &pipeline.ToolError{Tool: "pdfcpu", Err: fmt.Errorf("remove annotations: %w", err)}
	}
	if err := api.RemoveBookmarksFile(out, out, cfg); err != nil {
		return &pipeline.ToolError{Tool: "pdfcpu", Err: fmt.Errorf("remove bookmarks: %w", err)}
	}
	if err := api.RemovePropertiesFile(out, out, nil, cfg); err != nil {
		return &pipeline.ToolError{Tool: "pdfcpu", Err: fmt.Errorf("remove properties: %w", err)}
	}
	return nil
}

// Compress writes an optimized copy of in to out. Whether the result is
// kept is the caller's size-threshold decision.
func (Tool) Compress(in, out string) error {
	if err := api.OptimizeFile(in, out, relaxedConfig()); err != nil {
		return &pipeline.ToolError{Tool: "pdfcpu", Err: fmt.Errorf("optimize: %w", err)}
	}
	return nil
}

// PageCount returns the number of pages in path.
func (Tool) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, &pipeline.ToolError{Tool: "pdfcpu", Err: fmt.Errorf("page count: %w", err)}
	}
	return n, nil
}

// ExtractText pulls the embedded text layer of every page, skipping blank
// pages. Used for files above the remote extractor's payload limit.
func (Tool) ExtractText(path string) ([]string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, &pipeline.ToolError{Tool: "mupdf", Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return nil, &pipeline.ToolError{Tool: "mupdf", Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
		if len(text) > 0 {
			pages = append(pages, text)
		}
	}
	return pages, nil
}

// FirstPageExcerpt returns up to limit characters of the first page's text,
// for AI metadata analysis.
func (Tool) FirstPageExcerpt(path string, limit int) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", &pipeline.ToolError{Tool: "mupdf", Err: fmt.Errorf("open %s: %w", path, err)}
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return "", nil
	}
	text, err := doc.Text(0)
	if err != nil {
		return "", &pipeline.ToolError{Tool: "mupdf", Err: fmt.Errorf("first page: %w", err)}
	}
	return clip(text, limit), nil
}

// clip cuts text to at most limit bytes on a rune boundary, so the excerpt
// stays valid UTF-8.
func clip(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
