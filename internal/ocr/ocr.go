// Package ocr shells out to the external OCR toolchain: ocrmypdf for
// recognition and ghostscript for the rasterize fallback.
package ocr

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rmreedy/docpipe/internal/pipeline"
)

// Engine invokes the configured external binaries. Both must tolerate
// already-sanitized input.
type Engine struct {
	OCRCommand         string
	GhostscriptCommand string
}

func NewEngine(ocrCmd, gsCmd string) *Engine {
	return &Engine{OCRCommand: ocrCmd, GhostscriptCommand: gsCmd}
}

// Recognize runs OCR at 600 DPI producing a PDF/A output file.
func (e *Engine) Recognize(ctx context.Context, in, out string) error {
	return e.run(ctx, e.OCRCommand,
		"--redo-ocr", "--output-type", "pdfa", "--oversample", "600", in, out)
}

// Rasterize flattens a problem PDF to images so OCR can be retried on it.
func (e *Engine) Rasterize(ctx context.Context, in, out string) error {
	return e.run(ctx, e.GhostscriptCommand, "-sDEVICE=pdfimage32", "-o", out, in)
}

func (e *Engine) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &pipeline.ToolError{
			Tool: name,
			Err:  fmt.Errorf("%w: %s", err, pipeline.Truncate(string(output), 300)),
		}
	}
	return nil
}
