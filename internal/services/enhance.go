package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmreedy/docpipe/internal/config"
	"github.com/rmreedy/docpipe/internal/naming"
	"github.com/rmreedy/docpipe/internal/pipeline"
)

// EnhanceStage sanitizes, OCRs, and compresses each renamed PDF. Per file:
// strip annotations/bookmarks/properties, OCR with a rasterize-then-retry
// fallback (copying the file through unchanged as a last resort), then keep
// a compression attempt only when it beats the size-gain threshold.
type EnhanceStage struct {
	cfg  *config.Config
	tool PDFTool
	ocr  OCREngine
}

func NewEnhanceStage(cfg *config.Config, tool PDFTool, ocr OCREngine) *EnhanceStage {
	return &EnhanceStage{cfg: cfg, tool: tool, ocr: ocr}
}

func (s *EnhanceStage) Name() string { return "enhance" }

func (s *EnhanceStage) Run(ctx context.Context) (pipeline.Report, error) {
	if err := EnsureLayout(s.cfg.RootDir); err != nil {
		return nil, err
	}

	inputs, err := pipeline.DiscoverInputs(filepath.Join(s.cfg.RootDir, DirRenamed), naming.TagRenamed+".pdf")
	if err != nil {
		return nil, err
	}

	targetDir := filepath.Join(s.cfg.RootDir, DirClean)

	var report pipeline.Report
	var tasks []pipeline.Task
	for _, in := range inputs {
		base := naming.StripTag(strings.TrimSuffix(in.Name, ".pdf"))
		output := filepath.Join(targetDir, base+naming.TagEnhanced+".pdf")
		if _, err := os.Stat(output); err == nil {
			report = append(report, pipeline.StageResult{File: in.Name, Status: pipeline.StatusSkipped})
			continue
		}
		tasks = append(tasks, pipeline.Task{
			File: in.Name,
			Size: in.Size,
			Run: func(ctx context.Context) pipeline.StageResult {
				return s.processOne(ctx, in, base, output)
			},
		})
	}

	results := pipeline.RunSplit(ctx, tasks, s.cfg.CPUWorkers, s.cfg.LargeFileBytes,
		stageBar(s.Name(), len(tasks)))
	return append(report, results...), ctx.Err()
}

func (s *EnhanceStage) processOne(ctx context.Context, in pipeline.Input, base, output string) pipeline.StageResult {
	logCtx := slog.With("stage", s.Name(), "file", in.Name)
	targetDir := filepath.Dir(output)

	// Step 1: sanitize. On failure OCR runs against the raw input.
	ocrInput := in.Path
	sanitized := filepath.Join(targetDir, base+"_sanitized_tmp.pdf")
	defer os.Remove(sanitized)
	if err := s.tool.Sanitize(in.Path, sanitized); err != nil {
		logCtx.Warn("Sanitize failed, using raw input.", "error", err)
	} else {
		ocrInput = sanitized
	}

	// Step 2: OCR with the rasterize fallback chain.
	status := pipeline.StatusOK
	if err := s.ocr.Recognize(ctx, ocrInput, output); err != nil {
		logCtx.Warn("OCR failed, trying rasterize fallback.", "error", err)
		raster := filepath.Join(targetDir, base+"_raster_tmp.pdf")
		defer os.Remove(raster)

		rerr := s.ocr.Rasterize(ctx, ocrInput, raster)
		if rerr == nil {
			rerr = s.ocr.Recognize(ctx, raster, output)
		}
		if rerr != nil {
			logCtx.Warn("Fallback failed, copying file through without OCR.", "error", rerr)
			if cerr := copyFile(ocrInput, output); cerr != nil {
				return pipeline.Failed(in.Name, cerr)
			}
			status = pipeline.StatusPartial
		}
	}

	// Step 3: compression, kept only above the gain threshold.
	meta := map[string]string{}
	if gain, err := s.compress(output, filepath.Join(targetDir, base+"_compressed_tmp.pdf")); err != nil {
		logCtx.Warn("Compression attempt discarded.", "error", err)
	} else if gain > 0 {
		meta["compression"] = fmt.Sprintf("%.1f%%", gain)
	}

	return pipeline.StageResult{File: in.Name, Status: status, Metadata: meta}
}

// compress returns the realized size gain in percent, or 0 when the
// compressed copy was discarded. The temp file is removed on every path.
func (s *EnhanceStage) compress(output, tmp string) (float64, error) {
	defer os.Remove(tmp)

	before, err := os.Stat(output)
	if err != nil {
		return 0, err
	}
	if err := s.tool.Compress(output, tmp); err != nil {
		return 0, err
	}
	after, err := os.Stat(tmp)
	if err != nil {
		return 0, err
	}

	gain := float64(before.Size()-after.Size()) / float64(before.Size()) * 100
	if gain <= s.cfg.CompressionMinGain {
		return 0, nil
	}
	if err := os.Rename(tmp, output); err != nil {
		return 0, err
	}
	return gain, nil
}
