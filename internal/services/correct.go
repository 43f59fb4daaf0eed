package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmreedy/docpipe/internal/archive"
	"github.com/rmreedy/docpipe/internal/chunk"
	"github.com/rmreedy/docpipe/internal/config"
	"github.com/rmreedy/docpipe/internal/naming"
	"github.com/rmreedy/docpipe/internal/pipeline"
	"github.com/rmreedy/docpipe/internal/textdoc"
)

// CorrectStage sends each extracted document body through the AI corrector
// and writes the corrected artifact. Unlike the other stages it never
// skips: all prior outputs are archived once at stage start and every
// candidate is processed fresh. Documents over the page threshold are
// corrected chunk by chunk and rejoined.
type CorrectStage struct {
	cfg           *config.Config
	dialCorrector func(ctx context.Context) (Corrector, error)
}

func NewCorrectStage(cfg *config.Config, dialCorrector func(ctx context.Context) (Corrector, error)) *CorrectStage {
	return &CorrectStage{cfg: cfg, dialCorrector: dialCorrector}
}

func (s *CorrectStage) Name() string { return "correct" }

func (s *CorrectStage) Run(ctx context.Context) (pipeline.Report, error) {
	if err := EnsureLayout(s.cfg.RootDir); err != nil {
		return nil, err
	}

	targetDir := filepath.Join(s.cfg.RootDir, DirFormat)

	// Archive every prior output before reprocessing.
	prior, err := pipeline.DiscoverInputs(targetDir, naming.TagCorrected+".txt")
	if err != nil {
		return nil, err
	}
	for _, old := range prior {
		if _, err := archive.ArchiveIfExists(old.Path); err != nil {
			return nil, err
		}
	}
	if len(prior) > 0 {
		slog.Info("Archived prior corrected outputs.", "stage", s.Name(), "count", len(prior))
	}

	inputs, err := pipeline.DiscoverInputs(filepath.Join(s.cfg.RootDir, DirConvert), naming.TagExtracted+".txt")
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	corrector, err := s.dialCorrector(ctx)
	if err != nil {
		return nil, fmt.Errorf("corrector: %w", err)
	}
	defer corrector.Close()

	var tasks []pipeline.Task
	for _, in := range inputs {
		base := naming.StripTag(strings.TrimSuffix(in.Name, ".txt"))
		output := filepath.Join(targetDir, base+naming.TagCorrected+".txt")
		tasks = append(tasks, pipeline.Task{
			File: in.Name,
			Size: in.Size,
			Run: func(ctx context.Context) pipeline.StageResult {
				return s.processOne(ctx, corrector, in, output)
			},
		})
	}

	results := pipeline.RunAll(ctx, tasks, s.cfg.IOWorkers, stageBar(s.Name(), len(tasks)))
	return results, ctx.Err()
}

func (s *CorrectStage) processOne(ctx context.Context, corrector Corrector, in pipeline.Input, output string) pipeline.StageResult {
	full, err := os.ReadFile(in.Path)
	if err != nil {
		return pipeline.Failed(in.Name, err)
	}

	doc, err := textdoc.Parse(string(full))
	if err != nil {
		return pipeline.Failed(in.Name, err)
	}

	pages := doc.Pages()
	chunks := []string{doc.Body}
	if pages > s.cfg.PagesPerChunk {
		chunks = chunk.Split(doc.Body, s.cfg.PagesPerChunk)
		slog.Info("Correcting in chunks.", "stage", s.Name(), "file", in.Name,
			"pages", pages, "chunks", len(chunks))
	}

	corrected := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out, err := corrector.CorrectBody(ctx, c)
		if err != nil {
			return pipeline.Failed(in.Name, err)
		}
		corrected = append(corrected, out)
	}

	final := doc.Assemble(chunk.Join(corrected))
	if err := os.WriteFile(output, []byte(final), 0o644); err != nil {
		return pipeline.Failed(in.Name, err)
	}

	return pipeline.StageResult{
		File:   in.Name,
		Status: pipeline.StatusOK,
		Metadata: map[string]string{
			"pages":     fmt.Sprintf("%d", pages),
			"chars_in":  fmt.Sprintf("%d", len(doc.Body)),
			"chars_out": fmt.Sprintf("%d", len(final)),
		},
	}
}
