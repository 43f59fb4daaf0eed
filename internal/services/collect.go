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

// CollectStage moves raw PDFs from the project root into the first pipeline
// directory under the canonical collected tag. Name collisions are skipped,
// never overwritten.
type CollectStage struct {
	cfg *config.Config
}

func NewCollectStage(cfg *config.Config) *CollectStage {
	return &CollectStage{cfg: cfg}
}

func (s *CollectStage) Name() string { return "collect" }

func (s *CollectStage) Run(ctx context.Context) (pipeline.Report, error) {
	if err := EnsureLayout(s.cfg.RootDir); err != nil {
		return nil, err
	}

	inputs, err := pipeline.DiscoverInputs(s.cfg.RootDir, ".pdf")
	if err != nil {
		return nil, err
	}

	targetDir := filepath.Join(s.cfg.RootDir, DirOriginal)
	logCtx := slog.With("stage", s.Name())

	var report pipeline.Report
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		stem := strings.TrimSuffix(in.Name, ".pdf")
		newName := naming.Retag(stem, naming.TagCollected) + ".pdf"
		target := filepath.Join(targetDir, newName)

		if _, err := os.Stat(target); err == nil {
			logCtx.Info("Target already exists, skipping.", "file", in.Name)
			report = append(report, pipeline.StageResult{File: in.Name, Status: pipeline.StatusSkipped})
			continue
		}

		if err := os.Rename(in.Path, target); err != nil {
			report = append(report, pipeline.Failed(in.Name, fmt.Errorf("move to %s: %w", DirOriginal, err)))
			continue
		}
		logCtx.Info("Collected.", "file", in.Name, "as", newName)
		report = append(report, pipeline.StageResult{
			File:     in.Name,
			Status:   pipeline.StatusOK,
			Metadata: map[string]string{"collected": newName},
		})
	}
	return report, nil
}
