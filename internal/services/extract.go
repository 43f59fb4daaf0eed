package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmreedy/docpipe/internal/config"
	"github.com/rmreedy/docpipe/internal/naming"
	"github.com/rmreedy/docpipe/internal/pipeline"
	"github.com/rmreedy/docpipe/internal/textdoc"
)

// ExtractStage converts each enhanced PDF into a template-wrapped text
// artifact. Files within the inline payload limit go through the remote
// page extractor; larger files fall back to the local text layer.
type ExtractStage struct {
	cfg        *config.Config
	reader     TextReader
	dialReader func(ctx context.Context) (PageReader, error)
}

func NewExtractStage(cfg *config.Config, reader TextReader, dialReader func(ctx context.Context) (PageReader, error)) *ExtractStage {
	return &ExtractStage{cfg: cfg, reader: reader, dialReader: dialReader}
}

func (s *ExtractStage) Name() string { return "extract" }

func (s *ExtractStage) Run(ctx context.Context) (pipeline.Report, error) {
	if err := EnsureLayout(s.cfg.RootDir); err != nil {
		return nil, err
	}

	inputs, err := pipeline.DiscoverInputs(filepath.Join(s.cfg.RootDir, DirClean), naming.TagEnhanced+".pdf")
	if err != nil {
		return nil, err
	}

	targetDir := filepath.Join(s.cfg.RootDir, DirConvert)

	var report pipeline.Report
	var pending []pipeline.Input
	needRemote := false
	for _, in := range inputs {
		output := s.outputPath(targetDir, in.Name)
		if _, err := os.Stat(output); err == nil {
			report = append(report, pipeline.StageResult{File: in.Name, Status: pipeline.StatusSkipped})
			continue
		}
		if in.Size <= s.cfg.InlineExtractLimit {
			needRemote = true
		}
		pending = append(pending, in)
	}
	if len(pending) == 0 {
		return report, nil
	}

	var remote PageReader
	if needRemote {
		remote, err = s.dialReader(ctx)
		if err != nil {
			return report, fmt.Errorf("page extractor: %w", err)
		}
		defer remote.Close()
	}

	var tasks []pipeline.Task
	for _, in := range pending {
		tasks = append(tasks, pipeline.Task{
			File: in.Name,
			Size: in.Size,
			Run: func(ctx context.Context) pipeline.StageResult {
				return s.processOne(ctx, remote, in, s.outputPath(targetDir, in.Name))
			},
		})
	}

	results := pipeline.RunAll(ctx, tasks, s.cfg.IOWorkers, stageBar(s.Name(), len(tasks)))
	return append(report, results...), ctx.Err()
}

func (s *ExtractStage) outputPath(targetDir, pdfName string) string {
	base := naming.StripTag(strings.TrimSuffix(pdfName, ".pdf"))
	return filepath.Join(targetDir, base+naming.TagExtracted+".txt")
}

func (s *ExtractStage) processOne(ctx context.Context, remote PageReader, in pipeline.Input, output string) pipeline.StageResult {
	var (
		pages []string
		err   error
	)
	if in.Size > s.cfg.InlineExtractLimit {
		pages, err = s.reader.ExtractText(in.Path)
	} else {
		var content []byte
		content, err = os.ReadFile(in.Path)
		if err == nil {
			pages, err = remote.ExtractPages(ctx, content)
		}
	}
	if err != nil {
		return pipeline.Failed(in.Name, err)
	}
	if len(pages) == 0 {
		return pipeline.Failed(in.Name, fmt.Errorf("no text extracted"))
	}

	base := naming.StripTag(strings.TrimSuffix(in.Name, ".pdf"))
	full := textdoc.Build(textdoc.Meta{
		Name:        base,
		OriginalPDF: in.Name,
		Directory:   projectName(s.cfg.RootDir),
		PublicLink:  fmt.Sprintf("https://storage.cloud.google.com/%s/%s", s.cfg.Bucket, remoteKey(s.cfg.RootDir, in.Name)),
		TotalPages:  len(pages),
	}, pages)

	if err := os.WriteFile(output, []byte(full), 0o644); err != nil {
		return pipeline.Failed(in.Name, err)
	}

	chars := 0
	for _, p := range pages {
		chars += len(p)
	}
	return pipeline.StageResult{
		File:   in.Name,
		Status: pipeline.StatusOK,
		Metadata: map[string]string{
			"pages": fmt.Sprintf("%d", len(pages)),
			"chars": fmt.Sprintf("%d", chars),
		},
	}
}
