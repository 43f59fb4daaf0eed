package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rmreedy/docpipe/internal/archive"
	"github.com/rmreedy/docpipe/internal/config"
	"github.com/rmreedy/docpipe/internal/naming"
	"github.com/rmreedy/docpipe/internal/pipeline"
)

// firstPageExcerptLimit bounds the text sent to the metadata analyzer.
const firstPageExcerptLimit = 2000

// RenameStage copies collected PDFs into the renamed directory under a
// sortable date-prefixed name. The date comes from the filename when a
// known pattern matches, otherwise from the AI metadata analyzer; documents
// that yield no date keep just the cleaned slug.
type RenameStage struct {
	cfg          *config.Config
	reader       TextReader
	dialAnalyzer func(ctx context.Context) (MetadataAnalyzer, error)
}

func NewRenameStage(cfg *config.Config, reader TextReader, dialAnalyzer func(ctx context.Context) (MetadataAnalyzer, error)) *RenameStage {
	return &RenameStage{cfg: cfg, reader: reader, dialAnalyzer: dialAnalyzer}
}

func (s *RenameStage) Name() string { return "rename" }

func (s *RenameStage) Run(ctx context.Context) (pipeline.Report, error) {
	if err := EnsureLayout(s.cfg.RootDir); err != nil {
		return nil, err
	}

	inputs, err := pipeline.DiscoverInputs(filepath.Join(s.cfg.RootDir, DirOriginal), naming.TagCollected+".pdf")
	if err != nil {
		return nil, err
	}

	targetDir := filepath.Join(s.cfg.RootDir, DirRenamed)
	logCtx := slog.With("stage", s.Name())

	// Dialed on first use so a pipeline run where every name carries a
	// date never touches the model.
	var analyzer MetadataAnalyzer
	defer func() {
		if analyzer != nil {
			_ = analyzer.Close()
		}
	}()

	used := make(map[string]bool)
	var report pipeline.Report
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		base := naming.StripTag(strings.TrimSuffix(in.Name, ".pdf"))

		var newName string
		switch {
		case naming.HasDatePrefix(base):
			newName = naming.CleanBase(base) + naming.TagRenamed + ".pdf"
		default:
			date, ok := naming.DateFromName(base)
			if !ok {
				if analyzer == nil {
					analyzer, err = s.dialAnalyzer(ctx)
					if err != nil {
						return report, fmt.Errorf("metadata analyzer: %w", err)
					}
				}
				date, err = s.lookupDate(ctx, analyzer, in.Path)
				if err != nil {
					logCtx.Warn("Date lookup failed, keeping slug only.", "file", in.Name, "error", err)
					date = ""
				}
			}
			if date != "" {
				newName = date + "_" + naming.CleanBase(base) + naming.TagRenamed + ".pdf"
			} else {
				newName = naming.CleanBase(base) + naming.TagRenamed + ".pdf"
			}
		}

		newName = dedupe(newName, used)
		used[newName] = true
		target := filepath.Join(targetDir, newName)

		if _, err := archive.ArchiveIfExists(target); err != nil {
			report = append(report, pipeline.Failed(in.Name, err))
			continue
		}
		if err := copyFile(in.Path, target); err != nil {
			report = append(report, pipeline.Failed(in.Name, err))
			continue
		}
		logCtx.Info("Renamed.", "file", in.Name, "as", newName)
		report = append(report, pipeline.StageResult{
			File:     in.Name,
			Status:   pipeline.StatusOK,
			Metadata: map[string]string{"renamed": newName},
		})
	}
	return report, nil
}

func (s *RenameStage) lookupDate(ctx context.Context, analyzer MetadataAnalyzer, path string) (string, error) {
	excerpt, err := s.reader.FirstPageExcerpt(path, firstPageExcerptLimit)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(excerpt) == "" {
		return "", fmt.Errorf("first page has no text layer")
	}
	return analyzer.DocumentDate(ctx, excerpt)
}

// dedupe resolves within-run name collisions by linear probing with a
// numeric counter before the stage tag.
func dedupe(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	suffix := naming.TagRenamed + ".pdf"
	base := strings.TrimSuffix(name, suffix)
	for counter := 2; ; counter++ {
		candidate := fmt.Sprintf("%s_%d%s", base, counter, suffix)
		if !used[candidate] {
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}
