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
	"github.com/rmreedy/docpipe/internal/textdoc"
)

// PublishStage uploads each enhanced PDF to the object store and points the
// downstream text artifacts at the fresh public URL. Uploads run one at a
// time; the remote prefix is mirrored against the local directory at the
// end so deleted documents disappear remotely too.
type PublishStage struct {
	cfg       *config.Config
	dialStore func(ctx context.Context) (ObjectStore, error)
}

func NewPublishStage(cfg *config.Config, dialStore func(ctx context.Context) (ObjectStore, error)) *PublishStage {
	return &PublishStage{cfg: cfg, dialStore: dialStore}
}

func (s *PublishStage) Name() string { return "publish" }

func (s *PublishStage) Run(ctx context.Context) (pipeline.Report, error) {
	inputs, err := pipeline.DiscoverInputs(filepath.Join(s.cfg.RootDir, DirClean), naming.TagEnhanced+".pdf")
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	store, err := s.dialStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}
	defer store.Close()

	logCtx := slog.With("stage", s.Name())
	localKeys := make(map[string]bool, len(inputs))

	var report pipeline.Report
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		key := remoteKey(s.cfg.RootDir, in.Name)
		localKeys[key] = true

		// Delete first so stale cached versions never survive an upload.
		if err := store.Delete(ctx, key); err != nil {
			report = append(report, pipeline.Failed(in.Name, err))
			continue
		}
		url, err := store.Upload(ctx, in.Path, key)
		if err != nil {
			report = append(report, pipeline.Failed(in.Name, err))
			continue
		}
		logCtx.Info("Published.", "file", in.Name, "url", url)

		updated := s.rewriteArtifacts(in.Name, url, logCtx)
		status := pipeline.StatusOK
		if updated == 0 {
			status = pipeline.StatusWarning
		}
		report = append(report, pipeline.StageResult{
			File:   in.Name,
			Status: status,
			Metadata: map[string]string{
				"url":               url,
				"artifacts_updated": fmt.Sprintf("%d", updated),
			},
		})
	}

	s.mirror(ctx, store, localKeys, logCtx)
	return report, nil
}

// rewriteArtifacts updates the header link lines of the extracted and
// corrected text artifacts belonging to pdfName.
func (s *PublishStage) rewriteArtifacts(pdfName, url string, logCtx *slog.Logger) int {
	base := naming.StripTag(strings.TrimSuffix(pdfName, ".pdf"))
	artifacts := []string{
		filepath.Join(s.cfg.RootDir, DirConvert, base+naming.TagExtracted+".txt"),
		filepath.Join(s.cfg.RootDir, DirFormat, base+naming.TagCorrected+".txt"),
	}

	updated := 0
	for _, path := range artifacts {
		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logCtx.Warn("Could not read artifact.", "path", path, "error", err)
			}
			continue
		}
		rewritten, ok := textdoc.RewriteLinks(string(content), projectName(s.cfg.RootDir), url)
		if !ok {
			logCtx.Warn("Artifact has no link header lines.", "path", path)
			continue
		}
		if err := os.WriteFile(path, []byte(rewritten), 0o644); err != nil {
			logCtx.Warn("Could not update artifact.", "path", path, "error", err)
			continue
		}
		updated++
	}
	return updated
}

// mirror deletes remote objects under the project prefix that no longer
// have a local counterpart. Best effort: mirror failures are logged, never
// fatal.
func (s *PublishStage) mirror(ctx context.Context, store ObjectStore, localKeys map[string]bool, logCtx *slog.Logger) {
	prefix := fmt.Sprintf("docs/%s/", projectName(s.cfg.RootDir))
	keys, err := store.List(ctx, prefix)
	if err != nil {
		logCtx.Warn("Mirror listing failed.", "error", err)
		return
	}
	for _, key := range keys {
		if localKeys[key] {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			logCtx.Warn("Mirror delete failed.", "key", key, "error", err)
			continue
		}
		logCtx.Info("Mirror removed stale object.", "key", key)
	}
}
