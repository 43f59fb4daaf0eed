package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmreedy/docpipe/internal/pipeline"
	"github.com/rmreedy/docpipe/internal/textdoc"
)

// TestPipeline_FullRun pushes a single document through every stage in
// order with fake collaborators and checks the artifacts each stage leaves
// behind.
func TestPipeline_FullRun(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()
	project := filepath.Base(cfg.RootDir)

	writeFile(t, filepath.Join(cfg.RootDir, "Hearing 2.5.24.pdf"), strings.Repeat("p", 600))

	pageTexts := []string{
		strings.Repeat("THE COURT: We are on the record. ", 20),
		strings.Repeat("MR. SMITH: Objection, your honor. ", 20),
		strings.Repeat("THE COURT: Sustained. ", 20),
	}
	tool := &fakePDFTool{pages: 3, firstPage: "February 5, 2024 hearing"}
	store := newFakeStore(cfg.Bucket)
	corrector := &identityCorrector{}

	stages := []pipeline.Stage{
		NewCollectStage(cfg),
		NewRenameStage(cfg, tool, neverDial),
		NewEnhanceStage(cfg, tool, &fakeOCR{}),
		NewExtractStage(cfg, tool, func(ctx context.Context) (PageReader, error) {
			return &fakePageReader{pages: pageTexts}, nil
		}),
		NewCorrectStage(cfg, func(ctx context.Context) (Corrector, error) {
			return corrector, nil
		}),
		NewPublishStage(cfg, func(ctx context.Context) (ObjectStore, error) {
			return store, nil
		}),
	}
	for _, stage := range stages {
		report, err := stage.Run(ctx)
		require.NoError(t, err, "stage %s", stage.Name())
		require.Len(t, report, 1, "stage %s", stage.Name())
		require.NotEqual(t, pipeline.StatusFailed, report[0].Status, "stage %s: %s", stage.Name(), report[0].Err)
	}

	verify := NewVerifyStage(cfg, tool)
	report, err := verify.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusOK, report[0].Status, "issues: %s", report[0].Err)

	// Every stage directory holds exactly its artifact.
	assert.FileExists(t, filepath.Join(cfg.RootDir, DirOriginal, "Hearing 2.5.24_d.pdf"))
	assert.FileExists(t, filepath.Join(cfg.RootDir, DirRenamed, "20240205_Hearing_r.pdf"))
	assert.FileExists(t, filepath.Join(cfg.RootDir, DirClean, "20240205_Hearing_o.pdf"))
	assert.FileExists(t, filepath.Join(cfg.RootDir, DirConvert, "20240205_Hearing_c.txt"))

	final, err := os.ReadFile(filepath.Join(cfg.RootDir, DirFormat, "20240205_Hearing_f.txt"))
	require.NoError(t, err)
	text := string(final)

	assert.Contains(t, text, textdoc.FirstPageMarker)
	assert.Contains(t, text, "[BEGIN PDF Page 3]")

	wantURL := fmt.Sprintf("https://storage.cloud.google.com/%s/docs/%s/20240205_Hearing_o.pdf", cfg.Bucket, project)
	link, ok := textdoc.HeaderField(text, textdoc.FieldLink)
	require.True(t, ok)
	assert.Equal(t, wantURL, link)

	key := fmt.Sprintf("docs/%s/20240205_Hearing_o.pdf", project)
	assert.Contains(t, store.objects, key)
}

// TestPipeline_RerunSkipsFinishedWork re-runs the idempotent stages and
// checks nothing is reprocessed or overwritten.
func TestPipeline_RerunSkipsFinishedWork(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.RootDir, "Hearing 2.5.24.pdf"), "pdf")

	tool := &fakePDFTool{pages: 1}
	_, err := NewCollectStage(cfg).Run(ctx)
	require.NoError(t, err)
	_, err = NewRenameStage(cfg, tool, neverDial).Run(ctx)
	require.NoError(t, err)
	_, err = NewEnhanceStage(cfg, tool, &fakeOCR{}).Run(ctx)
	require.NoError(t, err)

	ocr := &fakeOCR{}
	report, err := NewEnhanceStage(cfg, tool, ocr).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusSkipped, report[0].Status)
	assert.Empty(t, ocr.recognizeLog)

	// Rename archives and rewrites rather than skipping.
	report, err = NewRenameStage(cfg, tool, neverDial).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusOK, report[0].Status)
	archived, err := os.ReadDir(filepath.Join(cfg.RootDir, DirRenamed, "_old"))
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}
