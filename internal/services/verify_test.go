package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmreedy/docpipe/internal/pipeline"
	"github.com/rmreedy/docpipe/internal/textdoc"
)

var verifyStamp = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func buildVerifiableArtifact(t *testing.T, root, bucket, base string, pages int) string {
	t.Helper()
	project := filepath.Base(root)
	texts := make([]string, pages)
	for i := range texts {
		texts[i] = strings.Repeat(fmt.Sprintf("page %d text ", i+1), 40)
	}
	return textdoc.Build(textdoc.Meta{
		Name:        base,
		OriginalPDF: base + "_o.pdf",
		Directory:   project,
		PublicLink:  fmt.Sprintf("https://storage.cloud.google.com/%s/docs/%s/%s_o.pdf", bucket, project, base),
		TotalPages:  pages,
	}, texts)
}

func TestVerifyStage_CleanDocumentPasses(t *testing.T) {
	cfg := newTestConfig(t)
	base := "20220131_Order"
	writeFile(t, filepath.Join(cfg.RootDir, DirRenamed, base+"_r.pdf"), strings.Repeat("x", 2000))
	writeFile(t, filepath.Join(cfg.RootDir, DirClean, base+"_o.pdf"), strings.Repeat("x", 500))
	writeFile(t, filepath.Join(cfg.RootDir, DirFormat, base+"_f.txt"),
		buildVerifiableArtifact(t, cfg.RootDir, cfg.Bucket, base, 3))

	stage := NewVerifyStage(cfg, &fakePDFTool{pages: 3})
	stage.now = func() time.Time { return verifyStamp }

	report, err := stage.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusOK, report[0].Status)
	assert.Empty(t, report[0].Err)
	assert.Equal(t, "3", report[0].Metadata["pdf_pages"])
	assert.Equal(t, "3", report[0].Metadata["marked_pages"])
}

func TestVerifyStage_ToleratesSmallPageDrift(t *testing.T) {
	cfg := newTestConfig(t)
	base := "20220131_Order"
	writeFile(t, filepath.Join(cfg.RootDir, DirClean, base+"_o.pdf"), strings.Repeat("x", 500))
	artifact := buildVerifiableArtifact(t, cfg.RootDir, cfg.Bucket, base, 3)
	// Header declares the marker count, so only the PDF drifts.
	writeFile(t, filepath.Join(cfg.RootDir, DirFormat, base+"_f.txt"), artifact)

	stage := NewVerifyStage(cfg, &fakePDFTool{pages: 5})
	stage.now = func() time.Time { return verifyStamp }

	report, err := stage.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusOK, report[0].Status)
}

func TestVerifyStage_FlagsPageCountMismatch(t *testing.T) {
	cfg := newTestConfig(t)
	base := "20220131_Order"
	writeFile(t, filepath.Join(cfg.RootDir, DirClean, base+"_o.pdf"), strings.Repeat("x", 500))
	writeFile(t, filepath.Join(cfg.RootDir, DirFormat, base+"_f.txt"),
		buildVerifiableArtifact(t, cfg.RootDir, cfg.Bucket, base, 3))

	stage := NewVerifyStage(cfg, &fakePDFTool{pages: 10})
	stage.now = func() time.Time { return verifyStamp }

	report, err := stage.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusWarning, report[0].Status)
	assert.Contains(t, report[0].Err, "page count mismatch")
}

func TestVerifyStage_FlagsWrongLink(t *testing.T) {
	cfg := newTestConfig(t)
	base := "20220131_Order"
	writeFile(t, filepath.Join(cfg.RootDir, DirClean, base+"_o.pdf"), strings.Repeat("x", 500))

	artifact := buildVerifiableArtifact(t, cfg.RootDir, "wrong-bucket", base, 3)
	writeFile(t, filepath.Join(cfg.RootDir, DirFormat, base+"_f.txt"), artifact)

	stage := NewVerifyStage(cfg, &fakePDFTool{pages: 3})
	stage.now = func() time.Time { return verifyStamp }

	report, err := stage.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusWarning, report[0].Status)
	assert.Contains(t, report[0].Err, "link mismatch")
}

func TestVerifyStage_MissingPDFIsWarning(t *testing.T) {
	cfg := newTestConfig(t)
	writeFile(t, filepath.Join(cfg.RootDir, DirFormat, "20220131_Order_f.txt"),
		buildVerifiableArtifact(t, cfg.RootDir, cfg.Bucket, "20220131_Order", 3))

	stage := NewVerifyStage(cfg, &fakePDFTool{pages: 3})
	stage.now = func() time.Time { return verifyStamp }

	report, err := stage.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, pipeline.StatusWarning, report[0].Status)
	assert.Contains(t, report[0].Err, "matching PDF not found")
}

func TestVerifyStage_WritesReportAndManifest(t *testing.T) {
	cfg := newTestConfig(t)
	base := "20220131_Order"
	writeFile(t, filepath.Join(cfg.RootDir, DirRenamed, base+"_r.pdf"), strings.Repeat("x", 2000))
	writeFile(t, filepath.Join(cfg.RootDir, DirClean, base+"_o.pdf"), strings.Repeat("x", 500))
	writeFile(t, filepath.Join(cfg.RootDir, DirFormat, base+"_f.txt"),
		buildVerifiableArtifact(t, cfg.RootDir, cfg.Bucket, base, 3))

	stage := NewVerifyStage(cfg, &fakePDFTool{pages: 3})
	stage.now = func() time.Time { return verifyStamp }

	_, err := stage.Run(context.Background())
	require.NoError(t, err)

	reportPath := filepath.Join(cfg.RootDir, "VERIFICATION_REPORT_20250601_123000.txt")
	content, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "DOCUMENT PIPELINE - VERIFICATION REPORT")
	assert.Contains(t, text, "Total Files: 1")
	assert.Contains(t, text, "Verified OK: 1")
	assert.Contains(t, text, base+"_o.pdf")

	f, err := os.Open(filepath.Join(cfg.RootDir, "PDF_MANIFEST_20250601_123000.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"file", "gcs_url", "bytes", "pdf_pages", "marked_pages", "status", "issues", "reduction_pct"}, records[0])
	assert.Equal(t, base+"_o.pdf", records[1][0])
	assert.Equal(t, "500", records[1][2])
	assert.Equal(t, "OK", records[1][5])
	assert.Equal(t, "75.00", records[1][7])
}

func TestVerifyStage_NoArtifactsWritesNothing(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, EnsureLayout(cfg.RootDir))

	stage := NewVerifyStage(cfg, &fakePDFTool{})
	stage.now = func() time.Time { return verifyStamp }

	report, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report)

	entries, err := os.ReadDir(cfg.RootDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "VERIFICATION_REPORT")
	}
}
