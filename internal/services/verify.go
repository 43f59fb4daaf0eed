package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rmreedy/docpipe/internal/chunk"
	"github.com/rmreedy/docpipe/internal/config"
	"github.com/rmreedy/docpipe/internal/naming"
	"github.com/rmreedy/docpipe/internal/pipeline"
	"github.com/rmreedy/docpipe/internal/textdoc"
)

const (
	pageCountTolerance = 2
	minArtifactChars   = 1000
)

// VerifyStage cross-checks every corrected artifact against its PDF and
// the expected header fields, then writes a verification report and a CSV
// manifest. Strictly read-only on the artifacts themselves.
type VerifyStage struct {
	cfg  *config.Config
	tool PDFTool
	now  func() time.Time
}

func NewVerifyStage(cfg *config.Config, tool PDFTool) *VerifyStage {
	return &VerifyStage{cfg: cfg, tool: tool, now: time.Now}
}

func (s *VerifyStage) Name() string { return "verify" }

type manifestRow struct {
	pdfName      string
	url          string
	bytes        int64
	pdfPages     int
	markedPages  int
	status       pipeline.Status
	issues       []string
	reductionPct string
}

func (s *VerifyStage) Run(ctx context.Context) (pipeline.Report, error) {
	inputs, err := pipeline.DiscoverInputs(filepath.Join(s.cfg.RootDir, DirFormat), naming.TagCorrected+".txt")
	if err != nil {
		return nil, err
	}

	var report pipeline.Report
	var rows []manifestRow
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, row := s.verifyOne(in)
		report = append(report, res)
		if row != nil {
			rows = append(rows, *row)
		}
	}

	if len(report) > 0 {
		if err := s.writeReport(report, rows); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *VerifyStage) verifyOne(in pipeline.Input) (pipeline.StageResult, *manifestRow) {
	base := naming.StripTag(strings.TrimSuffix(in.Name, ".txt"))
	pdfPath := filepath.Join(s.cfg.RootDir, DirClean, base+naming.TagEnhanced+".pdf")

	pdfInfo, err := os.Stat(pdfPath)
	if err != nil {
		return pipeline.StageResult{
			File:   in.Name,
			Status: pipeline.StatusWarning,
			Err:    "matching PDF not found in " + DirClean,
		}, nil
	}

	content, err := os.ReadFile(in.Path)
	if err != nil {
		return pipeline.Failed(in.Name, err), nil
	}
	text := string(content)

	var issues []string

	// Header fields.
	wantDir := projectName(s.cfg.RootDir)
	if dir, ok := textdoc.HeaderField(text, textdoc.FieldDirectory); !ok {
		issues = append(issues, "missing "+textdoc.FieldDirectory+" header")
	} else if dir != wantDir {
		issues = append(issues, fmt.Sprintf("%s mismatch: expected %q, found %q", textdoc.FieldDirectory, wantDir, dir))
	}

	expectedURL := fmt.Sprintf("https://storage.cloud.google.com/%s/%s", s.cfg.Bucket, remoteKey(s.cfg.RootDir, filepath.Base(pdfPath)))
	url, ok := textdoc.HeaderField(text, textdoc.FieldLink)
	switch {
	case !ok:
		issues = append(issues, "missing "+textdoc.FieldLink+" header")
	case !strings.HasPrefix(url, "https://storage.cloud.google.com/"):
		issues = append(issues, "link not in public format: "+url)
	case url != expectedURL:
		issues = append(issues, fmt.Sprintf("link mismatch: header has %q, expected %q", url, expectedURL))
	}

	// Page markers against the PDF.
	markedPages := chunk.Count(text)
	pdfPages, err := s.tool.PageCount(pdfPath)
	if err != nil {
		return pipeline.Failed(in.Name, err), nil
	}
	if !strings.Contains(text, textdoc.FirstPageMarker) {
		issues = append(issues, "missing "+textdoc.FirstPageMarker+" marker")
	}
	if markedPages == 0 {
		issues = append(issues, "no page markers found")
	} else if diff := markedPages - pdfPages; diff > pageCountTolerance || diff < -pageCountTolerance {
		issues = append(issues, fmt.Sprintf("page count mismatch: PDF has %d, markers found %d", pdfPages, markedPages))
	}
	if declared, ok := textdoc.HeaderField(text, textdoc.FieldPages); ok {
		if n, err := strconv.Atoi(declared); err == nil && n != markedPages {
			issues = append(issues, fmt.Sprintf("%s declares %d, markers found %d", textdoc.FieldPages, n, markedPages))
		}
	}

	if len(text) < minArtifactChars {
		issues = append(issues, "text length unusually short")
	}

	// Size reduction against the pre-enhancement PDF.
	reduction := ""
	if orig, err := os.Stat(filepath.Join(s.cfg.RootDir, DirRenamed, base+naming.TagRenamed+".pdf")); err == nil && orig.Size() > 0 {
		pct := float64(orig.Size()-pdfInfo.Size()) / float64(orig.Size()) * 100
		reduction = fmt.Sprintf("%.2f", pct)
	}

	status := pipeline.StatusOK
	if len(issues) > 0 {
		status = pipeline.StatusWarning
	}
	res := pipeline.StageResult{
		File:   in.Name,
		Status: status,
		Err:    strings.Join(issues, "; "),
		Metadata: map[string]string{
			"pdf_pages":    fmt.Sprintf("%d", pdfPages),
			"marked_pages": fmt.Sprintf("%d", markedPages),
			"chars":        fmt.Sprintf("%d", len(text)),
		},
	}
	row := &manifestRow{
		pdfName:      filepath.Base(pdfPath),
		url:          expectedURL,
		bytes:        pdfInfo.Size(),
		pdfPages:     pdfPages,
		markedPages:  markedPages,
		status:       status,
		issues:       issues,
		reductionPct: reduction,
	}
	return res, row
}

func (s *VerifyStage) writeReport(report pipeline.Report, rows []manifestRow) error {
	stamp := s.now().Format("20060102_150405")

	var b strings.Builder
	line := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)
	fmt.Fprintf(&b, "%s\nDOCUMENT PIPELINE - VERIFICATION REPORT\nGenerated: %s\n%s\n\n",
		line, s.now().Format("2006-01-02 15:04:05"), line)

	fmt.Fprintf(&b, "SUMMARY\n%s\n", thin)
	fmt.Fprintf(&b, "Total Files: %d\n", len(report))
	fmt.Fprintf(&b, "Verified OK: %d\n", report.Count(pipeline.StatusOK))
	fmt.Fprintf(&b, "Warnings: %d\n", report.Count(pipeline.StatusWarning))
	fmt.Fprintf(&b, "Failed: %d\n\n", report.Count(pipeline.StatusFailed))

	fmt.Fprintf(&b, "PDF MANIFEST\n%s\n", thin)
	fmt.Fprintf(&b, "File, Size (MB), Pages, Status, Reduction (%%), URL\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s, %.3f, %d, %s, %s, %s\n",
			row.pdfName, float64(row.bytes)/float64(config.MiB), row.pdfPages, row.status, row.reductionPct, row.url)
	}

	fmt.Fprintf(&b, "\nDETAILED RESULTS\n%s\n", thin)
	for _, res := range report.Sorted() {
		fmt.Fprintf(&b, "\nFile: %s\nStatus: %s\n", res.File, res.Status)
		if res.Metadata != nil {
			fmt.Fprintf(&b, "PDF Pages: %s\nMarked Pages: %s\nCharacters: %s\n",
				res.Metadata["pdf_pages"], res.Metadata["marked_pages"], res.Metadata["chars"])
		}
		if res.Err != "" {
			fmt.Fprintf(&b, "Issues: %s\n", res.Err)
		}
	}

	reportPath := filepath.Join(s.cfg.RootDir, fmt.Sprintf("VERIFICATION_REPORT_%s.txt", stamp))
	if err := os.WriteFile(reportPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	manifestPath := filepath.Join(s.cfg.RootDir, fmt.Sprintf("PDF_MANIFEST_%s.csv", stamp))
	f, err := os.Create(manifestPath)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "gcs_url", "bytes", "pdf_pages", "marked_pages", "status", "issues", "reduction_pct"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.pdfName,
			row.url,
			strconv.FormatInt(row.bytes, 10),
			strconv.Itoa(row.pdfPages),
			strconv.Itoa(row.markedPages),
			string(row.status),
			strings.Join(row.issues, "; "),
			row.reductionPct,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
