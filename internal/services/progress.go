package services

import (
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/rmreedy/docpipe/internal/pipeline"
)

// stageBar returns a per-result completion hook rendering a progress bar
// for a stage batch. Returns nil for empty batches.
func stageBar(name string, total int) func(pipeline.StageResult) {
	if total == 0 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return func(pipeline.StageResult) {
		_ = bar.Add(1)
	}
}
