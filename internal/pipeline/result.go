// Package pipeline implements the stage execution core: bounded worker
// pools, input discovery, stage orchestration with gated confirmation, and
// the per-file result records every stage aggregates.
package pipeline

import (
	"sort"
	"unicode/utf8"
)

// Status is the terminal outcome of processing a single file in a stage.
type Status string

const (
	StatusOK      Status = "OK"
	StatusPartial Status = "PARTIAL"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
	StatusWarning Status = "WARNING"
)

// StageResult records one file's outcome. Produced exactly once per input
// per stage run and never mutated afterwards.
type StageResult struct {
	File     string
	Status   Status
	Err      string
	Metadata map[string]string
}

// Failed builds a FAILED result from an error.
func Failed(file string, err error) StageResult {
	msg := ""
	if err != nil {
		msg = Truncate(err.Error(), 300)
	}
	return StageResult{File: file, Status: StatusFailed, Err: msg}
}

// Truncate shortens s to at most n bytes without splitting a rune,
// appending an ellipsis when anything was dropped.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// Report is the ordered collection of a stage's results.
type Report []StageResult

// Count returns how many results carry the given status.
func (r Report) Count(status Status) int {
	n := 0
	for _, res := range r {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Sorted returns a copy ordered by file name for deterministic output.
// Result aggregation itself is completion-ordered.
func (r Report) Sorted() Report {
	out := make(Report, len(r))
	copy(out, r)
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}
