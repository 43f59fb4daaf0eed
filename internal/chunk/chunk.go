// Package chunk splits a page-marked document body into page-bounded
// segments for size-limited correction calls, and rejoins the corrected
// segments in order.
package chunk

import (
	"regexp"
	"strings"
)

// MarkerPattern matches the page markers embedded by the extract stage.
// The markers themselves are never renumbered, dropped, or reordered.
var MarkerPattern = regexp.MustCompile(`\[BEGIN PDF Page \d+\]`)

// Count returns the number of page markers in body.
func Count(body string) int {
	return len(MarkerPattern.FindAllStringIndex(body, -1))
}

// Split partitions body into chunks of at most pagesPerChunk pages. When the
// marker count is within the threshold the whole body is returned as a
// single chunk. The first chunk starts at the beginning of body; every later
// chunk starts at its first page marker and ends immediately before the next
// chunk's first marker.
func Split(body string, pagesPerChunk int) []string {
	if pagesPerChunk < 1 {
		pagesPerChunk = 1
	}
	markers := MarkerPattern.FindAllStringIndex(body, -1)
	if len(markers) <= pagesPerChunk {
		return []string{body}
	}

	var chunks []string
	for i := 0; i < len(markers); i += pagesPerChunk {
		start := 0
		if i > 0 {
			start = markers[i][0]
		}
		end := len(body)
		if i+pagesPerChunk < len(markers) {
			end = markers[i+pagesPerChunk][0]
		}
		chunks = append(chunks, strings.TrimSpace(body[start:end]))
	}
	return chunks
}

// Join concatenates corrected chunks in sequence order with exactly one
// blank line between them.
func Join(chunks []string) string {
	trimmed := make([]string, len(chunks))
	for i, c := range chunks {
		trimmed[i] = strings.TrimSpace(c)
	}
	return strings.Join(trimmed, "\n\n")
}
