// Package services implements the seven pipeline stages. Each stage
// consumes the previous stage's directory and produces its own; the
// filesystem layout is the only shared state between stages.
package services

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rmreedy/docpipe/internal/archive"
)

// Stage directories under the project root.
const (
	DirOriginal = "01_doc-original"
	DirRenamed  = "02_doc-renamed"
	DirClean    = "03_doc-clean"
	DirConvert  = "04_doc-convert"
	DirFormat   = "05_doc-format"
	DirLogs     = "y_logs"
)

var stageDirs = []string{DirOriginal, DirRenamed, DirClean, DirConvert, DirFormat}

// EnsureLayout creates the stage directories and their archive
// subdirectories under root.
func EnsureLayout(root string) error {
	for _, dir := range stageDirs {
		if err := os.MkdirAll(filepath.Join(root, dir, archive.OldDir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, DirLogs), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", DirLogs, err)
	}
	return nil
}

// projectName is the GCS path segment for this project's documents.
func projectName(root string) string {
	return filepath.Base(filepath.Clean(root))
}

// remoteKey builds the object key for a published PDF.
func remoteKey(root, fileName string) string {
	return fmt.Sprintf("docs/%s/%s", projectName(root), fileName)
}
