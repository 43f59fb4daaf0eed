// Package archive moves soon-to-be-overwritten stage outputs into a
// timestamped _old/ subdirectory instead of deleting them.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// OldDir is the per-stage archive subdirectory name. Directories starting
// with an underscore are never treated as live pipeline input.
const OldDir = "_old"

const timestampLayout = "20060102_150405"

// counter breaks filename collisions when two archives of the same stem
// land within the same second.
var counter atomic.Int64

// now is swapped out in tests.
var now = time.Now

// ArchiveIfExists moves path into its directory's _old/ subdirectory with a
// second-resolution timestamp appended to the stem. Returns the archived
// path, or "" when path does not exist. Data is never deleted.
func ArchiveIfExists(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	oldDir := filepath.Join(filepath.Dir(path), OldDir)
	if err := os.MkdirAll(oldDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir %s: %w", oldDir, err)
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	stamp := now().Format(timestampLayout)

	dest := filepath.Join(oldDir, fmt.Sprintf("%s_%s%s", stem, stamp, ext))
	for {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		n := counter.Add(1)
		dest = filepath.Join(oldDir, fmt.Sprintf("%s_%s_%d%s", stem, stamp, n, ext))
	}

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return dest, nil
}
