package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Input is a discovered candidate file for a stage.
type Input struct {
	Path string
	Name string
	Size int64
}

// DiscoverInputs lists the files in dir whose names end with suffix,
// ordered by ascending size so small files surface progress early.
// Subdirectories are never descended into, and anything under a name
// starting with an underscore is archive/internal, not live input.
func DiscoverInputs(dir, suffix string) ([]Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var inputs []Input
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		inputs = append(inputs, Input{
			Path: filepath.Join(dir, name),
			Name: name,
			Size: info.Size(),
		})
	}

	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].Size != inputs[j].Size {
			return inputs[i].Size < inputs[j].Size
		}
		return inputs[i].Name < inputs[j].Name
	})
	return inputs, nil
}
