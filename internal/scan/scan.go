// Package scan collects component descriptors from a folder. Parsing React
// source is the job of the external AST/Storybook parsers; they leave their
// output next to the components as *.component.json (and *.stories.json)
// files, and this package walks a folder to gather that stream for indexing.
package scan

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/uiscout/uiscout/internal/index"
)

// Options control which descriptor files a scan picks up.
type Options struct {
	IncludeStorybooks bool
	IncludeTests      bool
	Recursive         bool
}

const (
	componentPattern = "*.component.json"
	storybookPattern = "*.stories.json"
)

// Collect walks folderPath and decodes every matching descriptor file.
// Per-file failures are collected, not fatal; only an unusable folder is an
// error. A descriptor file may hold a single descriptor or an array.
func Collect(folderPath string, opts Options) ([]index.Descriptor, []string, error) {
	info, err := os.Stat(folderPath)
	if err != nil {
		return nil, nil, fmt.Errorf("folder not found: %s", folderPath)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("path is not a directory: %s", folderPath)
	}

	patterns := []string{pattern(componentPattern, opts.Recursive)}
	if opts.IncludeStorybooks {
		patterns = append(patterns, pattern(storybookPattern, opts.Recursive))
	}

	fsys := os.DirFS(folderPath)
	var descriptors []index.Descriptor
	var errs []string

	for _, pat := range patterns {
		err := doublestar.GlobWalk(fsys, pat, func(path string, d fs.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			if !opts.IncludeTests && isTestPath(path) {
				return nil
			}

			ds, err := readDescriptorFile(fsys, path)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", path, err))
				return nil
			}
			descriptors = append(descriptors, ds...)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("walking %s: %w", folderPath, err)
		}
	}

	return descriptors, errs, nil
}

func pattern(name string, recursive bool) string {
	if recursive {
		return "**/" + name
	}
	return name
}

// isTestPath filters out test fixtures the parsers may have emitted.
func isTestPath(path string) bool {
	return strings.Contains(path, "__tests__/") ||
		strings.Contains(path, ".test.") ||
		strings.Contains(path, ".spec.")
}

func readDescriptorFile(fsys fs.FS, path string) ([]index.Descriptor, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var many []index.Descriptor
		if err := json.Unmarshal(data, &many); err != nil {
			return nil, fmt.Errorf("parsing descriptor array: %w", err)
		}
		return many, nil
	}

	var one index.Descriptor
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	return []index.Descriptor{one}, nil
}
