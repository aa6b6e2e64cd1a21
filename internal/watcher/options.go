package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
type Options struct {
	// Extensions limits events to files with these extensions (".json").
	// Empty means every file.
	Extensions     []string
	IgnorePatterns []string
	SettleDelay    time.Duration
	IgnoreHidden   bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 100 * time.Millisecond
	}

	// Set default ignore patterns if none specified (nil, not just empty).
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.swp",
			"*~",
		}
		// Editors write hidden scratch files next to the real one.
		o.IgnoreHidden = true
	}

	for i, ext := range o.Extensions {
		o.Extensions[i] = strings.ToLower(ext)
	}
}

// shouldIgnore checks if a path matches ignore patterns.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for _, part := range parts {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}

// wants reports whether a file's extension is watched.
func (o *Options) wants(path string) bool {
	if len(o.Extensions) == 0 {
		return true
	}
	return slices.Contains(o.Extensions, strings.ToLower(filepath.Ext(path)))
}
