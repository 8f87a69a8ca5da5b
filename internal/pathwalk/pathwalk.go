// Package pathwalk enumerates regular files for the watch backends and
// canonicalizes directory paths.
package pathwalk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
)

// FileInfo describes one regular file discovered during a scan.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the regular files under root. With recursive set it covers
// the whole subtree, otherwise only direct children. Entries that vanish
// or error mid-scan are skipped; List fails only when root itself cannot
// be read.
func List(root string, recursive bool) ([]FileInfo, error) {
	root = filepath.Clean(root)

	if !recursive {
		return listShallow(root)
	}

	conf := &fastwalk.Config{
		Follow: false, // don't follow symlinks
	}

	// fastwalk invokes the callback from multiple goroutines.
	var mu sync.Mutex
	var files []FileInfo

	err := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip entries with errors
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // vanished between readdir and stat
		}
		mu.Lock()
		files = append(files, FileInfo{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, nil
}

// listShallow enumerates the direct children of root.
func listShallow(root string) ([]FileInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(root, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// CanonicalDir resolves path to its absolute form with a trailing
// separator, the directory-path convention used across the event model.
func CanonicalDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)
	if !strings.HasSuffix(abs, string(filepath.Separator)) {
		abs += string(filepath.Separator)
	}
	return abs, nil
}
