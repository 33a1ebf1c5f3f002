package localfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// FileEntry describes one regular file found under a collection root.
type FileEntry struct {
	Path    string // absolute path
	RelPath string // path relative to the root, forward slashes
	Size    int64
	ModTime time.Time
}

// CollectOptions filters which files a Collect walk returns.
type CollectOptions struct {
	// Include keeps only files whose relative path matches at least one
	// pattern. Empty means everything is included.
	Include []string
	// Exclude drops files whose relative path matches any pattern. A pattern
	// ending in "/" excludes a whole directory subtree.
	Exclude []string
	// IncludeHidden includes dotfiles and descends into dot directories.
	IncludeHidden bool
}

// Collect walks root and returns every regular file that passes the filters.
// Patterns use doublestar glob syntax ("**/*.jpg", "cache/").
func Collect(root string, opts CollectOptions) ([]FileEntry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving collection root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("checking collection root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collection root %s is not a directory", absRoot)
	}

	var files []FileEntry
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		name := d.Name()
		if !opts.IncludeHidden && IsHiddenName(name) && path != absRoot {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if isExcluded(rel, opts.Exclude) || !isIncluded(rel, opts.Include) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		files = append(files, FileEntry{
			Path:    path,
			RelPath: rel,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", absRoot, err)
	}
	return files, nil
}

// Paths returns just the absolute paths of the entries, in walk order.
func Paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

// TotalSize sums the sizes of the entries.
func TotalSize(entries []FileEntry) uint64 {
	var total uint64
	for _, e := range entries {
		if e.Size > 0 {
			total += uint64(e.Size)
		}
	}
	return total
}

func isIncluded(rel string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func isExcluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(rel, "/")
			for i := 1; i <= len(parts); i++ {
				if matched, _ := doublestar.Match(dirPattern, strings.Join(parts[:i], "/")); matched {
					return true
				}
			}
			continue
		}
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
