package search

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/moshix/searchserver/config"
)

// FileWalker lists the regular files under a root in lexical order.
type FileWalker struct {
	skipDirs []string
}

// NewFileWalker creates a walker that prunes the named directories.
func NewFileWalker(skipDirs []string) *FileWalker {
	return &FileWalker{skipDirs: skipDirs}
}

// Walk calls fn for every regular file under root with its path and its
// slash-separated path relative to root. Unreadable entries are
// skipped; a missing root, a cancelled ctx or an error from fn stop the walk.
func (fw *FileWalker) Walk(ctx context.Context, root string, fn func(path, rel string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("walk %s: %w", root, err)
			}
			return nil // Skip files we can't access
		}

		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		if d.IsDir() {
			if path != root && config.ShouldSkipDirectory(d.Name(), fw.skipDirs) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			rel = path
		}
		return fn(path, filepath.ToSlash(rel))
	})
}

// CountFiles counts the regular files Walk would visit.
func (fw *FileWalker) CountFiles(ctx context.Context, root string) (int, error) {
	var n int
	err := fw.Walk(ctx, root, func(string, string) error {
		n++
		return nil
	})
	return n, err
}
