package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/subc0der/resonate/internal/metadata"
)

// walkedFile is one supported audio file found during traversal.
type walkedFile struct {
	path string
	info os.FileInfo
}

// walker traverses library roots depth-first, following directory
// symlinks. A visited set keyed by directory identity breaks symlink
// cycles and keeps overlapping roots from being indexed twice.
type walker struct {
	log     *slog.Logger
	visited map[string]struct{}
}

func newWalker(logger *slog.Logger) *walker {
	return &walker{
		log:     logger,
		visited: make(map[string]struct{}),
	}
}

// walk streams every supported file under root to emit. Unreadable
// entries are logged and skipped; the only returned error is the
// context's, when the scan is cancelled mid-traversal.
func (w *walker) walk(ctx context.Context, root string, emit func(walkedFile)) error {
	info, err := os.Stat(root)
	if err != nil {
		w.log.Warn("library root is not accessible", "path", root, "error", err)
		return nil
	}
	if !info.IsDir() {
		w.log.Warn("library root is not a directory", "path", root)
		return nil
	}

	return w.walkDir(ctx, root, emit)
}

func (w *walker) walkDir(ctx context.Context, dir string, emit func(walkedFile)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if id, err := directoryID(dir); err == nil {
		if _, seen := w.visited[id]; seen {
			w.log.Debug("skipping already-visited directory", "path", dir)
			return nil
		}
		w.visited[id] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.log.Warn("cannot read directory", "path", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)

		// Stat follows symlinks, so linked directories and files are
		// classified by their targets.
		info, statErr := os.Stat(path)
		if statErr != nil {
			w.log.Debug("cannot stat entry", "path", path, "error", statErr)
			continue
		}

		if info.IsDir() {
			if walkErr := w.walkDir(ctx, path, emit); walkErr != nil {
				return walkErr
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}
		if !metadata.IsSupportedExtension(filepath.Ext(name)) {
			continue
		}

		emit(walkedFile{path: path, info: info})
	}

	return nil
}
