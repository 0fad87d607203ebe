package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/subc0der/resonate/internal/library"
	"github.com/subc0der/resonate/internal/metadata"
	"github.com/subc0der/resonate/internal/scanner"
)

const defaultSettle = 2 * time.Second

// Options tunes a watcher.
type Options struct {
	// Settle is how long a change burst must stay quiet before a quick
	// scan fires. Zero selects the default.
	Settle time.Duration
	// Interval schedules unconditional quick scans as a safety net for
	// events the platform watcher missed. Zero disables them.
	Interval time.Duration
}

// Watcher mirrors the enabled library roots into an fsnotify watch set
// and coalesces change bursts into quick scans.
type Watcher struct {
	roots    *library.RootRepository
	scans    *scanner.Service
	log      *slog.Logger
	settle   time.Duration
	interval time.Duration
}

func New(roots *library.RootRepository, scans *scanner.Service, logger *slog.Logger, opts Options) *Watcher {
	settle := opts.Settle
	if settle <= 0 {
		settle = defaultSettle
	}

	return &Watcher{
		roots:    roots,
		scans:    scans,
		log:      logger,
		settle:   settle,
		interval: opts.Interval,
	}
}

// Run watches until ctx is cancelled. Directories created while
// watching join the watch set as their create events arrive, so files
// landing in brand-new album folders are still observed.
func (w *Watcher) Run(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	defer notifier.Close()

	roots, err := w.roots.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list enabled roots: %w", err)
	}
	if len(roots) == 0 {
		return errors.New("no enabled library roots to watch")
	}

	watched := 0
	for _, root := range roots {
		watched += w.watchTree(notifier, root.Path)
	}
	w.log.Info("watching library roots", "roots", len(roots), "directories", watched)

	trigger := debounce.New(w.settle)

	var periodic <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		periodic = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			w.handleEvent(notifier, event, trigger)
		case <-periodic:
			w.triggerQuickScan()
		case watchErr, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("filesystem watcher error", "error", watchErr)
		}
	}
}

// watchTree registers dir and every non-hidden directory below it.
func (w *Watcher) watchTree(notifier *fsnotify.Watcher, dir string) int {
	count := 0
	walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("cannot inspect path for watching", "path", path, "error", err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(entry.Name(), ".") {
			return fs.SkipDir
		}

		if addErr := notifier.Add(path); addErr != nil {
			w.log.Warn("cannot watch directory", "path", path, "error", addErr)
			return nil
		}
		count++

		return nil
	})
	if walkErr != nil {
		w.log.Warn("watch registration incomplete", "root", dir, "error", walkErr)
	}

	return count
}

func (w *Watcher) handleEvent(notifier *fsnotify.Watcher, event fsnotify.Event, trigger func(func())) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			added := w.watchTree(notifier, event.Name)
			w.log.Debug("watching new directory", "path", event.Name, "directories", added)
			trigger(w.triggerQuickScan)
			return
		}
	}

	if !shouldTrigger(event) {
		return
	}

	w.log.Debug("library change observed", "path", event.Name, "op", event.Op.String())
	trigger(w.triggerQuickScan)
}

// shouldTrigger reports whether an event can affect indexed tracks.
// Removed or renamed entries cannot be stat-ed anymore; a bare name may
// be a directory that took tracks with it, so those always count.
func shouldTrigger(event fsnotify.Event) bool {
	if metadata.IsSupportedExtension(filepath.Ext(event.Name)) {
		return true
	}

	return event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) triggerQuickScan() {
	scanID, err := w.scans.StartQuickScan()
	if err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			w.log.Debug("library changed while a scan is running")
			return
		}
		w.log.Error("start quick scan", "error", err)
		return
	}

	w.log.Info("quick scan triggered by filesystem change", "scan_id", scanID)
}
