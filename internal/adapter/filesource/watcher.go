// Package filesource ingests return events from CSV files dropped into a
// watched directory. Warehouse export jobs write a file per batch; the
// watcher feeds every row through the decision pipeline.
package filesource

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/backline-io/backline/internal/domain/event"
)

// ProcessFunc handles one parsed return event.
type ProcessFunc func(ctx context.Context, ev *event.ReturnEvent) error

// Watcher watches a directory for new return CSV drops.
type Watcher struct {
	dir     string
	process ProcessFunc
	logger  *slog.Logger
}

// NewWatcher creates a Watcher for the given directory.
func NewWatcher(dir string, process ProcessFunc, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, process: process, logger: logger}
}

// Run processes files already present, then watches for new ones.
// Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	// Files that arrived while we were down.
	if err := w.scanExisting(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isBatchFile(ev.Name) {
				continue
			}
			w.processFile(ctx, ev.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "dir", w.dir, "error", err)
		}
	}
}

// scanExisting processes batch files already present in the directory.
func (w *Watcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if isBatchFile(path) {
			w.processFile(ctx, path)
		}
	}
	return nil
}

// processFile parses a batch file and feeds every row through the
// pipeline. The file is renamed .done afterwards so restarts never
// double-process a batch.
func (w *Watcher) processFile(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		w.logger.Error("open batch file", "path", path, "error", err)
		return
	}

	events, parseErrs := ParseReturns(f)
	_ = f.Close()
	for _, perr := range parseErrs {
		w.logger.Warn("skipped malformed row", "path", path, "error", perr)
	}

	var processed int
	for i := range events {
		if err := w.process(ctx, &events[i]); err != nil {
			w.logger.Error("process return from batch",
				"path", path, "product_id", events[i].ProductID, "error", err)
			continue
		}
		processed++
	}

	if err := os.Rename(path, path+".done"); err != nil {
		w.logger.Error("mark batch done", "path", path, "error", err)
		return
	}
	w.logger.Info("batch processed", "path", path, "rows", processed, "skipped", len(parseErrs))
}

// isBatchFile reports whether the file is a return CSV drop
// (not a partial write or an already processed batch).
func isBatchFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".csv") && !strings.HasSuffix(name, ".tmp")
}
