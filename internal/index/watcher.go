package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/kbclaude/internal/models"
	"github.com/starford/kbclaude/internal/storage"
)

// DefaultDebounce is the quiet period used when WatchOptions.Debounce is unset.
const DefaultDebounce = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce is the quiet period after the last change before OnSettle runs.
	Debounce time.Duration
	// OnEvent is called after each index mutation.
	OnEvent EventCallback
	// OnSettle is called once changes stop arriving for Debounce.
	OnSettle func()
}

// Watch starts an fsnotify watcher on the knowledge base root and processes
// change events until ctx is cancelled. db may be nil, in which case only
// OnSettle is driven.
//
// Only entry files under the known type directories are considered. New
// directories created at runtime are added to the watch list. Every burst of
// changes ends with a reconciliation pass and a call to OnSettle.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, opts WatchOptions) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	emit := func(kind, rel string) {
		if opts.OnEvent != nil {
			opts.OnEvent(kind, rel)
		}
	}

	logger.Info("watcher: started", slog.String("root", root))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(debounce)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			if db != nil {
				reconcile(db, store, logger, emit)
			}
			if opts.OnSettle != nil {
				opts.OnSettle()
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if !inTypeDir(rel + "/") {
						continue
					}
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					scheduleSettle()
					continue
				}
			}

			if !isEntry(rel) {
				continue
			}
			scheduleSettle()
			if db == nil || !indexable(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if idxErr := indexFile(db, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				emit(kind, rel)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path only; the new path arrives as
				// a Create and stragglers are caught by reconcile.
				if delErr := db.DeleteDocument(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				emit("deleted", rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a file on disk and indexes files
// whose checksum differs from the index.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, emit EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		if indexable(m.Path) {
			disk[m.Path] = m.Checksum
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if delErr := db.DeleteDocument(p); delErr == nil {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			emit("deleted", p)
		}
	}

	for p, cs := range disk {
		prev, known := checksums[p]
		if prev == cs {
			continue
		}
		data, readErr := store.Read(p)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(db, p, data); idxErr == nil {
			kind := "updated"
			if !known {
				kind = "created"
			}
			logger.Debug("reconcile: indexed", slog.String("path", p))
			emit(kind, p)
		}
	}
}

// inTypeDir reports whether a slash path lies under a known type directory.
func inTypeDir(rel string) bool {
	top, _, ok := strings.Cut(rel, "/")
	return ok && models.IsKnown(top)
}

func isEntry(rel string) bool {
	ext := path.Ext(rel)
	return inTypeDir(rel) && (ext == ".md" || ext == ".json")
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
