package manifest

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/kbclaude/internal/storage"
)

// Report lists the paths classified by a sync, in scan order.
// Deleted paths are sorted.
type Report struct {
	Added     []string  `json:"added"`
	Updated   []string  `json:"updated"`
	Deleted   []string  `json:"deleted"`
	Timestamp time.Time `json:"timestamp"`
}

// Unchanged reports whether the sync found no differences.
func (r *Report) Unchanged() bool {
	return len(r.Added) == 0 && len(r.Updated) == 0 && len(r.Deleted) == 0
}

// Synchronize scans the entry files, classifies them against the stored
// manifest and persists the new snapshot. Nothing is written if the scan fails.
func Synchronize(fs storage.Provider, store *Store, now time.Time, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m, err := store.Load(now)
	if err != nil {
		return nil, err
	}
	files, err := fs.List()
	if err != nil {
		return nil, fmt.Errorf("manifest: sync: %w", err)
	}

	report := &Report{
		Added:   []string{},
		Updated: []string{},
		Deleted: []string{},
	}
	current := make(map[string]Entry, len(files))
	for _, f := range files {
		if f.Path == store.Path() {
			continue
		}
		current[f.Path] = Entry{Hash: f.Checksum, LastModified: stamp(f.ModTime)}

		prev, ok := m.Files[f.Path]
		switch {
		case !ok:
			report.Added = append(report.Added, f.Path)
			logger.Debug("file added", slog.String("path", f.Path))
		case prev.Hash != f.Checksum:
			report.Updated = append(report.Updated, f.Path)
			logger.Debug("file updated", slog.String("path", f.Path))
		}
	}
	for path := range m.Files {
		if _, ok := current[path]; !ok {
			report.Deleted = append(report.Deleted, path)
			logger.Debug("file deleted", slog.String("path", path))
		}
	}
	sort.Strings(report.Deleted)

	m.Version = Version
	m.Files = current
	m.Timestamp = stamp(now)
	if err := store.Save(m); err != nil {
		return nil, err
	}
	report.Timestamp = m.Timestamp

	logger.Info("manifest synchronized",
		slog.Int("added", len(report.Added)),
		slog.Int("updated", len(report.Updated)),
		slog.Int("deleted", len(report.Deleted)),
	)
	return report, nil
}
