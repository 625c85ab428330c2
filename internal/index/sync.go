package index

import (
	"fmt"
	"log/slog"
	"path"

	"github.com/starford/kbclaude/internal/checksum"
	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/storage"
)

// SyncStats counts the index mutations made by Sync.
type SyncStats struct {
	Indexed int `json:"indexed"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
}

// Sync walks the knowledge base and brings the index up to date:
//   - new/changed Markdown documents are parsed and upserted
//   - documents removed from disk are deleted from the index
//
// Documents that fail to parse are logged and skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	metas, err := store.List()
	if err != nil {
		return stats, fmt.Errorf("index: sync: %w", err)
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if !indexable(m.Path) {
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Skipped++
			continue
		}
		if err := indexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			stats.Skipped++
			continue
		}
		stats.Indexed++
		logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteDocument(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return stats, nil
}

func indexable(p string) bool {
	return path.Ext(p) == ".md"
}

// indexFile parses data and upserts it into the DB.
func indexFile(db *DB, p string, data []byte) error {
	doc, err := document.Parse(string(data))
	if err != nil {
		return err
	}
	fm := doc.FrontMatter
	row := DocumentRow{
		Path:      p,
		Link:      fm.Link,
		Title:     fm.Title,
		Type:      fm.Type,
		Checksum:  checksum.Sum(data),
		Tags:      fm.Tags,
		UpdatedAt: fm.UpdatedAt,
	}
	return db.UpsertDocument(row, doc.Body, fm.RelationTargets())
}
