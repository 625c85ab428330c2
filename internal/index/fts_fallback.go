//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the documents table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search; every term must appear in the title,
// body or tags.
func (db *DB) Search(q Query) ([]SearchResult, error) {
	var where []string
	var args []any
	for _, term := range q.Terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		like := "%" + term + "%"
		where = append(where, "(title LIKE ? OR body LIKE ? OR tags LIKE ?)")
		args = append(args, like, like, like)
	}
	if clause, tagArgs := tagClause("tags", q.Tags); clause != "" {
		where = append(where, clause)
		args = append(args, tagArgs...)
	}

	query := `SELECT path, link, title, type, substr(body, 1, 200) FROM documents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY lower(title), path LIMIT ?`
	args = append(args, q.limit())

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
