//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO documents_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
}

// matchExpr quotes every term so user input is never parsed as FTS syntax.
func matchExpr(terms []string) string {
	var parts []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		parts = append(parts, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " ")
}

// Search performs an FTS5 full-text search and returns hits with snippets.
func (db *DB) Search(q Query) ([]SearchResult, error) {
	match := matchExpr(q.Terms)
	tagWhere, tagArgs := tagClause("d.tags", q.Tags)

	var (
		query string
		args  []any
	)
	if match == "" {
		query = `SELECT d.path, d.link, d.title, d.type, substr(d.body, 1, 200) FROM documents d`
		if tagWhere != "" {
			query += ` WHERE ` + tagWhere
		}
		query += ` ORDER BY lower(d.title), d.path LIMIT ?`
		args = append(tagArgs, q.limit())
	} else {
		query = `
			SELECT d.path, d.link, d.title, d.type,
			       snippet(documents_fts, 2, '<b>', '</b>', '...', 64)
			FROM documents_fts
			JOIN documents d ON d.path = documents_fts.path
			WHERE documents_fts MATCH ?`
		args = append(args, match)
		if tagWhere != "" {
			query += ` AND ` + tagWhere
			args = append(args, tagArgs...)
		}
		query += ` ORDER BY rank LIMIT ?`
		args = append(args, q.limit())
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
