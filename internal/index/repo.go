package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultSearchLimit caps search results when Query.Limit is unset.
const DefaultSearchLimit = 20

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string    `json:"path"`
	Link      string    `json:"link"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Link    string `json:"link"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

// Query selects documents containing every term and carrying every tag.
type Query struct {
	Terms []string
	Tags  []string
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultSearchLimit
	}
	return q.Limit
}

// tagClause returns a filter matching documents that carry every tag.
// Tags are stored as a JSON array so each tag is matched with its quotes.
func tagClause(column string, tags []string) (string, []any) {
	var parts []string
	var args []any
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted, _ := json.Marshal(t)
		parts = append(parts, column+" LIKE ?")
		args = append(args, "%"+string(quoted)+"%")
	}
	return strings.Join(parts, " AND "), args
}

// UpsertDocument inserts or replaces a document, its FTS entry and its
// outgoing relations within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, body string, relations []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if d.Tags == nil {
		d.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(d.Tags)

	_, err = tx.Exec(`
		INSERT INTO documents (path, link, title, type, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			link       = excluded.link,
			title      = excluded.title,
			type       = excluded.type,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, d.Link, d.Title, d.Type, d.Checksum, string(tagsJSON), body, d.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	if err := ftsUpsert(tx, d.Path, d.Title, body, d.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM relations WHERE source = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear relations: %w", err)
	}
	if len(relations) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO relations (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare relation insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range relations {
			if _, err := stmt.Exec(d.Path, target); err != nil {
				return fmt.Errorf("index: insert relation: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and outgoing relations.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM relations WHERE source = ?`, path); err != nil {
		return fmt.Errorf("index: delete relations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or "" if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

const documentColumns = `path, link, title, type, checksum, tags, updated_at`

// ListDocuments returns indexed documents ordered by title. An empty
// docType lists every type.
func (db *DB) ListDocuments(docType string) ([]DocumentRow, error) {
	query := `SELECT ` + documentColumns + ` FROM documents`
	var args []any
	if docType != "" {
		query += ` WHERE type = ?`
		args = append(args, docType)
	}
	query += ` ORDER BY lower(title), path`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	return scanDocuments(rows)
}

// Backlinks returns the documents that relate to link.
func (db *DB) Backlinks(link string) ([]DocumentRow, error) {
	rows, err := db.conn.Query(`
		SELECT `+prefixed("d", documentColumns)+`
		FROM relations r
		JOIN documents d ON d.path = r.source
		WHERE r.target = ?
		ORDER BY d.path
	`, link)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	return scanDocuments(rows)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func scanDocuments(rows *sql.Rows) ([]DocumentRow, error) {
	defer rows.Close()
	out := []DocumentRow{}
	for rows.Next() {
		var d DocumentRow
		var tags string
		if err := rows.Scan(&d.Path, &d.Link, &d.Title, &d.Type, &d.Checksum, &tags, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("index: scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
			return nil, fmt.Errorf("index: decode tags for %s: %w", d.Path, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Link, &r.Title, &r.Type, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
