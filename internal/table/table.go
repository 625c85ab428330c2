// Package table renders a Markdown overview of the knowledge base documents.
package table

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/storage"
)

const (
	header    = "| Title | Type | Path | Tags | Relations | Updated |"
	separator = "|-------|------|------|------|-----------|---------|"
	emptyRow  = "| *(empty)* | - | - | - | - | - |"
	none      = "-"
)

// Row is one document in the overview.
type Row struct {
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Tags      []string  `json:"tags"`
	Relations []string  `json:"relations"`
	Updated   time.Time `json:"updated_at"`
}

// Collect parses every Markdown document and returns rows sorted by
// case-insensitive title. prefix is prepended to the root-relative path,
// e.g. ".claude". A document that fails to parse aborts the collection.
func Collect(fs storage.Provider, prefix string) ([]Row, error) {
	files, err := fs.List()
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	rows := make([]Row, 0, len(files))
	for _, f := range files {
		if path.Ext(f.Path) != ".md" {
			continue
		}
		data, err := fs.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
		doc, err := document.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("table: parse %s: %w", f.Path, err)
		}
		fm := doc.FrontMatter
		rows = append(rows, Row{
			Title:     fm.Title,
			Type:      fm.Type,
			Path:      "./" + path.Join(prefix, f.Path),
			Tags:      fm.Tags,
			Relations: fm.RelationTargets(),
			Updated:   fm.UpdatedAt,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Title) < strings.ToLower(rows[j].Title)
	})
	return rows, nil
}

// Render formats rows as a Markdown table ending with a newline.
func Render(rows []Row) string {
	var sb strings.Builder
	sb.WriteString(header + "\n")
	sb.WriteString(separator + "\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
			cell(r.Title), cell(r.Type), cell(r.Path), list(r.Tags), list(r.Relations), r.Updated.UTC().Format(time.DateOnly))
	}
	if len(rows) == 0 {
		sb.WriteString(emptyRow + "\n")
	}
	return sb.String()
}

func list(values []string) string {
	if len(values) == 0 {
		return none
	}
	return cell(strings.Join(values, ", "))
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

// cell escapes pipes so a value cannot split its row.
func cell(s string) string {
	return cellEscaper.Replace(s)
}
