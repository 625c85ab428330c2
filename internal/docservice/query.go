package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/index"
	"github.com/starford/kbclaude/internal/table"
	"github.com/starford/kbclaude/internal/validate"
)

const snippetLen = 200

type scanned struct {
	path string
	doc  *document.Document
}

// scan parses every Markdown document. Unparseable files are logged and skipped.
func (s *Service) scan() ([]scanned, error) {
	files, err := s.store.List()
	if err != nil {
		return nil, err
	}
	var out []scanned
	for _, f := range files {
		if path.Ext(f.Path) != ".md" {
			continue
		}
		data, err := s.store.Read(f.Path)
		if err != nil {
			return nil, err
		}
		doc, err := document.Parse(string(data))
		if err != nil {
			s.logger.Warn("skipping unparseable document", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		out = append(out, scanned{path: f.Path, doc: doc})
	}
	return out, nil
}

func sortItems(items []DocumentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := strings.ToLower(items[i].Title), strings.ToLower(items[j].Title)
		if a != b {
			return a < b
		}
		return items[i].Path < items[j].Path
	})
}

// Search finds documents containing every term and carrying every tag.
func (s *Service) Search(ctx context.Context, q index.Query) ([]index.SearchResult, error) {
	if s.db != nil {
		if _, err := s.RefreshIndex(ctx); err != nil {
			return nil, err
		}
		return s.db.Search(q)
	}

	docs, err := s.scan()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = index.DefaultSearchLimit
	}
	var items []DocumentItem
	bodies := map[string]string{}
	for _, d := range docs {
		if matches(d.doc, q) {
			items = append(items, itemFromDoc(d.path, d.doc))
			bodies[d.path] = d.doc.Body
		}
	}
	sortItems(items)

	out := []index.SearchResult{}
	for _, it := range items {
		if len(out) == limit {
			break
		}
		out = append(out, index.SearchResult{Path: it.Path, Link: it.Link, Title: it.Title, Type: it.Type, Snippet: snippet(bodies[it.Path])})
	}
	return out, nil
}

// snippet returns the first snippetLen characters of body, counting runes
// the way SQLite substr does.
func snippet(body string) string {
	n := 0
	for i := range body {
		if n == snippetLen {
			return body[:i]
		}
		n++
	}
	return body
}

func matches(doc *document.Document, q index.Query) bool {
	fm := doc.FrontMatter
	haystack := strings.ToLower(fm.Title + "\n" + doc.Body + "\n" + strings.Join(fm.Tags, " "))
	for _, term := range q.Terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && !strings.Contains(haystack, term) {
			return false
		}
	}
	for _, want := range q.Tags {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		found := false
		for _, t := range fm.Tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Backlinks returns the documents that relate to link.
func (s *Service) Backlinks(ctx context.Context, link string) ([]DocumentItem, error) {
	if s.db != nil {
		if _, err := s.RefreshIndex(ctx); err != nil {
			return nil, err
		}
	}
	return s.backlinks(link)
}

func (s *Service) backlinks(link string) ([]DocumentItem, error) {
	if s.db != nil {
		rows, err := s.db.Backlinks(link)
		if err != nil {
			return nil, err
		}
		items := make([]DocumentItem, len(rows))
		for i, r := range rows {
			items[i] = itemFromRow(r)
		}
		return items, nil
	}

	docs, err := s.scan()
	if err != nil {
		return nil, err
	}
	items := []DocumentItem{}
	for _, d := range docs {
		if d.doc.FrontMatter.HasRelation(link) {
			items = append(items, itemFromDoc(d.path, d.doc))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (s *Service) backlinkPaths(link string) ([]string, error) {
	items, err := s.backlinks(link)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Path
	}
	return out, nil
}

// Validate checks every entry file and returns the collected findings.
func (s *Service) Validate(_ context.Context) (*validate.Report, error) {
	return validate.Run(s.store)
}

// Table collects the rows of the Markdown overview.
func (s *Service) Table(_ context.Context) ([]table.Row, error) {
	return table.Collect(s.store, s.root.Display(s.root.Dir))
}

// RenderTable writes the Markdown overview to out and returns the absolute
// path written. An empty out selects the default table file; relative paths
// are resolved against the workspace base.
func (s *Service) RenderTable(ctx context.Context, out string) (string, error) {
	rows, err := s.Table(ctx)
	if err != nil {
		return "", err
	}
	switch {
	case out == "":
		out = s.root.TablePath()
	case !filepath.IsAbs(out):
		out = filepath.Join(s.root.Base, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("docservice: prepare %s: %w", filepath.Dir(out), err)
	}
	if err := atomic.WriteFile(out, strings.NewReader(table.Render(rows))); err != nil {
		return "", fmt.Errorf("docservice: write %s: %w", out, err)
	}
	s.logger.Debug("table written", slog.String("path", out), slog.Int("rows", len(rows)))
	return out, nil
}
