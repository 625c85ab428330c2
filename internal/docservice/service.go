// Package docservice coordinates storage, the manifest, relations and the
// search index behind the operations exposed by the CLI and the tool server.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/checksum"
	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/index"
	"github.com/starford/kbclaude/internal/manifest"
	"github.com/starford/kbclaude/internal/models"
	"github.com/starford/kbclaude/internal/relation"
	"github.com/starford/kbclaude/internal/slug"
	"github.com/starford/kbclaude/internal/storage"
	"github.com/starford/kbclaude/internal/workspace"
)

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	Path        string               `json:"path"`
	FrontMatter document.FrontMatter `json:"front_matter"`
	Body        string               `json:"body"`
	Content     string               `json:"content"`
	Checksum    string               `json:"checksum"`
	Backlinks   []string             `json:"backlinks"`
}

// DocumentItem is a lightweight item in a list response.
type DocumentItem struct {
	Path      string    `json:"path"`
	Link      string    `json:"link"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument describes a document to create.
type NewDocument struct {
	Title     string
	Type      string
	Tags      []string
	RelatesTo []string
	Body      string
	// Path overrides the root-relative location; it must end in .md and
	// its stem becomes the link.
	Path string
}

// Option configures a Service.
type Option func(*Service)

// WithIndex enables the search index.
func WithIndex(db *index.DB) Option {
	return func(s *Service) { s.db = db }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service coordinates storage, manifest and index operations.
type Service struct {
	root     *workspace.Root
	store    storage.Provider
	manifest *manifest.Store
	db       *index.DB
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a document service over root.
func New(root *workspace.Root, store storage.Provider, opts ...Option) *Service {
	s := &Service{
		root:     root,
		store:    store,
		manifest: manifest.NewStore(store, root.ManifestPath()),
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the workspace root the service operates on.
func (s *Service) Root() *workspace.Root { return s.root }

// IndexEnabled reports whether a search index is attached.
func (s *Service) IndexEnabled() bool { return s.db != nil }

// CreateDocument writes a new document and indexes it.
func (s *Service) CreateDocument(_ context.Context, in NewDocument) (*DocumentDetail, error) {
	docType, err := models.ParseType(strings.TrimSpace(in.Type))
	if err != nil {
		return nil, fmt.Errorf("docservice: %w: %v", apperr.ErrInvalidArgument, err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("docservice: %w: title is required", apperr.ErrInvalidArgument)
	}

	fm := document.NewFrontMatter(in.Title, string(docType), s.now())
	fm.Tags = cleanList(in.Tags)
	for _, r := range cleanList(in.RelatesTo) {
		fm.AddRelation(r)
	}
	fm.EnsureLinkMatchesSlug()

	p := workspace.DocumentPath(docType, fm.Link)
	if in.Path != "" {
		if !strings.EqualFold(path.Ext(in.Path), ".md") {
			return nil, fmt.Errorf("docservice: %w: expected a .md extension for %s", apperr.ErrInvalidArgument, in.Path)
		}
		p = in.Path
		fm.Link = slug.Slugify(strings.TrimSuffix(path.Base(p), path.Ext(p)))
	}

	exists, err := s.store.Exists(p)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("docservice: %s: %w", p, apperr.ErrAlreadyExists)
	}

	doc := &document.Document{FrontMatter: fm, Body: in.Body}
	md, err := doc.ToMarkdown()
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(p, []byte(md)); err != nil {
		return nil, err
	}
	s.logger.Debug("document created", slog.String("path", p), slog.String("link", fm.Link))
	s.indexFile(p, []byte(md))
	return s.buildDetail(p, []byte(md))
}

// GetDocument resolves link and returns the document with its backlinks.
func (s *Service) GetDocument(_ context.Context, link string) (*DocumentDetail, error) {
	res, err := relation.Resolve(s.store, link)
	if err != nil {
		return nil, err
	}
	data, err := s.read(res.Path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(res.Path, data)
}

// ListDocuments returns documents ordered by title, optionally filtered by type.
func (s *Service) ListDocuments(ctx context.Context, docType string) ([]DocumentItem, error) {
	if docType != "" {
		if _, err := models.ParseType(docType); err != nil {
			return nil, fmt.Errorf("docservice: %w: %v", apperr.ErrInvalidArgument, err)
		}
	}
	if s.db != nil {
		if _, err := s.RefreshIndex(ctx); err != nil {
			return nil, err
		}
		rows, err := s.db.ListDocuments(docType)
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
		if docType == "" || d.doc.FrontMatter.Type == docType {
			items = append(items, itemFromDoc(d.path, d.doc))
		}
	}
	sortItems(items)
	return items, nil
}

// DeleteDocument removes the document resolved from link and returns its path.
func (s *Service) DeleteDocument(_ context.Context, link string) (string, error) {
	res, err := relation.Resolve(s.store, link)
	if err != nil {
		return "", err
	}
	if err := s.store.Delete(res.Path); err != nil {
		return "", err
	}
	if s.db != nil {
		if err := s.db.DeleteDocument(res.Path); err != nil {
			s.logger.Warn("index delete failed", slog.String("path", res.Path), slog.String("error", err.Error()))
		}
	}
	s.logger.Debug("document deleted", slog.String("path", res.Path))
	return res.Path, nil
}

// MoveDocument relocates a document into the directory of newType and
// updates its type and updated_at.
func (s *Service) MoveDocument(_ context.Context, link, newType string) (*DocumentDetail, error) {
	docType, err := models.ParseType(strings.TrimSpace(newType))
	if err != nil {
		return nil, fmt.Errorf("docservice: %w: %v", apperr.ErrInvalidArgument, err)
	}
	res, err := relation.Resolve(s.store, link)
	if err != nil {
		return nil, err
	}

	dst := workspace.DocumentPath(docType, res.Document.FrontMatter.Link)
	if dst != res.Path {
		exists, err := s.store.Exists(dst)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("docservice: %s: %w", dst, apperr.ErrAlreadyExists)
		}
	}

	res.Document.FrontMatter.Type = string(docType)
	res.Document.FrontMatter.TouchUpdated(s.now())
	md, err := res.Document.ToMarkdown()
	if err != nil {
		return nil, err
	}
	// The source stays in place until the retyped copy is written.
	if err := s.store.Write(dst, []byte(md)); err != nil {
		return nil, err
	}
	if dst != res.Path {
		if err := s.store.Delete(res.Path); err != nil {
			if rmErr := s.store.Delete(dst); rmErr != nil {
				s.logger.Warn("move rollback failed", slog.String("path", dst), slog.String("error", rmErr.Error()))
			}
			return nil, err
		}
		if s.db != nil {
			if err := s.db.DeleteDocument(res.Path); err != nil {
				s.logger.Warn("index delete failed", slog.String("path", res.Path), slog.String("error", err.Error()))
			}
		}
	}
	s.logger.Debug("document moved", slog.String("from", res.Path), slog.String("to", dst))
	s.indexFile(dst, []byte(md))
	return s.buildDetail(dst, []byte(md))
}

// Link relates source and target in both directions.
func (s *Service) Link(_ context.Context, source, target string, force bool) (*relation.Outcome, error) {
	out, err := relation.Link(s.store, source, target, force, s.now())
	if err != nil {
		return nil, err
	}
	if out.Changed {
		for _, r := range []relation.Resolved{out.Source, out.Target} {
			if data, err := s.store.Read(r.Path); err == nil {
				s.indexFile(r.Path, data)
			}
		}
	}
	return out, nil
}

// Sync reconciles the manifest with the files on disk and refreshes the index.
func (s *Service) Sync(ctx context.Context) (*manifest.Report, error) {
	report, err := manifest.Synchronize(s.store, s.manifest, s.now(), s.logger)
	if err != nil {
		return nil, err
	}
	if s.db != nil {
		if _, err := s.RefreshIndex(ctx); err != nil {
			s.logger.Warn("index refresh failed", slog.String("error", err.Error()))
		}
	}
	return report, nil
}

// RefreshIndex brings the search index up to date. Without an index it is a no-op.
func (s *Service) RefreshIndex(_ context.Context) (index.SyncStats, error) {
	if s.db == nil {
		return index.SyncStats{}, nil
	}
	return index.Sync(s.db, s.store, s.logger)
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("docservice: %s: %w", p, apperr.ErrNotFound)
	}
	return data, err
}

// indexFile refreshes the index after a write. Failures only log; the next
// RefreshIndex repairs the row.
func (s *Service) indexFile(p string, data []byte) {
	if s.db == nil {
		return
	}
	doc, err := document.Parse(string(data))
	if err != nil {
		return
	}
	fm := doc.FrontMatter
	err = s.db.UpsertDocument(index.DocumentRow{
		Path:      p,
		Link:      fm.Link,
		Title:     fm.Title,
		Type:      fm.Type,
		Checksum:  checksum.Sum(data),
		Tags:      fm.Tags,
		UpdatedAt: fm.UpdatedAt,
	}, doc.Body, fm.RelationTargets())
	if err != nil {
		s.logger.Warn("index upsert failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

func (s *Service) buildDetail(p string, data []byte) (*DocumentDetail, error) {
	doc, err := document.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("docservice: parse %s: %w", p, err)
	}
	backlinks, err := s.backlinkPaths(doc.FrontMatter.Link)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Path:        p,
		FrontMatter: doc.FrontMatter,
		Body:        doc.Body,
		Content:     string(data),
		Checksum:    checksum.Sum(data),
		Backlinks:   backlinks,
	}, nil
}

func cleanList(values []string) []string {
	out := []string{}
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func itemFromRow(r index.DocumentRow) DocumentItem {
	return DocumentItem{
		Path:      r.Path,
		Link:      r.Link,
		Title:     r.Title,
		Type:      r.Type,
		Tags:      nonNilSlice(r.Tags),
		UpdatedAt: r.UpdatedAt,
	}
}

func itemFromDoc(p string, doc *document.Document) DocumentItem {
	fm := doc.FrontMatter
	return DocumentItem{
		Path:      p,
		Link:      fm.Link,
		Title:     fm.Title,
		Type:      fm.Type,
		Tags:      nonNilSlice(fm.Tags),
		UpdatedAt: fm.UpdatedAt,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
