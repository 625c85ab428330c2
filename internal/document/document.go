// Package document parses and serializes knowledge base entries: Markdown
// files with a YAML front-matter header delimited by "---" lines.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/slug"
)

const delimiter = "---"

var (
	ErrMissingStartDelimiter = fmt.Errorf("%w: missing front matter start delimiter", apperr.ErrMalformed)
	ErrMissingEndDelimiter   = fmt.Errorf("%w: missing front matter end delimiter", apperr.ErrMalformed)
	ErrMalformedFrontMatter  = fmt.Errorf("%w: invalid front matter", apperr.ErrMalformed)
)

// Relation is a directed edge to another document, identified by its slug.
type Relation struct {
	RelatesTo string `yaml:"relates_to" json:"relates_to"`
}

// FrontMatter is the structured header of a document.
type FrontMatter struct {
	Title                string     `json:"title"`
	Link                 string     `json:"link"`
	Type                 string     `json:"type"`
	OntologicalRelations []Relation `json:"ontological_relations"`
	Tags                 []string   `json:"tags"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	UUID                 uuid.UUID  `json:"uuid"`
}

// Document is a parsed entry.
type Document struct {
	FrontMatter FrontMatter
	Body        string
}

// NewFrontMatter builds a header for a freshly created document.
func NewFrontMatter(title, docType string, now time.Time) FrontMatter {
	now = normalizeTime(now)
	return FrontMatter{
		Title:                title,
		Link:                 slug.Slugify(title),
		Type:                 docType,
		OntologicalRelations: []Relation{},
		Tags:                 []string{},
		CreatedAt:            now,
		UpdatedAt:            now,
		UUID:                 uuid.New(),
	}
}

// TouchUpdated sets UpdatedAt to now.
func (fm *FrontMatter) TouchUpdated(now time.Time) {
	fm.UpdatedAt = normalizeTime(now)
}

// SlugFromTitle is the link the title would produce.
func (fm *FrontMatter) SlugFromTitle() string {
	return slug.Slugify(fm.Title)
}

// EnsureLinkMatchesSlug rewrites Link from the title.
func (fm *FrontMatter) EnsureLinkMatchesSlug() {
	fm.Link = fm.SlugFromTitle()
}

// IsLinkConsistent reports whether Link equals the slug of the title.
func (fm *FrontMatter) IsLinkConsistent() bool {
	return fm.Link == fm.SlugFromTitle()
}

// HasRelation reports whether the header already relates to target.
func (fm *FrontMatter) HasRelation(target string) bool {
	for _, r := range fm.OntologicalRelations {
		if r.RelatesTo == target {
			return true
		}
	}
	return false
}

// AddRelation appends a relation to target unless one already exists.
// It reports whether the header changed.
func (fm *FrontMatter) AddRelation(target string) bool {
	if fm.HasRelation(target) {
		return false
	}
	fm.OntologicalRelations = append(fm.OntologicalRelations, Relation{RelatesTo: target})
	return true
}

// RelationTargets returns the target slugs in header order.
func (fm *FrontMatter) RelationTargets() []string {
	out := make([]string, len(fm.OntologicalRelations))
	for i, r := range fm.OntologicalRelations {
		out[i] = r.RelatesTo
	}
	return out
}

// rawHeader mirrors the YAML header. Required fields are pointers so a
// missing key can be told apart from an empty value.
type rawHeader struct {
	Title                *string    `yaml:"title"`
	Link                 *string    `yaml:"link"`
	Type                 *string    `yaml:"type"`
	OntologicalRelations []Relation `yaml:"ontological_relations"`
	Tags                 []string   `yaml:"tags"`
	CreatedAt            *string    `yaml:"created_at"`
	UpdatedAt            *string    `yaml:"updated_at"`
	UUID                 *string    `yaml:"uuid"`
}

// outHeader fixes the key order of serialized headers.
type outHeader struct {
	Title                string     `yaml:"title"`
	Link                 string     `yaml:"link"`
	Type                 string     `yaml:"type"`
	OntologicalRelations []Relation `yaml:"ontological_relations"`
	Tags                 []string   `yaml:"tags"`
	CreatedAt            time.Time  `yaml:"created_at"`
	UpdatedAt            time.Time  `yaml:"updated_at"`
	UUID                 string     `yaml:"uuid"`
}

// Parse splits raw into header and body and decodes the header.
// The body is everything after the first "\n---\n" following the header.
func Parse(raw string) (*Document, error) {
	trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
	rest, ok := strings.CutPrefix(trimmed, delimiter+"\n")
	if !ok {
		return nil, ErrMissingStartDelimiter
	}
	header, body, ok := strings.Cut(rest, "\n"+delimiter+"\n")
	if !ok {
		return nil, ErrMissingEndDelimiter
	}

	fm, err := decodeHeader(header)
	if err != nil {
		return nil, err
	}
	return &Document{FrontMatter: *fm, Body: body}, nil
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", path, err)
	}
	doc, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", path, err)
	}
	return doc, nil
}

func decodeHeader(header string) (*FrontMatter, error) {
	dec := yaml.NewDecoder(strings.NewReader(header))
	dec.KnownFields(true)

	var raw rawHeader
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty header", ErrMalformedFrontMatter)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}

	required := []struct {
		name  string
		value *string
	}{
		{"title", raw.Title},
		{"link", raw.Link},
		{"type", raw.Type},
		{"created_at", raw.CreatedAt},
		{"updated_at", raw.UpdatedAt},
		{"uuid", raw.UUID},
	}
	for _, f := range required {
		if f.value == nil {
			return nil, fmt.Errorf("%w: missing field %q", ErrMalformedFrontMatter, f.name)
		}
	}

	createdAt, err := parseTime("created_at", *raw.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime("updated_at", *raw.UpdatedAt)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw.UUID))
	if err != nil {
		return nil, fmt.Errorf("%w: uuid: %v", ErrMalformedFrontMatter, err)
	}

	fm := &FrontMatter{
		Title:                *raw.Title,
		Link:                 *raw.Link,
		Type:                 *raw.Type,
		OntologicalRelations: raw.OntologicalRelations,
		Tags:                 raw.Tags,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
		UUID:                 id,
	}
	if fm.OntologicalRelations == nil {
		fm.OntologicalRelations = []Relation{}
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	return fm, nil
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrMalformedFrontMatter, field, err)
	}
	return t.UTC(), nil
}

// ToMarkdown serializes the document. Trailing whitespace of the body is
// collapsed into a single newline.
func (d *Document) ToMarkdown() (string, error) {
	fm := d.FrontMatter
	out := outHeader{
		Title:                fm.Title,
		Link:                 fm.Link,
		Type:                 fm.Type,
		OntologicalRelations: fm.OntologicalRelations,
		Tags:                 fm.Tags,
		CreatedAt:            normalizeTime(fm.CreatedAt),
		UpdatedAt:            normalizeTime(fm.UpdatedAt),
		UUID:                 fm.UUID.String(),
	}
	if out.OntologicalRelations == nil {
		out.OntologicalRelations = []Relation{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return "", fmt.Errorf("document: encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("document: encode front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(delimiter + "\n")
	sb.Write(buf.Bytes())
	sb.WriteString(delimiter + "\n")
	sb.WriteString(strings.TrimRightFunc(d.Body, unicode.IsSpace))
	sb.WriteString("\n")
	return sb.String(), nil
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
