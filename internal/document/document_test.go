package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/starford/kbclaude/internal/apperr"
)

const sample = `---
title: Alpha Note
link: alpha-note
type: qa
ontological_relations:
  - relates_to: beta
tags:
  - go
  - sync
created_at: 2024-03-01T10:00:00Z
updated_at: 2024-03-02T11:30:00Z
uuid: 6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6
---
# Alpha

Body text.
`

func TestParse_Sample(t *testing.T) {
	doc, err := Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fm := doc.FrontMatter
	if fm.Title != "Alpha Note" {
		t.Errorf("title = %q, want %q", fm.Title, "Alpha Note")
	}
	if fm.Type != "qa" {
		t.Errorf("type = %q, want qa", fm.Type)
	}
	if diff := cmp.Diff([]string{"go", "sync"}, fm.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if !fm.HasRelation("beta") {
		t.Error("expected relation to beta")
	}
	want := time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC)
	if !fm.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want %v", fm.UpdatedAt, want)
	}
	if fm.UUID.String() != "6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6" {
		t.Errorf("uuid = %s", fm.UUID)
	}
	if doc.Body != "# Alpha\n\nBody text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_LeadingWhitespace(t *testing.T) {
	if _, err := Parse("\n\n  " + sample); err != nil {
		t.Fatalf("Parse with leading whitespace: %v", err)
	}
}

func TestParse_DefaultsForOptionalLists(t *testing.T) {
	raw := `---
title: Bare
link: bare
type: plans
created_at: 2024-01-01T00:00:00Z
updated_at: 2024-01-01T00:00:00Z
uuid: 6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6
---
`
	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.FrontMatter.Tags == nil || len(doc.FrontMatter.Tags) != 0 {
		t.Errorf("tags = %#v, want empty slice", doc.FrontMatter.Tags)
	}
	if doc.FrontMatter.OntologicalRelations == nil {
		t.Error("relations should default to an empty slice")
	}
	if doc.Body != "" {
		t.Errorf("body = %q, want empty", doc.Body)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want error
	}{
		"no header":        {"# just markdown\n", ErrMissingStartDelimiter},
		"unterminated":     {"---\ntitle: x\nbody\n", ErrMissingEndDelimiter},
		"missing uuid":     {strings.Replace(sample, "uuid: 6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6\n", "", 1), ErrMalformedFrontMatter},
		"bad timestamp":    {strings.Replace(sample, "2024-03-01T10:00:00Z", "yesterday", 1), ErrMalformedFrontMatter},
		"bad uuid":         {strings.Replace(sample, "6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6", "not-a-uuid", 1), ErrMalformedFrontMatter},
		"unknown field":    {strings.Replace(sample, "type: qa\n", "type: qa\nauthor: me\n", 1), ErrMalformedFrontMatter},
		"header not a map": {"---\n- a\n- b\n---\nbody\n", ErrMalformedFrontMatter},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, apperr.ErrMalformed) {
				t.Fatalf("err = %v, want wrapped ErrMalformed", err)
			}
		})
	}
}

func TestToMarkdown_RoundTrip(t *testing.T) {
	doc, err := Parse(sample)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := doc.ToMarkdown()
	if err != nil {
		t.Fatalf("ToMarkdown: %v", err)
	}
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(ToMarkdown): %v\n%s", err, out)
	}
	if diff := cmp.Diff(doc, again); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestToMarkdown_Layout(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.FixedZone("X", 3600))
	fm := NewFrontMatter("Layout Check", "patterns", now)
	fm.UUID = uuid.MustParse("6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6")
	doc := &Document{FrontMatter: fm, Body: "text\n\n\n  "}

	out, err := doc.ToMarkdown()
	if err != nil {
		t.Fatalf("ToMarkdown: %v", err)
	}
	if !strings.HasPrefix(out, "---\ntitle: Layout Check\nlink: layout-check\ntype: patterns\n") {
		t.Errorf("unexpected header start:\n%s", out)
	}
	if !strings.Contains(out, "created_at: 2024-05-06T06:08:09Z\n") {
		t.Errorf("created_at not rendered as UTC seconds:\n%s", out)
	}
	if !strings.HasSuffix(out, "uuid: 6f1c2a8e-3b4d-4c5e-8f90-a1b2c3d4e5f6\n---\ntext\n") {
		t.Errorf("unexpected tail:\n%s", out)
	}
}

func TestNewFrontMatter(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fm := NewFrontMatter("Hello, World!", "qa", now)
	if fm.Link != "hello-world" {
		t.Errorf("link = %q, want hello-world", fm.Link)
	}
	if fm.UUID == uuid.Nil {
		t.Error("uuid must not be nil")
	}
	if !fm.CreatedAt.Equal(now) || !fm.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v / %v, want %v", fm.CreatedAt, fm.UpdatedAt, now)
	}
	if !fm.IsLinkConsistent() {
		t.Error("fresh header should be link consistent")
	}

	later := now.Add(time.Hour)
	fm.TouchUpdated(later)
	if !fm.UpdatedAt.Equal(later) || !fm.CreatedAt.Equal(now) {
		t.Errorf("TouchUpdated changed the wrong field: %v / %v", fm.CreatedAt, fm.UpdatedAt)
	}

	fm.Title = "Renamed Entry"
	if fm.IsLinkConsistent() {
		t.Error("renamed title should make link inconsistent")
	}
	fm.EnsureLinkMatchesSlug()
	if fm.Link != "renamed-entry" {
		t.Errorf("link = %q, want renamed-entry", fm.Link)
	}
}

func TestAddRelation_NoDuplicates(t *testing.T) {
	fm := NewFrontMatter("A", "qa", time.Now())
	if !fm.AddRelation("b") {
		t.Fatal("first AddRelation should change the header")
	}
	if fm.AddRelation("b") {
		t.Fatal("second AddRelation should be a no-op")
	}
	if diff := cmp.Diff([]string{"b"}, fm.RelationTargets()); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFile_WrapsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.md")
	if err := os.WriteFile(path, []byte("no header"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("err = %v, want mention of %s", err, path)
	}
	if !errors.Is(err, ErrMissingStartDelimiter) {
		t.Fatalf("err = %v, want ErrMissingStartDelimiter", err)
	}
}
