package relation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/storage"
)

var t0 = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func newFS(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func put(t *testing.T, fs *storage.FS, path, title, docType string) {
	t.Helper()
	fm := document.NewFrontMatter(title, docType, t0)
	md, err := (&document.Document{FrontMatter: fm, Body: "body\n"}).ToMarkdown()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Write(path, []byte(md)); err != nil {
		t.Fatal(err)
	}
}

func load(t *testing.T, fs *storage.FS, path string) *document.Document {
	t.Helper()
	data, err := fs.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := document.Parse(string(data))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestLink_AlphaBeta(t *testing.T) {
	fs := newFS(t)
	put(t, fs, "qa/alpha.md", "Alpha", "qa")
	put(t, fs, "patterns/beta.md", "Beta", "patterns")

	out, err := Link(fs, "alpha", "beta", false, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !out.Changed {
		t.Fatal("first link should change files")
	}

	alpha := load(t, fs, "qa/alpha.md")
	beta := load(t, fs, "patterns/beta.md")
	if diff := cmp.Diff([]document.Relation{{RelatesTo: "beta"}}, alpha.FrontMatter.OntologicalRelations); diff != "" {
		t.Errorf("alpha relations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]document.Relation{{RelatesTo: "alpha"}}, beta.FrontMatter.OntologicalRelations); diff != "" {
		t.Errorf("beta relations (-want +got):\n%s", diff)
	}
	if !alpha.FrontMatter.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("alpha updated_at = %v", alpha.FrontMatter.UpdatedAt)
	}
}

func TestLink_Idempotent(t *testing.T) {
	fs := newFS(t)
	put(t, fs, "qa/a.md", "A", "qa")
	put(t, fs, "qa/b.md", "B", "qa")

	if _, err := Link(fs, "a", "b", false, t0); err != nil {
		t.Fatal(err)
	}
	beforeA, _ := fs.Read("qa/a.md")
	beforeB, _ := fs.Read("qa/b.md")

	out, err := Link(fs, "b", "a", false, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if out.Changed {
		t.Error("second link should report no changes")
	}
	afterA, _ := fs.Read("qa/a.md")
	afterB, _ := fs.Read("qa/b.md")
	if string(beforeA) != string(afterA) || string(beforeB) != string(afterB) {
		t.Error("files rewritten on a no-op link")
	}
	if n := strings.Count(string(afterA), "relates_to: b"); n != 1 {
		t.Errorf("a has %d relations to b, want 1", n)
	}
}

func TestLink_ForceRewritesWithoutDuplicates(t *testing.T) {
	fs := newFS(t)
	put(t, fs, "qa/a.md", "A", "qa")
	put(t, fs, "qa/b.md", "B", "qa")
	if _, err := Link(fs, "a", "b", false, t0); err != nil {
		t.Fatal(err)
	}

	later := t0.Add(2 * time.Hour)
	out, err := Link(fs, "a", "b", true, later)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Changed {
		t.Error("forced link should write")
	}
	for _, p := range []string{"qa/a.md", "qa/b.md"} {
		doc := load(t, fs, p)
		if len(doc.FrontMatter.OntologicalRelations) != 1 {
			t.Errorf("%s relations = %v", p, doc.FrontMatter.OntologicalRelations)
		}
		if !doc.FrontMatter.UpdatedAt.Equal(later) {
			t.Errorf("%s updated_at = %v, want %v", p, doc.FrontMatter.UpdatedAt, later)
		}
	}
}

func TestLink_OneSidedRewritesBoth(t *testing.T) {
	fs := newFS(t)
	put(t, fs, "qa/a.md", "A", "qa")
	put(t, fs, "qa/b.md", "B", "qa")

	a := load(t, fs, "qa/a.md")
	a.FrontMatter.AddRelation("b")
	md, _ := a.ToMarkdown()
	_ = fs.Write("qa/a.md", []byte(md))

	later := t0.Add(time.Hour)
	out, err := Link(fs, "a", "b", false, later)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Changed {
		t.Fatal("missing back-relation should be inserted")
	}
	if !load(t, fs, "qa/b.md").FrontMatter.HasRelation("a") {
		t.Error("b should relate to a")
	}
	if got := load(t, fs, "qa/a.md").FrontMatter.UpdatedAt; !got.Equal(t0) {
		t.Errorf("a updated_at = %v, want unchanged %v", got, t0)
	}
}

func TestLink_Identity(t *testing.T) {
	fs := newFS(t)
	for _, force := range []bool{false, true} {
		_, err := Link(fs, "same", "same", force, t0)
		if !errors.Is(err, ErrIdentityLink) || !errors.Is(err, apperr.ErrInvalidArgument) {
			t.Errorf("force=%v: err = %v, want ErrIdentityLink", force, err)
		}
	}
}

func TestResolve_NotFoundAndAmbiguous(t *testing.T) {
	fs := newFS(t)
	put(t, fs, "qa/dup.md", "Dup", "qa")
	put(t, fs, "plans/dup.md", "Dup", "plans")
	put(t, fs, "qa/renamed.md", "Something Else", "qa")

	if _, err := Resolve(fs, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
	if _, err := Resolve(fs, "dup"); !errors.Is(err, apperr.ErrAmbiguous) {
		t.Errorf("dup: err = %v, want ErrAmbiguous", err)
	}
	// stem matches but link does not
	if _, err := Resolve(fs, "renamed"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("renamed: err = %v, want ErrNotFound", err)
	}
}

func TestResolve_BrokenCandidateAborts(t *testing.T) {
	fs := newFS(t)
	_ = fs.Write("qa/broken.md", []byte("no front matter"))
	_, err := Resolve(fs, "broken")
	if !errors.Is(err, apperr.ErrMalformed) || !strings.Contains(err.Error(), "qa/broken.md") {
		t.Fatalf("err = %v, want malformed error naming the path", err)
	}
}
