// Package testutil provides shared test helpers for setting up workspaces and databases.
package testutil

import (
	"testing"
	"time"

	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/index"
	"github.com/starford/kbclaude/internal/storage"
	"github.com/starford/kbclaude/internal/workspace"
)

// Now is a fixed clock value for deterministic front matter.
var Now = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time { return Now }

// TestWorkspace creates a temporary workspace with the full type layout.
func TestWorkspace(t *testing.T) (*workspace.Root, storage.Provider) {
	t.Helper()
	root, err := workspace.New(t.TempDir(), workspace.Layout{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := root.EnsureLayout(false); err != nil {
		t.Fatal(err)
	}
	store, err := root.Open()
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// TestDB opens the search index of root and closes it on cleanup.
func TestDB(t *testing.T, root *workspace.Root) *index.DB {
	t.Helper()
	db, err := index.Open(root.IndexPath())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteDocument stores a document built from title and type at its
// canonical path and returns that path.
func WriteDocument(t *testing.T, store storage.Provider, title, docType, body string, relatesTo ...string) string {
	t.Helper()
	fm := document.NewFrontMatter(title, docType, Now)
	for _, r := range relatesTo {
		fm.AddRelation(r)
	}
	doc := &document.Document{FrontMatter: fm, Body: body}
	md, err := doc.ToMarkdown()
	if err != nil {
		t.Fatal(err)
	}
	p := docType + "/" + fm.Link + ".md"
	if err := store.Write(p, []byte(md)); err != nil {
		t.Fatal(err)
	}
	return p
}
