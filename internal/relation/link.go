// Package relation resolves documents by slug and links them bidirectionally.
package relation

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/storage"
)

// ErrIdentityLink is returned when a document is linked to itself.
var ErrIdentityLink = fmt.Errorf("%w: cannot link a document to itself", apperr.ErrInvalidArgument)

// Resolved is a document located by slug.
type Resolved struct {
	Path     string
	Document *document.Document
}

// Outcome describes the result of Link.
type Outcome struct {
	Changed bool
	Source  Resolved
	Target  Resolved
}

// Resolve finds the single Markdown document whose file stem and front matter
// link both equal slug. Only files with a matching stem are parsed.
func Resolve(fs storage.Provider, slug string) (*Resolved, error) {
	files, err := fs.List()
	if err != nil {
		return nil, fmt.Errorf("relation: resolve %q: %w", slug, err)
	}

	var matches []Resolved
	for _, f := range files {
		if path.Ext(f.Path) != ".md" || strings.TrimSuffix(path.Base(f.Path), ".md") != slug {
			continue
		}
		data, err := fs.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("relation: resolve %q: %w", slug, err)
		}
		doc, err := document.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("relation: parse %s: %w", f.Path, err)
		}
		if doc.FrontMatter.Link == slug {
			matches = append(matches, Resolved{Path: f.Path, Document: doc})
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("relation: document %q: %w", slug, apperr.ErrNotFound)
	case 1:
		return &matches[0], nil
	default:
		paths := make([]string, len(matches))
		for i, m := range matches {
			paths[i] = m.Path
		}
		return nil, fmt.Errorf("relation: slug %q matches %s: %w", slug, strings.Join(paths, ", "), apperr.ErrAmbiguous)
	}
}

// Link adds a relation from source to target and from target to source.
// Without force, existing relations are left alone and nothing is written
// when both already exist. When anything is written both files are rewritten.
func Link(fs storage.Provider, source, target string, force bool, now time.Time) (*Outcome, error) {
	if source == target {
		return nil, ErrIdentityLink
	}
	src, err := Resolve(fs, source)
	if err != nil {
		return nil, err
	}
	tgt, err := Resolve(fs, target)
	if err != nil {
		return nil, err
	}

	srcInserted := insert(&src.Document.FrontMatter, tgt.Document.FrontMatter.Link, force, now)
	tgtInserted := insert(&tgt.Document.FrontMatter, src.Document.FrontMatter.Link, force, now)

	out := &Outcome{Source: *src, Target: *tgt}
	if !srcInserted && !tgtInserted && !force {
		return out, nil
	}

	for _, r := range []*Resolved{src, tgt} {
		md, err := r.Document.ToMarkdown()
		if err != nil {
			return nil, fmt.Errorf("relation: encode %s: %w", r.Path, err)
		}
		if err := fs.Write(r.Path, []byte(md)); err != nil {
			return nil, fmt.Errorf("relation: write %s: %w", r.Path, err)
		}
	}
	out.Changed = true
	return out, nil
}

func insert(fm *document.FrontMatter, target string, force bool, now time.Time) bool {
	if fm.HasRelation(target) && !force {
		return false
	}
	fm.AddRelation(target)
	fm.TouchUpdated(now)
	return true
}
