// Package workspace locates the knowledge base root and lays out its directories.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/starford/kbclaude/internal/apperr"
	"github.com/starford/kbclaude/internal/models"
	"github.com/starford/kbclaude/internal/slug"
	"github.com/starford/kbclaude/internal/storage"
)

// Default file names inside the root.
const (
	DefaultDirName      = ".claude"
	DefaultManifestFile = "manifest.json"
	DefaultTableFile    = "manifest.md"
	DefaultIndexFile    = ".index.db"
)

// Layout names the files inside a root. Zero fields fall back to defaults.
type Layout struct {
	DirName      string
	ManifestFile string
	TableFile    string
	IndexFile    string
}

func (l Layout) withDefaults() Layout {
	if l.DirName == "" {
		l.DirName = DefaultDirName
	}
	if l.ManifestFile == "" {
		l.ManifestFile = DefaultManifestFile
	}
	if l.TableFile == "" {
		l.TableFile = DefaultTableFile
	}
	if l.IndexFile == "" {
		l.IndexFile = DefaultIndexFile
	}
	return l
}

// Root is a resolved knowledge base location.
type Root struct {
	// Base is the directory that contains the root; displayed paths are relative to it.
	Base string
	// Dir is the absolute path of the root directory itself.
	Dir    string
	layout Layout
}

// New builds a Root for base/<dir name>.
func New(base string, layout Layout) (*Root, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve %s: %w", base, err)
	}
	layout = layout.withDefaults()
	return &Root{Base: abs, Dir: filepath.Join(abs, layout.DirName), layout: layout}, nil
}

// Find walks from start towards the file-system root and returns the first
// directory that contains a root directory.
func Find(start string, layout Layout) (*Root, error) {
	layout = layout.withDefaults()
	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve %s: %w", start, err)
	}
	for {
		info, err := os.Stat(filepath.Join(dir, layout.DirName))
		if err == nil && info.IsDir() {
			return New(dir, layout)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("workspace: no %s directory above %s: %w", layout.DirName, start, apperr.ErrNotFound)
		}
		dir = parent
	}
}

// Resolve picks the root for a command. An explicit directory is used as the
// base as-is (a path that already names the root directory is accepted too).
// Otherwise the nearest existing root above cwd wins, falling back to cwd.
func Resolve(explicit, cwd string, layout Layout) (*Root, error) {
	layout = layout.withDefaults()
	if explicit != "" {
		if filepath.Base(filepath.Clean(explicit)) == layout.DirName {
			return New(filepath.Dir(filepath.Clean(explicit)), layout)
		}
		return New(explicit, layout)
	}
	root, err := Find(cwd, layout)
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return New(cwd, layout)
}

// Exists reports whether the root directory is present.
func (r *Root) Exists() bool {
	info, err := os.Stat(r.Dir)
	return err == nil && info.IsDir()
}

// EnsureLayout creates the root and one directory per known type. It returns
// the directories that did not exist yet; with dryRun nothing is created.
func (r *Root) EnsureLayout(dryRun bool) ([]string, error) {
	dirs := []string{r.Dir}
	for _, t := range models.KnownTypes() {
		dirs = append(dirs, r.TypeDir(t))
	}

	var created []string
	for _, d := range dirs {
		_, err := os.Stat(d)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return created, fmt.Errorf("workspace: stat %s: %w", d, err)
		}
		created = append(created, d)
		if dryRun {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return created, fmt.Errorf("workspace: create %s: %w", d, err)
		}
	}
	return created, nil
}

// ManifestPath is the manifest location relative to the root.
func (r *Root) ManifestPath() string { return r.layout.ManifestFile }

// TablePath is the absolute path of the rendered Markdown table.
func (r *Root) TablePath() string { return filepath.Join(r.Dir, r.layout.TableFile) }

// IndexPath is the absolute path of the search index database.
func (r *Root) IndexPath() string { return filepath.Join(r.Dir, r.layout.IndexFile) }

// TypeDir is the absolute directory holding documents of type t.
func (r *Root) TypeDir(t models.DocType) string {
	ti, ok := models.Lookup(t)
	if !ok || ti.Dir == "" {
		return filepath.Join(r.Dir, string(t))
	}
	return filepath.Join(r.Dir, ti.Dir)
}

// DocumentPath is the root-relative slash path of a Markdown document.
func DocumentPath(t models.DocType, link string) string {
	dir := string(t)
	if ti, ok := models.Lookup(t); ok && ti.Dir != "" {
		dir = ti.Dir
	}
	return dir + "/" + slug.Slugify(link) + ".md"
}

// Display renders an absolute path relative to Base for messages.
func (r *Root) Display(path string) string {
	rel, err := filepath.Rel(r.Base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// DisplayRel renders a root-relative path relative to Base.
func (r *Root) DisplayRel(rel string) string {
	return r.Display(filepath.Join(r.Dir, filepath.FromSlash(rel)))
}

// Open returns a storage provider over the root. The root must exist.
func (r *Root) Open() (*storage.FS, error) {
	if !r.Exists() {
		return nil, fmt.Errorf("workspace: %s does not exist, run init first: %w", r.Dir, apperr.ErrNotFound)
	}
	return storage.NewFS(r.Dir)
}
