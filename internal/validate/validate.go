// Package validate checks knowledge base entries and collects findings.
package validate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/kbclaude/internal/document"
	"github.com/starford/kbclaude/internal/models"
	"github.com/starford/kbclaude/internal/storage"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem found in one file.
type Finding struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Path, f.Message)
}

// Report accumulates findings across a run.
type Report struct {
	Checked  int       `json:"checked"`
	Findings []Finding `json:"findings"`
}

// Errors counts error findings.
func (r *Report) Errors() int { return r.count(SeverityError) }

// Warnings counts warning findings.
func (r *Report) Warnings() int { return r.count(SeverityWarning) }

// Failed reports whether the run should fail. Under strict, warnings fail too.
func (r *Report) Failed(strict bool) bool {
	if r.Errors() > 0 {
		return true
	}
	return strict && r.Warnings() > 0
}

func (r *Report) count(s Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

func (r *Report) add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Run validates every entry file under the known type directories.
func Run(fs storage.Provider) (*Report, error) {
	files, err := fs.List()
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	report := &Report{Findings: []Finding{}}
	for _, f := range files {
		data, err := fs.Read(f.Path)
		if err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}
		report.Checked++
		switch path.Ext(f.Path) {
		case ".md":
			report.add(Markdown(f.Path, data)...)
		case ".json":
			report.add(JSON(f.Path, data)...)
		}
	}
	return report, nil
}

// Markdown checks a front matter document stored at the root-relative path p.
func Markdown(p string, data []byte) []Finding {
	doc, err := document.Parse(string(data))
	if err != nil {
		return []Finding{errorf(p, "%v", err)}
	}
	return Document(p, doc)
}

// Document runs the field checks on an already parsed document, in order.
func Document(p string, doc *document.Document) []Finding {
	fm := doc.FrontMatter
	var out []Finding

	required := []struct {
		name  string
		value string
	}{
		{"title", fm.Title},
		{"link", fm.Link},
		{"type", fm.Type},
	}
	for _, f := range required {
		if err := validation.Validate(strings.TrimSpace(f.value), validation.Required); err != nil {
			out = append(out, errorf(p, "%s %v", f.name, err))
		}
	}
	if err := validation.Validate(fm.UUID, validation.By(notNilUUID)); err != nil {
		out = append(out, errorf(p, "uuid %v", err))
	}
	if err := validation.Validate(fm.Type, validation.In(knownTypes()...)); err != nil {
		out = append(out, errorf(p, "unknown type %q, expected one of: %s",
			fm.Type, strings.Join(models.KnownTypeNames(), ", ")))
	}

	stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if fm.Link != stem {
		out = append(out, warnf(p, "link %q does not match file name %q", fm.Link, stem))
	}
	if !fm.IsLinkConsistent() {
		out = append(out, warnf(p, "link %q does not match title slug %q", fm.Link, fm.SlugFromTitle()))
	}
	if dir := topDir(p); dir != fm.Type {
		out = append(out, errorf(p, "stored under %q but type is %q", dir, fm.Type))
	}

	seen := make(map[string]bool, len(fm.OntologicalRelations))
	for _, r := range fm.OntologicalRelations {
		if seen[r.RelatesTo] {
			out = append(out, warnf(p, "duplicate relation to %q", r.RelatesTo))
		}
		seen[r.RelatesTo] = true
	}
	return out
}

func notNilUUID(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return errors.New("must not be nil")
	}
	return nil
}

func knownTypes() []interface{} {
	names := models.KnownTypeNames()
	out := make([]interface{}, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func topDir(p string) string {
	dir, _, ok := strings.Cut(p, "/")
	if !ok {
		return ""
	}
	return dir
}

func errorf(p, format string, args ...any) Finding {
	return Finding{Severity: SeverityError, Path: p, Message: fmt.Sprintf(format, args...)}
}

func warnf(p, format string, args ...any) Finding {
	return Finding{Severity: SeverityWarning, Path: p, Message: fmt.Sprintf(format, args...)}
}
