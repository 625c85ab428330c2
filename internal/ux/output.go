// Package ux renders command results for people (ANSI text) and agents (JSON).
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starford/kbclaude/internal/checksum"
	"github.com/starford/kbclaude/internal/manifest"
	"github.com/starford/kbclaude/internal/validate"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the JSON envelope printed in JSON mode.
type Response struct {
	Status  string `json:"status"`
	File    string `json:"file,omitempty"`
	Hash    string `json:"hash,omitempty"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success builds a successful response.
func Success(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

// Failure builds an error response.
func Failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}

func (r Response) WithFile(file string) Response { r.File = file; return r }

// WithHash attaches the short form of a content hash.
func (r Response) WithHash(hash string) Response { r.Hash = checksum.Short(hash); return r }

func (r Response) WithData(data any) Response { r.Data = data; return r }

// Printer writes to Out and, for failures in text mode, Err.
type Printer struct {
	Out   io.Writer
	Err   io.Writer
	JSON  bool
	Color bool
}

// New returns a printer. Colors are on unless JSON output is selected.
func New(out, errw io.Writer, jsonMode, color bool) *Printer {
	return &Printer{Out: out, Err: errw, JSON: jsonMode, Color: color && !jsonMode}
}

func (p *Printer) c(code string) string {
	if !p.Color {
		return ""
	}
	return code
}

// Printf writes formatted text. It is a no-op in JSON mode.
func (p *Printer) Printf(format string, args ...any) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Out, format, args...)
}

// Emit prints resp as indented JSON, or as a check-marked message followed
// by the file and hash lines.
func (p *Printer) Emit(resp Response) error {
	if p.JSON {
		return p.WriteJSON(resp)
	}
	mark, color := "✓", Green
	if resp.Status == StatusError {
		mark, color = "✗", Red
	}
	fmt.Fprintf(p.Out, "%s%s%s %s%s%s\n", p.c(color+Bold), mark, p.c(Reset), p.c(Bold), resp.Message, p.c(Reset))
	if resp.File != "" {
		fmt.Fprintf(p.Out, "  File: %s\n", resp.File)
	}
	if resp.Hash != "" {
		fmt.Fprintf(p.Out, "  Hash: %s\n", resp.Hash)
	}
	return nil
}

// WriteJSON prints v as indented JSON regardless of mode.
func (p *Printer) WriteJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ux: encode json: %w", err)
	}
	_, err = fmt.Fprintf(p.Out, "%s\n", out)
	return err
}

// Error reports a failed command.
func (p *Printer) Error(err error) {
	if p.JSON {
		_ = p.WriteJSON(Failure(err.Error()))
		return
	}
	fmt.Fprintf(p.Err, "%serror:%s %v\n", p.c(Red+Bold), p.c(Reset), err)
}

// Warn prints a highlighted note to Err in text mode.
func (p *Printer) Warn(format string, args ...any) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Err, "%s%s%s\n", p.c(Yellow), fmt.Sprintf(format, args...), p.c(Reset))
}

// Sync prints the outcome of a manifest reconciliation.
func (p *Printer) Sync(r *manifest.Report, verbose bool) error {
	if p.JSON {
		return p.WriteJSON(r)
	}
	fmt.Fprintf(p.Out, "%sSynchronizing manifest...%s\n\n", p.c(Bold), p.c(Reset))
	groups := []struct {
		label, color, sign string
		paths              []string
	}{
		{"Added:", Green, "+", r.Added},
		{"Updated:", Yellow, "~", r.Updated},
		{"Deleted:", Red, "-", r.Deleted},
	}
	for _, g := range groups {
		if len(g.paths) == 0 {
			continue
		}
		fmt.Fprintf(p.Out, "%s%s%s %d files\n", p.c(g.color+Bold), g.label, p.c(Reset), len(g.paths))
		if verbose {
			for _, path := range g.paths {
				fmt.Fprintf(p.Out, "  %s %s\n", g.sign, path)
			}
		}
	}
	if r.Unchanged() {
		fmt.Fprintf(p.Out, "%sEverything is up to date ✓%s\n", p.c(Green), p.c(Reset))
	}
	fmt.Fprintf(p.Out, "\nTimestamp: %s\n", r.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	return nil
}

// Validation prints every finding and a summary line.
func (p *Printer) Validation(r *validate.Report, strict bool) error {
	if p.JSON {
		status := "pass"
		if r.Failed(strict) {
			status = "fail"
		}
		return p.WriteJSON(struct {
			Status string `json:"status"`
			*validate.Report
		}{status, r})
	}
	if len(r.Findings) == 0 {
		fmt.Fprintf(p.Out, "%s✓%s no issues found (%d files checked)\n", p.c(Green+Bold), p.c(Reset), r.Checked)
		return nil
	}
	for _, f := range r.Findings {
		color := Yellow
		if f.Severity == validate.SeverityError {
			color = Red
		}
		fmt.Fprintf(p.Out, "%s%s%s %s: %s\n", p.c(color+Bold), f.Severity, p.c(Reset), f.Path, f.Message)
	}
	fmt.Fprintf(p.Out, "\n%d files checked, %d errors, %d warnings\n", r.Checked, r.Errors(), r.Warnings())
	return nil
}

// Item is one row of a listing.
type Item struct {
	Title   string
	Type    string
	Path    string
	Tags    []string
	Updated time.Time
	Snippet string
}

// Items prints a bulleted listing followed by a total.
func (p *Printer) Items(heading string, items []Item, data any) error {
	if p.JSON {
		return p.WriteJSON(data)
	}
	if len(items) == 0 {
		fmt.Fprintf(p.Out, "%sNo entries found%s\n", p.c(Yellow), p.c(Reset))
		return nil
	}
	fmt.Fprintf(p.Out, "%s%s%s\n\n", p.c(Bold), heading, p.c(Reset))
	for _, it := range items {
		fmt.Fprintf(p.Out, "%s•%s %s%s%s\n", p.c(Cyan+Bold), p.c(Reset), p.c(Bold), it.Title, p.c(Reset))
		fmt.Fprintf(p.Out, "  Type: %s\n", it.Type)
		fmt.Fprintf(p.Out, "  File: %s\n", it.Path)
		if len(it.Tags) > 0 {
			fmt.Fprintf(p.Out, "  Tags: %s\n", strings.Join(it.Tags, ", "))
		}
		if !it.Updated.IsZero() {
			fmt.Fprintf(p.Out, "  %sUpdated: %s%s\n", p.c(Dim), it.Updated.UTC().Format(time.DateOnly), p.c(Reset))
		}
		if s := strings.TrimSpace(it.Snippet); s != "" {
			fmt.Fprintf(p.Out, "  %s\n", firstLine(s, 80))
		}
		fmt.Fprintln(p.Out)
	}
	fmt.Fprintf(p.Out, "Total: %d entries\n", len(items))
	return nil
}

func firstLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if utf8.RuneCountInString(s) > n {
		s = string([]rune(s)[:n-3]) + "..."
	}
	return s
}
