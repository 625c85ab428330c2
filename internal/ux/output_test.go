package ux

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/kbclaude/internal/manifest"
	"github.com/starford/kbclaude/internal/validate"
)

func plain() (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errw bytes.Buffer
	return New(&out, &errw, false, false), &out, &errw
}

func jsonPrinter() (*Printer, *bytes.Buffer) {
	var out bytes.Buffer
	return New(&out, &out, true, true), &out
}

func TestEmit_Text(t *testing.T) {
	p, out, _ := plain()
	resp := Success("qa entry created").WithFile("qa/x.md").WithHash("0123456789abcdef")
	if err := p.Emit(resp); err != nil {
		t.Fatal(err)
	}
	want := "✓ qa entry created\n  File: qa/x.md\n  Hash: 01234567\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestEmit_JSON(t *testing.T) {
	p, out := jsonPrinter()
	if err := p.Emit(Success("done").WithFile("qa/x.md")); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", out.String(), err)
	}
	want := map[string]any{"status": "success", "file": "qa/x.md", "message": "done"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_JSONDisablesColor(t *testing.T) {
	p, _ := jsonPrinter()
	if p.Color {
		t.Error("color should be disabled in JSON mode")
	}
}

func TestError(t *testing.T) {
	p, out, errw := plain()
	p.Error(errors.New("boom"))
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
	if errw.String() != "error: boom\n" {
		t.Errorf("stderr = %q", errw.String())
	}

	jp, jout := jsonPrinter()
	jp.Error(errors.New("boom"))
	if !strings.Contains(jout.String(), `"status": "error"`) {
		t.Errorf("json error = %q", jout.String())
	}
}

func TestSync(t *testing.T) {
	p, out, _ := plain()
	r := &manifest.Report{
		Added:     []string{"qa/a.md"},
		Deleted:   []string{"plans/b.md"},
		Timestamp: time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := p.Sync(r, true); err != nil {
		t.Fatal(err)
	}
	want := "Synchronizing manifest...\n\n" +
		"Added: 1 files\n  + qa/a.md\n" +
		"Deleted: 1 files\n  - plans/b.md\n" +
		"\nTimestamp: 2024-07-01 08:00:00 UTC\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("sync output mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_UpToDate(t *testing.T) {
	p, out, _ := plain()
	if err := p.Sync(&manifest.Report{}, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Everything is up to date") {
		t.Errorf("output = %q", out.String())
	}
}

func TestValidation(t *testing.T) {
	p, out, _ := plain()
	if err := p.Validation(&validate.Report{Checked: 2}, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "no issues found") {
		t.Errorf("clean output = %q", out.String())
	}

	out.Reset()
	r := &validate.Report{Checked: 1, Findings: []validate.Finding{
		{Severity: validate.SeverityWarning, Path: "qa/x.md", Message: "link is not a slug"},
	}}
	if err := p.Validation(r, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "warning qa/x.md: link is not a slug") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(out.String(), "1 files checked, 0 errors, 1 warnings") {
		t.Errorf("summary missing from %q", out.String())
	}
}

func TestValidation_JSONStatus(t *testing.T) {
	p, out := jsonPrinter()
	r := &validate.Report{Checked: 1, Findings: []validate.Finding{
		{Severity: validate.SeverityWarning, Path: "qa/x.md", Message: "w"},
	}}
	if err := p.Validation(r, true); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Status  string `json:"status"`
		Checked int    `json:"checked"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "fail" || got.Checked != 1 {
		t.Errorf("got %+v, want status fail and checked 1", got)
	}
}

func TestItems(t *testing.T) {
	p, out, _ := plain()
	items := []Item{{Title: "Alpha", Type: "qa", Path: "qa/alpha.md", Tags: []string{"go"}, Snippet: "first\nsecond"}}
	if err := p.Items("Knowledge Base Entries", items, nil); err != nil {
		t.Fatal(err)
	}
	want := "Knowledge Base Entries\n\n• Alpha\n  Type: qa\n  File: qa/alpha.md\n  Tags: go\n  first\n\nTotal: 1 entries\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("items output mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	if err := p.Items("x", nil, nil); err != nil {
		t.Fatal(err)
	}
	if out.String() != "No entries found\n" {
		t.Errorf("empty output = %q", out.String())
	}
}

func TestFirstLine_MultiByte(t *testing.T) {
	got := firstLine(strings.Repeat("é", 100)+"\nrest", 80)
	if !utf8.ValidString(got) {
		t.Fatalf("firstLine produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 77) + "..."; got != want {
		t.Errorf("firstLine = %q, want %q", got, want)
	}
	if got := firstLine("short", 80); got != "short" {
		t.Errorf("firstLine = %q, want %q", got, "short")
	}
}

func TestPrintf_SilentInJSON(t *testing.T) {
	p, out := jsonPrinter()
	p.Printf("hello %s\n", "world")
	if out.Len() != 0 {
		t.Errorf("output = %q, want empty", out.String())
	}
}
