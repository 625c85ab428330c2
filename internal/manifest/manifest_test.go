package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/kbclaude/internal/checksum"
	"github.com/starford/kbclaude/internal/storage"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*storage.FS, *Store) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, NewStore(fs, "manifest.json")
}

func write(t *testing.T, fs *storage.FS, path, content string) {
	t.Helper()
	if err := fs.Write(path, []byte(content)); err != nil {
		t.Fatalf("Write %s: %v", path, err)
	}
}

func TestLoad_MissingIsFresh(t *testing.T) {
	_, store := setup(t)
	m, err := store.Load(t0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Version != Version || len(m.Files) != 0 || !m.Timestamp.Equal(t0) {
		t.Errorf("fresh manifest = %+v", m)
	}
}

func TestLoad_CorruptFails(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "manifest.json", "{not json")
	if _, err := store.Load(t0); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_ToleratesCommentsAndTrailingCommas(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "manifest.json", `{
  // hand edited
  "version": "1.0.0",
  "timestamp": "2024-06-01T12:00:00Z",
  "files": {
    "qa/a.md": {"hash": "abc", "last_modified": "2024-06-01T11:00:00Z"},
  },
}`)
	m, err := store.Load(t0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Files["qa/a.md"].Hash != "abc" {
		t.Errorf("files = %+v", m.Files)
	}
}

func TestSynchronize_AddedAndUpdated(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "qa/a.md", "one")
	if _, err := Synchronize(fs, store, t0, nil); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	write(t, fs, "qa/a.md", "two")
	write(t, fs, "qa/b.md", "three")
	report, err := Synchronize(fs, store, t0.Add(time.Minute), nil)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if diff := cmp.Diff([]string{"qa/b.md"}, report.Added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"qa/a.md"}, report.Updated); diff != "" {
		t.Errorf("updated mismatch (-want +got):\n%s", diff)
	}
	if len(report.Deleted) != 0 {
		t.Errorf("deleted = %v, want none", report.Deleted)
	}

	m, err := store.Load(t0)
	if err != nil {
		t.Fatal(err)
	}
	if m.Files["qa/a.md"].Hash != checksum.Sum([]byte("two")) {
		t.Errorf("stored hash for a = %q", m.Files["qa/a.md"].Hash)
	}
}

func TestSynchronize_Deleted(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "qa/a.md", "same")
	write(t, fs, "patterns/c.md", "gone soon")
	write(t, fs, "metadata/b.json", "{}")
	if _, err := Synchronize(fs, store, t0, nil); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete("patterns/c.md"); err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete("metadata/b.json"); err != nil {
		t.Fatal(err)
	}

	report, err := Synchronize(fs, store, t0, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := &Report{
		Added:     []string{},
		Updated:   []string{},
		Deleted:   []string{"metadata/b.json", "patterns/c.md"},
		Timestamp: t0,
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronize_UnchangedOnlyTouchesTimestamp(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "qa/a.md", "content")
	write(t, fs, "cheatsheets/b.md", "more")
	if _, err := Synchronize(fs, store, t0, nil); err != nil {
		t.Fatal(err)
	}
	before, _ := fs.Read("manifest.json")

	later := t0.Add(time.Hour)
	report, err := Synchronize(fs, store, later, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Unchanged() {
		t.Fatalf("report = %+v, want unchanged", report)
	}
	after, _ := fs.Read("manifest.json")

	stamped := strings.Replace(string(before),
		`"timestamp": "2024-06-01T12:00:00Z"`, `"timestamp": "2024-06-01T13:00:00Z"`, 1)
	if stamped != string(after) {
		t.Errorf("manifest changed beyond timestamp:\nbefore:\n%s\nafter:\n%s", before, after)
	}
}

func TestSynchronize_IgnoresFilesOutsideTypeDirs(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "qa/a.md", "x")
	write(t, fs, "scratch/b.md", "ignored")
	write(t, fs, "manifest.md", "| table |")

	report, err := Synchronize(fs, store, t0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"qa/a.md"}, report.Added); diff != "" {
		t.Errorf("added mismatch (-want +got):\n%s", diff)
	}
}

func TestSynchronize_ScanFailureLeavesManifest(t *testing.T) {
	fs, store := setup(t)
	write(t, fs, "qa/a.md", "x")
	if _, err := Synchronize(fs, store, t0, nil); err != nil {
		t.Fatal(err)
	}
	before, _ := fs.Read("manifest.json")

	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	locked := filepath.Join(fs.Root(), "qa", "locked.md")
	if err := os.WriteFile(locked, []byte("secret"), 0o000); err != nil {
		t.Fatal(err)
	}
	if _, err := Synchronize(fs, store, t0.Add(time.Hour), nil); err == nil {
		t.Fatal("expected scan error")
	}
	after, _ := fs.Read("manifest.json")
	if string(before) != string(after) {
		t.Error("manifest must be untouched after a failed sync")
	}
}
