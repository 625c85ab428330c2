package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/kbclaude/internal/docservice"
	"github.com/starford/kbclaude/internal/index"
	"github.com/starford/kbclaude/internal/manifest"
	"github.com/starford/kbclaude/internal/storage"
	"github.com/starford/kbclaude/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()

	root, store := testutil.TestWorkspace(t)
	db := testutil.TestDB(t, root)

	svc := docservice.New(root, store,
		docservice.WithIndex(db),
		docservice.WithClock(testutil.Clock),
	)
	return New(svc, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_documents":
		result, err = srv.searchDocuments(ctx, req)
	case "read_document":
		result, err = srv.readDocument(ctx, req)
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "create_document":
		result, err = srv.createDocument(ctx, req)
	case "link_documents":
		result, err = srv.linkDocuments(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "sync_manifest":
		result, err = srv.syncManifest(ctx, req)
	case "validate_kb":
		result, err = srv.validateKB(ctx, req)
	case "get_document_contract":
		result, err = srv.getDocumentContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func create(t *testing.T, srv *Server, title, typ, body string) {
	t.Helper()
	r := callTool(t, srv, "create_document", map[string]interface{}{
		"title": title,
		"type":  typ,
		"body":  body,
		"tags":  "go, cli",
	})
	if r.IsError {
		t.Fatalf("create_document(%q): %s", title, resultText(r))
	}
}

func TestCreateAndReadDocument(t *testing.T) {
	srv, store := testServer(t)
	create(t, srv, "Manifest Format", "code_index", "Describes manifest.json.")

	if _, err := store.Read("code_index/manifest-format.md"); err != nil {
		t.Fatalf("document not written: %v", err)
	}

	r := callTool(t, srv, "read_document", map[string]interface{}{"link": "manifest-format"})
	if r.IsError {
		t.Fatalf("read_document: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.HasPrefix(text, "---\ntitle: Manifest Format\n") {
		t.Errorf("content = %q", text)
	}
	if !strings.Contains(text, "Describes manifest.json.") {
		t.Errorf("body missing from %q", text)
	}
}

func TestCreateDocument_Invalid(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_document", map[string]interface{}{"title": "X", "type": "recipes"})
	if !r.IsError {
		t.Error("expected error for unknown type")
	}
	r = callTool(t, srv, "create_document", map[string]interface{}{"type": "qa"})
	if !r.IsError {
		t.Error("expected error for missing title")
	}

	create(t, srv, "Twice", "qa", "")
	r = callTool(t, srv, "create_document", map[string]interface{}{"title": "Twice", "type": "qa"})
	if !r.IsError {
		t.Error("expected error for duplicate document")
	}
}

func TestReadDocument_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_document", map[string]interface{}{"link": "missing"})
	if !r.IsError {
		t.Error("expected error result")
	}
}

func TestSearchDocuments(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "Sync Is Slow", "debug_history", "The watcher rescans everything.")
	create(t, srv, "Cheat Sheet", "cheatsheets", "Nothing relevant.")

	r := callTool(t, srv, "search_documents", map[string]interface{}{"query": "watcher"})
	if r.IsError {
		t.Fatalf("search_documents: %s", resultText(r))
	}
	var results []index.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Link != "sync-is-slow" {
		t.Fatalf("results = %+v, want only sync-is-slow", results)
	}

	r = callTool(t, srv, "search_documents", map[string]interface{}{"query": "watcher", "tags": "missing"})
	results = nil
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("tag filtered results = %+v, want none", results)
	}
}

func TestListDocuments(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "Beta", "qa", "")
	create(t, srv, "Alpha", "qa", "")
	create(t, srv, "Gamma", "plans", "")

	r := callTool(t, srv, "list_documents", map[string]interface{}{"type": "qa"})
	if r.IsError {
		t.Fatalf("list_documents: %s", resultText(r))
	}
	var items []docservice.DocumentItem
	if err := json.Unmarshal([]byte(resultText(r)), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Title != "Alpha" || items[1].Title != "Beta" {
		t.Errorf("items = %+v", items)
	}

	r = callTool(t, srv, "list_documents", map[string]interface{}{"type": "recipes"})
	if !r.IsError {
		t.Error("expected error for unknown type")
	}
}

func TestLinkAndBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "Alpha", "qa", "")
	create(t, srv, "Beta", "plans", "")

	r := callTool(t, srv, "link_documents", map[string]interface{}{"source": "alpha", "target": "beta"})
	if r.IsError {
		t.Fatalf("link_documents: %s", resultText(r))
	}
	if got := resultText(r); got != "linked qa/alpha.md <-> plans/beta.md" {
		t.Errorf("link text = %q", got)
	}

	r = callTool(t, srv, "link_documents", map[string]interface{}{"source": "alpha", "target": "beta"})
	if !strings.Contains(resultText(r), "no changes made") {
		t.Errorf("second link text = %q", resultText(r))
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"link": "beta"})
	if got := resultText(r); got != "qa/alpha.md" {
		t.Errorf("backlinks = %q, want %q", got, "qa/alpha.md")
	}

	r = callTool(t, srv, "link_documents", map[string]interface{}{"source": "alpha", "target": "alpha"})
	if !r.IsError {
		t.Error("expected error for identity link")
	}
}

func TestReadDocument_ExistingFile(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteDocument(t, store, "Hand Written", "patterns", "Written outside the server.", "alpha")

	r := callTool(t, srv, "read_document", map[string]interface{}{"link": "hand-written"})
	if r.IsError {
		t.Fatalf("read_document: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "- relates_to: alpha") {
		t.Errorf("content = %q", resultText(r))
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"link": "alpha"})
	if got := resultText(r); got != "patterns/hand-written.md" {
		t.Errorf("backlinks = %q", got)
	}
}

func TestGetBacklinks_None(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "Lonely", "qa", "")
	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"link": "lonely"})
	if got := resultText(r); got != "no backlinks found" {
		t.Errorf("backlinks = %q", got)
	}
}

func TestSyncManifest(t *testing.T) {
	srv, _ := testServer(t)
	create(t, srv, "Alpha", "qa", "")

	r := callTool(t, srv, "sync_manifest", nil)
	if r.IsError {
		t.Fatalf("sync_manifest: %s", resultText(r))
	}
	var report manifest.Report
	if err := json.Unmarshal([]byte(resultText(r)), &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Added) != 1 || report.Added[0] != "qa/alpha.md" {
		t.Errorf("added = %v", report.Added)
	}
}

func TestValidateKB(t *testing.T) {
	srv, store := testServer(t)
	create(t, srv, "Alpha", "qa", "")

	r := callTool(t, srv, "validate_kb", nil)
	if r.IsError {
		t.Fatalf("validate_kb on clean kb: %s", resultText(r))
	}

	if err := store.Write("qa/broken.md", []byte("no front matter")); err != nil {
		t.Fatal(err)
	}
	r = callTool(t, srv, "validate_kb", nil)
	if !r.IsError {
		t.Error("expected failing result for broken document")
	}
	if !strings.Contains(resultText(r), "qa/broken.md") {
		t.Errorf("report = %s", resultText(r))
	}
}

func TestGetDocumentContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_document_contract", nil)
	text := resultText(r)
	for _, want := range []string{"relates_to", "debug_history", "uuid"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract missing %q", want)
		}
	}
}
