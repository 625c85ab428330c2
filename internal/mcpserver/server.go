// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes knowledge base tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/kbclaude/internal/docservice"
	"github.com/starford/kbclaude/internal/index"
)

// FormatURI is the resource URI of the document format contract.
const FormatURI = "kb://document-format"

// Server wraps the MCP server with knowledge base tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"kb-claude",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Search documents by keywords in title, body and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Space separated search terms; every term must match")),
		mcp.WithString("tags", mcp.Description("Optional comma separated tags; every tag must be present")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full Markdown content of a document by its link slug."),
		mcp.WithString("link", mcp.Required(), mcp.Description("Link slug of the document (e.g. why-sync-is-slow)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents or the documents of one type."),
		mcp.WithString("type", mcp.Description("Optional document type (e.g. qa, patterns)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document. Read the contract first via "+
			"the get_document_contract tool or the "+FormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human readable title; the link slug is derived from it")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Document type directory (e.g. qa, debug_history)")),
		mcp.WithString("body", mcp.Description("Markdown body")),
		mcp.WithString("tags", mcp.Description("Optional comma separated tags")),
		mcp.WithString("relates_to", mcp.Description("Optional comma separated link slugs")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("link_documents",
		mcp.WithDescription("Relate two documents to each other in both directions."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Link slug of the source document")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Link slug of the target document")),
		mcp.WithBoolean("force", mcp.Description("Rewrite both documents even when the relations exist")),
	), s.linkDocuments)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all documents that relate to the specified document."),
		mcp.WithString("link", mcp.Required(), mcp.Description("Link slug of the document to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("sync_manifest",
		mcp.WithDescription("Reconcile the manifest with the files on disk and report added, updated and deleted paths."),
	), s.syncManifest)

	s.mcp.AddTool(mcp.NewTool("validate_kb",
		mcp.WithDescription("Validate every document and report findings."),
		mcp.WithBoolean("strict", mcp.Description("Treat warnings as failures")),
	), s.validateKB)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the canonical document format contract. "+
			"Call this before creating documents to ensure correct structure."),
	), s.getDocumentContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Document Format Contract",
			mcp.WithResourceDescription("Canonical front matter format that all documents must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// Serve runs the MCP server over the given streams until ctx is done or
// the input closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, index.Query{
		Terms: strings.Fields(query),
		Tags:  splitList(req.GetString("tags", "")),
		Limit: req.GetInt("limit", index.DefaultSearchLimit),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	link, err := req.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetDocument(ctx, link)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(d.Content), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListDocuments(ctx, req.GetString("type", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.CreateDocument(ctx, docservice.NewDocument{
		Title:     title,
		Type:      docType,
		Body:      req.GetString("body", ""),
		Tags:      splitList(req.GetString("tags", "")),
		RelatesTo: splitList(req.GetString("relates_to", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", d.Path)), nil
}

func (s *Server) linkDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := s.svc.Link(ctx, source, target, req.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !out.Changed {
		return mcp.NewToolResultText(fmt.Sprintf("relations already existed between %s and %s; no changes made", source, target)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked %s <-> %s", out.Source.Path, out.Target.Path)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	link, err := req.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, link)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	paths := make([]string, len(bl))
	for i, b := range bl {
		paths[i] = b.Path
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) syncManifest(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report), nil
}

func (s *Server) validateKB(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Validate(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := jsonResult(report)
	res.IsError = report.Failed(req.GetBool("strict", false))
	return res, nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
