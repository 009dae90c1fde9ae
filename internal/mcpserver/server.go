// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Resolate tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/resolate/internal/apperr"
	"github.com/starford/resolate/internal/doctype"
)

const syntaxURI = "resolate://placeholder-syntax"

// Server wraps the MCP server with Resolate tools.
type Server struct {
	mcp *server.MCPServer
	svc *doctype.Service
}

// New creates a new MCP server with all Resolate tools registered.
func New(svc *doctype.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Resolate",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("extract_template",
		mcp.WithDescription("Extract the field schema of a DOCX or ODT template without storing it. "+
			"Returns the schema and its legacy field list."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Template path, absolute or relative to the templates directory")),
	), s.extractTemplate)

	s.mcp.AddTool(mcp.NewTool("list_doc_types",
		mcp.WithDescription("List document types bound to a template."),
	), s.listDocTypes)

	s.mcp.AddTool(mcp.NewTool("get_schema",
		mcp.WithDescription("Read the stored schema of a document type."),
		mcp.WithNumber("term_id", mcp.Required(), mcp.Description("Document type id")),
	), s.getSchema)

	s.mcp.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Read the field and repeater counts of a document type."),
		mcp.WithNumber("term_id", mcp.Required(), mcp.Description("Document type id")),
	), s.getSummary)

	s.mcp.AddTool(mcp.NewTool("get_legacy_fields",
		mcp.WithDescription("Read the stored schema of a document type in the legacy field list format."),
		mcp.WithNumber("term_id", mcp.Required(), mcp.Description("Document type id")),
	), s.getLegacyFields)

	s.mcp.AddTool(mcp.NewTool("refresh_doc_type",
		mcp.WithDescription("Re-extract the template of a document type. "+
			"Skipped when the template is unchanged unless force is set."),
		mcp.WithNumber("term_id", mcp.Required(), mcp.Description("Document type id")),
		mcp.WithBoolean("force", mcp.Description("Extract even if the template hash is unchanged")),
	), s.refreshDocType)

	s.mcp.AddTool(mcp.NewTool("get_placeholder_syntax",
		mcp.WithDescription("Returns the placeholder syntax used inside templates. "+
			"Call this before writing or reviewing a template."),
	), s.getPlaceholderSyntax)

	s.mcp.AddResource(
		mcp.NewResource(syntaxURI, "Placeholder Syntax",
			mcp.WithResourceDescription("How fields and repeaters are declared inside DOCX and ODT templates."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSyntaxResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) extractTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preview, err := s.svc.Preview(ctx, path)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(preview)
}

func (s *Server) listDocTypes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.svc.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no document types bound"), nil
	}
	return jsonResult(list)
}

func (s *Server) getSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := termID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := s.svc.Schema(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(schema)
}

func (s *Server) getSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := termID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := s.svc.Summary(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(summary)
}

func (s *Server) getLegacyFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := termID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, err := s.svc.LegacyFields(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fields)
}

func (s *Server) refreshDocType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := termID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Refresh(ctx, id, req.GetBool("force", false))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) getPlaceholderSyntax(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PlaceholderSyntax), nil
}

func (s *Server) readSyntaxResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      syntaxURI,
			MIMEType: "text/markdown",
			Text:     PlaceholderSyntax,
		},
	}, nil
}

func termID(req mcp.CallToolRequest) (int64, error) {
	v, err := req.RequireFloat("term_id")
	if err != nil {
		return 0, err
	}
	if v < 1 || v != float64(int64(v)) {
		return 0, fmt.Errorf("term_id must be a positive integer")
	}
	return int64(v), nil
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
