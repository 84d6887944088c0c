package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Archive is the read side of the meeting archive.
type Archive interface {
	Search(ctx context.Context, query string, limit int) ([]models.ArchiveEntry, error)
	Recent(ctx context.Context, sourceID, limit int) ([]models.ArchiveEntry, error)
	GetEntry(ctx context.Context, id string) (*models.ArchiveEntry, error)
}

// Server exposes the meeting archive as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	archive   Archive
}

// NewServer creates a new MCP server with archive tools.
func NewServer(config Config, archive Archive) (*Server, error) {
	if archive == nil {
		return nil, fmt.Errorf("archive is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		archive:   archive,
	}

	searchTool := mcp.NewTool("search_meetings",
		mcp.WithDescription("Search archived committee meeting summaries by keyword. Returns meeting metadata and summary text."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string, e.g. a committee name or topic"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	recentTool := mcp.NewTool("recent_meetings",
		mcp.WithDescription("List the most recently archived meetings, newest first"),
		mcp.WithNumber("source_id",
			mcp.Description("Restrict to one monitored source (default: all)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(recentTool, s.recentHandler)

	getTool := mcp.NewTool("get_meeting",
		mcp.WithDescription("Get one archived meeting by archive ID, or by source_id and meeting_number"),
		mcp.WithString("id",
			mcp.Description("Archive entry ID"),
		),
		mcp.WithNumber("source_id",
			mcp.Description("Source ID (used with meeting_number when id is omitted)"),
		),
		mcp.WithNumber("meeting_number",
			mcp.Description("Meeting number on the source listing"),
		),
	)
	mcpServer.AddTool(getTool, s.getMeetingHandler)

	return s, nil
}

// searchHandler handles the search_meetings tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	entries, err := s.archive.Search(ctx, query, req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(entries)
}

// recentHandler handles the recent_meetings tool call.
func (s *Server) recentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.archive.Recent(ctx, req.GetInt("source_id", 0), req.GetInt("limit", 10))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	return jsonResult(entries)
}

// getMeetingHandler handles the get_meeting tool call.
func (s *Server) getMeetingHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		sourceID := req.GetInt("source_id", 0)
		number := req.GetInt("meeting_number", 0)
		if sourceID == 0 || number == 0 {
			return mcp.NewToolResultError("id or source_id with meeting_number is required"), nil
		}
		id = models.ArchiveID(sourceID, number)
	}

	entry, err := s.archive.GetEntry(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get meeting failed: %v", err)), nil
	}
	if entry == nil {
		return mcp.NewToolResultError(fmt.Sprintf("meeting not found: %s", id)), nil
	}
	return jsonResult(entry)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
