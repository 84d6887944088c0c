package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kl-higa/public-mtg-monitor2/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server over the meeting archive.

The server communicates via stdio and provides three tools:
  - search_meetings: Search archived meetings by keyword
  - recent_meetings: List the newest archived meetings
  - get_meeting: Get one archived meeting by ID or committee and number

Example:
  mtg-monitor serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	archive, err := newArchive(cfg)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, archive)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
