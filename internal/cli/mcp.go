package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/usagegraph/internal/mcp"
)

var mcpNoWatch bool

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for usage graph queries",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
query the usage graph.

The MCP server:
- Loads the graph written by 'usagegraph extract'
- Provides usage_graph, symbol_search and usage_report tools
- Reloads when the graph file is rewritten (for example by 'extract --watch')
- Communicates via stdio (standard MCP transport)

Example:
  usagegraph mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpNoWatch, "no-watch", false, "Do not reload when the graph file changes")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := loadProject(nil)
	if err != nil {
		return err
	}

	// stdout carries the protocol, everything else goes to stderr
	fmt.Fprintf(os.Stderr, "usagegraph MCP server %s\n", Version)
	fmt.Fprintf(os.Stderr, "Project: %s\n\n", p.Root)

	server, err := mcp.NewServer(ctx, &mcp.ServerConfig{
		RootDir:  p.Root,
		GraphDir: p.Config.OutputDir(p.Root),
		Format:   p.Config.GraphFormat(),
		Version:  Version,
		Watch:    !mcpNoWatch,
		Logger:   p.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	return server.Serve(ctx)
}
