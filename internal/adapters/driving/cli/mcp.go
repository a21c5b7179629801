package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mosaic/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can run
discovery and read stored items.

Tools: discover, get_item, list_items, similar_items.
Resources: mosaic://items and mosaic://items/{id}.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Examples:
  # Stdio mode (default)
  mosaic mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  mosaic mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "mosaic": {
        "command": "/path/to/mosaic",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ports := &mcp.Ports{
		Discovery: a.Discovery,
		Items:     a.Items,
		Defaults:  a.Settings.RunConfig(),
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		cmd.PrintErrf("MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
