package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cogniprof/internal/adapters/driving/mcp"
	"github.com/custodia-labs/cogniprof/internal/core/domain"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes stored profiles, jurisprudential lines and similarity
queries as tools and resources. By default it communicates over stdio using
JSON-RPC and can be used with Claude Desktop and other MCP-compatible
assistants.

Use --port to serve the streamable HTTP transport instead. It binds to
--host (127.0.0.1 unless set) so the profile store is not exposed by default.

Examples:
  # Stdio mode (default, for Claude Desktop)
  cogniprof mcp serve

  # HTTP mode on the loopback interface
  cogniprof mcp serve --port 8080

  # HTTP mode on every interface
  cogniprof mcp serve --port 8080 --host 0.0.0.0

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "cogniprof": {
        "command": "/path/to/cogniprof",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("host", defaultMCPHost, "HTTP bind address (with --port)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

const defaultMCPHost = "127.0.0.1"

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	host, err := cmd.Flags().GetString("host")
	if err != nil {
		return fmt.Errorf("getting host flag: %w", err)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range: %w", port, domain.ErrInvalidInput)
	}

	ports := &mcp.Ports{
		Reader:     profileReader,
		Similarity: similarityService,
		Index:      indexService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		cmd.Printf("MCP server listening on http://%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
