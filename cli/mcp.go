// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for desktop assistant integration
package cli

import (
	"context"

	"github.com/harperreed/fitout/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPCommand starts the MCP server on stdio. Logs must not go to stdout,
// which carries the protocol.
func MCPCommand(ctx context.Context, env *Env) error {
	env.logger().Info("starting MCP server", "version", env.Version)

	server := handlers.NewServer(env.Store, env.DB, env.Reports, env.Version)
	return server.Run(ctx, &mcp.StdioTransport{})
}
