package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wtokarzewski/janus-agent/internal/bus"
	"github.com/wtokarzewski/janus-agent/internal/mcp"
	"github.com/wtokarzewski/janus-agent/internal/tools"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve tools and skills as an editor-facing JSON-RPC server over stdio",
	RunE:  runMCPServer,
}

// denyAllConfirmer never approves a gated call; the editor-facing server
// has no human attached to a confirmation prompt.
type denyAllConfirmer struct{}

func (denyAllConfirmer) Confirm(ctx context.Context, toolName string, args map[string]any) bool {
	return false
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(bus.NewMessageBus(), denyAllConfirmer{})
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	server := mcp.NewServer(rt.tools, rt.skills, tools.CallContext{WorkspaceDir: rt.cfg.Workspace.Dir})
	return server.Serve(context.Background(), os.Stdin, os.Stdout)
}
