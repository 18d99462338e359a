package main

import (
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/codeboarding/increco/internal/unifiedstore"
	"github.com/codeboarding/increco/internal/updater"
	increcomcp "github.com/codeboarding/increco/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing increco_reconcile over stdio",
	Long: `Start a Model Context Protocol server so AI coding assistants can trigger
an incremental reconciliation directly instead of shelling out to
"increco reconcile".

The server runs until the client disconnects.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		impl := &mcpsdk.Implementation{Name: "increco", Version: version}
		server := mcpsdk.NewServer(impl, &mcpsdk.ServerOptions{})

		if err := increcomcp.RegisterTools(server, buildUpdaterForMCP); err != nil {
			return fmt.Errorf("mcp: register tools: %w", err)
		}

		return server.Run(cmd.Context(), mcpsdk.NewStdioTransport())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// buildUpdaterForMCP adapts buildUpdater to increcomcp.UpdaterFactory: each
// call opens (or, via the unifiedstore registry, reuses) the Store for
// outputDir and wires a fresh Updater against it. MCP clients pass
// repoDir/outputDir explicitly per call rather than relying on the
// process's detected project context, since an MCP server commonly
// outlives any single project.
func buildUpdaterForMCP(repoDir, outputDir string) (*updater.Updater, error) {
	store, err := unifiedstore.Open(outputDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return buildUpdater(repoDir, outputDir, store, nil)
}
