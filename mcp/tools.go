// Package mcp exposes the Incremental Updater to MCP-speaking agent
// clients (Claude Code, Cursor, and similar tools) as a single tool,
// increco_reconcile.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/updater"
)

// UpdaterFactory builds an Updater rooted at repoDir/outputDir, wired with
// the caller's collaborator and static-analysis configuration. Supplied by
// whatever starts the MCP server; this package only needs to call it, so it
// never has to know about LLM provider config or project detection.
type UpdaterFactory func(repoDir, outputDir string) (*updater.Updater, error)

// ReconcileParams is the increco_reconcile tool's input.
type ReconcileParams struct {
	RepoDir   string `json:"repoDir"`
	OutputDir string `json:"outputDir"`
	ForceFull bool   `json:"forceFull,omitempty"`
}

// ReconcileResponse is the increco_reconcile tool's output.
type ReconcileResponse struct {
	Action              string `json:"action"`
	NeedsFullReanalysis bool   `json:"needsFullReanalysis"`
}

// RegisterTools registers the increco_reconcile tool on server.
func RegisterTools(server *mcpsdk.Server, factory UpdaterFactory) error {
	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name: "increco_reconcile",
		Description: "Run one incremental reconciliation cycle against a repository's persisted " +
			"analysis tree: detect changes since the last run, classify their impact, and " +
			"patch/update/re-expand affected components in place. Reports " +
			"needsFullReanalysis=true when the architecture itself must be regenerated instead.",
	}, reconcileHandler(factory))
	return nil
}

func reconcileHandler(factory UpdaterFactory) mcpsdk.ToolHandlerFor[ReconcileParams, ReconcileResponse] {
	return func(ctx context.Context, ss *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[ReconcileParams]) (*mcpsdk.CallToolResultFor[ReconcileResponse], error) {
		args := params.Arguments
		if args.RepoDir == "" || args.OutputDir == "" {
			return nil, fmt.Errorf("increco_reconcile: repoDir and outputDir are required")
		}

		u, err := factory(args.RepoDir, args.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("increco_reconcile: build updater: %w", err)
		}
		u.ForceFull = u.ForceFull || args.ForceFull

		if !u.CanRunIncremental(ctx) {
			resp := ReconcileResponse{Action: string(impact.ActionFullReanalysis), NeedsFullReanalysis: true}
			return &mcpsdk.CallToolResultFor[ReconcileResponse]{
				Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: "incremental update not possible; a full analysis is required"}},
				StructuredContent: resp,
			}, nil
		}

		snap, err := u.Analyze(ctx)
		if err != nil {
			return nil, fmt.Errorf("increco_reconcile: analyze: %w", err)
		}

		applied, err := u.Execute(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("increco_reconcile: execute: %w", err)
		}

		resp := ReconcileResponse{
			Action:              string(snap.RootImpact.Action),
			NeedsFullReanalysis: !applied,
		}

		text := fmt.Sprintf("reconciled %s: action=%s", args.RepoDir, resp.Action)
		if resp.NeedsFullReanalysis {
			text = fmt.Sprintf("%s (full analysis required)", text)
		}

		return &mcpsdk.CallToolResultFor[ReconcileResponse]{
			Content:           []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
			StructuredContent: resp,
		}, nil
	}
}
