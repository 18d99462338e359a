package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeboarding/increco/internal/collab"
	"github.com/codeboarding/increco/internal/config"
	"github.com/codeboarding/increco/internal/filemanager"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/reexpand"
	"github.com/codeboarding/increco/internal/reposcan"
	"github.com/codeboarding/increco/internal/skippolicy"
	"github.com/codeboarding/increco/internal/staticanalysis"
	"github.com/codeboarding/increco/internal/telemetry"
	"github.com/codeboarding/increco/internal/unifiedstore"
	"github.com/codeboarding/increco/internal/updater"
	"github.com/codeboarding/increco/internal/vcs"
)

var (
	reconcileForceFull bool
	reconcileRepair    string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [repo-dir]",
	Short: "Run one incremental reconciliation cycle",
	Long: `reconcile detects what changed in the repository since the last run,
classifies the impact against the persisted analysis tree, and applies the
cheapest update that stays correct.

Exits with status 2 (and prints "full reanalysis required") when the change
has outgrown the current architecture and a full analysis must be run
instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir := "."
		if len(args) == 1 {
			repoDir = args[0]
		}

		outputDir, err := config.GetOutputBasePath()
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}

		store, err := unifiedstore.Open(outputDir)
		if err != nil {
			return fmt.Errorf("reconcile: open store: %w", err)
		}

		if reconcileRepair != "" {
			raw, err := os.ReadFile(reconcileRepair)
			if err != nil {
				return fmt.Errorf("reconcile: --repair: read %s: %w", reconcileRepair, err)
			}
			if err := store.WriteRaw(cmd.Context(), raw); err != nil {
				return fmt.Errorf("reconcile: --repair: write raw analysis: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %s from %s\n", outputDir, reconcileRepair)
			return nil
		}

		u, err := buildUpdater(repoDir, outputDir, store, nil)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		u.ForceFull = u.ForceFull || reconcileForceFull

		return runReconcile(cmd.Context(), u)
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileForceFull, "force-full", false, "Skip the incremental path and report that a full analysis is required")
	reconcileCmd.Flags().StringVar(&reconcileRepair, "repair", "", "Escape hatch: overwrite the persisted analysis.json with the given raw JSON file and exit")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(ctx context.Context, u *updater.Updater) error {
	if !u.CanRunIncremental(ctx) {
		fmt.Println("full reanalysis required: no usable incremental baseline")
		os.Exit(2)
	}

	snap, err := u.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	applied, err := u.Execute(ctx, snap)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if !applied {
		if telemetryClient != nil {
			telemetryClient.Track(telemetry.EventFullReanalysisRequired, telemetry.Properties{
				"action": string(snap.RootImpact.Action),
			})
		}
		fmt.Printf("full reanalysis required: action=%s\n", snap.RootImpact.Action)
		os.Exit(2)
	}

	if telemetryClient != nil {
		telemetryClient.Track(telemetry.EventReconcileApplied, telemetry.Properties{
			"action": string(snap.RootImpact.Action),
		})
	}

	fmt.Printf("reconciled: action=%s\n", snap.RootImpact.Action)
	return nil
}

// buildUpdater assembles an Updater for repoDir/outputDir from the current
// viper-resolved LLM config, sharing the given store so --repair and the
// reconcile run never race on the same analysis.json.
func buildUpdater(repoDir, outputDir string, store *unifiedstore.Store, onReexpandProgress func(reexpand.Result)) (*updater.Updater, error) {
	llmCfg, err := config.LoadLLMConfig()
	if err != nil {
		return nil, fmt.Errorf("load LLM config: %w", err)
	}

	// agent/classifier are left as nil interfaces (not a nil *EinoCollaborator
	// boxed in a non-nil interface) whenever no credentials are configured, so
	// every "agent == nil" guard downstream behaves correctly.
	var agent collab.DetailsAgent
	var classifier filemanager.ClassifierCollaborator
	if llmCfg.APIKey != "" || llmCfg.BaseURL != "" {
		e := collab.NewEinoCollaborator(llmCfg)
		agent = e
		classifier = e
	}

	policy := skippolicy.New()

	sa := loadStaticAnalysis(repoDir, outputDir)

	u := &updater.Updater{
		RepoDir:        repoDir,
		OutputDir:      outputDir,
		RepoName:       repoName(repoDir),
		Store:          store,
		Detector:       vcs.NewChangeDetector(repoDir, vcs.DefaultDetectorConfig()),
		Analyzer:       impact.NewAnalyzer(impact.DefaultThresholds(), policy),
		FileMgr:        filemanager.New(policy),
		Reexpand:       &reexpand.Driver{Store: store, Agent: agent, Progress: onReexpandProgress},
		Collab:         agent,
		Classifier:     classifier,
		StaticAnalysis: sa,
	}
	return u, nil
}

// loadStaticAnalysis returns the cached static-analysis results for the
// repository's current HEAD, or nil if none are cached: the cross-boundary
// check in the Impact Analyzer is simply skipped in that case, since
// running a fresh static analysis is a full-analysis-pipeline concern.
func loadStaticAnalysis(repoDir, outputDir string) *staticanalysis.Results {
	cache, err := staticanalysis.OpenCache(filepath.Join(outputDir, "staticanalysis.db"))
	if err != nil {
		return nil
	}
	defer cache.Close()

	hash, err := reposcan.Hash(context.Background(), repoDir)
	if err != nil {
		return nil
	}

	results, ok := cache.Get(context.Background(), hash)
	if !ok {
		return nil
	}
	return results
}

func repoName(repoDir string) string {
	if name := viper.GetString("project.name"); name != "" {
		return name
	}
	if repoDir == "." || repoDir == "" {
		cwd, err := os.Getwd()
		if err == nil {
			return cwd
		}
	}
	return repoDir
}
