package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/codeboarding/increco/internal/config"
	"github.com/codeboarding/increco/internal/impact"
	"github.com/codeboarding/increco/internal/reexpand"
	"github.com/codeboarding/increco/internal/ui"
	"github.com/codeboarding/increco/internal/unifiedstore"
)

var statusCmd = &cobra.Command{
	Use:   "status [repo-dir]",
	Short: "Run reconciliation with a live Re-expansion Driver progress view",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoDir := "."
		if len(args) == 1 {
			repoDir = args[0]
		}
		ctx := cmd.Context()

		outputDir, err := config.GetOutputBasePath()
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		store, err := unifiedstore.Open(outputDir)
		if err != nil {
			return fmt.Errorf("status: open store: %w", err)
		}

		var program *tea.Program
		onProgress := func(r reexpand.Result) {
			if program != nil {
				program.Send(ui.ComponentResultMsg{Name: r.ComponentID, Err: r.Err})
			}
		}

		u, err := buildUpdater(repoDir, outputDir, store, onProgress)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		if !u.CanRunIncremental(ctx) {
			fmt.Println("full reanalysis required: no usable incremental baseline")
			return nil
		}

		snap, err := u.Analyze(ctx)
		if err != nil {
			return fmt.Errorf("status: analyze: %w", err)
		}

		if snap.RootImpact.Action != impact.ActionUpdateComponents || len(snap.RootImpact.ComponentsNeedingReexpansion) == 0 {
			applied, err := u.Execute(ctx, snap)
			if err != nil {
				return fmt.Errorf("status: execute: %w", err)
			}
			if !applied {
				fmt.Printf("full reanalysis required: action=%s\n", snap.RootImpact.Action)
				return nil
			}
			fmt.Printf("reconciled: action=%s (nothing to re-expand)\n", snap.RootImpact.Action)
			return nil
		}

		names := make([]string, 0, len(snap.RootImpact.ComponentsNeedingReexpansion))
		for name := range snap.RootImpact.ComponentsNeedingReexpansion {
			names = append(names, name)
		}

		program = tea.NewProgram(ui.NewReconcileModel(names))

		execErr := make(chan error, 1)
		go func() {
			_, err := u.Execute(ctx, snap)
			execErr <- err
			program.Send(ui.DoneMsg{})
		}()

		if _, err := program.Run(); err != nil {
			return fmt.Errorf("status: tui: %w", err)
		}
		if err := <-execErr; err != nil {
			return fmt.Errorf("status: execute: %w", err)
		}

		fmt.Printf("reconciled: action=%s\n", snap.RootImpact.Action)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
