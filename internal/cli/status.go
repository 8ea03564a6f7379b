package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesfaldet/haven/internal/status"
	"github.com/tesfaldet/haven/pkg/model"
)

func newStatusCmd() *cobra.Command {
	var stateFilter []string
	var whereFilter string
	var local bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where every experiment is right now",
		Long: "Poll the orchestrator for live experiments, then print one row per\n" +
			"experiment in list order plus per-state counts. --local skips the poll\n" +
			"and reports recorded state only.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			filter := status.Filter{}
			for _, raw := range stateFilter {
				st, perr := model.ParseState(raw)
				if perr != nil {
					return perr
				}
				filter.States = append(filter.States, st)
			}
			if whereFilter != "" {
				if jerr := json.Unmarshal([]byte(whereFilter), &filter.SpecSubset); jerr != nil {
					return fmt.Errorf("parse --where: %w", jerr)
				}
			}

			if !local {
				if _, rerr := ws.launcher.Refresh(cmd.Context(), ws.ids); rerr != nil {
					return fmt.Errorf("refresh: %w", rerr)
				}
			}

			agg := status.New(ws.store, logger)
			rows, err := agg.Snapshot(cmd.Context(), ws.ids, filter)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			for _, row := range rows {
				fmt.Printf("%-34s %-10s", row.ID, row.State)
				if row.Message != "" {
					fmt.Printf("  %s", row.Message)
				}
				fmt.Println()
			}
			printSummary(status.Summarize(rows))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&stateFilter, "state", nil, "Only show experiments in these states")
	cmd.Flags().StringVar(&whereFilter, "where", "", "Only show experiments whose spec contains this JSON subset")
	cmd.Flags().BoolVar(&local, "local", false, "Report recorded state without polling the orchestrator")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit rows as JSON")

	return cmd
}

func printSummary(sum status.Summary) {
	fmt.Print("states:")
	for _, st := range model.AllStates {
		if n := sum[st]; n > 0 {
			fmt.Printf(" %d %s", n, st)
		}
	}
	fmt.Println()
}
