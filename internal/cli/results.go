package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesfaldet/haven/internal/results"
)

func newResultsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Aggregate persisted metrics across the experiment list",
		Long: "Read each experiment's score file from its save directory and print one\n" +
			"row per experiment. Experiments without a readable score file are marked\n" +
			"missing; the aggregation never fails because one run is incomplete.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			reader := results.New(ws.store, logger)
			rows, err := reader.Read(cmd.Context(), ws.ids)
			if err != nil {
				return fmt.Errorf("read results: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			missing := 0
			for _, row := range rows {
				if row.Missing {
					missing++
					fmt.Printf("%-34s %-10s  [%s]\n", row.ID, row.State, row.Note)
					continue
				}
				fmt.Printf("%-34s %-10s  %d metric entries", row.ID, row.State, len(row.Metrics))
				if len(row.Metrics) > 0 {
					last, _ := json.Marshal(row.Metrics[len(row.Metrics)-1])
					fmt.Printf("  last=%s", last)
				}
				fmt.Println()
			}
			fmt.Printf("%d experiments, %d with results, %d missing\n", len(rows), len(rows)-missing, missing)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit rows as JSON")

	return cmd
}
