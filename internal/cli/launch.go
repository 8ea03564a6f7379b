package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tesfaldet/haven/internal/launcher"
)

func newLaunchCmd() *cobra.Command {
	var reset bool
	var skipIfDone bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Submit the experiment list to the orchestrator",
		Long: "Reconcile the experiment list against the record store: new experiments\n" +
			"are submitted, live ones are left running, terminal ones are left alone\n" +
			"unless --reset forces a rerun. Safe to re-run at any time.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			outcomes, err := ws.launcher.Launch(cmd.Context(), ws.specs, launcher.Options{
				Reset:      reset,
				SkipIfDone: skipIfDone,
			})
			if err != nil {
				return fmt.Errorf("launch: %w", err)
			}

			reportOutcomes(outcomes)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Kill live jobs, wipe state, and relaunch from scratch")
	cmd.Flags().BoolVar(&skipIfDone, "skip-if-done", false, "Leave succeeded experiments alone, even with --reset")

	return cmd
}
