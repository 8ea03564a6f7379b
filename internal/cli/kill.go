package cli

import (
	"github.com/spf13/cobra"
)

func newKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill [exp_id...]",
		Short: "Cancel running experiments",
		Long: "Request cancellation for the given experiments, or for every live\n" +
			"experiment in the list when no ids are given. Records are marked KILLED\n" +
			"immediately; the next status poll reconciles with the orchestrator.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				ids = ws.ids
			}
			reportOutcomes(ws.launcher.Kill(cmd.Context(), ids))
			return nil
		},
	}
}
