package cli

import (
	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [exp_id...]",
		Short: "Return experiments to NEW without relaunching",
		Long: "Kill any live job best-effort, clear the job handle, and set the record\n" +
			"back to NEW. The next launch submits these experiments from scratch.\n" +
			"With no ids, resets every experiment in the list.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace()
			if err != nil {
				return err
			}

			ids := args
			if len(ids) == 0 {
				ids = ws.ids
			}
			reportOutcomes(ws.launcher.Reset(cmd.Context(), ids))
			return nil
		},
	}
}
