// Package cli implements the haven command line interface. Commands operate
// directly on the record store and the orchestrator API; there is no daemon
// in the write path.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tesfaldet/haven/internal/logging"
)

var (
	flagConfig    string
	flagExpList   string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the haven CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "haven",
		Short: "haven launches and tracks hyperparameter experiments",
		Long: "haven turns a list of hyperparameter configurations into tracked jobs\n" +
			"on a remote orchestrator: launch, poll, aggregate, kill, reset.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "haven.yaml", "Config file (backend, launch, server sections)")
	root.PersistentFlags().StringVarP(&flagExpList, "experiments", "f", "exp_list.yaml", "Experiment list file (YAML list of hyperparameter maps)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newLaunchCmd(),
		newStatusCmd(),
		newResultsCmd(),
		newLogsCmd(),
		newKillCmd(),
		newResetCmd(),
		newServeCmd(),
	)

	return root
}
