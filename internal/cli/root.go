// Package cli implements the ttsim command: boot a simulated board from a
// workload file, check reservations, or generate load.
package cli

import (
	"github.com/spf13/cobra"

	"ttsched"
	"ttsched/internal/config"
	"ttsched/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *ttsched.Logger
)

// NewRootCmd creates the root cobra command for the ttsim CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ttsim",
		Short: "ttsim - time-triggered scheduler simulator",
		Long:  "ttsim runs ordinary and periodic tasks on simulated cpus under a static round-robin and a time-triggered scheduler.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newCheckCmd(),
		newGenCmd(),
	)

	return root
}

// loggerFor honours the log settings of the workload file unless they were
// given on the command line.
func loggerFor(cmd *cobra.Command, cfg config.Config) *ttsched.Logger {
	flags := cmd.Flags()
	if flagDebug || flags.Changed("log-level") || flags.Changed("log-format") {
		return logger
	}
	return logging.NewLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}
