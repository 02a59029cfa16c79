package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"

	"ttsched/internal/config"
	"ttsched/internal/workload"
)

func newRunCmd() *cobra.Command {
	var (
		cfgPath string
		cpus    int
		ticks   uint64
		traceDB string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot a simulated board and run a workload",
		Long: `Loads the workload file, admits every task, runs each cpu for the
configured number of hardware ticks and prints per-thread and per-cpu
statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				var err error
				if cfg, err = config.Load(cfgPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("cpus") {
				cfg.CPUs = cpus
			}
			if cmd.Flags().Changed("ticks") {
				cfg.RunTicks = ticks
			}
			if traceDB != "" {
				cfg.TraceDB = traceDB
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown output format %q", format)
			}

			b, err := workload.NewBoard(cfg, loggerFor(cmd, cfg))
			if err != nil {
				return err
			}
			s, err := b.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				data, err := sonnet.Marshal(s)
				if err != nil {
					return fmt.Errorf("marshal summary: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprint(out, s.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Workload file (YAML)")
	cmd.Flags().IntVar(&cpus, "cpus", 1, "Number of simulated cpus (overrides the workload file)")
	cmd.Flags().Uint64Var(&ticks, "ticks", 1000, "Hardware ticks per cpu (overrides the workload file)")
	cmd.Flags().StringVar(&traceDB, "trace-db", "", "SQLite file to store the event trace in")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")

	return cmd
}
