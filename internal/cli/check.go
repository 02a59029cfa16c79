package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ttsched"
	"ttsched/internal/config"
)

func newCheckCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the periodic tasks of a workload can all be admitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			tt := ttsched.NewTTScheduler(cfg.TicksPerMsec, ttsched.WithLogger(loggerFor(cmd, cfg)))
			out := cmd.OutOrStdout()
			rejected := 0
			for i, t := range cfg.Periodic() {
				err := tt.AdmitErr(ttsched.Tid(i), ttsched.Tms(t.Cycle), ttsched.Tms(t.Offset), ttsched.Tms(t.MaxTime))
				if err != nil {
					rejected += 1
					fmt.Fprintf(out, "REJECT %v: %v\n", t, err)
					continue
				}
				fmt.Fprintf(out, "ok     %v\n", t)
			}

			rs := tt.Reservations()
			fmt.Fprintf(out, "%d admitted, %d rejected, hyperperiod %v, mean cycle %.1fms\n",
				len(rs), rejected, ttsched.Hyperperiod(rs), ttsched.MeanCycle(rs))
			if rejected > 0 {
				return fmt.Errorf("%d reservation(s) rejected", rejected)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Workload file (YAML)")
	cmd.MarkFlagRequired("config")

	return cmd
}
