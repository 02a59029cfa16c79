package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ttsched/internal/config"
	"ttsched/internal/workload"
)

func newGenCmd() *cobra.Command {
	var (
		nTasks int
		seed   uint64
		cpus   int
		ticks  uint64
	)

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a random ordinary workload file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if nTasks < 1 {
				return fmt.Errorf("--tasks must be at least 1")
			}
			cfg := config.Default()
			cfg.CPUs = cpus
			cfg.RunTicks = ticks
			cfg.Tasks = workload.NewLoadGen(seed).GenLoad(nTasks)
			if err := cfg.Validate(); err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal workload: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().IntVarP(&nTasks, "tasks", "n", 10, "Number of tasks")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().IntVar(&cpus, "cpus", 1, "Number of simulated cpus")
	cmd.Flags().Uint64Var(&ticks, "ticks", 1000, "Hardware ticks per cpu")

	return cmd
}
