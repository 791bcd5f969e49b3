package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/isaacvitor/postgresql-nutshell/internal/bench"
	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

func newGridCmd(a *app) *cobra.Command {
	var (
		sizes  int
		levels int
		runs   int
		output string
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Measure a fixed size x level grid without byte sampling",
		Long: `Times every operator for size indices 0..sizes-1 and levels 0..levels-1
without consulting the fixture table for its groups. Byte estimates are not
sampled, so bytes_raw and bytes_stored are empty and charts fall back to the
size index. Groups missing from the table are still timed; their medians
reflect an empty scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &a.cfg.Bench
			if cmd.Flags().Changed("sizes") {
				b.GridSizes = sizes
			}
			if cmd.Flags().Changed("levels") {
				b.GridLevels = levels
			}
			if cmd.Flags().Changed("output") {
				b.GridOutput = output
			}
			if err := a.validate(); err != nil {
				return err
			}

			gridSizes, gridLevels := b.GridSizes, b.GridLevels
			return a.benchmark(cmd, benchJob{
				kind:       kindGrid,
				runs:       runs,
				sampleRows: 0,
				output:     b.GridOutput,
				pairs: func(ctx context.Context, r *bench.Runner) ([]models.Pair, error) {
					return bench.FixedGrid(gridSizes, gridLevels), nil
				},
			})
		},
	}

	cmd.Flags().IntVar(&sizes, "sizes", 120, "number of size indices")
	cmd.Flags().IntVar(&levels, "levels", 10, "number of nesting levels")
	cmd.Flags().IntVar(&runs, "runs", 1, "EXPLAIN ANALYZE executions per (pair, operator)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "results CSV path (default from config)")

	return cmd
}
