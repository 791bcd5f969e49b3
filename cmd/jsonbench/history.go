package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/isaacvitor/postgresql-nutshell/internal/history"
	"github.com/isaacvitor/postgresql-nutshell/internal/logger"
	"github.com/isaacvitor/postgresql-nutshell/internal/results"
	"github.com/isaacvitor/postgresql-nutshell/internal/shutdown"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded benchmark runs",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryExportCmd(a), newHistoryImportCmd(a))
	return cmd
}

func (a *app) openHistory(coord *shutdown.Coordinator) (*history.Store, error) {
	hist, err := history.Open(a.cfg.History.DBPath, logger.Get("history"))
	if err != nil {
		return nil, fmt.Errorf("failed to open run history %s: %w", a.cfg.History.DBPath, err)
	}
	coord.Register("history", hist, shutdown.PriorityHistory)
	return hist, nil
}

func newHistoryListCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := a.newCoordinator()
			defer closeAll(coord)

			hist, err := a.openHistory(coord)
			if err != nil {
				return err
			}
			runs, err := hist.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if runs == nil {
					runs = []history.Run{}
				}
				return enc.Encode(runs)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tKIND\tPAIRS\tROWS\tNULL\tELAPSED\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Kind,
					r.Pairs, r.Rows, r.NullMedians, r.Elapsed.Round(time.Millisecond), r.Output)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to show (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}

func newHistoryExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write the results of a recorded run as CSV",
		Long: `Writes the rows of a recorded run in the results CSV format, to stdout or,
with --output, to the configured storage backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := a.newCoordinator()
			defer closeAll(coord)
			ctx := cmd.Context()

			hist, err := a.openHistory(coord)
			if err != nil {
				return err
			}
			rows, err := hist.Measurements(ctx, args[0])
			if err != nil {
				return err
			}

			if output == "" {
				return results.WriteCSV(cmd.OutOrStdout(), rows)
			}

			store, err := a.openStorage(coord)
			if err != nil {
				return err
			}
			data, err := results.EncodeCSV(rows)
			if err != nil {
				return err
			}
			if err := store.Write(ctx, output, data); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(rows), store.URI(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this storage path instead of stdout")
	return cmd
}

func newHistoryImportCmd(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "import <results.csv>",
		Short: "Catalog an existing results CSV from storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := a.newCoordinator()
			defer closeAll(coord)
			ctx := cmd.Context()

			store, err := a.openStorage(coord)
			if err != nil {
				return err
			}
			data, err := store.Read(ctx, args[0])
			if err != nil {
				return err
			}
			rows, err := results.ReadCSV(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", store.URI(args[0]), err)
			}

			hist, err := a.openHistory(coord)
			if err != nil {
				return err
			}

			pairs := make(map[[2]int]struct{})
			nulls := 0
			for _, r := range rows {
				pairs[[2]int{r.SizeIndex, r.Level}] = struct{}{}
				if r.MedianMs == nil {
					nulls++
				}
			}
			id, err := hist.Record(ctx, &history.Run{
				Kind:        kind,
				Pairs:       len(pairs),
				NullMedians: nulls,
				Output:      store.URI(args[0]),
			}, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows as run %s\n", len(rows), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "imported", "run kind recorded in the catalog")
	return cmd
}
