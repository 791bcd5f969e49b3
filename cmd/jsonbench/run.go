package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/isaacvitor/postgresql-nutshell/internal/bench"
	"github.com/isaacvitor/postgresql-nutshell/internal/database"
	"github.com/isaacvitor/postgresql-nutshell/internal/history"
	"github.com/isaacvitor/postgresql-nutshell/internal/logger"
	"github.com/isaacvitor/postgresql-nutshell/internal/results"
	"github.com/isaacvitor/postgresql-nutshell/internal/shutdown"
	"github.com/isaacvitor/postgresql-nutshell/internal/storage"
	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// Run kinds recorded in history
const (
	kindDiscovered = "discovered"
	kindGrid       = "grid"
)

// benchJob is one benchmark invocation after flag overrides
type benchJob struct {
	kind       string
	runs       int
	sampleRows int
	output     string
	parquet    string

	// pairs returns the iteration domain
	pairs func(ctx context.Context, r *bench.Runner) ([]models.Pair, error)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		runs       int
		sampleRows int
		output     string
		parquet    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Measure every (size, level) group of the fixture table",
		Long: `Discovers the distinct (size, level) pairs of the fixture table, estimates the
document size of each group, times every access operator with EXPLAIN ANALYZE
and writes the per-pair medians as CSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &a.cfg.Bench
			if cmd.Flags().Changed("runs") {
				b.Runs = runs
			}
			if cmd.Flags().Changed("sample-rows") {
				b.SampleRows = sampleRows
			}
			if cmd.Flags().Changed("output") {
				b.Output = output
			}
			if cmd.Flags().Changed("parquet") {
				b.ParquetOutput = parquet
			}
			if err := a.validate(); err != nil {
				return err
			}

			return a.benchmark(cmd, benchJob{
				kind:       kindDiscovered,
				runs:       b.Runs,
				sampleRows: b.SampleRows,
				output:     b.Output,
				parquet:    b.ParquetOutput,
				pairs: func(ctx context.Context, r *bench.Runner) ([]models.Pair, error) {
					return r.DiscoverPairs(ctx)
				},
			})
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "EXPLAIN ANALYZE executions per (pair, operator)")
	cmd.Flags().IntVar(&sampleRows, "sample-rows", 3, "documents sampled per pair for byte estimates (0 disables)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "results CSV path (default from config)")
	cmd.Flags().StringVar(&parquet, "parquet", "", "also write a Parquet copy of the results to this path")

	return cmd
}

// benchmark connects, measures, and writes all outputs in one pass after the
// loop so a failed run leaves no partial file behind
func (a *app) benchmark(cmd *cobra.Command, job benchJob) error {
	started := time.Now()
	coord := a.newCoordinator()
	ctx, cancel := coord.SignalContext(cmd.Context())
	defer cancel()
	defer closeAll(coord)

	coord.RegisterHook("interrupt-report", func(context.Context) error {
		if ctx.Err() != nil {
			log.Warn().Str("output", job.output).Msg("Run interrupted; no results written")
		}
		return nil
	}, 0)

	store, err := a.openStorage(coord)
	if err != nil {
		return err
	}

	dbCfg := a.databaseConfig()
	db, err := database.New(ctx, dbCfg, logger.Get("database"))
	if err != nil {
		return err
	}
	coord.Register("postgres", db, shutdown.PriorityDatabase)

	runner, err := bench.NewRunner(db, &bench.Config{
		Runs:       job.runs,
		SampleRows: job.sampleRows,
		Column:     db.Column(),
	}, logger.Get("bench"))
	if err != nil {
		return err
	}

	pairs, err := job.pairs(ctx, runner)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		log.Warn().Str("table", dbCfg.Table).Msg("Fixture table has no (size, level) groups; writing header only")
	}

	rows, summary, err := runner.Run(ctx, pairs)
	if err != nil {
		return fmt.Errorf("benchmark aborted: %w", err)
	}

	if err := writeResults(ctx, store, job, rows); err != nil {
		return err
	}

	if a.cfg.History.Enabled {
		a.recordHistory(ctx, coord, job, started, summary, store.URI(job.output), rows)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows for %d pairs to %s\n", summary.Rows, summary.Pairs, store.URI(job.output))
	return nil
}

func writeResults(ctx context.Context, store storage.Backend, job benchJob, rows []models.Measurement) error {
	data, err := results.EncodeCSV(rows)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	if err := store.Write(ctx, job.output, data); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	log.Info().Str("path", store.URI(job.output)).Int("rows", len(rows)).Msg("Results written")

	if job.parquet == "" {
		return nil
	}
	data, err = results.EncodeParquet(rows)
	if err != nil {
		return fmt.Errorf("failed to encode Parquet results: %w", err)
	}
	if err := store.Write(ctx, job.parquet, data); err != nil {
		return fmt.Errorf("failed to write Parquet results: %w", err)
	}
	log.Info().Str("path", store.URI(job.parquet)).Msg("Parquet results written")
	return nil
}

// recordHistory catalogs the run. The results are already written, so a
// catalog failure is reported but does not fail the command.
func (a *app) recordHistory(ctx context.Context, coord *shutdown.Coordinator, job benchJob, started time.Time, summary bench.Summary, output string, rows []models.Measurement) {
	hist, err := a.openHistory(coord)
	if err != nil {
		log.Warn().Err(err).Msg("Run history unavailable")
		return
	}

	d := a.cfg.Database
	id, err := hist.Record(ctx, &history.Run{
		Kind:            job.kind,
		StartedAt:       started,
		Elapsed:         summary.Elapsed,
		Database:        net.JoinHostPort(d.Host, strconv.Itoa(d.Port)) + "/" + d.Name,
		Table:           d.Table,
		Runs:            job.runs,
		SampleRows:      job.sampleRows,
		Pairs:           summary.Pairs,
		NullMedians:     summary.NullMedians,
		AbsorbedSamples: summary.AbsorbedSamples,
		Output:          output,
	}, rows)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to record run history")
		return
	}
	log.Info().Str("run_id", id).Msg("Run recorded")
}
