package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/isaacvitor/postgresql-nutshell/internal/explain"
	"github.com/isaacvitor/postgresql-nutshell/internal/operator"
	"github.com/isaacvitor/postgresql-nutshell/internal/stats"
	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// Store is the database surface the runner needs.
// *database.Postgres implements it; tests substitute a stub.
type Store interface {
	// DistinctPairs returns the (size, level) groups of the fixture table ordered by size, level.
	DistinctPairs(ctx context.Context) ([]models.Pair, error)

	// SampleSizes returns up to limit byte-size probes for one group.
	SampleSizes(ctx context.Context, pair models.Pair, limit int) ([]models.SizeSample, error)

	// ExplainAnalyze runs the expression under EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON)
	// for one row of the group and returns the raw plan JSON (nil when no row came back).
	ExplainAnalyze(ctx context.Context, expr string, pair models.Pair) ([]byte, error)
}

// Config holds runner configuration
type Config struct {
	Runs       int    // timing samples per (pair, operator)
	SampleRows int    // rows sampled for byte estimates; 0 disables sampling
	Column     string // document column as it appears in access expressions (a quoted identifier when not lower case)
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Runs:       5,
		SampleRows: 3,
		Column:     "jb",
	}
}

// Summary describes a completed run.
type Summary struct {
	Pairs           int
	Rows            int
	AbsorbedSamples int // samples that produced no timing
	NullMedians     int // rows whose median is absent
	Elapsed         time.Duration
}

// Runner measures jsonb access operators against the fixture table.
// It issues one query at a time; a Runner is not safe for concurrent use.
type Runner struct {
	store  Store
	config *Config
	logger zerolog.Logger

	absorbed int
}

// NewRunner creates a runner. A nil config uses DefaultConfig.
func NewRunner(store Store, cfg *Config, logger zerolog.Logger) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", cfg.Runs)
	}
	if cfg.SampleRows < 0 {
		return nil, fmt.Errorf("sample rows cannot be negative, got %d", cfg.SampleRows)
	}
	if cfg.Column == "" {
		cfg.Column = "jb"
	}

	return &Runner{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "bench-runner").Logger(),
	}, nil
}

// DiscoverPairs returns the iteration domain from the fixture table.
func (r *Runner) DiscoverPairs(ctx context.Context) ([]models.Pair, error) {
	pairs, err := r.store.DistinctPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover (size, level) pairs: %w", err)
	}
	r.logger.Info().Int("pairs", len(pairs)).Msg("Discovered (size, level) combinations")
	return pairs, nil
}

// FixedGrid returns every pair in [0, sizes) x [0, levels), size-major.
func FixedGrid(sizes, levels int) []models.Pair {
	if sizes < 0 {
		sizes = 0
	}
	if levels < 0 {
		levels = 0
	}
	pairs := make([]models.Pair, 0, sizes*levels)
	for s := 0; s < sizes; s++ {
		for l := 0; l < levels; l++ {
			pairs = append(pairs, models.Pair{Size: s, Level: l})
		}
	}
	return pairs
}

// EstimateBytes averages the raw and stored document sizes over a sample of
// the group. Each result is nil when no sampled row carried a value.
func (r *Runner) EstimateBytes(ctx context.Context, pair models.Pair) (raw, stored *int64, err error) {
	if r.config.SampleRows == 0 {
		return nil, nil, nil
	}

	samples, err := r.store.SampleSizes(ctx, pair, r.config.SampleRows)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sample sizes for size=%d level=%d: %w", pair.Size, pair.Level, err)
	}

	var raws, storeds []int64
	for _, s := range samples {
		if s.Raw != nil {
			raws = append(raws, *s.Raw)
		}
		if s.Stored != nil {
			storeds = append(storeds, *s.Stored)
		}
	}

	if v, ok := stats.MeanInt(raws); ok {
		raw = &v
	}
	if v, ok := stats.MeanInt(storeds); ok {
		stored = &v
	}
	return raw, stored, nil
}

// TimeOperator runs the operator Runs times and returns the median execution
// time in milliseconds, or nil when no sample yielded a value.
func (r *Runner) TimeOperator(ctx context.Context, op operator.Operator, pair models.Pair) (*float64, error) {
	expr := op.Expr(r.config.Column, pair.Level)
	if expr == "" {
		return nil, fmt.Errorf("no expression for operator %q", op)
	}

	samples := make([]*float64, 0, r.config.Runs)
	for i := 0; i < r.config.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := r.store.ExplainAnalyze(ctx, expr, pair)
		if err != nil {
			return nil, fmt.Errorf("explain failed for %s at size=%d level=%d: %w", op, pair.Size, pair.Level, err)
		}

		execMs, ok := explain.ExecutionTime(raw)
		if !ok {
			r.absorbed++
			r.logger.Warn().
				Str("operator", string(op)).
				Int("size", pair.Size).
				Int("level", pair.Level).
				Int("run", i).
				Int("payload_bytes", len(raw)).
				Msg("No execution time in plan, sample recorded as absent")
			samples = append(samples, nil)
			continue
		}

		ev := r.logger.Debug().
			Str("operator", string(op)).
			Int("run", i).
			Float64("execution_ms", execMs)
		if planMs, ok := explain.PlanningTime(raw); ok {
			ev = ev.Float64("planning_ms", planMs)
		}
		ev.Msg("Sample")

		samples = append(samples, &execMs)
	}

	median, ok := stats.MedianPresent(samples)
	if !ok {
		return nil, nil
	}
	return &median, nil
}

// MeasurePair produces one row per operator for the pair. All rows share the
// pair's byte estimates.
func (r *Runner) MeasurePair(ctx context.Context, pair models.Pair) ([]models.Measurement, error) {
	raw, stored, err := r.EstimateBytes(ctx, pair)
	if err != nil {
		return nil, err
	}

	ops := operator.All()
	rows := make([]models.Measurement, 0, len(ops))
	for _, op := range ops {
		median, err := r.TimeOperator(ctx, op, pair)
		if err != nil {
			return nil, err
		}

		rows = append(rows, models.Measurement{
			SizeIndex:   pair.Size,
			BytesRaw:    raw,
			BytesStored: stored,
			Level:       pair.Level,
			Operator:    string(op),
			MedianMs:    median,
			Runs:        r.config.Runs,
		})

		ev := r.logger.Info().
			Int("size", pair.Size).
			Int("level", pair.Level).
			Str("operator", string(op))
		if median != nil {
			ev = ev.Float64("median_ms", *median)
		}
		if raw != nil {
			ev = ev.Int64("raw_bytes", *raw)
		}
		if stored != nil {
			ev = ev.Int64("stored_bytes", *stored)
		}
		ev.Msg("Measured")
	}
	return rows, nil
}

// Run measures every pair against every operator. Rows come back in
// (pair, operator) order. Any database error aborts the run with no rows.
func (r *Runner) Run(ctx context.Context, pairs []models.Pair) ([]models.Measurement, Summary, error) {
	start := time.Now()
	r.absorbed = 0

	out := make([]models.Measurement, 0, len(pairs)*len(operator.All()))
	for _, pair := range pairs {
		rows, err := r.MeasurePair(ctx, pair)
		if err != nil {
			return nil, Summary{}, err
		}
		out = append(out, rows...)
	}

	summary := Summary{
		Pairs:           len(pairs),
		Rows:            len(out),
		AbsorbedSamples: r.absorbed,
		Elapsed:         time.Since(start),
	}
	for _, m := range out {
		if m.MedianMs == nil {
			summary.NullMedians++
		}
	}

	r.logger.Info().
		Int("pairs", summary.Pairs).
		Int("rows", summary.Rows).
		Int("absorbed_samples", summary.AbsorbedSamples).
		Int("null_medians", summary.NullMedians).
		Dur("elapsed", summary.Elapsed).
		Msg("Benchmark run complete")

	return out, summary, nil
}
