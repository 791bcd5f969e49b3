package bench

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaacvitor/postgresql-nutshell/internal/operator"
	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// stubStore is an in-memory Store.
type stubStore struct {
	pairs    []models.Pair
	samples  map[models.Pair][]models.SizeSample
	payloads func(call int, expr string, pair models.Pair) []byte

	pairsErr   error
	sampleErr  error
	explainErr error

	explainCalls int
	sampleLimits []int
	exprs        []string
}

func (s *stubStore) DistinctPairs(ctx context.Context) ([]models.Pair, error) {
	return s.pairs, s.pairsErr
}

func (s *stubStore) SampleSizes(ctx context.Context, pair models.Pair, limit int) ([]models.SizeSample, error) {
	s.sampleLimits = append(s.sampleLimits, limit)
	if s.sampleErr != nil {
		return nil, s.sampleErr
	}
	return s.samples[pair], nil
}

func (s *stubStore) ExplainAnalyze(ctx context.Context, expr string, pair models.Pair) ([]byte, error) {
	call := s.explainCalls
	s.explainCalls++
	s.exprs = append(s.exprs, expr)
	if s.explainErr != nil {
		return nil, s.explainErr
	}
	if s.payloads == nil {
		return nil, nil
	}
	return s.payloads(call, expr, pair), nil
}

func constantPlan(ms float64) func(int, string, models.Pair) []byte {
	return func(int, string, models.Pair) []byte {
		return []byte(fmt.Sprintf(`[{"Plan": {"Node Type": "Limit"}, "Planning Time": 0.05, "Execution Time": %v}]`, ms))
	}
}

func newTestRunner(t *testing.T, store Store, cfg *Config) *Runner {
	t.Helper()
	r, err := NewRunner(store, cfg, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewRunner(&stubStore{}, &Config{Runs: 0}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewRunner(&stubStore{}, &Config{Runs: 1, SampleRows: -1}, zerolog.Nop())
	assert.Error(t, err)

	r, err := NewRunner(&stubStore{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 5, r.config.Runs)
	assert.Equal(t, 3, r.config.SampleRows)
	assert.Equal(t, "jb", r.config.Column)
}

func TestFixedGrid(t *testing.T) {
	pairs := FixedGrid(2, 3)
	assert.Equal(t, []models.Pair{
		{Size: 0, Level: 0}, {Size: 0, Level: 1}, {Size: 0, Level: 2},
		{Size: 1, Level: 0}, {Size: 1, Level: 1}, {Size: 1, Level: 2},
	}, pairs)

	assert.Len(t, FixedGrid(120, 10), 1200)
	assert.Empty(t, FixedGrid(-1, 5))
}

func TestEstimateBytes(t *testing.T) {
	pair := models.Pair{Size: 1, Level: 1}

	t.Run("averages present values", func(t *testing.T) {
		store := &stubStore{samples: map[models.Pair][]models.SizeSample{
			pair: {
				{Raw: models.Int64(100), Stored: models.Int64(80)},
				{Raw: models.Int64(102), Stored: nil},
				{Raw: models.Int64(101), Stored: models.Int64(81)},
			},
		}}
		r := newTestRunner(t, store, nil)

		raw, stored, err := r.EstimateBytes(context.Background(), pair)
		require.NoError(t, err)
		require.NotNil(t, raw)
		require.NotNil(t, stored)
		assert.Equal(t, int64(101), *raw)
		assert.Equal(t, int64(80), *stored) // 80.5 truncates
		assert.Equal(t, []int{3}, store.sampleLimits)
	})

	t.Run("empty sample is absent not zero", func(t *testing.T) {
		r := newTestRunner(t, &stubStore{}, nil)
		raw, stored, err := r.EstimateBytes(context.Background(), pair)
		require.NoError(t, err)
		assert.Nil(t, raw)
		assert.Nil(t, stored)
	})

	t.Run("sampling disabled", func(t *testing.T) {
		store := &stubStore{}
		r := newTestRunner(t, store, &Config{Runs: 1, SampleRows: 0})
		raw, stored, err := r.EstimateBytes(context.Background(), pair)
		require.NoError(t, err)
		assert.Nil(t, raw)
		assert.Nil(t, stored)
		assert.Empty(t, store.sampleLimits)
	})

	t.Run("database error propagates", func(t *testing.T) {
		r := newTestRunner(t, &stubStore{sampleErr: errors.New("boom")}, nil)
		_, _, err := r.EstimateBytes(context.Background(), pair)
		assert.ErrorContains(t, err, "boom")
	})
}

func TestTimeOperator_MedianSkipsAbsentSamples(t *testing.T) {
	timings := []string{"1.0", "", "3.0", "2.0", "5.0"}
	store := &stubStore{payloads: func(call int, _ string, _ models.Pair) []byte {
		if timings[call] == "" {
			return []byte(`[{"Plan": {}}]`)
		}
		return []byte(`[{"Execution Time": ` + timings[call] + `}]`)
	}}
	r := newTestRunner(t, store, nil)

	median, err := r.TimeOperator(context.Background(), operator.Arrow, models.Pair{Size: 0, Level: 0})
	require.NoError(t, err)
	require.NotNil(t, median)
	assert.InDelta(t, 2.5, *median, 1e-12)
	assert.Equal(t, 5, store.explainCalls)
	assert.Equal(t, 1, r.absorbed)
}

func TestTimeOperator_AllAbsent(t *testing.T) {
	store := &stubStore{payloads: func(int, string, models.Pair) []byte { return nil }}
	r := newTestRunner(t, store, nil)

	median, err := r.TimeOperator(context.Background(), operator.Path, models.Pair{})
	require.NoError(t, err)
	assert.Nil(t, median)
	assert.Equal(t, 5, r.absorbed)
}

func TestTimeOperator_UsesOperatorExpression(t *testing.T) {
	store := &stubStore{payloads: constantPlan(1)}
	r := newTestRunner(t, store, &Config{Runs: 2, SampleRows: 0, Column: "doc"})

	_, err := r.TimeOperator(context.Background(), operator.Subscript, models.Pair{Size: 3, Level: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc['obj']['key']", "doc['obj']['key']"}, store.exprs)
}

func TestTimeOperator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &stubStore{payloads: constantPlan(1)}
	r := newTestRunner(t, store, nil)

	_, err := r.TimeOperator(ctx, operator.Arrow, models.Pair{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.explainCalls)
}

func TestRun_EndToEndSinglePair(t *testing.T) {
	pair := models.Pair{Size: 5, Level: 2}
	store := &stubStore{
		pairs: []models.Pair{pair},
		samples: map[models.Pair][]models.SizeSample{
			pair: {{Raw: models.Int64(4096), Stored: models.Int64(1800)}},
		},
		payloads: constantPlan(1.234),
	}
	r := newTestRunner(t, store, nil)
	ctx := context.Background()

	pairs, err := r.DiscoverPairs(ctx)
	require.NoError(t, err)

	rows, summary, err := r.Run(ctx, pairs)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	for i, op := range operator.All() {
		row := rows[i]
		assert.Equal(t, string(op), row.Operator)
		assert.Equal(t, 5, row.SizeIndex)
		assert.Equal(t, 2, row.Level)
		assert.Equal(t, 5, row.Runs)
		require.NotNil(t, row.MedianMs)
		assert.InDelta(t, 1.234, *row.MedianMs, 1e-12)
		require.NotNil(t, row.BytesRaw)
		assert.Equal(t, int64(4096), *row.BytesRaw)
		assert.Equal(t, int64(1800), *row.BytesStored)
	}

	assert.Equal(t, 20, store.explainCalls)
	assert.Equal(t, Summary{Pairs: 1, Rows: 4, Elapsed: summary.Elapsed}, summary)
}

func TestRun_RowCountIsPairsTimesOperators(t *testing.T) {
	pairs := FixedGrid(3, 4)
	store := &stubStore{payloads: func(call int, _ string, _ models.Pair) []byte {
		if call%7 == 0 {
			return []byte(`not json`)
		}
		return []byte(`{"Execution Time": 0.25}`)
	}}
	r := newTestRunner(t, store, &Config{Runs: 1, SampleRows: 2})

	rows, summary, err := r.Run(context.Background(), pairs)
	require.NoError(t, err)
	assert.Len(t, rows, len(pairs)*4)
	assert.Equal(t, len(pairs)*4, summary.Rows)
	assert.Equal(t, summary.AbsorbedSamples, summary.NullMedians)

	// Every pair's rows share the same byte estimate (absent here)
	for _, row := range rows {
		assert.Nil(t, row.BytesRaw)
		assert.Nil(t, row.BytesStored)
	}
}

func TestRun_DatabaseErrorIsFatal(t *testing.T) {
	store := &stubStore{explainErr: errors.New("relation does not exist")}
	r := newTestRunner(t, store, nil)

	rows, _, err := r.Run(context.Background(), []models.Pair{{Size: 0, Level: 0}})
	assert.ErrorContains(t, err, "relation does not exist")
	assert.Nil(t, rows)
	assert.Equal(t, 1, store.explainCalls)
}

func TestDiscoverPairs_Error(t *testing.T) {
	r := newTestRunner(t, &stubStore{pairsErr: errors.New("connection reset")}, nil)
	_, err := r.DiscoverPairs(context.Background())
	assert.ErrorContains(t, err, "connection reset")
}
