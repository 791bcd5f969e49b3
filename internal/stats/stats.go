package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Median returns the median of values. For an even count it is the mean of
// the two middle values. The input slice is not modified.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}

// MedianPresent returns the median of the non-nil samples.
func MedianPresent(samples []*float64) (float64, bool) {
	return Median(Present(samples))
}

// Present returns the non-nil, non-NaN samples in order.
func Present(samples []*float64) []float64 {
	out := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s == nil || math.IsNaN(*s) {
			continue
		}
		out = append(out, *s)
	}
	return out
}

// MeanInt returns the arithmetic mean truncated toward zero.
func MeanInt(values []int64) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	xs := make([]float64, len(values))
	for i, v := range values {
		xs[i] = float64(v)
	}
	return int64(math.Trunc(stat.Mean(xs, nil))), true
}
