package plot

import (
	"fmt"
	"math"

	gplot "gonum.org/v1/plot"
)

// ByteTickValues are the labelled positions of the byte axis
var ByteTickValues = []float64{100, 1_000, 10_000, 100_000, 1_000_000}

// maxPower returns the exponent of the top time tick
func maxPower(maxUs float64) int {
	if !positive(maxUs) {
		return 3
	}
	p := int(math.Ceil(math.Log10(maxUs)))
	if p < 0 {
		// keep at least the 0.1 and 1 µs ticks
		p = 0
	}
	return p
}

// TimeTicks returns decade ticks 10^-1 .. 10^ceil(log10(maxUs)) with unlabelled
// minor ticks in between
func TimeTicks(maxUs float64) []gplot.Tick {
	top := maxPower(maxUs)
	var ticks []gplot.Tick
	for p := -1; p <= top; p++ {
		decade := math.Pow(10, float64(p))
		ticks = append(ticks, gplot.Tick{Value: decade, Label: formatMicros(decade)})
		if p == top {
			break
		}
		for m := 2; m <= 9; m++ {
			ticks = append(ticks, gplot.Tick{Value: decade * float64(m)})
		}
	}
	return ticks
}

// ByteTicks returns the fixed 100 .. 1M byte ticks with minor ticks
func ByteTicks() []gplot.Tick {
	var ticks []gplot.Tick
	for i, v := range ByteTickValues {
		ticks = append(ticks, gplot.Tick{Value: v, Label: formatBytes(v)})
		if i == len(ByteTickValues)-1 {
			break
		}
		for m := 2; m <= 9; m++ {
			ticks = append(ticks, gplot.Tick{Value: v * float64(m)})
		}
	}
	return ticks
}

// LevelTicks labels every level of the color bar, thinning long ranges
func LevelTicks(min, max int) []gplot.Tick {
	step := 1
	if n := max - min; n > 20 {
		step = int(math.Ceil(float64(n) / 20))
	}
	var ticks []gplot.Tick
	for l := min; l <= max; l += step {
		ticks = append(ticks, gplot.Tick{Value: float64(l), Label: fmt.Sprintf("%d", l)})
	}
	return ticks
}

func formatBytes(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%dM", int(v/1_000_000))
	case v >= 1000:
		return fmt.Sprintf("%dK", int(v/1000))
	default:
		return fmt.Sprintf("%d", int(v))
	}
}

func formatMicros(v float64) string {
	if v >= 1 {
		return fmt.Sprintf("%d", int(math.Round(v)))
	}
	return fmt.Sprintf("%.1g", v)
}
