package plot

import (
	"fmt"
	"math"

	"github.com/isaacvitor/postgresql-nutshell/internal/operator"
)

// Accepted column names, preferred first
var (
	timeColumns  = []string{"execution_time_ms_median", "execution_time"}
	bytesColumn  = "bytes_raw"
	indexColumns = []string{"size_index", "size"}
)

// Layouts
const (
	LayoutGrid = "grid" // 2x2
	LayoutRow  = "row"  // 1x4
)

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Time units of the y axis
const (
	UnitMicros = "us" // log scale in microseconds
	UnitMillis = "ms" // linear scale in milliseconds
)

// Options controls chart preparation and rendering
type Options struct {
	Layout   string
	Theme    string
	Unit     string // empty means UnitMicros
	DPI      int
	Width    float64 // inches; 0 picks the layout default
	Height   float64 // inches; 0 picks the layout default
	BytesMin float64 // byte range assumed when only a size index is available
	BytesMax float64
}

// DefaultOptions returns the 2x2 light chart at 200 DPI
func DefaultOptions() Options {
	return Options{
		Layout:   LayoutGrid,
		Theme:    ThemeLight,
		Unit:     UnitMicros,
		DPI:      200,
		BytesMin: 100,
		BytesMax: 1_000_000,
	}
}

// size returns the figure size in inches
func (o Options) size() (w, h float64) {
	w, h = o.Width, o.Height
	if o.Layout == LayoutRow {
		if w <= 0 {
			w = 22
		}
		if h <= 0 {
			h = 5
		}
		return w, h
	}
	if w <= 0 {
		w = 16
	}
	if h <= 0 {
		h = 10
	}
	return w, h
}

// Point is one plotted measurement
type Point struct {
	Bytes  float64
	TimeUs float64
	Level  int
}

// Panel holds the points of one operator
type Panel struct {
	Operator operator.Operator
	Title    string
	Points   []Point
}

// Figure is the chart data, independent of rendering
type Figure struct {
	Panels []Panel
	Rows   int
	Cols   int

	// Shared color normalization across panels
	LevelMin int
	LevelMax int

	// Largest finite time in µs over all rows, 0 when none
	MaxTimeUs float64

	// Rows not plotted: absent or non-positive time or bytes, unknown operator
	Skipped int

	// Where x came from: bytes_raw, or the interpolated index column
	BytesSource  string
	Interpolated bool
}

// Points returns the total number of plotted points
func (f *Figure) Points() int {
	n := 0
	for _, p := range f.Panels {
		n += len(p.Points)
	}
	return n
}

// PanelOrder returns the operator order for a layout
func PanelOrder(layout string) []operator.Operator {
	if layout == LayoutRow {
		return []operator.Operator{operator.Arrow, operator.Path, operator.JSONPath, operator.Subscript}
	}
	return operator.All()
}

// Prepare validates the table and computes the chart data
func Prepare(t *Table, opts Options) (*Figure, error) {
	switch opts.Layout {
	case LayoutGrid, LayoutRow:
	default:
		return nil, fmt.Errorf("unknown layout %q (expected %s or %s)", opts.Layout, LayoutGrid, LayoutRow)
	}
	switch opts.Unit {
	case "", UnitMicros, UnitMillis:
	default:
		return nil, fmt.Errorf("unknown unit %q (expected %s or %s)", opts.Unit, UnitMicros, UnitMillis)
	}

	timeCol, ok := t.first(timeColumns...)
	if !ok {
		return nil, &MissingColumnError{Column: "execution time", Candidates: timeColumns}
	}
	if !t.Has("level") {
		return nil, &MissingColumnError{Column: "level", Candidates: []string{"level"}}
	}
	if !t.Has("operator") {
		return nil, &MissingColumnError{Column: "operator", Candidates: []string{"operator"}}
	}

	bytesOf, source, interpolated, err := byteAxis(t, opts)
	if err != nil {
		return nil, err
	}

	order := PanelOrder(opts.Layout)
	fig := &Figure{
		Panels:       make([]Panel, len(order)),
		Rows:         2,
		Cols:         2,
		BytesSource:  source,
		Interpolated: interpolated,
	}
	if opts.Layout == LayoutRow {
		fig.Rows, fig.Cols = 1, 4
	}
	slot := make(map[operator.Operator]int, len(order))
	for i, op := range order {
		fig.Panels[i] = Panel{Operator: op, Title: op.Title()}
		slot[op] = i
	}

	levelSeen := false
	for i := 0; i < t.Len(); i++ {
		lv, ok, err := t.Float(i, "level")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("row %d: level is empty", i+1)
		}
		level := int(lv)
		if !levelSeen || level < fig.LevelMin {
			fig.LevelMin = level
		}
		if !levelSeen || level > fig.LevelMax {
			fig.LevelMax = level
		}
		levelSeen = true

		ms, hasTime, err := t.Float(i, timeCol)
		if err != nil {
			return nil, err
		}
		us := ms * 1000
		if hasTime && !math.IsInf(us, 0) && us > fig.MaxTimeUs {
			fig.MaxTimeUs = us
		}

		op, err := operator.Parse(t.String(i, "operator"))
		if err != nil {
			fig.Skipped++
			continue
		}
		idx, ok := slot[op]
		if !ok {
			fig.Skipped++
			continue
		}

		b, hasBytes, err := bytesOf(i)
		if err != nil {
			return nil, err
		}
		if !hasTime || !hasBytes || !positive(us) || !positive(b) {
			fig.Skipped++
			continue
		}

		fig.Panels[idx].Points = append(fig.Panels[idx].Points, Point{Bytes: b, TimeUs: us, Level: level})
	}

	return fig, nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// byteAxis picks the x source: measured bytes_raw when it has any value,
// otherwise a log-linear mapping of the size index onto [BytesMin, BytesMax].
func byteAxis(t *Table, opts Options) (func(row int) (float64, bool, error), string, bool, error) {
	if t.Has(bytesColumn) && !t.allEmpty(bytesColumn) {
		return func(row int) (float64, bool, error) {
			return t.Float(row, bytesColumn)
		}, bytesColumn, false, nil
	}

	col, ok := t.first(indexColumns...)
	if !ok {
		return nil, "", false, &MissingColumnError{
			Column:     "byte size",
			Candidates: append([]string{bytesColumn}, indexColumns...),
		}
	}
	if opts.BytesMin <= 0 || opts.BytesMax <= opts.BytesMin {
		return nil, "", false, fmt.Errorf("invalid byte range %g..%g", opts.BytesMin, opts.BytesMax)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < t.Len(); i++ {
		v, ok, err := t.Float(i, col)
		if err != nil {
			return nil, "", false, err
		}
		if ok {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	logMin, logMax := math.Log(opts.BytesMin), math.Log(opts.BytesMax)
	return func(row int) (float64, bool, error) {
		v, ok, err := t.Float(row, col)
		if err != nil || !ok {
			return 0, false, err
		}
		return math.Exp(interp(v, lo, hi, logMin, logMax)), true, nil
	}, col, true, nil
}

// interp maps x from [x0, x1] onto [y0, y1], clamping outside the range.
// A degenerate range maps everything to y1.
func interp(x, x0, x1, y0, y1 float64) float64 {
	if x1 <= x0 {
		return y1
	}
	if x <= x0 {
		return y0
	}
	if x >= x1 {
		return y1
	}
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}
