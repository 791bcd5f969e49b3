package plot

import (
	"fmt"
	"image/color"
	"io"
	"math"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	xLabel     = "raw jsonb size, bytes"
	yLabel     = "execution time, µs"
	yLabelMs   = "execution time, ms"
	levelLabel = "nesting level"
)

type theme struct {
	background color.Color
	foreground color.Color
	grid       color.Color
}

var themes = map[string]theme{
	ThemeLight: {
		background: color.White,
		foreground: color.Black,
		grid:       color.Gray{Y: 215},
	},
	ThemeDark: {
		background: color.Black,
		foreground: color.White,
		grid:       color.Gray{Y: 70},
	},
}

func (th theme) apply(p *gplot.Plot) {
	p.BackgroundColor = th.background
	p.Title.TextStyle.Color = th.foreground
	for _, ax := range []*gplot.Axis{&p.X, &p.Y} {
		ax.Color = th.foreground
		ax.Label.TextStyle.Color = th.foreground
		ax.Tick.Color = th.foreground
		ax.Tick.Label.Color = th.foreground
	}
}

// Render draws fig as a PNG to w
func Render(fig *Figure, opts Options, w io.Writer) error {
	if fig == nil || len(fig.Panels) == 0 {
		return fmt.Errorf("nothing to render")
	}
	if len(fig.Panels) != fig.Rows*fig.Cols {
		return fmt.Errorf("figure has %d panels for a %dx%d layout", len(fig.Panels), fig.Rows, fig.Cols)
	}
	if opts.DPI <= 0 {
		return fmt.Errorf("invalid DPI %d", opts.DPI)
	}
	th, ok := themes[opts.Theme]
	if !ok {
		return fmt.Errorf("unknown theme %q (expected %s or %s)", opts.Theme, ThemeLight, ThemeDark)
	}
	if opts.Unit != "" && opts.Unit != UnitMicros && opts.Unit != UnitMillis {
		return fmt.Errorf("unknown unit %q (expected %s or %s)", opts.Unit, UnitMicros, UnitMillis)
	}

	wIn, hIn := opts.size()
	width, height := vg.Length(wIn)*vg.Inch, vg.Length(hIn)*vg.Inch

	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(opts.DPI))
	dc := draw.New(img)
	dc.SetColor(th.background)
	dc.Fill(dc.Rectangle.Path())

	lo, hi := colorRange(fig)
	points := newColorMap(lo, hi, 0.85)
	bar := newColorMap(lo, hi, 1)

	ax := axisRanges(fig)
	if opts.Unit == UnitMillis {
		ax = linearMillis(fig, ax)
	}

	plots := make([][]*gplot.Plot, fig.Rows)
	for r := range plots {
		plots[r] = make([]*gplot.Plot, fig.Cols)
	}
	for i, panel := range fig.Panels {
		p, err := panelPlot(panel, ax, points, th)
		if err != nil {
			return fmt.Errorf("failed to build %s panel: %w", panel.Operator, err)
		}
		if i%fig.Cols == 0 {
			p.Y.Label.Text = ax.yLabel
		}
		plots[i/fig.Cols][i%fig.Cols] = p
	}

	barWidth := 1.1 * vg.Inch
	tiles := draw.Tiles{
		Rows:      fig.Rows,
		Cols:      fig.Cols,
		PadTop:    3 * vg.Millimeter,
		PadBottom: 3 * vg.Millimeter,
		PadLeft:   3 * vg.Millimeter,
		PadRight:  3 * vg.Millimeter,
		PadX:      6 * vg.Millimeter,
		PadY:      6 * vg.Millimeter,
	}
	canvases := gplot.Align(plots, tiles, draw.Crop(dc, 0, -barWidth, 0, 0))
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}

	cb := gplot.New()
	th.apply(cb)
	cb.HideX()
	cb.Y.Label.Text = levelLabel
	cb.Y.Tick.Marker = gplot.ConstantTicks(LevelTicks(lo, hi))
	cb.Add(&plotter.ColorBar{ColorMap: bar, Vertical: true, Colors: 255})
	cb.Draw(draw.Crop(dc, width-barWidth, -3*vg.Millimeter, height*0.15, -height*0.15))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// colorRange returns the level normalization bounds; a single level gets a
// unit range so the color bar stays drawable
func colorRange(fig *Figure) (lo, hi int) {
	lo, hi = fig.LevelMin, fig.LevelMax
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

func newColorMap(lo, hi int, alpha float64) palette.ColorMap {
	cm := moreland.Kindlmann()
	cm.SetMax(float64(hi))
	cm.SetMin(float64(lo))
	cm.SetAlpha(alpha)
	return cm
}

type axes struct {
	xMin, xMax float64
	yMin, yMax float64
	xTicks     []gplot.Tick
	yTicks     gplot.Ticker
	yScale     gplot.Normalizer
	yLabel     string
	yPerUs     float64 // y value of one microsecond
}

// axisRanges shares both axes across panels. The fixed byte ticks and the
// time decades are always in range; data outside them widens the range.
func axisRanges(fig *Figure) axes {
	xMin, xMax := ByteTickValues[0], ByteTickValues[len(ByteTickValues)-1]
	yMin, yMax := 0.1, math.Pow(10, float64(maxPower(fig.MaxTimeUs)))
	for _, panel := range fig.Panels {
		for _, pt := range panel.Points {
			xMin = math.Min(xMin, pt.Bytes)
			xMax = math.Max(xMax, pt.Bytes)
			yMin = math.Min(yMin, pt.TimeUs)
			yMax = math.Max(yMax, pt.TimeUs)
		}
	}
	return axes{
		xMin:   xMin / 1.3,
		xMax:   xMax * 1.3,
		yMin:   yMin / 1.5,
		yMax:   yMax * 1.5,
		xTicks: ByteTicks(),
		yTicks: gplot.ConstantTicks(TimeTicks(fig.MaxTimeUs)),
		yScale: gplot.LogScale{},
		yLabel: yLabel,
		yPerUs: 1,
	}
}

// linearMillis swaps the time axis of ax for a linear millisecond axis
// starting at zero. The byte axis is kept.
func linearMillis(fig *Figure, ax axes) axes {
	top := fig.MaxTimeUs / 1000
	if !positive(top) || math.IsInf(top, 0) {
		top = 1
	}
	ax.yMin, ax.yMax = 0, top*1.05
	ax.yTicks = gplot.DefaultTicks{}
	ax.yScale = gplot.LinearScale{}
	ax.yLabel = yLabelMs
	ax.yPerUs = 1e-3
	return ax
}

// middleY returns the visual center of the y range under its scale
func (ax axes) middleY() float64 {
	if _, ok := ax.yScale.(gplot.LogScale); ok {
		return math.Sqrt(ax.yMin * ax.yMax)
	}
	return (ax.yMin + ax.yMax) / 2
}

func panelPlot(panel Panel, ax axes, cmap palette.ColorMap, th theme) (*gplot.Plot, error) {
	p := gplot.New()
	th.apply(p)

	p.Title.Text = panel.Title
	p.X.Label.Text = xLabel
	p.X.Scale = gplot.LogScale{}
	p.Y.Scale = ax.yScale
	p.X.Tick.Marker = gplot.ConstantTicks(ax.xTicks)
	p.Y.Tick.Marker = ax.yTicks

	grid := plotter.NewGrid()
	grid.Vertical.Color = th.grid
	grid.Horizontal.Color = th.grid
	grid.Vertical.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	grid.Horizontal.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(grid)

	if len(panel.Points) == 0 {
		labels, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: math.Sqrt(ax.xMin * ax.xMax), Y: ax.middleY()}},
			Labels: []string{"No data for " + string(panel.Operator)},
		})
		if err != nil {
			return nil, err
		}
		for i := range labels.TextStyle {
			labels.TextStyle[i].XAlign = text.XCenter
			labels.TextStyle[i].YAlign = text.YCenter
			labels.TextStyle[i].Color = th.foreground
		}
		p.Add(labels)
	} else {
		xys := make(plotter.XYs, len(panel.Points))
		for i, pt := range panel.Points {
			xys[i].X = pt.Bytes
			xys[i].Y = pt.TimeUs * ax.yPerUs
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			c, err := cmap.At(float64(panel.Points[i].Level))
			if err != nil {
				c = th.foreground
			}
			return draw.GlyphStyle{Color: c, Radius: vg.Points(3), Shape: draw.CircleGlyph{}}
		}
		p.Add(scatter)
	}

	// Add widens the ranges to the data; pin them so panels share axes
	p.X.Min, p.X.Max = ax.xMin, ax.xMax
	p.Y.Min, p.Y.Max = ax.yMin, ax.yMax

	return p, nil
}
