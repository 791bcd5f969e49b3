package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/isaacvitor/postgresql-nutshell/internal/plot"
	"github.com/isaacvitor/postgresql-nutshell/internal/storage"
)

func newPlotCmd(a *app) *cobra.Command {
	var (
		input  string
		output string
		layout string
		theme  string
		unit   string
		dpi    int
		open   bool
	)

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render benchmark results as log-log scatter charts",
		Long: `Reads a results CSV and draws one log-log scatter panel per operator, byte
size against execution time in microseconds, colored by nesting level. The
grid layout is 2x2; the row layout is 1x4. With --unit ms the time axis is
linear in milliseconds instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &a.cfg.Plot
			if cmd.Flags().Changed("input") {
				p.Input = input
			}
			if cmd.Flags().Changed("output") {
				p.Output = output
			}
			if cmd.Flags().Changed("layout") {
				p.Layout = layout
			}
			if cmd.Flags().Changed("theme") {
				p.Theme = theme
			}
			if cmd.Flags().Changed("unit") {
				p.Unit = unit
			}
			if cmd.Flags().Changed("dpi") {
				p.DPI = dpi
			}
			if cmd.Flags().Changed("open") {
				p.Open = open
			}
			if err := a.validate(); err != nil {
				return err
			}
			return a.plot(cmd)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "results CSV to read (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG path (default from config)")
	cmd.Flags().StringVar(&layout, "layout", plot.LayoutGrid, "panel layout: grid or row")
	cmd.Flags().StringVar(&theme, "theme", plot.ThemeLight, "color theme: light or dark")
	cmd.Flags().StringVar(&unit, "unit", plot.UnitMicros, "time axis: us (log scale) or ms (linear scale)")
	cmd.Flags().IntVar(&dpi, "dpi", 200, "output resolution")
	cmd.Flags().BoolVar(&open, "open", false, "show the chart when a display is available")

	return cmd
}

func (a *app) plot(cmd *cobra.Command) error {
	coord := a.newCoordinator()
	defer closeAll(coord)
	ctx := cmd.Context()

	store, err := a.openStorage(coord)
	if err != nil {
		return err
	}

	p := a.cfg.Plot
	exists, err := store.Exists(ctx, p.Input)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("results %s not found; run the benchmark first", store.URI(p.Input))
	}
	data, err := store.Read(ctx, p.Input)
	if err != nil {
		return fmt.Errorf("cannot load results: %w", err)
	}

	table, err := plot.LoadTable(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", store.URI(p.Input), err)
	}
	log.Info().Str("path", store.URI(p.Input)).Int("rows", table.Len()).Msg("Loaded results")

	opts := plot.Options{
		Layout:   p.Layout,
		Theme:    p.Theme,
		Unit:     p.Unit,
		DPI:      p.DPI,
		Width:    p.Width,
		Height:   p.Height,
		BytesMin: p.BytesMin,
		BytesMax: p.BytesMax,
	}
	fig, err := plot.Prepare(table, opts)
	if err != nil {
		return err
	}
	if fig.Interpolated {
		log.Warn().
			Str("column", fig.BytesSource).
			Float64("bytes_min", p.BytesMin).
			Float64("bytes_max", p.BytesMax).
			Msg("bytes_raw unavailable; byte positions are interpolated, not measured")
	}
	if fig.Skipped > 0 {
		log.Info().Int("rows", fig.Skipped).Msg("Rows without a plottable time or size were skipped")
	}

	var buf bytes.Buffer
	if err := plot.Render(fig, opts, &buf); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if err := store.Write(ctx, p.Output, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d points)\n", store.URI(p.Output), fig.Points())

	if p.Open {
		show(store, p.Output)
	}
	return nil
}

// show opens a locally stored chart; anything else is only logged
func show(store storage.Backend, name string) {
	path, ok := storage.LocalPath(store, name)
	if !ok {
		log.Info().Str("backend", store.Type()).Msg("Chart is not on the local filesystem; not opening")
		return
	}
	if err := plot.Open(path); err != nil {
		if errors.Is(err, plot.ErrNoDisplay) {
			log.Info().Msg("No display available; not opening chart")
			return
		}
		log.Warn().Err(err).Msg("Failed to open chart")
	}
}
