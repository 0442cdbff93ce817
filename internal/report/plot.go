package report

import (
	"fmt"
	"io"
	"math"

	"gobiodiv/domain/stats"

	"github.com/guptarohit/asciigraph"
)

var groupColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Goldenrod,
	asciigraph.Purple, asciigraph.Cyan, asciigraph.Orange, asciigraph.Gray,
}

// PlotMetric draws one series per group of the per-site values of m. Missing
// values leave gaps.
func PlotMetric(rc RenderContext, b *stats.ResultBundle, m stats.Metric) error {
	levels := b.Params().Levels
	index := make(map[string]int, len(levels))
	series := make([][]float64, len(levels))
	for k, l := range levels {
		index[l] = k
	}

	valid := 0
	for _, s := range b.Sites() {
		k, ok := index[s.Group]
		if !ok {
			continue
		}
		v := s.Get(m)
		if v.Valid {
			valid++
		}
		series[k] = append(series[k], v.Float())
	}

	if valid == 0 {
		_, err := fmt.Fprintf(rc.Out, "%s: no values to plot\n", m)
		return err
	}

	// asciigraph needs at least one defined point per series
	var data [][]float64
	var legends []string
	var colors []asciigraph.AnsiColor
	for k, s := range series {
		if !anyDefined(s) {
			continue
		}
		data = append(data, s)
		legends = append(legends, levels[k])
		if rc.Color {
			colors = append(colors, groupColors[k%len(groupColors)])
		} else {
			colors = append(colors, asciigraph.Default)
		}
	}

	opts := []asciigraph.Option{
		asciigraph.Caption(fmt.Sprintf("%s per site by group", m)),
		asciigraph.Precision(uint(rc.Precision)),
		// every legend needs a color entry, Default renders uncolored
		asciigraph.SeriesLegends(legends...),
		asciigraph.SeriesColors(colors...),
	}
	if rc.Height > 0 {
		opts = append(opts, asciigraph.Height(rc.Height))
	}
	if rc.Width > 1 {
		opts = append(opts, asciigraph.Width(rc.Width))
	}

	_, err := io.WriteString(rc.Out, asciigraph.PlotMany(data, opts...)+"\n")
	return err
}

func anyDefined(s []float64) bool {
	for _, v := range s {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}
