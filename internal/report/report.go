// Package report renders result bundles as markdown, HTML and terminal
// plots. Rendering never touches process-wide state: every output target
// and layout choice arrives through the caller's RenderContext.
package report

import (
	"fmt"
	"io"
	"strings"

	"gobiodiv/domain/stats"
	"gobiodiv/internal/profiling"
)

// RenderContext carries the output target and layout for one rendering
type RenderContext struct {
	Out io.Writer
	// Precision is the number of decimals printed for metric values
	Precision int
	// Width and Height size terminal plots; zero picks asciigraph defaults.
	// Widths below 2 are ignored.
	Width  int
	Height int
	// Color enables ANSI colors in plots
	Color bool
}

// NewRenderContext returns a context writing to out with default layout
func NewRenderContext(out io.Writer) RenderContext {
	return RenderContext{Out: out, Precision: 3, Height: 10}
}

func (rc RenderContext) format(v stats.Value) string {
	if !v.Valid {
		return "NA"
	}
	return fmt.Sprintf("%.*f", rc.Precision, v.V)
}

// WriteMarkdown writes the full report: parameters, tests, group and site
// tables, per-group metric distributions and diagnostics
func WriteMarkdown(rc RenderContext, title string, b *stats.ResultBundle) error {
	var sb strings.Builder
	p := b.Params()

	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "Run `%s`, fingerprint `%s`, created %s.\n\n",
		b.RunID(), b.Fingerprint(), b.CreatedAt().Time().Format("2006-01-02 15:04:05 MST"))

	sb.WriteString("## Parameters\n\n| parameter | value |\n|---|---|\n")
	if p.GroupColumn != "" {
		fmt.Fprintf(&sb, "| group column | %s |\n", p.GroupColumn)
	}
	fmt.Fprintf(&sb, "| levels | %s |\n", strings.Join(p.Levels, ", "))
	fmt.Fprintf(&sb, "| n_min | %g |\n", p.NMin)
	fmt.Fprintf(&sb, "| nperm | %d |\n", p.NPerm)
	fmt.Fprintf(&sb, "| seed | %d |\n", p.Seed)
	fmt.Fprintf(&sb, "| unbiased PIE | %t |\n", p.UnbiasedPIE)
	if p.Estimator != "" {
		fmt.Fprintf(&sb, "| richness estimator | %s |\n", p.Estimator)
	}
	fmt.Fprintf(&sb, "| sample rarefaction effort | %s |\n", rc.format(p.SiteEffort))
	fmt.Fprintf(&sb, "| group rarefaction effort | %s |\n\n", rc.format(p.GroupEffort))

	sb.WriteString("## Group differences\n\n")
	sb.WriteString("| metric | statistic | F | df | parametric p | permutation p |\n|---|---|---|---|---|---|\n")
	for _, t := range b.Tests() {
		fmt.Fprintf(&sb, "| %s | %s | %s | %d, %d | %s | %s |\n",
			t.Metric, t.Statistic, rc.format(t.FObserved), t.DFBetween, t.DFWithin,
			rc.format(t.ParametricP), rc.format(t.PValue))
	}
	sb.WriteString("\n")

	sb.WriteString("## Groups\n\n")
	writeHeader(&sb, "group", "sites")
	for _, g := range b.Groups() {
		fmt.Fprintf(&sb, "| %s | %d |", g.Group, g.Size)
		writeMetrics(&sb, rc, g.Get)
	}
	sb.WriteString("\n")

	sb.WriteString("## Samples\n\n")
	writeHeader(&sb, "site", "group")
	for _, s := range b.Sites() {
		fmt.Fprintf(&sb, "| %s | %s |", s.SiteID, s.Group)
		writeMetrics(&sb, rc, s.Get)
	}
	sb.WriteString("\n")

	sb.WriteString("## Metric distributions\n\n")
	sb.WriteString("| metric | group | present | missing | mean | sd | min | median | max | skewness |\n|---|---|---|---|---|---|---|---|---|---|\n")
	for _, prof := range profiling.NewDistributionAnalyzer().ProfileBundle(b, stats.AllMetrics) {
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %s | %s | %s | %s | %s | %s |\n",
			prof.Metric, prof.Group, prof.Present, prof.Missing, rc.format(prof.Mean), rc.format(prof.StdDev),
			rc.format(prof.Min), rc.format(prof.Median), rc.format(prof.Max), rc.format(prof.Skewness))
	}
	sb.WriteString("\n")

	if diags := b.Diagnostics(); len(diags) > 0 {
		sb.WriteString("## Diagnostics\n\n")
		for _, d := range diags {
			fmt.Fprintf(&sb, "- **%s** (%s, %d): %s\n", d.Category, d.Scale, d.Count, d.Message)
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(rc.Out, sb.String())
	return err
}

func writeHeader(sb *strings.Builder, first, second string) {
	fmt.Fprintf(sb, "| %s | %s |", first, second)
	for _, m := range stats.AllMetrics {
		fmt.Fprintf(sb, " %s |", m)
	}
	sb.WriteString("\n|---|---|")
	for range stats.AllMetrics {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
}

func writeMetrics(sb *strings.Builder, rc RenderContext, get func(stats.Metric) stats.Value) {
	for _, m := range stats.AllMetrics {
		fmt.Fprintf(sb, " %s |", rc.format(get(m)))
	}
	sb.WriteString("\n")
}

// WriteSummary writes a compact p-value table for terminals
func WriteSummary(rc RenderContext, b *stats.ResultBundle) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-8s %-8s %10s %10s\n", "metric", "tested", "F", "p")
	for _, t := range b.Tests() {
		fmt.Fprintf(&sb, "%-8s %-8s %10s %10s\n", t.Metric, t.Statistic, rc.format(t.FObserved), rc.format(t.PValue))
	}
	for _, d := range b.Diagnostics() {
		fmt.Fprintf(&sb, "note: %s\n", d.Message)
	}
	_, err := io.WriteString(rc.Out, sb.String())
	return err
}
