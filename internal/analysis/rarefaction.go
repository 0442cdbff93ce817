package analysis

import (
	"math"

	"gobiodiv/domain/stats"
	"gobiodiv/ports"
)

// rarefactionEffort returns max(nMin, smallest total among rows holding at
// least nMin individuals). ok is false when no row qualifies.
func rarefactionEffort(totals []float64, nMin float64) (effort float64, ok bool) {
	effort = math.Inf(1)
	for _, n := range totals {
		if n >= nMin && n > 0 && n < effort {
			effort = n
		}
	}
	if math.IsInf(effort, 1) {
		return 0, false
	}
	return math.Max(nMin, effort), true
}

// rarefyRows computes rarefied richness for every row at a common effort.
// Rows below nMin and rows the rarefier rejects are left missing and
// reported through diag.
func rarefyRows(r ports.Rarefier, rows [][]float64, totals []float64, nMin float64, scale stats.Scale, diag *diagnostics) ([]stats.Value, stats.Value) {
	out := make([]stats.Value, len(rows))

	below := 0
	for _, n := range totals {
		if n > 0 && n < nMin {
			below++
		}
	}
	diag.add(stats.DiagBelowMinimum, scale, below,
		"%d %s(s) with fewer than %g individuals excluded from rarefaction", below, scale, nMin)

	effort, ok := rarefactionEffort(totals, nMin)
	if !ok {
		return out, stats.Missing()
	}

	failed := 0
	for i, row := range rows {
		if totals[i] < nMin || totals[i] == 0 {
			continue
		}
		s, err := r.Rarefy(row, effort)
		if err != nil {
			failed++
			continue
		}
		out[i] = stats.Of(s)
	}
	diag.add(stats.DiagRarefactionFailed, scale, failed,
		"rarefaction to %g individuals failed for %d %s(s)", effort, failed, scale)

	return out, stats.Of(effort)
}
