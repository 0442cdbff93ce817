package analysis

import (
	"math"

	"gobiodiv/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// summarizeNull describes the finite part of a null distribution
func summarizeNull(null []float64) stats.NullSummary {
	finite := make([]float64, 0, len(null))
	for _, f := range null {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			finite = append(finite, f)
		}
	}

	s := stats.NullSummary{Draws: len(null), Defined: len(finite)}
	if len(finite) == 0 {
		return s
	}

	data := mstats.Float64Data(finite)
	s.Mean, _ = data.Mean()
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	if len(finite) > 1 {
		s.StdDev, _ = data.StandardDeviationSample()
	}
	s.Percentile95 = percentileOr(data, 95, s.Max)
	s.Percentile99 = percentileOr(data, 99, s.Max)
	return s
}

func percentileOr(data mstats.Float64Data, p, fallback float64) float64 {
	v, err := data.Percentile(p)
	if err != nil || math.IsNaN(v) {
		return fallback
	}
	return v
}
