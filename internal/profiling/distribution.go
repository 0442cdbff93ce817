// Package profiling summarizes how each site metric is distributed within
// each group
package profiling

import (
	"math"

	"gobiodiv/domain/stats"

	mstats "github.com/montanaflynn/stats"
)

// Profile describes the present values of one metric within one group.
// Moments that need more values than are present stay missing.
type Profile struct {
	Metric   stats.Metric `json:"metric"`
	Group    string       `json:"group"`
	Present  int          `json:"present"`
	Missing  int          `json:"missing"`
	Mean     stats.Value  `json:"mean"`
	StdDev   stats.Value  `json:"std_dev"`
	Min      stats.Value  `json:"min"`
	Q25      stats.Value  `json:"q25"`
	Median   stats.Value  `json:"median"`
	Q75      stats.Value  `json:"q75"`
	Max      stats.Value  `json:"max"`
	Skewness stats.Value  `json:"skewness"`
	Kurtosis stats.Value  `json:"kurtosis"`
	Outliers int          `json:"outliers"`
}

// DistributionAnalyzer profiles metric columns
type DistributionAnalyzer struct{}

// NewDistributionAnalyzer creates a new distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{}
}

// ProfileBundle profiles every metric for every group of b, in metric then
// level order
func (da *DistributionAnalyzer) ProfileBundle(b *stats.ResultBundle, metrics []stats.Metric) []Profile {
	levels := b.Params().Levels
	sites := b.Sites()

	var out []Profile
	for _, m := range metrics {
		for _, level := range levels {
			var values []stats.Value
			for _, s := range sites {
				if s.Group == level {
					values = append(values, s.Get(m))
				}
			}
			p := da.AnalyzeDistribution(values)
			p.Metric = m
			p.Group = level
			out = append(out, p)
		}
	}
	return out
}

// AnalyzeDistribution profiles one column, skipping missing cells
func (da *DistributionAnalyzer) AnalyzeDistribution(values []stats.Value) Profile {
	data := make(mstats.Float64Data, 0, len(values))
	for _, v := range values {
		if v.Valid {
			data = append(data, v.V)
		}
	}

	p := Profile{Present: len(data), Missing: len(values) - len(data)}
	if len(data) == 0 {
		return p
	}

	mean, _ := data.Mean()
	min, _ := data.Min()
	max, _ := data.Max()
	median, _ := data.Median()
	p.Mean = stats.Of(mean)
	p.Min = stats.Of(min)
	p.Max = stats.Of(max)
	p.Median = stats.Of(median)

	if q25, err := data.Percentile(25); err == nil {
		p.Q25 = stats.Of(q25)
	}
	if q75, err := data.Percentile(75); err == nil {
		p.Q75 = stats.Of(q75)
	}
	if p.Q25.Valid && p.Q75.Valid {
		p.Outliers = detectOutliers(data, p.Q25.V, p.Q75.V)
	}

	if len(data) < 2 {
		return p
	}
	stdDev, _ := data.StandardDeviationSample()
	p.StdDev = stats.Of(stdDev)
	if stdDev > 0 {
		p.Skewness = calculateSkewness(data, mean, stdDev)
		p.Kurtosis = calculateKurtosis(data, mean, stdDev)
	}
	return p
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) stats.Value {
	if len(data) < 3 {
		return stats.Missing()
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	// sample standard deviation in the denominator, so G1 = n/((n-1)(n-2)) * sum
	return stats.Of(sumCubedDeviations * n / ((n - 1) * (n - 2)))
}

// calculateKurtosis computes sample excess kurtosis (G2)
func calculateKurtosis(data []float64, mean, stdDev float64) stats.Value {
	if len(data) < 4 {
		return stats.Missing()
	}

	n := float64(len(data))
	sumFourthDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumFourthDeviations += deviation * deviation * deviation * deviation
	}

	g2 := n*(n+1)/((n-1)*(n-2)*(n-3))*sumFourthDeviations - 3*(n-1)*(n-1)/((n-2)*(n-3))
	return stats.Of(g2)
}

// detectOutliers counts values outside the 1.5 IQR fences
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}

// CoefficientOfVariation returns stddev/|mean|, missing when the mean is 0
func (p Profile) CoefficientOfVariation() stats.Value {
	if !p.StdDev.Valid || !p.Mean.Valid || p.Mean.V == 0 {
		return stats.Missing()
	}
	return stats.Of(p.StdDev.V / math.Abs(p.Mean.V))
}
