package analysis

import (
	"math"

	"gobiodiv/domain/stats"

	"gonum.org/v1/gonum/stat/distuv"
)

// fStat is a one-way ANOVA fit. F is NaN when the fit is undefined and +Inf
// when groups differ but have no within-group spread.
type fStat struct {
	F         float64
	DFBetween int
	DFWithin  int
}

func (f fStat) defined() bool { return !math.IsNaN(f.F) }

// parametricP returns the upper-tail probability of F under the F
// distribution with the fitted degrees of freedom
func (f fStat) parametricP() stats.Value {
	if !f.defined() {
		return stats.Missing()
	}
	if math.IsInf(f.F, 1) {
		return stats.Of(0)
	}
	dist := distuv.F{D1: float64(f.DFBetween), D2: float64(f.DFWithin)}
	return stats.Of(dist.Survival(f.F))
}

// column is one metric prepared for repeated ANOVA fits: only the sites
// with a value take part
type column struct {
	metric   stats.Metric
	idx      []int
	vals     []float64
	constant bool
}

func newColumn(metric stats.Metric, values []stats.Value) *column {
	c := &column{metric: metric, constant: true}
	for i, v := range values {
		if !v.Valid {
			continue
		}
		if len(c.vals) > 0 && v.V != c.vals[0] {
			c.constant = false
		}
		c.idx = append(c.idx, i)
		c.vals = append(c.vals, v.V)
	}
	return c
}

// scratch holds per-goroutine group accumulators
type scratch struct {
	sums   []float64
	counts []int
}

func newScratch(levels int) *scratch {
	return &scratch{sums: make([]float64, levels), counts: make([]int, levels)}
}

// fit computes the F statistic of the column against per-site group codes
func (c *column) fit(codes []int, s *scratch) fStat {
	for k := range s.sums {
		s.sums[k] = 0
		s.counts[k] = 0
	}

	total := 0.0
	for j, i := range c.idx {
		k := codes[i]
		s.sums[k] += c.vals[j]
		s.counts[k]++
		total += c.vals[j]
	}

	groups := 0
	for _, n := range s.counts {
		if n > 0 {
			groups++
		}
	}
	n := len(c.vals)
	res := fStat{F: math.NaN(), DFBetween: groups - 1, DFWithin: n - groups}
	if groups < 2 || res.DFWithin < 1 || c.constant {
		return res
	}

	grand := total / float64(n)
	ssb := 0.0
	for k, cnt := range s.counts {
		if cnt == 0 {
			continue
		}
		d := s.sums[k]/float64(cnt) - grand
		ssb += float64(cnt) * d * d
	}
	ssw := 0.0
	for j, i := range c.idx {
		k := codes[i]
		d := c.vals[j] - s.sums[k]/float64(s.counts[k])
		ssw += d * d
	}

	if ssw == 0 {
		res.F = math.Inf(1)
		return res
	}
	res.F = (ssb / float64(res.DFBetween)) / (ssw / float64(res.DFWithin))
	return res
}
