package diversity

import (
	"math"

	"gobiodiv/domain/community"
	"gobiodiv/domain/stats"
	"gobiodiv/ports"

	"gonum.org/v1/gonum/floats"
)

// Chao1Estimator is the bias-corrected Chao1 asymptotic richness estimator:
//
//	S_chao1 = S_obs + F1(F1-1) / (2(F2+1)) * (N-1)/N
//
// where F1 and F2 count singleton and doubleton species.
type Chao1Estimator struct{}

var _ ports.RichnessEstimator = Chao1Estimator{}

// NewChao1Estimator creates the estimator
func NewChao1Estimator() Chao1Estimator {
	return Chao1Estimator{}
}

// Name identifies the estimator in reports
func (Chao1Estimator) Name() string { return "chao1" }

// Estimate returns one estimate per site; all-zero rows are missing
func (e Chao1Estimator) Estimate(m *community.Matrix) ([]stats.Value, error) {
	out := make([]stats.Value, m.Sites())
	for i := range out {
		out[i] = e.EstimateRow(m.Row(i))
	}
	return out, nil
}

// EstimateRow computes the estimate for a single abundance vector
func (Chao1Estimator) EstimateRow(x []float64) stats.Value {
	n := floats.Sum(x)
	if n <= 0 {
		return stats.Missing()
	}

	var sObs, f1, f2 float64
	for _, v := range x {
		if v <= 0 {
			continue
		}
		sObs++
		r := math.Round(v)
		if math.Abs(v-r) > 1e-9 {
			continue
		}
		switch r {
		case 1:
			f1++
		case 2:
			f2++
		}
	}

	return stats.Of(sObs + f1*(f1-1)/(2*(f2+1))*(n-1)/n)
}
