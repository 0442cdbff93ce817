package diversity

import (
	"math"

	"gobiodiv/domain/core"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/ports"

	"gonum.org/v1/gonum/floats"
)

// HurlbertRarefier implements individual-based rarefaction (Hurlbert 1971,
// Heck et al. 1975): the expected number of species seen when effort
// individuals are drawn without replacement from a site's pool.
type HurlbertRarefier struct{}

var _ ports.Rarefier = HurlbertRarefier{}

// NewHurlbertRarefier creates the rarefier
func NewHurlbertRarefier() HurlbertRarefier {
	return HurlbertRarefier{}
}

// Rarefy returns E[S_effort] = sum_i 1 - C(N-N_i, effort) / C(N, effort)
func (HurlbertRarefier) Rarefy(abundance []float64, effort float64) (float64, error) {
	if err := checkNonNegative(abundance); err != nil {
		return 0, err
	}
	if effort < 0 || math.IsNaN(effort) {
		return 0, apperrors.InvalidInputf(core.ErrInvalidEffort, "effort %g is not a valid sample size", effort)
	}

	total := floats.Sum(abundance)
	if effort > total {
		return 0, apperrors.InvalidInputf(core.ErrEffortExceedsTotal,
			"effort %g exceeds the site's %g individuals", effort, total)
	}
	if effort == 0 {
		return 0, nil
	}

	denom := lchoose(total, effort)
	expected := 0.0
	for _, ni := range abundance {
		if ni <= 0 {
			continue
		}
		rest := total - ni
		if rest < effort {
			// every draw of this size must include species i
			expected++
			continue
		}
		expected += 1 - math.Exp(lchoose(rest, effort)-denom)
	}
	return expected, nil
}

// lchoose is log C(n, k) for real n >= k >= 0
func lchoose(n, k float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}

func checkNonNegative(x []float64) error {
	for j, v := range x {
		if v < 0 {
			return apperrors.InvalidInputf(core.ErrNegativeAbundance,
				"abundances must be non-negative: column %d is %g", j+1, v)
		}
	}
	return nil
}
