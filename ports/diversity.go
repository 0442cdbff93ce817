package ports

import (
	"gobiodiv/domain/community"
	"gobiodiv/domain/stats"
)

// Rarefier computes expected richness when effort individuals are drawn
// without replacement from one site's pool. Effort must not exceed the
// site's total.
type Rarefier interface {
	Rarefy(abundance []float64, effort float64) (float64, error)
}

// RichnessEstimator returns one bias-corrected (asymptotic) richness
// estimate per site. Degenerate rows yield missing values.
type RichnessEstimator interface {
	Name() string
	Estimate(m *community.Matrix) ([]stats.Value, error)
}
