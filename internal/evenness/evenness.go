// Package evenness computes the Probability of Interspecific Encounter
// (PIE) and its effective number of species (ENS_PIE, inverse Simpson).
package evenness

import (
	"gobiodiv/domain/community"
	"gobiodiv/domain/stats"
)

// Options tune the PIE formula
type Options struct {
	// Unbiased applies Hurlbert's N/(N-1) finite-sample correction
	Unbiased bool
}

// Calculator computes PIE and ENS_PIE for sites
type Calculator struct {
	opts Options
}

// NewCalculator creates a calculator
func NewCalculator(opts Options) *Calculator {
	return &Calculator{opts: opts}
}

// Options returns the formula settings
func (c *Calculator) Options() Options { return c.opts }

// Default is the plain-formula calculator, PIE = 1 - sum(p_i^2)
var Default = NewCalculator(Options{})

// simpson returns sum(p_i^2) and the row total
func simpson(x []float64) (float64, float64) {
	total := 0.0
	for _, v := range x {
		total += v
	}
	if total == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range x {
		p := v / total
		sum += p * p
	}
	return sum, total
}

// PIE returns the Probability of Interspecific Encounter of one site. A site
// with no individuals yields a missing value.
func (c *Calculator) PIE(x []float64) (stats.Value, error) {
	if err := community.CheckAbundances(x); err != nil {
		return stats.Missing(), err
	}
	return c.pie(x), nil
}

func (c *Calculator) pie(x []float64) stats.Value {
	d, total := simpson(x)
	if total == 0 {
		return stats.Missing()
	}
	pie := 1 - d
	if c.opts.Unbiased {
		if total <= 1 {
			return stats.Missing()
		}
		pie *= total / (total - 1)
	}
	return stats.Of(pie)
}

// ENSPIE returns the inverse Simpson index 1/sum(p_i^2) of one site
func (c *Calculator) ENSPIE(x []float64) (stats.Value, error) {
	if err := community.CheckAbundances(x); err != nil {
		return stats.Missing(), err
	}
	return c.enspie(x), nil
}

func (c *Calculator) enspie(x []float64) stats.Value {
	if c.opts.Unbiased {
		pie := c.pie(x)
		if !pie.Valid || pie.V >= 1 {
			return stats.Missing()
		}
		return stats.Of(1 / (1 - pie.V))
	}
	d, total := simpson(x)
	if total == 0 {
		return stats.Missing()
	}
	return stats.Of(1 / d)
}

// PIERows computes PIE per row. Every row is validated before any value is
// computed, so a negative cell anywhere yields no partial result.
func (c *Calculator) PIERows(rows [][]float64) ([]stats.Value, error) {
	return c.rows(rows, c.pie)
}

// ENSPIERows computes ENS_PIE per row with the same contract as PIERows
func (c *Calculator) ENSPIERows(rows [][]float64) ([]stats.Value, error) {
	return c.rows(rows, c.enspie)
}

func (c *Calculator) rows(rows [][]float64, f func([]float64) stats.Value) ([]stats.Value, error) {
	for _, row := range rows {
		if err := community.CheckAbundances(row); err != nil {
			return nil, err
		}
	}
	out := make([]stats.Value, len(rows))
	for i, row := range rows {
		out[i] = f(row)
	}
	return out, nil
}

// Matrix computes PIE and ENS_PIE for every site of an already validated matrix
func (c *Calculator) Matrix(m *community.Matrix) (pie, ens []stats.Value) {
	pie = make([]stats.Value, m.Sites())
	ens = make([]stats.Value, m.Sites())
	for i := 0; i < m.Sites(); i++ {
		row := m.Row(i)
		pie[i] = c.pie(row)
		ens[i] = c.enspie(row)
	}
	return pie, ens
}
