package community

import (
	"fmt"
	"math"

	"gobiodiv/domain/core"
	apperrors "gobiodiv/internal/errors"

	"gonum.org/v1/gonum/floats"
)

// Matrix is a sites x species abundance table. It owns a private copy of
// its cells and never hands out references to them.
type Matrix struct {
	siteIDs []string
	species []string
	cells   [][]float64
}

// NewMatrix validates and copies rows into a Matrix. Nil siteIDs or species
// are replaced with generated names ("site_1", "sp_1", ...).
func NewMatrix(rows [][]float64, siteIDs, species []string) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, apperrors.InvalidInputf(core.ErrEmptyCommunity, "community matrix is empty")
	}
	width := len(rows[0])

	cells := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != width {
			return nil, apperrors.InvalidInputf(core.ErrRaggedMatrix,
				"site %d has %d species columns, expected %d", i+1, len(row), width)
		}
		if err := CheckAbundances(row); err != nil {
			return nil, apperrors.Wrapf(err, "site %d", i+1)
		}
		cells[i] = append([]float64(nil), row...)
	}

	if siteIDs == nil {
		siteIDs = generatedNames("site", len(rows))
	} else if len(siteIDs) != len(rows) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%d site IDs given for %d sites", len(siteIDs), len(rows)))
	}
	if species == nil {
		species = generatedNames("sp", width)
	} else if len(species) != width {
		return nil, apperrors.InvalidInput(fmt.Sprintf("%d species names given for %d columns", len(species), width))
	}

	return &Matrix{
		siteIDs: append([]string(nil), siteIDs...),
		species: append([]string(nil), species...),
		cells:   cells,
	}, nil
}

// CheckAbundances fails with InvalidInput on the first negative or
// non-finite value.
func CheckAbundances(x []float64) error {
	for j, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.InvalidInputf(core.ErrNonFinite, "abundance at column %d is %g", j+1, v)
		}
		if v < 0 {
			return apperrors.InvalidInputf(core.ErrNegativeAbundance,
				"abundances must be non-negative: column %d is %g", j+1, v)
		}
	}
	return nil
}

func generatedNames(prefix string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s_%d", prefix, i+1)
	}
	return names
}

// Sites returns the number of rows
func (m *Matrix) Sites() int { return len(m.cells) }

// Species returns the number of columns
func (m *Matrix) Species() int { return len(m.species) }

// SiteIDs returns a copy of the row labels
func (m *Matrix) SiteIDs() []string { return append([]string(nil), m.siteIDs...) }

// SiteID returns the label of row i
func (m *Matrix) SiteID(i int) string { return m.siteIDs[i] }

// SpeciesNames returns a copy of the column labels
func (m *Matrix) SpeciesNames() []string { return append([]string(nil), m.species...) }

// At returns the abundance of species j at site i
func (m *Matrix) At(i, j int) float64 { return m.cells[i][j] }

// Row returns a copy of site i's abundance vector
func (m *Matrix) Row(i int) []float64 {
	return append([]float64(nil), m.cells[i]...)
}

// Rows returns a deep copy of all cells
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, len(m.cells))
	for i := range m.cells {
		out[i] = m.Row(i)
	}
	return out
}

// RowTotals returns the number of individuals per site
func (m *Matrix) RowTotals() []float64 {
	totals := make([]float64, len(m.cells))
	for i, row := range m.cells {
		totals[i] = floats.Sum(row)
	}
	return totals
}

// Richness returns the number of species with nonzero abundance per site
func (m *Matrix) Richness() []int {
	out := make([]int, len(m.cells))
	for i, row := range m.cells {
		for _, v := range row {
			if v > 0 {
				out[i]++
			}
		}
	}
	return out
}

// ColumnTotals returns the abundance of each species summed over sites
func (m *Matrix) ColumnTotals() []float64 {
	totals := make([]float64, len(m.species))
	for _, row := range m.cells {
		floats.Add(totals, row)
	}
	return totals
}

// Fingerprint digests labels and cells
func (m *Matrix) Fingerprint() core.Fingerprint {
	b := core.NewFingerprintBuilder().Int(int64(len(m.cells))).Int(int64(len(m.species)))
	for _, s := range m.siteIDs {
		b.String(s)
	}
	for _, s := range m.species {
		b.String(s)
	}
	for _, row := range m.cells {
		for _, v := range row {
			b.Float(v)
		}
	}
	return b.Sum()
}
