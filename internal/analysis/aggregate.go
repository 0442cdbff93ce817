package analysis

import (
	"gobiodiv/domain/community"

	"gonum.org/v1/gonum/floats"
)

// Pool sums the abundances of each group's member sites. The result has one
// row per grouping level, in level order, labelled with the level name.
// Levels without members produce an all-zero row.
func Pool(m *community.Matrix, g *community.Grouping) (*community.Matrix, error) {
	if err := g.Validate(m); err != nil {
		return nil, err
	}

	rows := make([][]float64, g.NumLevels())
	for k := range rows {
		rows[k] = make([]float64, m.Species())
	}
	for i := 0; i < m.Sites(); i++ {
		floats.Add(rows[g.Code(i)], m.Row(i))
	}

	return community.NewMatrix(rows, g.Levels(), m.SpeciesNames())
}
