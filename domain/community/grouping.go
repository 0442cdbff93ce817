package community

import (
	"fmt"
	"sort"

	"gobiodiv/domain/core"
	apperrors "gobiodiv/internal/errors"
)

// Grouping assigns every site to one level of a categorical treatment.
// Levels keep their declared order; labels only matter for partitioning.
type Grouping struct {
	labels []string
	levels []string
	codes  []int
}

// NewGrouping builds a grouping from per-site labels. When levels is nil the
// level order is the sorted set of distinct labels.
func NewGrouping(labels []string, levels []string) (*Grouping, error) {
	if len(labels) == 0 {
		return nil, apperrors.InvalidInput("grouping has no labels")
	}

	if levels == nil {
		seen := make(map[string]struct{}, len(labels))
		for _, l := range labels {
			if _, ok := seen[l]; !ok {
				seen[l] = struct{}{}
				levels = append(levels, l)
			}
		}
		sort.Strings(levels)
	}

	index := make(map[string]int, len(levels))
	for i, lvl := range levels {
		if _, dup := index[lvl]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("grouping level %q declared twice", lvl))
		}
		index[lvl] = i
	}

	codes := make([]int, len(labels))
	for i, l := range labels {
		code, ok := index[l]
		if !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("site %d has label %q which is not a declared level", i+1, l))
		}
		codes[i] = code
	}

	return &Grouping{
		labels: append([]string(nil), labels...),
		levels: append([]string(nil), levels...),
		codes:  codes,
	}, nil
}

// Len returns the number of sites
func (g *Grouping) Len() int { return len(g.labels) }

// NumLevels returns the number of levels
func (g *Grouping) NumLevels() int { return len(g.levels) }

// Labels returns a copy of the per-site labels
func (g *Grouping) Labels() []string { return append([]string(nil), g.labels...) }

// Levels returns a copy of the level order
func (g *Grouping) Levels() []string { return append([]string(nil), g.levels...) }

// Level returns the name of level k
func (g *Grouping) Level(k int) string { return g.levels[k] }

// Label returns site i's label
func (g *Grouping) Label(i int) string { return g.labels[i] }

// Code returns site i's level index
func (g *Grouping) Code(i int) int { return g.codes[i] }

// Codes returns a copy of the per-site level indices
func (g *Grouping) Codes() []int { return append([]int(nil), g.codes...) }

// Sizes returns the number of sites in each level
func (g *Grouping) Sizes() []int {
	sizes := make([]int, len(g.levels))
	for _, c := range g.codes {
		sizes[c]++
	}
	return sizes
}

// Members returns the site indices belonging to level k, in site order
func (g *Grouping) Members(k int) []int {
	var out []int
	for i, c := range g.codes {
		if c == k {
			out = append(out, i)
		}
	}
	return out
}

// Validate checks that the grouping covers exactly the sites of m
func (g *Grouping) Validate(m *Matrix) error {
	if g.Len() != m.Sites() {
		return apperrors.InvalidInputf(core.ErrGroupingMismatch,
			"grouping has %d labels but the matrix has %d sites", g.Len(), m.Sites())
	}
	return nil
}
