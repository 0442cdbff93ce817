package community

import (
	"fmt"
	"sort"

	apperrors "gobiodiv/internal/errors"
)

// Dataset is a community matrix plus categorical site attributes, as loaded
// from a file or request. The grouping used by an analysis is one of the
// attribute columns.
type Dataset struct {
	Name       string
	Matrix     *Matrix
	Attributes map[string][]string
}

// AttributeNames returns the attribute columns in sorted order
func (d *Dataset) AttributeNames() []string {
	names := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Grouping builds a grouping from the named attribute column
func (d *Dataset) Grouping(column string, levels []string) (*Grouping, error) {
	labels, ok := d.Attributes[column]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("site attribute %q not found (have %v)", column, d.AttributeNames()))
	}
	g, err := NewGrouping(labels, levels)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(d.Matrix); err != nil {
		return nil, err
	}
	return g, nil
}
