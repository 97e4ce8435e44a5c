package transform

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/meshc/ir"
)

// Mapping identifies one index-conversion table to stage into
// block-local storage.
type Mapping struct {
	Element ir.ElementType
	Conv    ir.ConvType
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s.%s", m.Element, m.Conv)
}

func compareMappings(a, b Mapping) int {
	if c := cmp.Compare(a.Element, b.Element); c != 0 {
		return c
	}
	return cmp.Compare(a.Conv, b.Conv)
}

// MappingSelector decides which mappings of a task are localized.
type MappingSelector interface {
	Select(t *ir.Task) []Mapping
}

// SelectorFunc adapts a function to MappingSelector.
type SelectorFunc func(t *ir.Task) []Mapping

// Select calls f(t).
func (f SelectorFunc) Select(t *ir.Task) []Mapping {
	return f(t)
}

// FixedSelector selects the same mappings for every task.
type FixedSelector []Mapping

// Select returns the fixed mappings.
func (s FixedSelector) Select(*ir.Task) []Mapping {
	return s
}

// DefaultSelector localizes the vertex local-to-global table only.
func DefaultSelector() MappingSelector {
	return FixedSelector{{Element: ir.Vertex, Conv: ir.L2G}}
}

// selectMappings returns the selected mappings sorted and deduplicated,
// so the layout does not depend on selector order.
func selectMappings(sel MappingSelector, t *ir.Task) []Mapping {
	mappings := slices.Clone(sel.Select(t))
	slices.SortFunc(mappings, compareMappings)
	return slices.Compact(mappings)
}
