package query

import (
	"bytes"

	"github.com/conure-db/graphdb/internal/graphmodel"
)

// defaultVertexPredicate treats a pattern vertex as a filter: every
// pattern label must be present on the target vertex, and every
// pattern property must be present and equal on the target. A pattern
// vertex with no labels and no properties matches anything, so an
// unconstrained pattern vertex ranges over the whole target graph.
func defaultVertexPredicate(patternLabels []string, patternProps graphmodel.Properties, targetLabels []string, targetProps graphmodel.Properties) bool {
	for _, pl := range patternLabels {
		if !containsLabel(targetLabels, pl) {
			return false
		}
	}
	return propertiesMatch(patternProps, targetProps)
}

// defaultEdgePredicate treats a pattern relationship the same way: an
// empty pattern type matches any target type, and every pattern
// property must be present and equal on the target.
func defaultEdgePredicate(patternType string, patternProps graphmodel.Properties, targetType string, targetProps graphmodel.Properties) bool {
	if patternType != "" && patternType != targetType {
		return false
	}
	return propertiesMatch(patternProps, targetProps)
}

func containsLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func propertiesMatch(pattern, target graphmodel.Properties) bool {
	for k, pv := range pattern {
		tv, ok := target[k]
		if !ok || !valuesEqual(pv, tv) {
			return false
		}
	}
	return true
}

// valuesEqual compares two property values. []byte is not comparable
// with ==, so it gets its own case rather than risking a panic from a
// bare interface comparison.
func valuesEqual(a, b graphmodel.Value) bool {
	ab, aIsBytes := a.([]byte)
	bb, bIsBytes := b.([]byte)
	if aIsBytes || bIsBytes {
		return aIsBytes && bIsBytes && bytes.Equal(ab, bb)
	}
	return a == b
}
