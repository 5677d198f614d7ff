// Package query implements the Query Driver (C9): it dispatches a
// sequence of MATCH/CREATE steps against the Graph Repository, using
// the Graph Proxy and VF2 matcher for reads and the repository's write
// path for writes, and serializes writers per session through the
// session-status automaton in session.go (grounded on
// one-graph-tx-handler/src/lib.rs's handle_graph_request).
package query

import (
	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/vf2"
)

// StepKind tags a Step as either a pattern match (read) or a create
// (write).
type StepKind uint8

const (
	StepMatch StepKind = iota
	StepCreate
)

// Step is one unit of driver work: a kind plus the patterns it applies
// to. A single step may carry several independent patterns (e.g. one
// per clause of a multi-pattern MATCH).
type Step struct {
	Kind     StepKind
	Patterns []*graphmodel.PropertyGraph
}

// needsWriteLock reports whether any step in a dispatch requires the
// repository's write lock.
func needsWriteLock(steps []Step) bool {
	for _, s := range steps {
		if s.Kind == StepCreate {
			return true
		}
	}
	return false
}

// PatternResult is one pattern's outcome within a step: for StepMatch,
// every embedding VF2 found; for StepCreate, the concrete vertex ids
// the pattern's vertices were bound to (by pattern-local index).
type PatternResult struct {
	Pattern       *graphmodel.PropertyGraph
	Mappings      []vf2.Mapping
	BoundVertices []graphmodel.VertexID
}

// StepResult is one step's outcome, one PatternResult per pattern.
type StepResult struct {
	Kind     StepKind
	Patterns []PatternResult
}

// Result is the full outcome of a Dispatch/Execute call, one
// StepResult per step, in order.
type Result struct {
	Steps []StepResult
}
