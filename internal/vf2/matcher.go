package vf2

import (
	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/proxy"
)

// VertexPredicate reports whether a target vertex (labels, properties)
// is compatible with a pattern vertex (labels, properties) — it decides
// vertex_comp feasibility.
type VertexPredicate func(patternLabels []string, patternProps graphmodel.Properties, targetLabels []string, targetProps graphmodel.Properties) bool

// EdgePredicate reports whether a target relationship is compatible
// with a pattern relationship — it decides edge_comp feasibility.
type EdgePredicate func(patternType string, patternProps graphmodel.Properties, targetType string, targetProps graphmodel.Properties) bool

// Mapping is one full embedding of the pattern into the target: pattern
// vertex index -> matched target vertex id.
type Mapping struct {
	Vertices map[int]graphmodel.VertexID
}

type matcher struct {
	pattern    *graphmodel.PropertyGraph
	target     *proxy.GraphProxy
	vertexPred VertexPredicate
	edgePred   EdgePredicate

	patternState BaseState[int, proxy.ProxyNodeID]
	targetState  BaseState[proxy.ProxyNodeID, int]
}

// FindAll enumerates every embedding of pattern into target satisfying
// vertexPred and edgePred, invoking emit once per match. emit returning
// false stops the search early.
func FindAll(pattern *graphmodel.PropertyGraph, target *proxy.GraphProxy, vertexPred VertexPredicate, edgePred EdgePredicate, emit func(Mapping) (bool, error)) error {
	m := &matcher{
		pattern:      pattern,
		target:       target,
		vertexPred:   vertexPred,
		edgePred:     edgePred,
		patternState: newBaseState[int, proxy.ProxyNodeID](),
		targetState:  newBaseState[proxy.ProxyNodeID, int](),
	}
	_, err := m.step(emit)
	return err
}

func (m *matcher) patternInAdj(v int) ([]int, error) {
	idxs := m.pattern.InRelationships(v)
	out := make([]int, len(idxs))
	for i, relIdx := range idxs {
		out[i] = m.pattern.Relationships[relIdx].Source
	}
	return out, nil
}

func (m *matcher) patternOutAdj(v int) ([]int, error) {
	idxs := m.pattern.OutRelationships(v)
	out := make([]int, len(idxs))
	for i, relIdx := range idxs {
		out[i] = m.pattern.Relationships[relIdx].Target
	}
	return out, nil
}

func (m *matcher) targetInAdj(v proxy.ProxyNodeID) ([]proxy.ProxyNodeID, error) {
	var out []proxy.ProxyNodeID
	it := m.target.InEdges(v)
	for {
		_, other, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, other)
	}
	return out, nil
}

func (m *matcher) targetOutAdj(v proxy.ProxyNodeID) ([]proxy.ProxyNodeID, error) {
	var out []proxy.ProxyNodeID
	it := m.target.OutEdges(v)
	for {
		_, other, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, other)
	}
	return out, nil
}

func (m *matcher) push(v0 int, w0 proxy.ProxyNodeID) error {
	if err := push[int, proxy.ProxyNodeID](&m.patternState, m.patternInAdj, m.patternOutAdj, v0, w0); err != nil {
		return err
	}
	return push[proxy.ProxyNodeID, int](&m.targetState, m.targetInAdj, m.targetOutAdj, w0, v0)
}

func (m *matcher) pop(v0 int, w0 proxy.ProxyNodeID) error {
	if _, ok := m.patternState.core(v0); !ok {
		return nil
	}
	if err := pop[int, proxy.ProxyNodeID](&m.patternState, m.patternInAdj, m.patternOutAdj, v0); err != nil {
		return err
	}
	return pop[proxy.ProxyNodeID, int](&m.targetState, m.targetInAdj, m.targetOutAdj, w0)
}

func (m *matcher) success() bool {
	return m.patternState.count() == len(m.pattern.Vertices)
}

func (m *matcher) valid() bool {
	pIn, pOut, pBoth := m.patternState.termSet()
	tIn, tOut, tBoth := m.targetState.termSet()
	return pIn <= tIn && pOut <= tOut && pBoth <= tBoth
}

// nextPatternVertex returns the smallest-index pattern vertex not yet
// in the core, and false once every pattern vertex is mapped. Unlike
// the target side, the pattern side is walked in a fixed canonical
// order rather than through possible_candidate_0's bucket test: state.rs
// supplies the bucket predicates but not the top-level driving loop
// that decides how to fan out over BOTH sides at once, and fanning out
// over both independently double-counts completed mappings reached via
// different assignment orders. Fixing the pattern side to one
// deterministic choice per depth and varying only the target side
// (through possibleCandidate1) enumerates every embedding exactly once.
func (m *matcher) nextPatternVertex() (int, bool) {
	for v := 0; v < len(m.pattern.Vertices); v++ {
		if !m.patternState.inCore(v) {
			return v, true
		}
	}
	return 0, false
}

func (m *matcher) possibleCandidate1(w proxy.ProxyNodeID) bool {
	switch {
	case m.patternState.termBoth() && m.targetState.termBoth():
		return m.targetState.termBothVertex(w)
	case m.patternState.termOut() && m.targetState.termOut():
		return m.targetState.termOutVertex(w)
	case m.patternState.termIn() && m.targetState.termIn():
		return m.targetState.termInVertex(w)
	default:
		return !m.targetState.inCore(w)
	}
}

func (m *matcher) edgeExists1(source, target proxy.ProxyNodeID, patternType string, patternProps graphmodel.Properties, matched map[proxy.ProxyRelationshipID]bool) (bool, error) {
	it := m.target.OutEdges(source)
	for {
		relID, other, ok, err := it.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		if !other.Equal(target) || matched[relID] {
			continue
		}
		typ, props, err := m.target.RelationshipData(relID)
		if err != nil {
			return false, err
		}
		if m.edgePred(patternType, patternProps, typ, props) {
			matched[relID] = true
			return true, nil
		}
	}
	return false, nil
}

func (m *matcher) incCounterMatchEdge0(isInbound bool, termIn, termOut, rest *int, v0, vAdj int, w0 proxy.ProxyNodeID, rel graphmodel.Relationship, matched map[proxy.ProxyRelationshipID]bool) (bool, error) {
	if m.patternState.inCore(vAdj) || vAdj == v0 {
		wAdj := w0
		if vAdj != v0 {
			if mapped, ok := m.patternState.core(vAdj); ok {
				wAdj = mapped
			}
		}
		var exists bool
		var err error
		if isInbound {
			exists, err = m.edgeExists1(wAdj, w0, rel.Type, rel.Properties, matched)
		} else {
			exists, err = m.edgeExists1(w0, wAdj, rel.Type, rel.Properties, matched)
		}
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
		return true, nil
	}
	if m.patternState.inDepth(vAdj) > 0 {
		*termIn++
	}
	if m.patternState.outDepth(vAdj) > 0 {
		*termOut++
	}
	if m.patternState.inDepth(vAdj) == 0 && m.patternState.outDepth(vAdj) == 0 {
		*rest++
	}
	return true, nil
}

func (m *matcher) incCounterMatchEdge1(wAdj proxy.ProxyNodeID, w0 proxy.ProxyNodeID, termIn, termOut, rest *int) {
	if m.targetState.inCore(wAdj) || wAdj.Equal(w0) {
		return
	}
	if m.targetState.inDepth(wAdj) > 0 {
		*termIn++
	}
	if m.targetState.outDepth(wAdj) > 0 {
		*termOut++
	}
	if m.targetState.inDepth(wAdj) == 0 && m.targetState.outDepth(wAdj) == 0 {
		*rest++
	}
}

func (m *matcher) feasible(v0 int, w0 proxy.ProxyNodeID) (bool, error) {
	pv := m.pattern.Vertices[v0]
	if !m.vertexPred(pv.Labels, pv.Properties, m.target.Labels(w0), m.target.Properties(w0)) {
		return false, nil
	}

	var termIn0, termOut0, rest0 int
	matchedIn := make(map[proxy.ProxyRelationshipID]bool)
	for _, relIdx := range m.pattern.InRelationships(v0) {
		rel := m.pattern.Relationships[relIdx]
		ok, err := m.incCounterMatchEdge0(true, &termIn0, &termOut0, &rest0, v0, rel.Source, w0, rel, matchedIn)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	matchedOut := make(map[proxy.ProxyRelationshipID]bool)
	for _, relIdx := range m.pattern.OutRelationships(v0) {
		rel := m.pattern.Relationships[relIdx]
		ok, err := m.incCounterMatchEdge0(false, &termIn0, &termOut0, &rest0, v0, rel.Target, w0, rel, matchedOut)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	var termIn1, termOut1, rest1 int
	inIt := m.target.InEdges(w0)
	for {
		_, other, ok, err := inIt.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		m.incCounterMatchEdge1(other, w0, &termIn1, &termOut1, &rest1)
	}
	outIt := m.target.OutEdges(w0)
	for {
		_, other, ok, err := outIt.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		m.incCounterMatchEdge1(other, w0, &termIn1, &termOut1, &rest1)
	}

	return termIn0 <= termIn1 && termOut0 <= termOut1 && rest0 <= rest1, nil
}

// step drives the recursive VF2 search, calling emit for every full
// embedding found. It returns (continue, err): continue is false once
// emit asks the search to stop or an error aborts it.
func (m *matcher) step(emit func(Mapping) (bool, error)) (cont bool, err error) {
	if m.success() {
		return emit(m.snapshot())
	}
	if !m.valid() {
		return true, nil
	}
	v, ok := m.nextPatternVertex()
	if !ok {
		return true, nil
	}
	for i := 0; i < m.target.NodeCount(); i++ {
		w := m.target.NodeAt(i)
		if !m.possibleCandidate1(w) {
			continue
		}
		ok, ferr := m.feasible(v, w)
		if ferr != nil {
			return false, ferr
		}
		if !ok {
			continue
		}
		if err := m.push(v, w); err != nil {
			return false, err
		}
		cont, err = m.step(emit)
		if perr := m.pop(v, w); perr != nil && err == nil {
			err = perr
		}
		if err != nil {
			return false, err
		}
		if !cont {
			return false, nil
		}
	}
	return true, nil
}

func (m *matcher) snapshot() Mapping {
	vertices := make(map[int]graphmodel.VertexID, len(m.patternState.coreMap))
	for v0, w0 := range m.patternState.coreMap {
		vertices[v0] = w0.StoreID
	}
	return Mapping{Vertices: vertices}
}
