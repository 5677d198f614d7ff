// Package vf2 implements the VF2 subgraph isomorphism matcher (C8):
// it finds every embedding of a small pattern graph into a (possibly
// much larger) target graph reached through a Graph Proxy, driven by
// the push/pop/feasible/candidate machinery of
// zawgl-core/src/matcher/vf2/state.rs.
package vf2

// BaseState tracks one side (pattern or target) of an in-progress
// match: which of this side's vertices are already mapped (core_map),
// and which are in the "terminal" frontier reachable from the mapped
// core but not yet mapped themselves (in_map/out_map, keyed by vertex,
// each holding the depth — core_count at the time of discovery — at
// which it entered the frontier). K is this side's vertex id type; V is the other
// side's.
type BaseState[K comparable, V any] struct {
	termInCount   int
	termOutCount  int
	termBothCount int
	coreCount     int
	coreMap       map[K]V
	inMap         map[K]int
	outMap        map[K]int
}

func newBaseState[K comparable, V any]() BaseState[K, V] {
	return BaseState[K, V]{
		coreMap: make(map[K]V),
		inMap:   make(map[K]int),
		outMap:  make(map[K]int),
	}
}

// adjFunc looks up v0's neighbors on one side (in or out); it can fail
// because the target-side implementation walks the repository lazily.
type adjFunc[K comparable] func(v0 K) ([]K, error)

// push records v0 (this side) as newly mapped to v1 (other side), and
// extends the terminal frontier with v0's unmapped in/out neighbors.
func push[K comparable, V any](bs *BaseState[K, V], inAdj, outAdj adjFunc[K], v0 K, v1 V) error {
	bs.coreCount++
	bs.coreMap[v0] = v1
	if _, ok := bs.inMap[v0]; !ok {
		bs.inMap[v0] = bs.coreCount
		bs.termInCount++
		if _, ok := bs.outMap[v0]; ok {
			bs.termBothCount++
		}
	}
	if _, ok := bs.outMap[v0]; !ok {
		bs.outMap[v0] = bs.coreCount
		bs.termOutCount++
		if _, ok := bs.inMap[v0]; ok {
			bs.termBothCount++
		}
	}
	ancestors, err := inAdj(v0)
	if err != nil {
		return err
	}
	for _, ancestor := range ancestors {
		if _, ok := bs.inMap[ancestor]; !ok {
			bs.inMap[ancestor] = bs.coreCount
			bs.termInCount++
			if _, ok := bs.outMap[ancestor]; ok {
				bs.termBothCount++
			}
		}
	}
	successors, err := outAdj(v0)
	if err != nil {
		return err
	}
	for _, successor := range successors {
		if _, ok := bs.outMap[successor]; !ok {
			bs.outMap[successor] = bs.coreCount
			bs.termOutCount++
			if _, ok := bs.inMap[successor]; ok {
				bs.termBothCount++
			}
		}
	}
	return nil
}

// pop undoes the most recent push of v0, removing frontier entries
// that were discovered exactly at the current depth (entries
// discovered earlier are shared with still-mapped ancestors and must
// survive). Unlike the dead base_state.rs (which zeroes the map
// entry), this removes it outright — matching the pop_state_0/
// pop_state_1 free functions in state.rs that the matcher actually
// calls.
func pop[K comparable, V any](bs *BaseState[K, V], inAdj, outAdj adjFunc[K], v0 K) error {
	if bs.coreCount == 0 {
		return nil
	}
	if c, ok := bs.inMap[v0]; ok && c == bs.coreCount {
		delete(bs.inMap, v0)
		bs.termInCount--
		if _, ok := bs.outMap[v0]; ok && bs.termBothCount > 0 {
			bs.termBothCount--
		}
	}
	ancestors, err := inAdj(v0)
	if err != nil {
		return err
	}
	for _, source := range ancestors {
		if c, ok := bs.inMap[source]; ok && c == bs.coreCount {
			delete(bs.inMap, source)
			bs.termInCount--
			if _, ok := bs.outMap[source]; ok && bs.termBothCount > 0 {
				bs.termBothCount--
			}
		}
	}
	if c, ok := bs.outMap[v0]; ok && c == bs.coreCount {
		delete(bs.outMap, v0)
		bs.termOutCount--
		if _, ok := bs.inMap[v0]; ok && bs.termBothCount > 0 {
			bs.termBothCount--
		}
	}
	successors, err := outAdj(v0)
	if err != nil {
		return err
	}
	for _, target := range successors {
		if c, ok := bs.outMap[target]; ok && c == bs.coreCount {
			delete(bs.outMap, target)
			bs.termOutCount--
			if _, ok := bs.inMap[target]; ok && bs.termBothCount > 0 {
				bs.termBothCount--
			}
		}
	}
	delete(bs.coreMap, v0)
	bs.coreCount--
	return nil
}

func (bs *BaseState[K, V]) termIn() bool  { return bs.coreCount < bs.termInCount }
func (bs *BaseState[K, V]) termOut() bool { return bs.coreCount < bs.termOutCount }
func (bs *BaseState[K, V]) termBoth() bool {
	return bs.coreCount < bs.termBothCount
}

// termInVertex, termOutVertex and termBothVertex report whether v0 is
// in the respective frontier set and not already mapped. The reference
// base_state.rs available alongside state.rs is an older, unused copy
// whose term_out_vertex/term_both_vertex conditions invert this (they
// require the vertex to already be mapped, which would make it useless
// as a candidate source) — the functions actually wired into the
// matcher's possible_candidate_0/1 need the standard VF2 terminal-set
// definition, which is what these implement.
func (bs *BaseState[K, V]) termInVertex(v0 K) bool {
	_, ok := bs.inMap[v0]
	return ok && !bs.inCore(v0)
}

func (bs *BaseState[K, V]) termOutVertex(v0 K) bool {
	_, ok := bs.outMap[v0]
	return ok && !bs.inCore(v0)
}

func (bs *BaseState[K, V]) termBothVertex(v0 K) bool {
	_, okIn := bs.inMap[v0]
	_, okOut := bs.outMap[v0]
	return okIn && okOut && !bs.inCore(v0)
}

func (bs *BaseState[K, V]) inCore(v0 K) bool {
	_, ok := bs.coreMap[v0]
	return ok
}

func (bs *BaseState[K, V]) count() int { return bs.coreCount }

func (bs *BaseState[K, V]) core(v0 K) (V, bool) {
	v1, ok := bs.coreMap[v0]
	return v1, ok
}

func (bs *BaseState[K, V]) inDepth(v0 K) int {
	return bs.inMap[v0]
}

func (bs *BaseState[K, V]) outDepth(v0 K) int {
	return bs.outMap[v0]
}

func (bs *BaseState[K, V]) termSet() (int, int, int) {
	return bs.termInCount, bs.termOutCount, bs.termBothCount
}
