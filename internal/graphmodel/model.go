// Package graphmodel defines the property-graph data model: typed
// property values, vertices and relationships, and the pattern-graph
// container a query compiles a MATCH clause into. It has no teacher
// equivalent (conuredb is a flat key/value store) — the raw field
// layout is grounded on zawgl-core/src/graph_engine/model.rs's
// InnerVertexData/InnerEdgeData shape, expressed in the teacher's
// naming and doc-comment idiom.
package graphmodel

import "fmt"

// VertexID and RelationshipID are physical ids handed out by the
// repository — positive and monotonic, 0 reserved as "unassigned".
type VertexID = uint64
type RelationshipID = uint64

// Value is a property value: exactly one of the listed Go types.
type Value interface{}

// Properties is an unordered bag of named property values; Go maps
// don't preserve insertion order, and property comparisons never depend
// on it, since the engine only ever looks properties up by name.
type Properties map[string]Value

// Vertex is a logical vertex: a (possibly unassigned) id, its labels,
// and its properties. A Vertex with ID == 0 is a pattern vertex with no
// bound physical counterpart yet.
type Vertex struct {
	ID         VertexID
	Labels     []string
	Properties Properties
}

// HasLabel reports whether label is one of v's labels.
func (v *Vertex) HasLabel(label string) bool {
	for _, l := range v.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Relationship is a logical directed, labeled edge between two
// vertices, identified by pattern-local vertex index (see
// PropertyGraph) rather than by physical id, since a pattern's
// endpoints may themselves be unbound.
type Relationship struct {
	ID         RelationshipID
	Type       string
	Properties Properties
	Source     int // index into the owning PropertyGraph's Vertices
	Target     int // index into the owning PropertyGraph's Vertices
}

// PropertyGraph is a small, fully in-memory graph: either a MATCH
// pattern (vertices/relationships with predicates, no physical ids
// required) or a CREATE template. Vertices are referenced by index so
// relationships can be attached before a pattern vertex has a bound id.
type PropertyGraph struct {
	Vertices      []Vertex
	Relationships []Relationship
	outAdj        [][]int // vertex index -> relationship indices, built lazily
	inAdj         [][]int
}

// AddVertex appends v and returns its pattern-local index.
func (g *PropertyGraph) AddVertex(v Vertex) int {
	g.Vertices = append(g.Vertices, v)
	g.outAdj = nil
	g.inAdj = nil
	return len(g.Vertices) - 1
}

// AddRelationship appends a relationship between two pattern-local
// vertex indices and returns its pattern-local index.
func (g *PropertyGraph) AddRelationship(r Relationship) (int, error) {
	if r.Source < 0 || r.Source >= len(g.Vertices) || r.Target < 0 || r.Target >= len(g.Vertices) {
		return 0, fmt.Errorf("graphmodel: relationship endpoints out of range (have %d vertices)", len(g.Vertices))
	}
	g.Relationships = append(g.Relationships, r)
	g.outAdj = nil
	g.inAdj = nil
	return len(g.Relationships) - 1, nil
}

func (g *PropertyGraph) buildAdjacency() {
	if g.outAdj != nil {
		return
	}
	g.outAdj = make([][]int, len(g.Vertices))
	g.inAdj = make([][]int, len(g.Vertices))
	for i, r := range g.Relationships {
		g.outAdj[r.Source] = append(g.outAdj[r.Source], i)
		g.inAdj[r.Target] = append(g.inAdj[r.Target], i)
	}
}

// OutRelationships returns the indices of relationships leaving vertex
// vIdx.
func (g *PropertyGraph) OutRelationships(vIdx int) []int {
	g.buildAdjacency()
	return g.outAdj[vIdx]
}

// InRelationships returns the indices of relationships entering vertex
// vIdx.
func (g *PropertyGraph) InRelationships(vIdx int) []int {
	g.buildAdjacency()
	return g.inAdj[vIdx]
}

// Degree is the total number of relationships touching vertex vIdx,
// counting both directions.
func (g *PropertyGraph) Degree(vIdx int) int {
	return len(g.OutRelationships(vIdx)) + len(g.InRelationships(vIdx))
}
