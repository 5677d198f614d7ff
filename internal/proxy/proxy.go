// Package proxy implements the Graph Proxy (C7): a lazy adjacency
// overlay over a Graph Repository. It materializes vertices on first
// touch, assigning each a dense in-memory index alongside its stable
// repository id, and walks edge adjacency lists on demand rather than
// eagerly loading a whole neighborhood — grounded on
// zawgl-core/src/graph_engine/model.rs's GraphProxy/InEdges/OutEdges.
package proxy

import (
	"fmt"

	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/repository"
)

// Repository is the narrow slice of the Graph Repository the proxy
// needs. repository.Repository satisfies it; callers are responsible
// for holding the appropriate repository lock around proxy use, since
// the proxy never locks on its own.
type Repository interface {
	RetrieveVertexDataByID(id graphmodel.VertexID) (*repository.VertexRaw, error)
	RetrieveEdgeDataByID(id graphmodel.RelationshipID) (*repository.EdgeRaw, error)
	FetchNodeIDsWithLabels(labels []string) ([]graphmodel.VertexID, error)
	RetrieveAllNodeIDs() ([]graphmodel.VertexID, error)
}

// ProxyNodeID identifies a vertex the proxy has materialized: DenseIndex
// is its position in the proxy's dense slice (used by the matcher as a
// compact array index), StoreID is its stable repository id. Equality
// is defined on StoreID alone — two ProxyNodeIDs with different dense
// indices (from different proxies, say) but the same StoreID name the
// same underlying vertex.
type ProxyNodeID struct {
	DenseIndex int
	StoreID    graphmodel.VertexID
}

func (id ProxyNodeID) Equal(other ProxyNodeID) bool { return id.StoreID == other.StoreID }

// ProxyRelationshipID identifies a relationship the proxy has walked
// over; like ProxyNodeID, it carries both a dense position (assigned on
// first encounter) and the stable repository id.
type ProxyRelationshipID struct {
	DenseIndex int
	StoreID    graphmodel.RelationshipID
}

func (id ProxyRelationshipID) Equal(other ProxyRelationshipID) bool { return id.StoreID == other.StoreID }

type proxyVertex struct {
	id  ProxyNodeID
	raw *repository.VertexRaw
}

type proxyEdge struct {
	id  ProxyRelationshipID
	raw *repository.EdgeRaw
}

// GraphProxy is the lazy adjacency overlay. Create it with New for an
// empty overlay that grows as vertices are touched during traversal, or
// NewFull to eagerly materialize every vertex up front (used for the
// matcher's target-graph side, which needs NodeCount/NodeAt to range
// over candidates).
type GraphProxy struct {
	repo      Repository
	vertices  []*proxyVertex
	index     map[graphmodel.VertexID]int
	edges     []*proxyEdge
	edgeIndex map[graphmodel.RelationshipID]int
}

func New(repo Repository) *GraphProxy {
	return &GraphProxy{
		repo:      repo,
		index:     make(map[graphmodel.VertexID]int),
		edgeIndex: make(map[graphmodel.RelationshipID]int),
	}
}

// NewFull materializes every vertex currently in the repository.
func NewFull(repo Repository) (*GraphProxy, error) {
	p := New(repo)
	ids, err := repo.RetrieveAllNodeIDs()
	if err != nil {
		return nil, fmt.Errorf("proxy: NewFull: %w", err)
	}
	for _, id := range ids {
		if _, err := p.vertexFor(id); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// vertexFor returns the ProxyNodeID for storeID, materializing it from
// the repository on first touch and caching it thereafter — this is
// the "no second-call fetches" guarantee: once a vertex has been
// touched, repeated lookups never call back into the repository.
func (p *GraphProxy) vertexFor(storeID graphmodel.VertexID) (ProxyNodeID, error) {
	if idx, ok := p.index[storeID]; ok {
		return p.vertices[idx].id, nil
	}
	raw, err := p.repo.RetrieveVertexDataByID(storeID)
	if err != nil {
		return ProxyNodeID{}, fmt.Errorf("proxy: materialize vertex %d: %w", storeID, err)
	}
	idx := len(p.vertices)
	pid := ProxyNodeID{DenseIndex: idx, StoreID: storeID}
	p.vertices = append(p.vertices, &proxyVertex{id: pid, raw: raw})
	p.index[storeID] = idx
	return pid, nil
}

// VertexByStoreID materializes (if needed) and returns the proxy id
// for a known repository vertex id.
func (p *GraphProxy) VertexByStoreID(storeID graphmodel.VertexID) (ProxyNodeID, error) {
	return p.vertexFor(storeID)
}

// VertexIDsWithLabels materializes and returns proxy ids for every
// vertex carrying all of the given labels.
func (p *GraphProxy) VertexIDsWithLabels(labels []string) ([]ProxyNodeID, error) {
	storeIDs, err := p.repo.FetchNodeIDsWithLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("proxy: VertexIDsWithLabels: %w", err)
	}
	out := make([]ProxyNodeID, 0, len(storeIDs))
	for _, id := range storeIDs {
		pid, err := p.vertexFor(id)
		if err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, nil
}

// NodeCount is how many vertices this proxy has materialized so far.
func (p *GraphProxy) NodeCount() int { return len(p.vertices) }

// NodeAt returns the ProxyNodeID at a dense index in [0, NodeCount()).
func (p *GraphProxy) NodeAt(denseIdx int) ProxyNodeID { return p.vertices[denseIdx].id }

func (p *GraphProxy) vertex(id ProxyNodeID) *proxyVertex {
	return p.vertices[p.index[id.StoreID]]
}

func (p *GraphProxy) Labels(id ProxyNodeID) []string { return p.vertex(id).raw.Labels }

func (p *GraphProxy) Properties(id ProxyNodeID) graphmodel.Properties { return p.vertex(id).raw.Properties }

// edgeFor returns the cached edge for storeID, materializing it from the
// repository on first touch — the edge-side counterpart to vertexFor. A
// seen relationship never triggers a second repository fetch, whether
// reached again via EdgeIter.Next or via RelationshipType/RelationshipData.
func (p *GraphProxy) edgeFor(storeID graphmodel.RelationshipID) (*proxyEdge, error) {
	if idx, ok := p.edgeIndex[storeID]; ok {
		return p.edges[idx], nil
	}
	raw, err := p.repo.RetrieveEdgeDataByID(storeID)
	if err != nil {
		return nil, fmt.Errorf("proxy: materialize edge %d: %w", storeID, err)
	}
	idx := len(p.edges)
	pe := &proxyEdge{id: ProxyRelationshipID{DenseIndex: idx, StoreID: storeID}, raw: raw}
	p.edges = append(p.edges, pe)
	p.edgeIndex[storeID] = idx
	return pe, nil
}

// EdgeIter is a single-use, lazy iterator over one side of a vertex's
// adjacency list, walking the repository's next_inbound_edge/
// next_outbound_edge chain one record at a time.
type EdgeIter struct {
	p        *GraphProxy
	cur      graphmodel.RelationshipID
	outbound bool
	err      error
}

// OutEdges returns a fresh iterator over id's outbound relationships.
func (p *GraphProxy) OutEdges(id ProxyNodeID) *EdgeIter {
	return &EdgeIter{p: p, cur: p.vertex(id).raw.FirstOutbound, outbound: true}
}

// InEdges returns a fresh iterator over id's inbound relationships.
func (p *GraphProxy) InEdges(id ProxyNodeID) *EdgeIter {
	return &EdgeIter{p: p, cur: p.vertex(id).raw.FirstInbound, outbound: false}
}

// Next advances the iterator, returning the relationship, the vertex at
// its far end, and whether a relationship was produced. It returns
// ok=false, err=nil once the chain is exhausted.
func (it *EdgeIter) Next() (ProxyRelationshipID, ProxyNodeID, bool, error) {
	if it.err != nil || it.cur == 0 {
		return ProxyRelationshipID{}, ProxyNodeID{}, false, it.err
	}
	pe, err := it.p.edgeFor(it.cur)
	if err != nil {
		it.err = fmt.Errorf("proxy: walk edge %d: %w", it.cur, err)
		return ProxyRelationshipID{}, ProxyNodeID{}, false, it.err
	}
	relID := pe.id
	var otherStoreID graphmodel.VertexID
	if it.outbound {
		otherStoreID = pe.raw.Target
		it.cur = pe.raw.NextOutbound
	} else {
		otherStoreID = pe.raw.Source
		it.cur = pe.raw.NextInbound
	}
	otherID, err := it.p.vertexFor(otherStoreID)
	if err != nil {
		it.err = err
		return ProxyRelationshipID{}, ProxyNodeID{}, false, err
	}
	return relID, otherID, true, nil
}

// RelationshipType returns the type string for a relationship the
// iterator has already produced.
func (p *GraphProxy) RelationshipType(id ProxyRelationshipID) (string, error) {
	pe, err := p.edgeFor(id.StoreID)
	if err != nil {
		return "", fmt.Errorf("proxy: RelationshipType(%d): %w", id.StoreID, err)
	}
	return pe.raw.Type, nil
}

// RelationshipData returns the type and properties for a relationship
// the iterator has already produced.
func (p *GraphProxy) RelationshipData(id ProxyRelationshipID) (string, graphmodel.Properties, error) {
	pe, err := p.edgeFor(id.StoreID)
	if err != nil {
		return "", nil, fmt.Errorf("proxy: RelationshipData(%d): %w", id.StoreID, err)
	}
	return pe.raw.Type, pe.raw.Properties, nil
}
