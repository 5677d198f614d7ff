// Package repository is the Graph Repository (C6): the concrete
// vertex/edge store and label index the rest of the engine reads and
// writes through. spec.md treats this component as an external
// collaborator described only by its interface; this package supplies
// the one concrete implementation the engine actually runs against,
// grounded on the teacher's db.DB (Open/Close/Sync/SnapshotTo/
// RestoreFrom shape and its single top-level sync.RWMutex) combined
// with zawgl-core's adjacency-linked-list vertex/edge row layout.
package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/conure-db/graphdb/internal/bptree"
	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/recordio"
)

// VertexRaw is a physical vertex row: its labels/properties plus the
// head of its inbound and outbound adjacency lists (spec.md §6's
// first_inbound_edge/first_outbound_edge).
type VertexRaw struct {
	ID            graphmodel.VertexID
	Labels        []string
	Properties    graphmodel.Properties
	FirstInbound  graphmodel.RelationshipID
	FirstOutbound graphmodel.RelationshipID
}

// EdgeRaw is a physical edge row: its type/properties, its endpoints,
// and the next link in each endpoint's adjacency list (spec.md §6's
// next_inbound_edge/next_outbound_edge).
type EdgeRaw struct {
	ID           graphmodel.RelationshipID
	Type         string
	Properties   graphmodel.Properties
	Source       graphmodel.VertexID
	Target       graphmodel.VertexID
	NextInbound  graphmodel.RelationshipID
	NextOutbound graphmodel.RelationshipID
}

// Repository is the concrete Graph Repository. All reads and writes are
// expected to run under the caller's own Lock/RLock — it has no
// internal self-locking, so a session (internal/query) can hold the
// lock across several logically-related operations, matching "the
// repository lock" spec.md §5 describes.
type Repository struct {
	mu sync.RWMutex

	dir          string
	vertices     map[graphmodel.VertexID]*VertexRaw
	edges        map[graphmodel.RelationshipID]*EdgeRaw
	nextVertexID graphmodel.VertexID
	nextEdgeID   graphmodel.RelationshipID

	labelIndex   *bptree.Index
	indexRecords *recordio.Manager
}

const snapshotFileName = "snapshot.jsonl"

// Open opens (creating if necessary) a repository rooted at dir: the
// durable label index lives at dir/labels.idx, and vertex/edge bodies
// are restored from dir/snapshot.jsonl if present.
func Open(dir string) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("repository: mkdir %s: %w", dir, err)
	}
	indexRecords, err := recordio.Open(filepath.Join(dir, "labels.idx"), bptree.NodeRecordSize, bptree.HeaderPayloadSize)
	if err != nil {
		return nil, fmt.Errorf("repository: open label index: %w", err)
	}
	r := &Repository{
		dir:          dir,
		vertices:     make(map[graphmodel.VertexID]*VertexRaw),
		edges:        make(map[graphmodel.RelationshipID]*EdgeRaw),
		nextVertexID: 1,
		nextEdgeID:   1,
		labelIndex:   bptree.OpenIndex(indexRecords),
		indexRecords: indexRecords,
	}
	snapshotPath := filepath.Join(dir, snapshotFileName)
	if f, err := os.Open(snapshotPath); err == nil {
		defer f.Close()
		if err := r.restoreFrom(f); err != nil {
			return nil, fmt.Errorf("repository: restore snapshot: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("repository: stat snapshot: %w", err)
	}
	return r, nil
}

// Close flushes the label index and closes its backing file. Vertex
// and edge bodies are not implicitly persisted — call Snapshot first.
func (r *Repository) Close() error {
	return r.indexRecords.Close()
}

func (r *Repository) Lock()    { r.mu.Lock() }
func (r *Repository) Unlock()  { r.mu.Unlock() }
func (r *Repository) RLock()   { r.mu.RLock() }
func (r *Repository) RUnlock() { r.mu.RUnlock() }

// RetrieveVertexDataByID returns the raw row for a vertex id. Caller
// must hold at least RLock.
func (r *Repository) RetrieveVertexDataByID(id graphmodel.VertexID) (*VertexRaw, error) {
	v, ok := r.vertices[id]
	if !ok {
		return nil, fmt.Errorf("repository: vertex %d: %w", id, ErrNotFound)
	}
	return v, nil
}

// RetrieveEdgeDataByID returns the raw row for a relationship id.
// Caller must hold at least RLock.
func (r *Repository) RetrieveEdgeDataByID(id graphmodel.RelationshipID) (*EdgeRaw, error) {
	e, ok := r.edges[id]
	if !ok {
		return nil, fmt.Errorf("repository: edge %d: %w", id, ErrNotFound)
	}
	return e, nil
}

// FetchNodeIDsWithLabels returns every vertex id carrying all of the
// given labels (AND semantics), via the durable label index. Caller
// must hold at least RLock.
func (r *Repository) FetchNodeIDsWithLabels(labels []string) ([]graphmodel.VertexID, error) {
	if len(labels) == 0 {
		return r.RetrieveAllNodeIDs()
	}
	ids, err := r.labelIndex.Search([]byte(labels[0]))
	if err != nil {
		return nil, fmt.Errorf("repository: label index search %q: %w", labels[0], err)
	}
	set := make(map[graphmodel.VertexID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, label := range labels[1:] {
		next, err := r.labelIndex.Search([]byte(label))
		if err != nil {
			return nil, fmt.Errorf("repository: label index search %q: %w", label, err)
		}
		nextSet := make(map[graphmodel.VertexID]bool, len(next))
		for _, id := range next {
			nextSet[id] = true
		}
		for id := range set {
			if !nextSet[id] {
				delete(set, id)
			}
		}
	}
	out := make([]graphmodel.VertexID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// RetrieveAllNodeIDs returns every vertex id in the repository, sorted,
// for pattern vertices with no label predicate. Caller must hold at
// least RLock.
func (r *Repository) RetrieveAllNodeIDs() ([]graphmodel.VertexID, error) {
	out := make([]graphmodel.VertexID, 0, len(r.vertices))
	for id := range r.vertices {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// CreateNode allocates a new vertex, indexes it under every label, and
// returns its id. Caller must hold Lock (the write lock).
func (r *Repository) CreateNode(labels []string, props graphmodel.Properties) (graphmodel.VertexID, error) {
	id := r.nextVertexID
	r.nextVertexID++
	r.vertices[id] = &VertexRaw{ID: id, Labels: append([]string{}, labels...), Properties: props}
	for _, label := range labels {
		if err := r.labelIndex.Insert([]byte(label), id); err != nil {
			return 0, fmt.Errorf("repository: index vertex %d under label %q: %w", id, label, err)
		}
	}
	return id, nil
}

// CreateRelationship allocates a new edge between source and target,
// splicing it onto the head of each endpoint's adjacency list. Caller
// must hold Lock.
func (r *Repository) CreateRelationship(relType string, source, target graphmodel.VertexID, props graphmodel.Properties) (graphmodel.RelationshipID, error) {
	src, ok := r.vertices[source]
	if !ok {
		return 0, fmt.Errorf("repository: create relationship: source %d: %w", source, ErrNotFound)
	}
	dst, ok := r.vertices[target]
	if !ok {
		return 0, fmt.Errorf("repository: create relationship: target %d: %w", target, ErrNotFound)
	}
	id := r.nextEdgeID
	r.nextEdgeID++
	edge := &EdgeRaw{
		ID:           id,
		Type:         relType,
		Properties:   props,
		Source:       source,
		Target:       target,
		NextOutbound: src.FirstOutbound,
		NextInbound:  dst.FirstInbound,
	}
	r.edges[id] = edge
	src.FirstOutbound = id
	dst.FirstInbound = id
	return id, nil
}

// DeleteRelationship removes an edge and unsplices it from both
// endpoints' adjacency lists. Caller must hold Lock.
func (r *Repository) DeleteRelationship(id graphmodel.RelationshipID) error {
	edge, ok := r.edges[id]
	if !ok {
		return fmt.Errorf("repository: delete relationship %d: %w", id, ErrNotFound)
	}
	if src, ok := r.vertices[edge.Source]; ok {
		unsplice(&src.FirstOutbound, r.edges, id, true)
	}
	if dst, ok := r.vertices[edge.Target]; ok {
		unsplice(&dst.FirstInbound, r.edges, id, false)
	}
	delete(r.edges, id)
	return nil
}

func unsplice(head *graphmodel.RelationshipID, edges map[graphmodel.RelationshipID]*EdgeRaw, target graphmodel.RelationshipID, outbound bool) {
	next := func(e *EdgeRaw) graphmodel.RelationshipID {
		if outbound {
			return e.NextOutbound
		}
		return e.NextInbound
	}
	if *head == target {
		*head = next(edges[target])
		return
	}
	cur := *head
	for cur != 0 {
		e := edges[cur]
		n := next(e)
		if n == target {
			if outbound {
				e.NextOutbound = next(edges[target])
			} else {
				e.NextInbound = next(edges[target])
			}
			return
		}
		cur = n
	}
}

// DeleteNode removes a vertex, every relationship touching it, and its
// label index entries. Caller must hold Lock.
func (r *Repository) DeleteNode(id graphmodel.VertexID) error {
	v, ok := r.vertices[id]
	if !ok {
		return fmt.Errorf("repository: delete vertex %d: %w", id, ErrNotFound)
	}
	for cur := v.FirstOutbound; cur != 0; {
		e := r.edges[cur]
		next := e.NextOutbound
		if err := r.DeleteRelationship(cur); err != nil {
			return err
		}
		cur = next
	}
	for cur := v.FirstInbound; cur != 0; {
		e, ok := r.edges[cur]
		if !ok {
			break
		}
		next := e.NextInbound
		if err := r.DeleteRelationship(cur); err != nil {
			return err
		}
		cur = next
	}
	for _, label := range v.Labels {
		if err := r.labelIndex.Delete([]byte(label), false, id); err != nil {
			return fmt.Errorf("repository: unindex vertex %d from label %q: %w", id, label, err)
		}
	}
	delete(r.vertices, id)
	return nil
}

type snapshotRow struct {
	Kind          string                `json:"kind"`
	ID            uint64                `json:"id"`
	Labels        []string              `json:"labels,omitempty"`
	Type          string                `json:"type,omitempty"`
	Properties    graphmodel.Properties `json:"properties,omitempty"`
	FirstInbound  uint64                `json:"first_inbound,omitempty"`
	FirstOutbound uint64                `json:"first_outbound,omitempty"`
	Source        uint64                `json:"source,omitempty"`
	Target        uint64                `json:"target,omitempty"`
	NextInbound   uint64                `json:"next_inbound,omitempty"`
	NextOutbound  uint64                `json:"next_outbound,omitempty"`
}

// Snapshot persists every vertex and edge body to dir/snapshot.jsonl,
// following the teacher's db.DB.SnapshotTo shape. The label index is
// already durable on its own, so it is not part of the snapshot.
// Caller must hold at least RLock.
func (r *Repository) Snapshot() error {
	path := filepath.Join(r.dir, snapshotFileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("repository: create snapshot: %w", err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, v := range r.vertices {
		row := snapshotRow{Kind: "vertex", ID: v.ID, Labels: v.Labels, Properties: v.Properties, FirstInbound: v.FirstInbound, FirstOutbound: v.FirstOutbound}
		if err := enc.Encode(row); err != nil {
			f.Close()
			return fmt.Errorf("repository: encode vertex %d: %w", v.ID, err)
		}
	}
	for _, e := range r.edges {
		row := snapshotRow{Kind: "edge", ID: e.ID, Type: e.Type, Properties: e.Properties, Source: e.Source, Target: e.Target, NextInbound: e.NextInbound, NextOutbound: e.NextOutbound}
		if err := enc.Encode(row); err != nil {
			f.Close()
			return fmt.Errorf("repository: encode edge %d: %w", e.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("repository: flush snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("repository: sync snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (r *Repository) restoreFrom(f *os.File) error {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var row snapshotRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return fmt.Errorf("repository: decode snapshot row: %w", err)
		}
		switch row.Kind {
		case "vertex":
			r.vertices[row.ID] = &VertexRaw{ID: row.ID, Labels: row.Labels, Properties: row.Properties, FirstInbound: row.FirstInbound, FirstOutbound: row.FirstOutbound}
			if row.ID >= r.nextVertexID {
				r.nextVertexID = row.ID + 1
			}
		case "edge":
			r.edges[row.ID] = &EdgeRaw{ID: row.ID, Type: row.Type, Properties: row.Properties, Source: row.Source, Target: row.Target, NextInbound: row.NextInbound, NextOutbound: row.NextOutbound}
			if row.ID >= r.nextEdgeID {
				r.nextEdgeID = row.ID + 1
			}
		default:
			return fmt.Errorf("repository: unknown snapshot row kind %q", row.Kind)
		}
	}
	return scanner.Err()
}
