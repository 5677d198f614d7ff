package bptree

import (
	"encoding/binary"
	"fmt"

	"github.com/conure-db/graphdb/internal/recordio"
)

// headerFreeListOffset is where the free-cell chain head lives within
// the records manager's reserved header payload; headerRootOffset (used
// by the index, C5) occupies the other half of the 16-byte header.
const (
	headerRootOffset      = 0
	headerFreeListOffset  = 8
	HeaderPayloadSize      = 16
)

// NodeRecordPool is the write-back cache scoped to a single B-tree
// operation (C2): it loads node records lazily, tracks which ones were
// mutated, and only SaveAll writes those changes back. It also owns
// the free-cell chain used to recycle overflow-fragment slots, grounded
// on zawgl-core's NodeRecordPool/FreeCellIterator.
type NodeRecordPool struct {
	records *recordio.Manager
	cache   map[uint64]BNodeRecord
	dirty   map[uint64]bool
}

func NewNodeRecordPool(records *recordio.Manager) *NodeRecordPool {
	return &NodeRecordPool{
		records: records,
		cache:   make(map[uint64]BNodeRecord),
		dirty:   make(map[uint64]bool),
	}
}

func (p *NodeRecordPool) IsEmptyRecordsSet() bool { return p.records.IsEmpty() }

// LoadNodeRecord returns a copy of the node record for id, loading it
// from disk and caching it on first access.
func (p *NodeRecordPool) LoadNodeRecord(id uint64) (BNodeRecord, error) {
	if rec, ok := p.cache[id]; ok {
		return rec, nil
	}
	buf := make([]byte, NodeRecordSize)
	if err := p.records.Load(id, buf); err != nil {
		return BNodeRecord{}, fmt.Errorf("bptree: pool load %d: %w", id, err)
	}
	rec := DecodeBNodeRecord(buf)
	p.cache[id] = rec
	return rec, nil
}

// PutNodeRecord stores rec in the pool's write-back cache and marks it
// dirty; it is not written to disk until SaveAll is called.
func (p *NodeRecordPool) PutNodeRecord(id uint64, rec BNodeRecord) {
	p.cache[id] = rec
	p.dirty[id] = true
}

// CreateNodeRecord allocates a brand new node record and caches it as
// dirty, returning its freshly allocated id.
func (p *NodeRecordPool) CreateNodeRecord(rec BNodeRecord) (uint64, error) {
	buf := make([]byte, NodeRecordSize)
	rec.Encode(buf)
	id, err := p.records.Create(buf)
	if err != nil {
		return 0, fmt.Errorf("bptree: pool create: %w", err)
	}
	p.cache[id] = rec
	p.dirty[id] = true
	return id, nil
}

// SaveAll persists every dirty record in the pool's cache to the
// underlying records manager.
func (p *NodeRecordPool) SaveAll() error {
	buf := make([]byte, NodeRecordSize)
	for id := range p.dirty {
		rec := p.cache[id]
		rec.Encode(buf)
		if err := p.records.Save(id, buf); err != nil {
			return fmt.Errorf("bptree: pool save %d: %w", id, err)
		}
	}
	p.dirty = make(map[uint64]bool)
	return nil
}

// Discard drops the pool's cache without persisting it: changes to
// existing records are lost. It does not undo what already reached the
// file: records allocated by CreateNodeRecord are written on creation,
// and header updates (root id, free-list head) are written through
// immediately by the records manager.
func (p *NodeRecordPool) Discard() {
	p.cache = make(map[uint64]BNodeRecord)
	p.dirty = make(map[uint64]bool)
}

func (p *NodeRecordPool) getFirstFreeListNodePtr() (uint64, error) {
	raw, err := p.records.ReadHeaderRange(headerFreeListOffset, nodePtrSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (p *NodeRecordPool) setFirstFreeListNodePtr(id uint64) error {
	var raw [nodePtrSize]byte
	binary.BigEndian.PutUint64(raw[:], id)
	return p.records.WriteHeaderRange(headerFreeListOffset, raw[:])
}

// AppendNodeRecordToFreeList pushes nodeID onto the head of the
// free-cell chain, resetting it into an overflow-storage node first.
// Used by the index's delete path (Store.DeleteNode) to reclaim a page
// freed by a merge, per DESIGN.md's free-list reclamation policy; the
// free-cell iterator allocates its own overflow nodes instead.
func (p *NodeRecordPool) AppendNodeRecordToFreeList(nodeID uint64) error {
	rec, err := p.LoadNodeRecord(nodeID)
	if err != nil {
		return err
	}
	rec.SetOverflowNode()
	head, err := p.getFirstFreeListNodePtr()
	if err != nil {
		return err
	}
	rec.SetNext(head)
	p.PutNodeRecord(nodeID, rec)
	return p.setFirstFreeListNodePtr(nodeID)
}

// DisableCellRecords walks an overflow chain starting at loc and marks
// every cell along it inactive, the way pool.rs's disable_cell_records
// does when a key/posting-list is deleted.
func (p *NodeRecordPool) DisableCellRecords(loc BTreeCellLoc) error {
	for !loc.IsNull() {
		rec, err := p.LoadNodeRecord(loc.NodeID)
		if err != nil {
			return err
		}
		cell := rec.Cells[loc.CellID]
		next := cell.NextCellLocation()
		cell.SetInactive()
		rec.Cells[loc.CellID] = cell
		p.PutNodeRecord(loc.NodeID, rec)
		loc = next
	}
	return nil
}

// InsertCellInFreeSlot finds (allocating if necessary) a free cell slot
// via the free-cell chain and stores cellRecord there, returning its
// location.
func (p *NodeRecordPool) InsertCellInFreeSlot(cellRecord CellRecord) (BTreeCellLoc, error) {
	loc, err := p.nextFreeCellLoc()
	if err != nil {
		return NullLoc, err
	}
	rec, err := p.LoadNodeRecord(loc.NodeID)
	if err != nil {
		return NullLoc, err
	}
	rec.Cells[loc.CellID] = cellRecord
	p.PutNodeRecord(loc.NodeID, rec)
	return loc, nil
}

// nextFreeCellLoc implements FreeCellIterator.next: it follows the
// free-list chain head, skipping over fully-occupied overflow-storage
// nodes (advancing the chain head past them), creating a new
// overflow-storage node if the chain is empty, until it finds a node
// with at least one inactive cell slot.
func (p *NodeRecordPool) nextFreeCellLoc() (BTreeCellLoc, error) {
	nodeID, err := p.loadOrCreateFreeCellsOverflowNode()
	if err != nil {
		return NullLoc, err
	}
	rec, err := p.LoadNodeRecord(nodeID)
	if err != nil {
		return NullLoc, err
	}
	for i := range rec.Cells {
		if !rec.Cells[i].IsActive() {
			return BTreeCellLoc{NodeID: nodeID, CellID: uint32(i)}, nil
		}
	}
	return NullLoc, fmt.Errorf("bptree: overflow-storage node %d reported free but has no inactive cell", nodeID)
}

func (p *NodeRecordPool) loadOrCreateFreeCellsOverflowNode() (uint64, error) {
	if p.IsEmptyRecordsSet() {
		rec := NewBNodeRecord()
		rec.SetOverflowNode()
		id, err := p.CreateNodeRecord(rec)
		if err != nil {
			return 0, err
		}
		if err := p.setFirstFreeListNodePtr(id); err != nil {
			return 0, err
		}
		return id, nil
	}
	head, err := p.getFirstFreeListNodePtr()
	if err != nil {
		return 0, err
	}
	if head == 0 {
		rec := NewBNodeRecord()
		rec.SetOverflowNode()
		id, err := p.CreateNodeRecord(rec)
		if err != nil {
			return 0, err
		}
		if err := p.setFirstFreeListNodePtr(id); err != nil {
			return 0, err
		}
		return id, nil
	}
	rec, err := p.LoadNodeRecord(head)
	if err != nil {
		return 0, err
	}
	if !rec.IsFull() {
		return head, nil
	}
	if err := p.setFirstFreeListNodePtr(rec.Next); err != nil {
		return 0, err
	}
	return p.loadOrCreateFreeCellsOverflowNode()
}
