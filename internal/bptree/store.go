package bptree

import "bytes"

// LogicalCell is the translated, variable-length view of a cell: a full
// reassembled key, and either a child subtree id (interior nodes) or an
// associated posting list of vertex ids (leaf nodes).
type LogicalCell struct {
	Key     []byte
	Child   uint64
	Posting []uint64
}

// LogicalNode is the translated, variable-length view of a node record
// that B+-Tree Index (C5) operates on. Interior nodes keep n separator
// cells and n+1 children: Cells[i].Child is the subtree to the left of
// Cells[i].Key, and RightChild is the subtree to the right of the last
// separator. Leaf nodes keep their keys directly in Cells and leave
// Child/RightChild unused.
type LogicalNode struct {
	ID         uint64
	IsLeaf     bool
	IsRoot     bool
	Cells      []LogicalCell
	RightChild uint64
}

// Store is the B+-Tree Node Store (C4): it translates between the fixed
// physical BNodeRecord/CellRecord layout and the logical, variable-length
// view above. Save keeps no change log: it always rewrites a node's
// full cell set in one pass, releasing every old key and posting-list
// chain and writing fresh ones, even for cells whose key and posting
// list did not change.
type Store struct {
	pool *NodeRecordPool
}

func NewStore(pool *NodeRecordPool) *Store {
	return &Store{pool: pool}
}

// Retrieve loads and fully reconstructs the logical node with the given
// physical id.
func (s *Store) Retrieve(id uint64) (*LogicalNode, error) {
	rec, err := s.pool.LoadNodeRecord(id)
	if err != nil {
		return nil, err
	}
	node := &LogicalNode{ID: id, IsLeaf: rec.IsLeaf(), IsRoot: rec.IsRoot(), RightChild: rec.Next}
	for i := range rec.Cells {
		head := rec.Cells[i]
		if !head.IsActive() || !head.IsLeafCell() {
			continue
		}
		lc, err := s.readLogicalCell(head, node.IsLeaf)
		if err != nil {
			return nil, err
		}
		node.Cells = append(node.Cells, lc)
	}
	sortCells(node.Cells)
	return node, nil
}

func sortCells(cells []LogicalCell) {
	// insertion sort: node cell counts are small (<= NbCell), and this
	// keeps the package dependency-free of sort's interface ceremony.
	for i := 1; i < len(cells); i++ {
		for j := i; j > 0 && bytes.Compare(cells[j-1].Key, cells[j].Key) > 0; j-- {
			cells[j-1], cells[j] = cells[j], cells[j-1]
		}
	}
}

// readLogicalCell walks a key's (possibly chained) fragments, then, for
// leaf cells, walks the posting-list chain reachable from the terminal
// key fragment's repurposed pointer.
func (s *Store) readLogicalCell(head CellRecord, isLeaf bool) (LogicalCell, error) {
	keyBuf, terminal, err := s.readChain(head)
	if err != nil {
		return LogicalCell{}, err
	}
	key := bytes.TrimRight(keyBuf, "\x00")
	lc := LogicalCell{Key: key}
	if !isLeaf {
		lc.Child = terminal.NodePtr
		return lc, nil
	}
	listLoc := terminal.NextCellLocation()
	if listLoc.IsNull() {
		return lc, nil
	}
	listRec, err := s.pool.LoadNodeRecord(listLoc.NodeID)
	if err != nil {
		return LogicalCell{}, err
	}
	listHead := listRec.Cells[listLoc.CellID]
	listBuf, _, err := s.readChain(listHead)
	if err != nil {
		return LogicalCell{}, err
	}
	lc.Posting = decodePostingList(listBuf)
	return lc, nil
}

// readChain follows a HasOverflow fragment chain starting at head,
// concatenating payloads, and returns the final (non-overflowing)
// fragment so the caller can interpret its trailer fields.
func (s *Store) readChain(head CellRecord) ([]byte, CellRecord, error) {
	var buf []byte
	cur := head
	for {
		buf = append(buf, cur.Key[:]...)
		if !cur.HasOverflow() {
			return buf, cur, nil
		}
		loc := cur.NextCellLocation()
		rec, err := s.pool.LoadNodeRecord(loc.NodeID)
		if err != nil {
			return nil, CellRecord{}, err
		}
		cur = rec.Cells[loc.CellID]
	}
}

// Save persists node's full logical cell set, replacing whatever this
// node's physical record previously held. If node.ID is zero a fresh
// page is allocated and node.ID is updated in place.
func (s *Store) Save(node *LogicalNode) error {
	if len(node.Cells) > NbCell {
		panic("bptree: Store.Save: logical node has more cells than NbCell slots; caller must split first")
	}
	var old BNodeRecord
	if node.ID != 0 {
		existing, err := s.pool.LoadNodeRecord(node.ID)
		if err != nil {
			return err
		}
		old = existing
		if err := s.releaseOldChains(old); err != nil {
			return err
		}
	}
	var rec BNodeRecord
	rec.SetLeaf(node.IsLeaf)
	rec.SetRoot(node.IsRoot)
	rec.SetNext(node.RightChild)
	slot := 0
	for _, lc := range node.Cells {
		trailerPtr, trailerCellPtr := lc.Child, uint32(0)
		if node.IsLeaf {
			if len(lc.Posting) > 0 {
				loc, err := placeFragmentChain(splitPostingListIntoFragments(lc.Posting), true, 0, 0, s.pool)
				if err != nil {
					return err
				}
				trailerPtr, trailerCellPtr = loc.NodeID, loc.CellID
			} else {
				trailerPtr, trailerCellPtr = 0, 0
			}
		}
		head, err := buildFragmentChain(splitIntoFragments(lc.Key), false, trailerPtr, trailerCellPtr, s.pool)
		if err != nil {
			return err
		}
		head.SetLeafCell(true)
		rec.Cells[slot] = head
		slot++
	}
	if node.ID == 0 {
		id, err := s.pool.CreateNodeRecord(rec)
		if err != nil {
			return err
		}
		node.ID = id
		return nil
	}
	s.pool.PutNodeRecord(node.ID, rec)
	return nil
}

// releaseOldChains disables every head cell's overflow/list chain in
// the physical record being replaced, so the free-cell iterator can
// reuse those slots for future inserts.
func (s *Store) releaseOldChains(old BNodeRecord) error {
	for i := range old.Cells {
		head := old.Cells[i]
		if !head.IsActive() || !head.IsLeafCell() {
			continue
		}
		_, terminal, err := s.readChain(head)
		if err != nil {
			return err
		}
		if head.HasOverflow() {
			if err := s.pool.DisableCellRecords(head.NextCellLocation()); err != nil {
				return err
			}
		}
		if !old.IsLeaf() {
			continue
		}
		listLoc := terminal.NextCellLocation()
		if !listLoc.IsNull() {
			if err := s.pool.DisableCellRecords(listLoc); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteNode releases every chain owned by id's physical record and
// recycles the page itself onto the free-cell list (DESIGN.md's free
// list reclamation policy).
func (s *Store) DeleteNode(id uint64) error {
	rec, err := s.pool.LoadNodeRecord(id)
	if err != nil {
		return err
	}
	if err := s.releaseOldChains(rec); err != nil {
		return err
	}
	return s.pool.AppendNodeRecordToFreeList(id)
}
