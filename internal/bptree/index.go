package bptree

import (
	"bytes"
	"encoding/binary"

	"github.com/conure-db/graphdb/internal/recordio"
)

// MaxKeys and MinKeys bound how many separator/data cells a node may
// hold before it must split, or after a delete before it must
// rebalance — analogous to conuredb's MaxItems/MinItems, sized to the
// node record's fixed NbCell slot count.
const (
	MaxKeys = NbCell
	MinKeys = NbCell / 2
)

// Index is the B+-Tree Index (C5): search/insert/delete over string
// keys mapping to posting lists of vertex ids, with split-on-overflow
// and borrow-or-merge-on-underflow, grounded on
// zawgl-core/src/repository/index/store/mod.rs and the teacher's
// conuredb-conuredb/btree/btree.go control flow.
type Index struct {
	records *recordio.Manager
}

func OpenIndex(records *recordio.Manager) *Index {
	return &Index{records: records}
}

func (ix *Index) rootID() (uint64, error) {
	raw, err := ix.records.ReadHeaderRange(headerRootOffset, nodePtrSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (ix *Index) setRootID(id uint64) error {
	var buf [nodePtrSize]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return ix.records.WriteHeaderRange(headerRootOffset, buf[:])
}

// Search returns the posting list associated with key, or nil if key is
// not present.
func (ix *Index) Search(key []byte) ([]uint64, error) {
	root, err := ix.rootID()
	if err != nil {
		return nil, err
	}
	if root == 0 {
		return nil, nil
	}
	pool := NewNodeRecordPool(ix.records)
	store := NewStore(pool)
	id := root
	for {
		node, err := store.Retrieve(id)
		if err != nil {
			return nil, err
		}
		if node.IsLeaf {
			idx, found := findKey(node.Cells, key)
			if !found {
				return nil, nil
			}
			return node.Cells[idx].Posting, nil
		}
		id = childAt(node, childIndex(node.Cells, key))
	}
}

// Insert merges ids into key's posting list, creating the key if it is
// not yet present, and commits the mutation: pool.SaveAll followed by
// records.Sync, per spec.md's transaction semantics.
func (ix *Index) Insert(key []byte, ids ...uint64) error {
	pool := NewNodeRecordPool(ix.records)
	store := NewStore(pool)
	root, err := ix.rootID()
	if err != nil {
		return err
	}
	if root == 0 {
		leaf := &LogicalNode{IsLeaf: true, IsRoot: true, Cells: []LogicalCell{{Key: append([]byte{}, key...), Posting: dedupIDs(ids)}}}
		if err := store.Save(leaf); err != nil {
			return err
		}
		if err := ix.setRootID(leaf.ID); err != nil {
			return err
		}
		return ix.commit(pool)
	}

	promKey, promRight, split, err := ix.insertInto(store, root, key, ids)
	if err != nil {
		return err
	}
	if split {
		oldRoot, err := store.Retrieve(root)
		if err != nil {
			return err
		}
		oldRoot.IsRoot = false
		if err := store.Save(oldRoot); err != nil {
			return err
		}
		newRoot := &LogicalNode{IsLeaf: false, IsRoot: true, Cells: []LogicalCell{{Key: promKey, Child: root}}, RightChild: promRight}
		if err := store.Save(newRoot); err != nil {
			return err
		}
		if err := ix.setRootID(newRoot.ID); err != nil {
			return err
		}
	}
	return ix.commit(pool)
}

func (ix *Index) commit(pool *NodeRecordPool) error {
	if err := pool.SaveAll(); err != nil {
		return err
	}
	return ix.records.Sync()
}

// insertInto recursively descends to the target leaf, inserts/merges,
// and splits any node (leaf or interior) that overflows past MaxKeys,
// returning the key to promote and the new right sibling's id.
func (ix *Index) insertInto(store *Store, id uint64, key []byte, ids []uint64) ([]byte, uint64, bool, error) {
	node, err := store.Retrieve(id)
	if err != nil {
		return nil, 0, false, err
	}
	if node.IsLeaf {
		idx, found := findKey(node.Cells, key)
		if found {
			node.Cells[idx].Posting = dedupIDs(append(node.Cells[idx].Posting, ids...))
		} else {
			node.Cells = insertCellAt(node.Cells, idx, LogicalCell{Key: append([]byte{}, key...), Posting: dedupIDs(ids)})
		}
		if len(node.Cells) <= MaxKeys {
			return nil, 0, false, store.Save(node)
		}
		return ix.splitLeaf(store, node)
	}

	idx := childIndex(node.Cells, key)
	childID := childAt(node, idx)
	promKey, promRight, childSplit, err := ix.insertInto(store, childID, key, ids)
	if err != nil {
		return nil, 0, false, err
	}
	if !childSplit {
		return nil, 0, false, nil
	}
	promoteChild(node, idx, promKey, childID, promRight)
	if len(node.Cells) <= MaxKeys {
		return nil, 0, false, store.Save(node)
	}
	return ix.splitInternal(store, node)
}

func (ix *Index) splitLeaf(store *Store, node *LogicalNode) ([]byte, uint64, bool, error) {
	mid := len(node.Cells) / 2
	rightCells := append([]LogicalCell{}, node.Cells[mid:]...)
	node.Cells = append([]LogicalCell{}, node.Cells[:mid]...)
	right := &LogicalNode{IsLeaf: true, Cells: rightCells}
	if err := store.Save(right); err != nil {
		return nil, 0, false, err
	}
	if err := store.Save(node); err != nil {
		return nil, 0, false, err
	}
	promKey := append([]byte{}, rightCells[0].Key...)
	return promKey, right.ID, true, nil
}

func (ix *Index) splitInternal(store *Store, node *LogicalNode) ([]byte, uint64, bool, error) {
	mid := len(node.Cells) / 2
	promKey := append([]byte{}, node.Cells[mid].Key...)
	leftRightChild := node.Cells[mid].Child
	rightCells := append([]LogicalCell{}, node.Cells[mid+1:]...)
	right := &LogicalNode{IsLeaf: false, Cells: rightCells, RightChild: node.RightChild}
	node.Cells = append([]LogicalCell{}, node.Cells[:mid]...)
	node.RightChild = leftRightChild
	if err := store.Save(right); err != nil {
		return nil, 0, false, err
	}
	if err := store.Save(node); err != nil {
		return nil, 0, false, err
	}
	return promKey, right.ID, true, nil
}

// Delete removes ids from key's posting list, dropping the key entirely
// once its posting list empties (or immediately, if deleteWholeKey).
func (ix *Index) Delete(key []byte, deleteWholeKey bool, ids ...uint64) error {
	pool := NewNodeRecordPool(ix.records)
	store := NewStore(pool)
	root, err := ix.rootID()
	if err != nil {
		return err
	}
	if root == 0 {
		return nil
	}
	if err := ix.deleteFrom(store, root, key, deleteWholeKey, ids); err != nil {
		return err
	}
	node, err := store.Retrieve(root)
	if err != nil {
		return err
	}
	if !node.IsLeaf && len(node.Cells) == 0 {
		newRoot, err := store.Retrieve(node.RightChild)
		if err != nil {
			return err
		}
		if err := store.DeleteNode(root); err != nil {
			return err
		}
		newRoot.IsRoot = true
		if err := store.Save(newRoot); err != nil {
			return err
		}
		if err := ix.setRootID(newRoot.ID); err != nil {
			return err
		}
	}
	return ix.commit(pool)
}

// deleteFrom recursively descends to the target leaf, removes the
// requested ids, and rebalances any child that underflows below
// MinKeys by borrowing from a sibling or, failing that, merging with
// one — mirroring conuredb's rebalanceLeaf/rebalanceInternal.
func (ix *Index) deleteFrom(store *Store, id uint64, key []byte, deleteWholeKey bool, ids []uint64) error {
	node, err := store.Retrieve(id)
	if err != nil {
		return err
	}
	if node.IsLeaf {
		idx, found := findKey(node.Cells, key)
		if !found {
			return store.Save(node)
		}
		if deleteWholeKey {
			node.Cells = removeCellAt(node.Cells, idx)
		} else {
			node.Cells[idx].Posting = removeIDs(node.Cells[idx].Posting, ids)
			if len(node.Cells[idx].Posting) == 0 {
				node.Cells = removeCellAt(node.Cells, idx)
			}
		}
		return store.Save(node)
	}

	idx := childIndex(node.Cells, key)
	childID := childAt(node, idx)
	if err := ix.deleteFrom(store, childID, key, deleteWholeKey, ids); err != nil {
		return err
	}
	child, err := store.Retrieve(childID)
	if err != nil {
		return err
	}
	if len(child.Cells) >= MinKeys {
		return store.Save(node)
	}
	if err := ix.rebalance(store, node, idx, child); err != nil {
		return err
	}
	return store.Save(node)
}

// rebalance fixes an underflowing child at position idx within node by
// borrowing a cell from a sibling that can spare one, or merging with a
// sibling (preferring the right one) when neither can.
func (ix *Index) rebalance(store *Store, node *LogicalNode, idx int, child *LogicalNode) error {
	n := len(node.Cells)
	hasLeft := idx > 0
	hasRight := idx < n

	if hasRight {
		rightID := childAt(node, idx+1)
		right, err := store.Retrieve(rightID)
		if err != nil {
			return err
		}
		if len(right.Cells) > MinKeys {
			borrowFromRight(node, idx, child, right)
			if err := store.Save(child); err != nil {
				return err
			}
			return store.Save(right)
		}
	}
	if hasLeft {
		leftID := childAt(node, idx-1)
		left, err := store.Retrieve(leftID)
		if err != nil {
			return err
		}
		if len(left.Cells) > MinKeys {
			borrowFromLeft(node, idx, child, left)
			if err := store.Save(left); err != nil {
				return err
			}
			return store.Save(child)
		}
	}
	if hasRight {
		rightID := childAt(node, idx+1)
		right, err := store.Retrieve(rightID)
		if err != nil {
			return err
		}
		mergeRight(node, idx, child, right)
		if err := store.Save(child); err != nil {
			return err
		}
		return store.DeleteNode(rightID)
	}
	leftID := childAt(node, idx-1)
	left, err := store.Retrieve(leftID)
	if err != nil {
		return err
	}
	mergeRight(node, idx-1, left, child)
	if err := store.Save(left); err != nil {
		return err
	}
	return store.DeleteNode(child.ID)
}

func borrowFromRight(node *LogicalNode, idx int, child, right *LogicalNode) {
	if child.IsLeaf {
		moved := right.Cells[0]
		right.Cells = right.Cells[1:]
		child.Cells = append(child.Cells, moved)
		node.Cells[idx].Key = append([]byte{}, right.Cells[0].Key...)
		return
	}
	moved := LogicalCell{Key: append([]byte{}, node.Cells[idx].Key...), Child: child.RightChild}
	child.Cells = append(child.Cells, moved)
	child.RightChild = right.Cells[0].Child
	node.Cells[idx].Key = append([]byte{}, right.Cells[0].Key...)
	right.Cells = right.Cells[1:]
}

func borrowFromLeft(node *LogicalNode, idx int, child, left *LogicalNode) {
	n := len(left.Cells)
	if child.IsLeaf {
		moved := left.Cells[n-1]
		left.Cells = left.Cells[:n-1]
		child.Cells = insertCellAt(child.Cells, 0, moved)
		node.Cells[idx-1].Key = append([]byte{}, moved.Key...)
		return
	}
	moved := LogicalCell{Key: append([]byte{}, node.Cells[idx-1].Key...), Child: left.RightChild}
	child.Cells = insertCellAt(child.Cells, 0, moved)
	left.RightChild = left.Cells[n-1].Child
	node.Cells[idx-1].Key = append([]byte{}, left.Cells[n-1].Key...)
	left.Cells = left.Cells[:n-1]
}

// mergeRight folds right (and node's separator at idx, if interior)
// into left in place, removes that separator from node, and points the
// slot that referenced right at left instead.
func mergeRight(node *LogicalNode, idx int, left, right *LogicalNode) {
	if left.IsLeaf {
		left.Cells = append(left.Cells, right.Cells...)
	} else {
		sep := LogicalCell{Key: append([]byte{}, node.Cells[idx].Key...), Child: left.RightChild}
		left.Cells = append(left.Cells, sep)
		left.Cells = append(left.Cells, right.Cells...)
		left.RightChild = right.RightChild
	}
	leftID := node.Cells[idx].Child
	if idx+1 == len(node.Cells) {
		node.RightChild = leftID
	} else {
		node.Cells[idx+1].Child = leftID
	}
	node.Cells = removeCellAt(node.Cells, idx)
}

// --- small pure helpers ---

func findKey(cells []LogicalCell, key []byte) (idx int, found bool) {
	for i, c := range cells {
		cmp := bytes.Compare(key, c.Key)
		if cmp == 0 {
			return i, true
		}
		if cmp < 0 {
			return i, false
		}
	}
	return len(cells), false
}

// childIndex returns the position of the child to descend into for an
// interior-node lookup: the smallest i with key < Cells[i].Key, or
// len(cells) if key is greater than or equal to every separator. Unlike
// findKey, an exact match against a separator still continues right,
// since separators are copies of a leaf key that itself lives in the
// subtree to the right of the copy.
func childIndex(cells []LogicalCell, key []byte) int {
	for i, c := range cells {
		if bytes.Compare(key, c.Key) < 0 {
			return i
		}
	}
	return len(cells)
}

// childAt returns the child id for descending at position idx, where
// idx in [0,len(Cells)) selects Cells[idx].Child and idx==len(Cells)
// selects RightChild.
func childAt(node *LogicalNode, idx int) uint64 {
	if idx == len(node.Cells) {
		return node.RightChild
	}
	return node.Cells[idx].Child
}

func insertCellAt(cells []LogicalCell, idx int, c LogicalCell) []LogicalCell {
	cells = append(cells, LogicalCell{})
	copy(cells[idx+1:], cells[idx:])
	cells[idx] = c
	return cells
}

func removeCellAt(cells []LogicalCell, idx int) []LogicalCell {
	return append(cells[:idx], cells[idx+1:]...)
}

// promoteChild inserts a new separator (promKey, leftID) at position
// descendIdx and redirects the slot that previously held leftID to
// rightID (RightChild when descendIdx was the last position).
func promoteChild(node *LogicalNode, descendIdx int, promKey []byte, leftID, rightID uint64) {
	newCell := LogicalCell{Key: promKey, Child: leftID}
	if descendIdx == len(node.Cells) {
		node.Cells = append(node.Cells, newCell)
		node.RightChild = rightID
		return
	}
	node.Cells[descendIdx].Child = rightID
	node.Cells = insertCellAt(node.Cells, descendIdx, newCell)
}

func dedupIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func removeIDs(ids []uint64, remove []uint64) []uint64 {
	drop := make(map[uint64]bool, len(remove))
	for _, id := range remove {
		drop[id] = true
	}
	out := ids[:0]
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

