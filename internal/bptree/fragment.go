package bptree

// buildFragmentChain takes an already-chunked fragment list (from
// splitIntoFragments for a key, or splitPostingListIntoFragments for a
// posting list) and, for any fragment beyond the first, places it into
// a free overflow-storage slot via pool, chaining each to the next. It
// returns the head fragment (the first one), which the caller is
// responsible for placing — either directly into a B-tree node's own
// cell array (for a key chain) or via the pool as well (for a
// posting-list chain; see placeFragmentChain). The terminal (last)
// fragment's NodePtr/OverflowCellPtr are set to trailerNodePtr/
// trailerCellPtr, repurposed by the caller to mean "child id" (interior
// key cells) or "posting-list head location" (leaf key cells);
// list-value chains pass zeros since they have no trailer.
func buildFragmentChain(frags [][KeySize]byte, isListPtr bool, trailerNodePtr uint64, trailerCellPtr uint32, pool *NodeRecordPool) (CellRecord, error) {
	n := len(frags)

	last := CellRecord{}
	last.SetActive(true)
	last.SetListPtr(isListPtr)
	last.Key = frags[n-1]
	last.NodePtr = trailerNodePtr
	last.OverflowCellPtr = trailerCellPtr

	if n == 1 {
		return last, nil
	}

	nextLoc, err := pool.InsertCellInFreeSlot(last)
	if err != nil {
		return CellRecord{}, err
	}
	for i := n - 2; i >= 1; i-- {
		cr := CellRecord{}
		cr.SetActive(true)
		cr.SetListPtr(isListPtr)
		cr.Key = frags[i]
		cr.SetHasOverflow(true)
		cr.SetNextCellLocation(nextLoc)
		loc, err := pool.InsertCellInFreeSlot(cr)
		if err != nil {
			return CellRecord{}, err
		}
		nextLoc = loc
	}
	head := CellRecord{}
	head.SetActive(true)
	head.SetListPtr(isListPtr)
	head.Key = frags[0]
	head.SetHasOverflow(true)
	head.SetNextCellLocation(nextLoc)
	return head, nil
}

// placeFragmentChain is buildFragmentChain followed by placing the head
// fragment itself into a free slot too, for chains (posting lists) that
// never live directly in a B-tree node's own cell array.
func placeFragmentChain(frags [][KeySize]byte, isListPtr bool, trailerNodePtr uint64, trailerCellPtr uint32, pool *NodeRecordPool) (BTreeCellLoc, error) {
	head, err := buildFragmentChain(frags, isListPtr, trailerNodePtr, trailerCellPtr, pool)
	if err != nil {
		return NullLoc, err
	}
	return pool.InsertCellInFreeSlot(head)
}
