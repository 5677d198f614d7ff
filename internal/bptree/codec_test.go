package bptree

import "testing"

func TestCellRecordRoundTrip(t *testing.T) {
	var c CellRecord
	c.SetActive(true)
	c.SetHasOverflow(true)
	c.SetListPtr(true)
	c.SetLeafCell(true)
	c.NodePtr = 0xdeadbeef
	c.OverflowCellPtr = 42
	copy(c.Key[:], []byte("hello"))

	buf := make([]byte, CellSize)
	c.Encode(buf)
	got := DecodeCellRecord(buf)

	if !got.IsActive() || !got.HasOverflow() || !got.IsListPtr() || !got.IsLeafCell() {
		t.Fatalf("flags not preserved: %+v", got)
	}
	if got.NodePtr != c.NodePtr || got.OverflowCellPtr != c.OverflowCellPtr {
		t.Fatalf("pointers not preserved: got %+v want %+v", got, c)
	}
	if got.Key != c.Key {
		t.Fatalf("key payload not preserved")
	}
}

func TestFlagsAreNonZeroTested(t *testing.T) {
	// DESIGN.md Open Question #1: flags must be tested non-zero, not
	// equal-to-1, since several flags share a byte at non-bit-0 positions.
	var c CellRecord
	c.SetListPtr(true) // bit 2, value 4 — equal-to-1 test would wrongly read false
	if !c.IsListPtr() {
		t.Fatalf("IsListPtr should be true for any non-zero masked bit")
	}
}

func TestBNodeRecordRoundTrip(t *testing.T) {
	var n BNodeRecord
	n.SetLeaf(true)
	n.SetRoot(true)
	n.SetNext(99)
	n.Cells[3].SetActive(true)
	n.Cells[3].SetLeafCell(true)
	copy(n.Cells[3].Key[:], []byte("actor"))

	buf := make([]byte, NodeRecordSize)
	n.Encode(buf)
	got := DecodeBNodeRecord(buf)

	if !got.IsLeaf() || !got.IsRoot() || !got.HasNext() || got.Next != 99 {
		t.Fatalf("node flags/next not preserved: %+v", got)
	}
	if !got.Cells[3].IsActive() || got.Cells[3].Key != n.Cells[3].Key {
		t.Fatalf("cell 3 not preserved: %+v", got.Cells[3])
	}
}

func TestSplitIntoFragmentsExactMultiple(t *testing.T) {
	payload := make([]byte, 5*KeySize)
	for i := range payload {
		payload[i] = byte(i%26) + 'a'
	}
	frags := splitIntoFragments(payload)
	if len(frags) != 5 {
		t.Fatalf("expected exactly 5 fragments for a 5*KeySize payload, got %d", len(frags))
	}
}

func TestPostingListRoundTrip(t *testing.T) {
	ids := []uint64{1, 2, 3, 1000, 0xffffffff, 0}
	frags := splitPostingListIntoFragments(ids)
	var buf []byte
	for _, f := range frags {
		buf = append(buf, f[:]...)
	}
	got := decodePostingList(buf)
	if len(got) != len(ids) {
		t.Fatalf("got %d ids, want %d", len(got), len(ids))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("id[%d] = %d, want %d", i, got[i], ids[i])
		}
	}
}

func TestPostingListFragmentHasCountPrefix(t *testing.T) {
	ids := []uint64{7, 8, 9}
	frags := splitPostingListIntoFragments(ids)
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment for 3 ids, got %d", len(frags))
	}
	count := uint16(frags[0][0])<<8 | uint16(frags[0][1])
	if int(count) != len(ids) {
		t.Fatalf("fragment count prefix = %d, want %d", count, len(ids))
	}
}

func TestPostingListFragmentCountMeetsOverflowBound(t *testing.T) {
	// spec §8 scenario 2: 1000 ids requires at least
	// ceil(1000*8 / (KeySize-2)) fragments.
	const n = 1000
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	frags := splitPostingListIntoFragments(ids)
	want := (n*8 + (KeySize - 2) - 1) / (KeySize - 2)
	if len(frags) < want {
		t.Fatalf("got %d fragments, want at least %d", len(frags), want)
	}
}
