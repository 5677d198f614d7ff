// Package bptree implements the paged, big-endian B+-tree that indexes
// vertex labels to posting lists of vertex ids: the node record pool
// (C2), the cell/node record codec (C3), the node store (C4), and the
// index itself (C5).
package bptree

import "encoding/binary"

// Fixed layout constants, matching the on-disk format spec.md §6
// describes: a node record is one header byte, NbCell fixed-size cell
// records, and a trailing node pointer; a cell record is one header
// byte, a node pointer, an overflow cell pointer, and a fixed payload.
const (
	KeySize             = 128
	NbCell              = 64
	cellHeaderSize      = 1
	nodePtrSize         = 8
	overflowCellPtrSize = 4
	CellSize            = cellHeaderSize + nodePtrSize + overflowCellPtrSize + KeySize
	nodeHeaderSize      = 1
	NodeRecordSize      = nodeHeaderSize + NbCell*CellSize + nodePtrSize
)

// Cell flags.
const (
	cellActive byte = 1 << iota
	cellHasOverflow
	cellIsListPtr
	cellIsLeafCell
)

// Node flags.
const (
	nodeLeaf byte = 1 << iota
	nodeRoot
	nodeHasNext
	nodeOverflowStorage
)

// BTreeCellLoc identifies a single cell by the id of the node record
// that houses it and its index within that node's cell array.
type BTreeCellLoc struct {
	NodeID uint64
	CellID uint32
}

// NullLoc is the sentinel "no cell" location; node id 0 is never
// allocated by the records manager.
var NullLoc = BTreeCellLoc{NodeID: 0, CellID: 0}

func (l BTreeCellLoc) IsNull() bool { return l.NodeID == 0 }

// CellRecord is the physical, fixed-size on-disk cell: a header byte of
// flags, a node pointer that means "child subtree" for an interior
// cell or "overflow/list chain head" once HasOverflow or IsListPtr is
// set, an overflow cell index within that node, and a KeySize payload
// buffer holding either a literal key fragment or a packed posting-list
// fragment depending on IsListPtr.
type CellRecord struct {
	Header          byte
	NodePtr         uint64
	OverflowCellPtr uint32
	Key             [KeySize]byte
}

func flagTest(header, flag byte) bool { return header&flag != 0 }

func setFlag(header *byte, flag byte, on bool) {
	if on {
		*header |= flag
	} else {
		*header &^= flag
	}
}

func (c *CellRecord) IsActive() bool          { return flagTest(c.Header, cellActive) }
func (c *CellRecord) SetActive(on bool)       { setFlag(&c.Header, cellActive, on) }
func (c *CellRecord) HasOverflow() bool       { return flagTest(c.Header, cellHasOverflow) }
func (c *CellRecord) SetHasOverflow(on bool)  { setFlag(&c.Header, cellHasOverflow, on) }
func (c *CellRecord) IsListPtr() bool         { return flagTest(c.Header, cellIsListPtr) }
func (c *CellRecord) SetListPtr(on bool)      { setFlag(&c.Header, cellIsListPtr, on) }
func (c *CellRecord) IsLeafCell() bool        { return flagTest(c.Header, cellIsLeafCell) }
func (c *CellRecord) SetLeafCell(on bool)     { setFlag(&c.Header, cellIsLeafCell, on) }

// SetInactive clears the active flag, the way pool.rs's disable path does.
func (c *CellRecord) SetInactive() { c.SetActive(false) }

// NextCellLocation returns where this cell's overflow chain continues.
func (c *CellRecord) NextCellLocation() BTreeCellLoc {
	return BTreeCellLoc{NodeID: c.NodePtr, CellID: c.OverflowCellPtr}
}

// SetNextCellLocation points this cell's overflow chain at loc.
func (c *CellRecord) SetNextCellLocation(loc BTreeCellLoc) {
	c.NodePtr = loc.NodeID
	c.OverflowCellPtr = loc.CellID
}

// Encode writes the cell's big-endian wire representation into buf,
// which must be at least CellSize bytes.
func (c *CellRecord) Encode(buf []byte) {
	buf[0] = c.Header
	binary.BigEndian.PutUint64(buf[1:9], c.NodePtr)
	binary.BigEndian.PutUint32(buf[9:13], c.OverflowCellPtr)
	copy(buf[13:13+KeySize], c.Key[:])
}

// DecodeCellRecord parses a CellRecord from its big-endian wire form.
func DecodeCellRecord(buf []byte) CellRecord {
	var c CellRecord
	c.Header = buf[0]
	c.NodePtr = binary.BigEndian.Uint64(buf[1:9])
	c.OverflowCellPtr = binary.BigEndian.Uint32(buf[9:13])
	copy(c.Key[:], buf[13:13+KeySize])
	return c
}

// BNodeRecord is the physical, fixed-size on-disk node record: a header
// byte of flags, NbCell cell records, and a trailing node pointer used
// either as the next node in the free-cell chain (when OverflowStorage
// is set) or, for ordinary B-tree nodes, as the interior node's
// RightChild (zero for leaves).
type BNodeRecord struct {
	Header byte
	Cells  [NbCell]CellRecord
	Next   uint64
}

func NewBNodeRecord() BNodeRecord {
	return BNodeRecord{}
}

func (n *BNodeRecord) IsLeaf() bool            { return flagTest(n.Header, nodeLeaf) }
func (n *BNodeRecord) SetLeaf(on bool)         { setFlag(&n.Header, nodeLeaf, on) }
func (n *BNodeRecord) IsRoot() bool            { return flagTest(n.Header, nodeRoot) }
func (n *BNodeRecord) SetRoot(on bool)         { setFlag(&n.Header, nodeRoot, on) }
func (n *BNodeRecord) HasNext() bool           { return flagTest(n.Header, nodeHasNext) }
func (n *BNodeRecord) IsOverflowStorage() bool { return flagTest(n.Header, nodeOverflowStorage) }

// SetOverflowNode resets the record into an empty overflow-storage node,
// the way pool.rs's set_overflow_node prepares a fresh free-cell host.
func (n *BNodeRecord) SetOverflowNode() {
	n.Header = 0
	setFlag(&n.Header, nodeOverflowStorage, true)
	n.Cells = [NbCell]CellRecord{}
	n.Next = 0
}

// SetNext sets the trailing node pointer and keeps the HasNext flag
// consistent with it.
func (n *BNodeRecord) SetNext(id uint64) {
	n.Next = id
	setFlag(&n.Header, nodeHasNext, id != 0)
}

// IsFull reports whether every cell slot in the node is active, meaning
// the free-cell iterator must move on to another overflow-storage node.
func (n *BNodeRecord) IsFull() bool {
	for i := range n.Cells {
		if !n.Cells[i].IsActive() {
			return false
		}
	}
	return true
}

// Encode writes the node's big-endian wire representation into buf,
// which must be at least NodeRecordSize bytes.
func (n *BNodeRecord) Encode(buf []byte) {
	buf[0] = n.Header
	off := 1
	cellBuf := make([]byte, CellSize)
	for i := range n.Cells {
		n.Cells[i].Encode(cellBuf)
		copy(buf[off:off+CellSize], cellBuf)
		off += CellSize
	}
	binary.BigEndian.PutUint64(buf[off:off+nodePtrSize], n.Next)
}

// DecodeBNodeRecord parses a BNodeRecord from its big-endian wire form.
func DecodeBNodeRecord(buf []byte) BNodeRecord {
	var n BNodeRecord
	n.Header = buf[0]
	off := 1
	for i := 0; i < NbCell; i++ {
		n.Cells[i] = DecodeCellRecord(buf[off : off+CellSize])
		off += CellSize
	}
	n.Next = binary.BigEndian.Uint64(buf[off : off+nodePtrSize])
	return n
}

// splitIntoFragments chops payload into KeySize-sized chunks, the last
// of which is zero-padded. It mutates nothing; concatenating the chain
// (Store.readChain) and trimming trailing NULs reverses it.
func splitIntoFragments(payload []byte) [][KeySize]byte {
	if len(payload) == 0 {
		return [][KeySize]byte{{}}
	}
	var frags [][KeySize]byte
	for off := 0; off < len(payload); off += KeySize {
		var f [KeySize]byte
		end := off + KeySize
		if end > len(payload) {
			end = len(payload)
		}
		copy(f[:], payload[off:end])
		frags = append(frags, f)
	}
	return frags
}

// maxPostingIDsPerFragment is how many 8-byte posting pointers fit in a
// single KeySize payload once its leading 16-bit count is reserved: a
// posting cell is full when adding one more 8-byte pointer would exceed
// KeySize-2.
const maxPostingIDsPerFragment = (KeySize - 2) / 8

// splitPostingListIntoFragments packs ids into KeySize-sized fragments,
// each one a 16-bit big-endian count followed by that many consecutive
// big-endian uint64 pointers, padded with zero bytes. This is the
// posting-list counterpart to splitIntoFragments: a key fragment uses
// its full KeySize bytes and a NUL terminator to mark its logical end,
// while a posting fragment reserves its first two bytes for an explicit
// count instead, since 0 is itself a meaningful future vertex id.
func splitPostingListIntoFragments(ids []uint64) [][KeySize]byte {
	if len(ids) == 0 {
		return [][KeySize]byte{{}}
	}
	var frags [][KeySize]byte
	for off := 0; off < len(ids); off += maxPostingIDsPerFragment {
		end := off + maxPostingIDsPerFragment
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[off:end]
		var f [KeySize]byte
		binary.BigEndian.PutUint16(f[:2], uint16(len(chunk)))
		for i, id := range chunk {
			start := 2 + i*8
			binary.BigEndian.PutUint64(f[start:start+8], id)
		}
		frags = append(frags, f)
	}
	return frags
}

// decodePostingList unpacks a byte payload produced by concatenating a
// posting-list fragment chain (readChain) back into the list of vertex
// ids it encodes, honoring each KeySize-sized fragment's own leading
// 16-bit count rather than scanning for a zero sentinel.
func decodePostingList(payload []byte) []uint64 {
	var ids []uint64
	for off := 0; off+KeySize <= len(payload); off += KeySize {
		frag := payload[off : off+KeySize]
		count := int(binary.BigEndian.Uint16(frag[:2]))
		for i := 0; i < count; i++ {
			start := 2 + i*8
			ids = append(ids, binary.BigEndian.Uint64(frag[start:start+8]))
		}
	}
	return ids
}
