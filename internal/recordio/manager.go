// Package recordio implements the fixed-size record store that every
// higher layer of the engine is paged on top of: a single file holding a
// reserved header region followed by a flat array of fixed-size records.
// It knows nothing about B-trees, cells, or graphs — it only loads,
// creates, and saves byte-for-byte records by id.
package recordio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
)

const (
	magic           uint32 = 0x47524442 // "GRDB"
	formatVersion   uint32 = 1
	prologueSize           = 16 // magic + version + headerPayloadSize + recordSize
)

// Manager is the concrete, on-disk implementation of the Records Manager
// (C1): fixed-size record IO behind a reserved header page, analogous to
// the teacher's btree.Storage but generalized to an arbitrary record size
// and header size chosen by the caller (the B-tree label index).
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	recordSize int
	headerSize int
	header     []byte // in-memory mirror of the reserved header payload
	nextID     uint64 // next id to hand out; 0 is reserved as "null"
}

// Open opens or creates the record file at path. recordSize is the fixed
// size of every record; headerSize is the size of the caller-owned header
// payload reserved at the front of the file (root id, free-list head,
// and so on, per the layer above).
func Open(path string, recordSize, headerSize int) (*Manager, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("recordio: recordSize must be positive, got %d", recordSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recordio: open %s: %w", path, err)
	}
	m := &Manager{
		file:       f,
		recordSize: recordSize,
		headerSize: headerSize,
		header:     make([]byte, headerSize),
		nextID:     1,
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("recordio: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := m.initializeNewFile(); err != nil {
			f.Close()
			return nil, err
		}
		return m, nil
	}
	if err := m.readExisting(info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) initializeNewFile() error {
	prologue := make([]byte, prologueSize)
	binary.BigEndian.PutUint32(prologue[0:4], magic)
	binary.BigEndian.PutUint32(prologue[4:8], formatVersion)
	binary.BigEndian.PutUint32(prologue[8:12], uint32(m.headerSize))
	binary.BigEndian.PutUint32(prologue[12:16], uint32(m.recordSize))
	if _, err := m.file.WriteAt(prologue, 0); err != nil {
		return fmt.Errorf("recordio: write prologue: %w", err)
	}
	if _, err := m.file.WriteAt(m.header, prologueSize); err != nil {
		return fmt.Errorf("recordio: write initial header: %w", err)
	}
	return m.file.Sync()
}

func (m *Manager) readExisting(size int64) error {
	prologue := make([]byte, prologueSize)
	if _, err := m.file.ReadAt(prologue, 0); err != nil {
		return fmt.Errorf("recordio: read prologue: %w", err)
	}
	gotMagic := binary.BigEndian.Uint32(prologue[0:4])
	if gotMagic != magic {
		return fmt.Errorf("recordio: bad magic %x, not a graphdb record file", gotMagic)
	}
	gotHeaderSize := int(binary.BigEndian.Uint32(prologue[8:12]))
	gotRecordSize := int(binary.BigEndian.Uint32(prologue[12:16]))
	if gotHeaderSize != m.headerSize {
		return fmt.Errorf("recordio: header size mismatch: file has %d, caller wants %d", gotHeaderSize, m.headerSize)
	}
	if gotRecordSize != m.recordSize {
		return fmt.Errorf("recordio: record size mismatch: file has %d, caller wants %d", gotRecordSize, m.recordSize)
	}
	if _, err := m.file.ReadAt(m.header, prologueSize); err != nil {
		return fmt.Errorf("recordio: read header payload: %w", err)
	}
	dataSize := size - int64(prologueSize) - int64(m.headerSize)
	if dataSize < 0 {
		return fmt.Errorf("recordio: truncated file %s", m.file.Name())
	}
	m.nextID = uint64(dataSize/int64(m.recordSize)) + 1
	return nil
}

func (m *Manager) offsetFor(id uint64) int64 {
	return int64(prologueSize) + int64(m.headerSize) + int64(id-1)*int64(m.recordSize)
}

// IsEmpty reports whether the store has never had a single record created.
func (m *Manager) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID == 1
}

// Load reads the record with the given id into buf, which must be exactly
// recordSize bytes.
func (m *Manager) Load(id uint64, buf []byte) error {
	if len(buf) != m.recordSize {
		return fmt.Errorf("recordio: Load buffer is %d bytes, want %d", len(buf), m.recordSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || id >= m.nextID {
		return fmt.Errorf("recordio: Load: id %d out of range", id)
	}
	if _, err := m.file.ReadAt(buf, m.offsetFor(id)); err != nil {
		return fmt.Errorf("recordio: Load(%d): %w", id, err)
	}
	return nil
}

// Create appends data as a new record and returns its freshly allocated id.
func (m *Manager) Create(data []byte) (uint64, error) {
	if len(data) != m.recordSize {
		return 0, fmt.Errorf("recordio: Create data is %d bytes, want %d", len(data), m.recordSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	if _, err := m.file.WriteAt(data, m.offsetFor(id)); err != nil {
		return 0, fmt.Errorf("recordio: Create: %w", err)
	}
	m.nextID++
	return id, nil
}

// Save overwrites an existing record in place.
func (m *Manager) Save(id uint64, data []byte) error {
	if len(data) != m.recordSize {
		return fmt.Errorf("recordio: Save data is %d bytes, want %d", len(data), m.recordSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == 0 || id >= m.nextID {
		return fmt.Errorf("recordio: Save: id %d out of range", id)
	}
	if _, err := m.file.WriteAt(data, m.offsetFor(id)); err != nil {
		return fmt.Errorf("recordio: Save(%d): %w", id, err)
	}
	return nil
}

// ReadHeaderRange copies out a slice of the reserved header payload.
func (m *Manager) ReadHeaderRange(offset, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || length < 0 || offset+length > m.headerSize {
		return nil, fmt.Errorf("recordio: header range [%d,%d) out of bounds (size %d)", offset, offset+length, m.headerSize)
	}
	out := make([]byte, length)
	copy(out, m.header[offset:offset+length])
	return out, nil
}

// WriteHeaderRange overwrites a slice of the reserved header payload and
// persists it immediately, mirroring the teacher's write-through header
// page handling in btree.Storage.writeHeader.
func (m *Manager) WriteHeaderRange(offset int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset+len(data) > m.headerSize {
		return fmt.Errorf("recordio: header range [%d,%d) out of bounds (size %d)", offset, offset+len(data), m.headerSize)
	}
	copy(m.header[offset:offset+len(data)], data)
	if _, err := m.file.WriteAt(m.header[offset:offset+len(data)], int64(prologueSize+offset)); err != nil {
		return fmt.Errorf("recordio: WriteHeaderRange: %w", err)
	}
	return nil
}

// Sync flushes all buffered writes to stable storage.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("recordio: Sync: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		m.file.Close()
		return fmt.Errorf("recordio: Close: sync: %w", err)
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("recordio: Close: %w", err)
	}
	return nil
}
