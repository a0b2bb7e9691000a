// Package mem provides the memory-side collaborator models for the fetch
// front-end: a sparse backing memory, physical-region attributes, a
// TLB-based translation unit, and a split-phase system bus with an
// instruction line cache.
package mem

import "encoding/binary"

// memPageSize is the allocation granularity of the sparse memory.
const memPageSize = 4096

// Memory is a sparse, byte-addressable backing memory. Pages are
// allocated on first write; reads from unallocated pages return zero.
type Memory struct {
	pages map[uint64][]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64][]byte)}
}

func (m *Memory) page(addr uint64, alloc bool) []byte {
	base := addr &^ (memPageSize - 1)
	p, ok := m.pages[base]
	if !ok && alloc {
		p = make([]byte, memPageSize)
		m.pages[base] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) byte {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr%memPageSize]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint64, value byte) {
	m.page(addr, true)[addr%memPageSize] = value
}

// Read32 reads a little-endian 32-bit word.
func (m *Memory) Read32(addr uint64) uint32 {
	var buf [4]byte
	m.ReadBytes(addr, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// Write32 writes a little-endian 32-bit word.
func (m *Memory) Write32(addr uint64, value uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// Read64 reads a little-endian 64-bit word.
func (m *Memory) Read64(addr uint64) uint64 {
	var buf [8]byte
	m.ReadBytes(addr, buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// Write64 writes a little-endian 64-bit word.
func (m *Memory) Write64(addr uint64, value uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	m.WriteBytes(addr, buf[:])
}

// ReadBytes fills buf starting at addr.
func (m *Memory) ReadBytes(addr uint64, buf []byte) {
	for i := range buf {
		buf[i] = m.Read8(addr + uint64(i))
	}
}

// WriteBytes writes buf starting at addr.
func (m *Memory) WriteBytes(addr uint64, buf []byte) {
	for i, b := range buf {
		m.Write8(addr+uint64(i), b)
	}
}
