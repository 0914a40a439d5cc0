// Package emu provides functional TAM emulation.
package emu

import "encoding/binary"

// MemSize is the capacity of both the code store and the data store.
const MemSize = 65535

// Memory holds the two parallel TAM stores: a code store of 32-bit
// instruction words and a data store of signed 16-bit words. The stack
// occupies the low end of the data store and grows up; the heap occupies
// the high end and grows down toward it.
type Memory struct {
	code []uint32
	data []int16
}

// NewMemory creates a zeroed memory.
func NewMemory() *Memory {
	return &Memory{
		code: make([]uint32, MemSize),
		data: make([]int16, MemSize),
	}
}

// LoadProgram interprets program as a stream of big-endian 32-bit words and
// writes them sequentially from index 0 of the code store. The code store is
// zero-cleared first. Trailing bytes smaller than a full word are discarded.
// Returns the number of words loaded.
func (m *Memory) LoadProgram(program []byte) int {
	for i := range m.code {
		m.code[i] = 0
	}

	count := 0
	for len(program) >= 4 && count < MemSize {
		m.code[count] = binary.BigEndian.Uint32(program)
		program = program[4:]
		count++
	}
	return count
}

// LoadWords writes the given instruction words sequentially from index 0 of
// the code store, zero-clearing it first. Returns the number of words loaded.
func (m *Memory) LoadWords(words []uint32) int {
	for i := range m.code {
		m.code[i] = 0
	}

	count := copy(m.code, words)
	return count
}

// ResetData zeroes the data store.
func (m *Memory) ResetData() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// Word returns the code-store word at addr.
func (m *Memory) Word(addr int) uint32 {
	return m.code[addr]
}

// Cell returns the data-store cell at addr.
func (m *Memory) Cell(addr int) int16 {
	return m.data[addr]
}

// SetCell writes the data-store cell at addr.
func (m *Memory) SetCell(addr int, v int16) {
	m.data[addr] = v
}
