package emu

import "fmt"

// Memory layout.
const (
	// MemorySize is the size of the CHIP-8 address space.
	MemorySize = 4096

	// ProgramStart is where programs are loaded and execution begins.
	ProgramStart = 0x200

	// MaxProgramSize is the largest program image that fits in memory.
	MaxProgramSize = MemorySize - ProgramStart

	// FontBase is the address of the built-in hexadecimal font.
	FontBase = 0x050

	// FontGlyphSize is the number of bytes (rows) per font glyph.
	FontGlyphSize = 5
)

// font holds the sprites for hexadecimal digits 0-F, 4 pixels wide.
var font = [16 * FontGlyphSize]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// FontAddress returns the address of the glyph for the low nibble of digit.
func FontAddress(digit uint8) uint16 {
	return FontBase + uint16(digit&0xF)*FontGlyphSize
}

// Memory is the bounds-checked 4 KiB CHIP-8 address space.
type Memory struct {
	data [MemorySize]byte

	// onWrite is called with the address of every byte written.
	onWrite func(addr uint16)
}

// NewMemory creates a zeroed memory with the font loaded.
func NewMemory() *Memory {
	m := &Memory{}
	m.Reset()
	return m
}

// Reset zeroes memory and reloads the font.
func (m *Memory) Reset() {
	m.data = [MemorySize]byte{}
	copy(m.data[FontBase:], font[:])
}

// OnWrite registers a function called with the address of every byte
// written through Write8 or WriteBlock.
func (m *Memory) OnWrite(fn func(addr uint16)) {
	m.onWrite = fn
}

// Contains reports whether the n bytes starting at addr lie inside memory.
func (m *Memory) Contains(addr uint16, n int) bool {
	return n >= 0 && int(addr)+n <= MemorySize
}

func (m *Memory) check(addr uint16, n int) error {
	if !m.Contains(addr, n) {
		return fmt.Errorf("%w: 0x%04X+%d", ErrOutOfBounds, addr, n)
	}
	return nil
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint16) (byte, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint16, value byte) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.data[addr] = value
	m.notify(addr, 1)
	return nil
}

// Read16 reads a big-endian 16-bit word at [addr, addr+1].
func (m *Memory) Read16(addr uint16) (uint16, error) {
	if err := m.check(addr, 2); err != nil {
		return 0, err
	}
	return uint16(m.data[addr])<<8 | uint16(m.data[addr+1]), nil
}

// ReadBlock returns a copy of the n bytes starting at addr.
func (m *Memory) ReadBlock(addr uint16, n int) ([]byte, error) {
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[int(addr):int(addr)+n])
	return out, nil
}

// WriteBlock writes data starting at addr. The whole range is checked
// before any byte is written.
func (m *Memory) WriteBlock(addr uint16, data []byte) error {
	if err := m.check(addr, len(data)); err != nil {
		return err
	}
	copy(m.data[addr:], data)
	m.notify(addr, len(data))
	return nil
}

func (m *Memory) notify(addr uint16, n int) {
	if m.onWrite == nil {
		return
	}
	for i := 0; i < n; i++ {
		m.onWrite(addr + uint16(i))
	}
}

// LoadProgram resets memory and copies program to ProgramStart.
// An oversized program returns ErrProgramTooLarge and leaves memory as is.
func (m *Memory) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrProgramTooLarge, len(program), MaxProgramSize)
	}
	m.Reset()
	copy(m.data[ProgramStart:], program)
	return nil
}

// Bytes returns a copy of the whole address space.
func (m *Memory) Bytes() [MemorySize]byte {
	return m.data
}

// Restore replaces the whole address space.
func (m *Memory) Restore(data [MemorySize]byte) {
	m.data = data
}
