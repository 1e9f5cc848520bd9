package cpu

import (
	"fmt"
)

// Memory map.
const (
	MEMORY_SIZE     = 0x1000 // Addressable bytes.
	ADDRESS_MASK    = 0x0fff // Every address wraps to 12 bits.
	FONT_BASE       = 0x050  // First byte of the hexadecimal font.
	FONT_GLYPH_SIZE = 5      // Bytes per font glyph.
	PROGRAM_START   = 0x200  // Programs are loaded, and start executing, here.
	PROGRAM_LIMIT   = MEMORY_SIZE - PROGRAM_START
)

// Font is the 4x5 hexadecimal glyph set, 0 through F.
var Font = [16 * FONT_GLYPH_SIZE]byte{
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

var _memory_defines = map[string]string{
	"MEMORY_SIZE":   fmt.Sprintf("%#x", MEMORY_SIZE),
	"FONT_BASE":     fmt.Sprintf("%#x", FONT_BASE),
	"PROGRAM_START": fmt.Sprintf("%#x", PROGRAM_START),
}

// Memory is the flat CHIP-8 address space.
type Memory [MEMORY_SIZE]byte

// Reset zeroes memory and installs the font.
func (mem *Memory) Reset() {
	clear(mem[:])
	copy(mem[FONT_BASE:], Font[:])
}

// Read returns the byte at the wrapped address.
func (mem *Memory) Read(addr uint16) byte {
	return mem[addr&ADDRESS_MASK]
}

// Word returns the big-endian word at addr. The second byte wraps.
func (mem *Memory) Word(addr uint16) uint16 {
	return uint16(mem.Read(addr))<<8 | uint16(mem.Read(addr+1))
}

// Write stores a byte at the wrapped address.
// The font glyphs are read-only, and writes to them are dropped. The rest of
// the interpreter region is scratch space.
func (mem *Memory) Write(addr uint16, value byte) (ok bool) {
	addr &= ADDRESS_MASK
	if addr >= FONT_BASE && addr < FONT_BASE+uint16(len(Font)) {
		return
	}

	mem[addr] = value
	return true
}

// Load copies a program to PROGRAM_START.
func (mem *Memory) Load(program []byte) (err error) {
	if len(program) > PROGRAM_LIMIT {
		err = ErrProgramSize(len(program))
		return
	}

	copy(mem[PROGRAM_START:], program)
	return
}
