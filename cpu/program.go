package cpu

import (
	"iter"
)

// Opcode is one assembled source line.
type Opcode struct {
	LineNo    int      // Source line number.
	Addr      uint16   // Address of the first byte.
	Words     []string // Source words, after equate expansion.
	Bytes     []byte   // Encoded bytes.
	LinkLabel string   // Label linked into the NNN field, if any.
}

type Program struct {
	Opcodes []Opcode
}

type Debug struct {
	*Opcode
	Offset int
}

// Debug finds the source line that assembled the byte at addr.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Addr && int(addr) < int(op.Addr)+len(op.Bytes) {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Offset: int(addr - op.Addr),
			}
			break
		}
	}

	return
}

// Binary returns the ROM image, to be loaded at PROGRAM_START.
func (prog *Program) Binary() (rom []byte) {
	for _, data := range prog.Bytes() {
		rom = append(rom, data)
	}

	return
}

// Bytes iterates over every assembled byte and its address.
func (prog *Program) Bytes() iter.Seq2[uint16, byte] {
	return func(yield func(addr uint16, data byte) bool) {
		for _, op := range prog.Opcodes {
			for n, data := range op.Bytes {
				if !yield(op.Addr+uint16(n), data) {
					return
				}
			}
		}
	}
}

// Disassemble iterates over a ROM image as instructions, with the address
// each would have once loaded. A trailing odd byte is padded with zero.
func Disassemble(rom []byte) iter.Seq2[uint16, Instruction] {
	return func(yield func(addr uint16, inst Instruction) bool) {
		for n := 0; n < len(rom); n += 2 {
			word := uint16(rom[n]) << 8
			if n+1 < len(rom) {
				word |= uint16(rom[n+1])
			}
			if !yield(uint16(PROGRAM_START+n), Decode(word)) {
				return
			}
		}
	}
}
