package cpu

import (
	"fmt"
)

// Op is a decoded CHIP-8 operation.
type Op int

//go:generate go tool stringer -linecomment -type=Op
const (
	OP_UNKNOWN  = Op(iota) // ????
	OP_CLS                 // 00E0
	OP_RET                 // 00EE
	OP_JP                  // 1NNN
	OP_CALL                // 2NNN
	OP_SE_IMM              // 3XNN
	OP_SNE_IMM             // 4XNN
	OP_SE_REG              // 5XY0
	OP_LD_IMM              // 6XNN
	OP_ADD_IMM             // 7XNN
	OP_LD_REG              // 8XY0
	OP_OR                  // 8XY1
	OP_AND                 // 8XY2
	OP_XOR                 // 8XY3
	OP_ADD_REG             // 8XY4
	OP_SUB                 // 8XY5
	OP_SHR                 // 8XY6
	OP_SUBN                // 8XY7
	OP_SHL                 // 8XYE
	OP_SNE_REG             // 9XY0
	OP_LD_I                // ANNN
	OP_JP_V0               // BNNN
	OP_RND                 // CXNN
	OP_DRW                 // DXYN
	OP_SKP                 // EX9E
	OP_SKNP                // EXA1
	OP_LD_VX_DT            // FX07
	OP_LD_VX_K             // FX0A
	OP_LD_DT_VX            // FX15
	OP_LD_ST_VX            // FX18
	OP_ADD_I               // FX1E
	OP_LD_F                // FX29
	OP_LD_B                // FX33
	OP_LD_STORE            // FX55
	OP_LD_LOAD             // FX65
)

// Instruction is an opcode word and its decoded operation.
type Instruction struct {
	Word uint16
	Op   Op
}

// Decode classifies an opcode word by its high nibble, and for the families
// that share a leading nibble, by the low nibble or low byte.
func Decode(word uint16) (inst Instruction) {
	inst.Word = word
	inst.Op = OP_UNKNOWN

	n := word & 0x000f
	nn := word & 0x00ff

	switch word >> 12 {
	case 0x0:
		switch word {
		case 0x00e0:
			inst.Op = OP_CLS
		case 0x00ee:
			inst.Op = OP_RET
		}
	case 0x1:
		inst.Op = OP_JP
	case 0x2:
		inst.Op = OP_CALL
	case 0x3:
		inst.Op = OP_SE_IMM
	case 0x4:
		inst.Op = OP_SNE_IMM
	case 0x5:
		if n == 0x0 {
			inst.Op = OP_SE_REG
		}
	case 0x6:
		inst.Op = OP_LD_IMM
	case 0x7:
		inst.Op = OP_ADD_IMM
	case 0x8:
		switch n {
		case 0x0:
			inst.Op = OP_LD_REG
		case 0x1:
			inst.Op = OP_OR
		case 0x2:
			inst.Op = OP_AND
		case 0x3:
			inst.Op = OP_XOR
		case 0x4:
			inst.Op = OP_ADD_REG
		case 0x5:
			inst.Op = OP_SUB
		case 0x6:
			inst.Op = OP_SHR
		case 0x7:
			inst.Op = OP_SUBN
		case 0xe:
			inst.Op = OP_SHL
		}
	case 0x9:
		if n == 0x0 {
			inst.Op = OP_SNE_REG
		}
	case 0xa:
		inst.Op = OP_LD_I
	case 0xb:
		inst.Op = OP_JP_V0
	case 0xc:
		inst.Op = OP_RND
	case 0xd:
		inst.Op = OP_DRW
	case 0xe:
		switch nn {
		case 0x9e:
			inst.Op = OP_SKP
		case 0xa1:
			inst.Op = OP_SKNP
		}
	case 0xf:
		switch nn {
		case 0x07:
			inst.Op = OP_LD_VX_DT
		case 0x0a:
			inst.Op = OP_LD_VX_K
		case 0x15:
			inst.Op = OP_LD_DT_VX
		case 0x18:
			inst.Op = OP_LD_ST_VX
		case 0x1e:
			inst.Op = OP_ADD_I
		case 0x29:
			inst.Op = OP_LD_F
		case 0x33:
			inst.Op = OP_LD_B
		case 0x55:
			inst.Op = OP_LD_STORE
		case 0x65:
			inst.Op = OP_LD_LOAD
		}
	}

	return
}

// X returns the register index in the second nibble.
func (inst Instruction) X() int {
	return int(inst.Word>>8) & 0xf
}

// Y returns the register index in the third nibble.
func (inst Instruction) Y() int {
	return int(inst.Word>>4) & 0xf
}

// N returns the low nibble.
func (inst Instruction) N() uint8 {
	return uint8(inst.Word & 0x000f)
}

// NN returns the low byte.
func (inst Instruction) NN() uint8 {
	return uint8(inst.Word & 0x00ff)
}

// NNN returns the low 12 bits.
func (inst Instruction) NNN() uint16 {
	return inst.Word & 0x0fff
}

// Valid is false for words that decode to no known operation.
func (inst Instruction) Valid() bool {
	return inst.Op != OP_UNKNOWN
}

// Mnemonic returns the assembly mnemonic of the operation.
func (inst Instruction) Mnemonic() string {
	switch inst.Op {
	case OP_CLS:
		return "CLS"
	case OP_RET:
		return "RET"
	case OP_JP, OP_JP_V0:
		return "JP"
	case OP_CALL:
		return "CALL"
	case OP_SE_IMM, OP_SE_REG:
		return "SE"
	case OP_SNE_IMM, OP_SNE_REG:
		return "SNE"
	case OP_ADD_IMM, OP_ADD_REG, OP_ADD_I:
		return "ADD"
	case OP_OR:
		return "OR"
	case OP_AND:
		return "AND"
	case OP_XOR:
		return "XOR"
	case OP_SUB:
		return "SUB"
	case OP_SHR:
		return "SHR"
	case OP_SUBN:
		return "SUBN"
	case OP_SHL:
		return "SHL"
	case OP_RND:
		return "RND"
	case OP_DRW:
		return "DRW"
	case OP_SKP:
		return "SKP"
	case OP_SKNP:
		return "SKNP"
	case OP_UNKNOWN:
		return ".word"
	}

	return "LD"
}

// String returns the disassembly of the instruction.
func (inst Instruction) String() (text string) {
	name := inst.Mnemonic()
	x, y := inst.X(), inst.Y()

	var args string
	switch inst.Op {
	case OP_CLS, OP_RET:
		return name
	case OP_UNKNOWN:
		args = fmt.Sprintf("$%04X", inst.Word)
	case OP_JP, OP_CALL:
		args = fmt.Sprintf("$%03X", inst.NNN())
	case OP_JP_V0:
		args = fmt.Sprintf("V0, $%03X", inst.NNN())
	case OP_LD_I:
		args = fmt.Sprintf("I, $%03X", inst.NNN())
	case OP_SE_IMM, OP_SNE_IMM, OP_LD_IMM, OP_ADD_IMM, OP_RND:
		args = fmt.Sprintf("V%X, $%02X", x, inst.NN())
	case OP_SE_REG, OP_SNE_REG, OP_LD_REG, OP_OR, OP_AND, OP_XOR, OP_ADD_REG, OP_SUB, OP_SUBN:
		args = fmt.Sprintf("V%X, V%X", x, y)
	case OP_SHR, OP_SHL, OP_SKP, OP_SKNP:
		args = fmt.Sprintf("V%X", x)
	case OP_DRW:
		args = fmt.Sprintf("V%X, V%X, $%X", x, y, inst.N())
	case OP_LD_VX_DT:
		args = fmt.Sprintf("V%X, DT", x)
	case OP_LD_VX_K:
		args = fmt.Sprintf("V%X, K", x)
	case OP_LD_DT_VX:
		args = fmt.Sprintf("DT, V%X", x)
	case OP_LD_ST_VX:
		args = fmt.Sprintf("ST, V%X", x)
	case OP_ADD_I:
		args = fmt.Sprintf("I, V%X", x)
	case OP_LD_F:
		args = fmt.Sprintf("F, V%X", x)
	case OP_LD_B:
		args = fmt.Sprintf("B, V%X", x)
	case OP_LD_STORE:
		args = fmt.Sprintf("[I], V%X", x)
	case OP_LD_LOAD:
		args = fmt.Sprintf("V%X, [I]", x)
	}

	text = name + " " + args
	return
}
