// Package cpu implements the CHIP-8 interpreter and assembler.
//
// The machine consists of 4KiB of memory with the hexadecimal font loaded at
// FONT_BASE, sixteen 8-bit general-purpose registers (V0-VF), a 12-bit index
// register (I), a program counter, a 16 entry call stack, the delay and sound
// timers, a 64x32 monochrome display and a 16 key keypad.
//
// A cycle fetches the big-endian opcode word at PC, advances PC by two,
// decodes the word into an Instruction and executes it. VF doubles as the
// carry, borrow and collision flag. The timers are ticked separately by the
// host at 60Hz.
//
// The assembler accepts the conventional CHIP-8 mnemonics, and supports
// labels, macros, equates and compile-time expression evaluation.
package cpu
