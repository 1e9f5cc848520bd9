package cpu

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrOpcodeUnknown   = errors.New(f("opcode unknown"))
	ErrOpcodeUnhandled = errors.New(f("opcode decoded without a handler"))
	ErrStackOverflow   = errors.New(f("stack overflow"))
	ErrStackUnderflow  = errors.New(f("stack underflow"))
	ErrProgramTooLarge = errors.New(f("program too large"))
	ErrKeyInvalid      = errors.New(f("key invalid"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeMissing      = errors.New(f("operand missing"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrValueRange         = errors.New(f("value out of range"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
)

// ErrExecute is a fatal error raised by the instruction at Pc.
type ErrExecute struct {
	Pc          uint16
	Instruction Instruction
	Err         error
}

func (err *ErrExecute) Error() string {
	return f("pc 0x%03x opcode 0x%04x (%v): %v", err.Pc, err.Instruction.Word, err.Instruction.Op, err.Err)
}

func (err *ErrExecute) Unwrap() error {
	return err.Err
}

// ErrProgramSize is the size of a program that does not fit in memory.
type ErrProgramSize int

func (es ErrProgramSize) Error() string {
	return f("program of %d bytes exceeds %d bytes", int(es), PROGRAM_LIMIT)
}

func (es ErrProgramSize) Is(err error) bool {
	return err == ErrProgramTooLarge
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
