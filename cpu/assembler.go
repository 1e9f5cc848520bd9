// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/chip8/internal"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = maps.Collect(internal.IterSeq2Concat(
	maps.All(_memory_defines),
	maps.All(_display_defines),
	maps.All(map[string]string{"LINENO": "0"}),
))

// Assembler is a single pass macro assembler for CHIP-8 programs, using the
// Cowgod mnemonics. Programs are assembled at PROGRAM_START.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine map[string]string   // Predefines
	expansion int                 // Count of macro expansions, for '@' labels.
	Label     map[string]int      // Map of labels to addresses.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word.
// Accepts Go integer syntax, and '$' as a hexadecimal prefix.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	invert := false
	text := word
	if strings.HasPrefix(text, "~") {
		invert = true
		text = text[1:]
	}
	if strings.HasPrefix(text, "$") {
		text = "0x" + text[1:]
	}

	value, err = strconv.ParseInt(text, 0, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if invert {
		value = ^value
	}

	return
}

// register returns the index of a V register name.
func register(word string) (x uint16, ok bool) {
	name := strings.ToLower(word)
	if len(name) != 2 || name[0] != 'v' {
		return
	}

	n, err := strconv.ParseUint(name[1:], 16, 4)
	if err != nil {
		return
	}

	return uint16(n), true
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var equ int64
		equ, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(equ)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok || value > 0xffffffff || value < -0x80000000 {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// parseLine parses a single line into words, expanding equates and macros.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do 'x' evaluations
	re := regexp.MustCompile(`'\\?[^']'`)
	line = re.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			str = str[1:]
			switch str {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "0":
				str = "\000"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})

	// Do $() evaluations
	re = regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})
	if err != nil {
		return
	}

	// Operand separators are optional.
	words = strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]int, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansion++
		unique := fmt.Sprintf("%v_%v_", name, asm.expansion)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", unique)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentAddr gets the address of the next opcode.
func (asm *Assembler) currentAddr() int {
	if len(asm.Opcode) == 0 {
		return PROGRAM_START
	}

	last := asm.Opcode[len(asm.Opcode)-1]

	return int(last.Addr) + len(last.Bytes)
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.expansion = 0
	asm.Opcode = asm.Opcode[:0]
	if asm.Macro == nil {
		asm.Macro = make(map[string](*Macro))
	}
	clear(asm.Macro)
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	size := asm.currentAddr() - PROGRAM_START
	if size > PROGRAM_LIMIT {
		err = ErrProgramSize(size)
		return
	}

	// Final linking of labels into NNN fields.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 {
			continue
		}

		lineno = op.LineNo
		line = strings.Join(op.Words, " ")

		label := op.LinkLabel
		addr, ok := asm.Label[label]
		if !ok {
			err = ErrLabelMissing(label)
			return
		}
		if addr > ADDRESS_MASK {
			err = ErrValueRange
			return
		}
		op.Bytes[0] |= byte(addr>>8) & 0x0f
		op.Bytes[1] |= byte(addr)
	}

	prog = &Program{
		Opcodes: slices.Clone(asm.Opcode),
	}

	return
}

// operands decodes the operand words of one instruction. The first error
// sticks, and later decodes return zero.
type operands struct {
	asm   *Assembler
	words []string
	err   error
}

// keyword returns the lower case operand n, for the fixed operand names.
func (ops *operands) keyword(n int) string {
	return strings.ToLower(ops.words[n])
}

func (ops *operands) isRegister(n int) (ok bool) {
	_, ok = register(ops.words[n])
	return
}

func (ops *operands) reg(n int) (x uint16) {
	if ops.err != nil {
		return
	}

	x, ok := register(ops.words[n])
	if !ok {
		ops.err = ErrRegisterInvalid
	}
	return
}

// imm decodes an immediate that fits in bits. Negative values are encoded
// in two's complement.
func (ops *operands) imm(n int, bits int) (value uint16) {
	if ops.err != nil {
		return
	}

	v, err := ops.asm.valueOf(ops.words[n])
	if err != nil {
		ops.err = err
		return
	}
	if v >= 1<<bits || v < -(1<<(bits-1)) {
		ops.err = ErrValueRange
		return
	}

	value = uint16(v) & uint16(1<<bits-1)
	return
}

// addr decodes a 12-bit address. A word that is not a number is a label,
// linked once the whole source is parsed.
func (ops *operands) addr(n int) (nnn uint16, label string) {
	if ops.err != nil {
		return
	}

	word := ops.words[n]
	v, err := ops.asm.valueOf(word)
	if err != nil {
		label = word
		return
	}
	if v < 0 || v > ADDRESS_MASK {
		ops.err = ErrValueRange
		return
	}

	nnn = uint16(v)
	return
}

// count checks the number of operands.
func (ops *operands) count(min, max int) bool {
	switch {
	case ops.err != nil:
	case len(ops.words) < min:
		ops.err = ErrOpcodeMissing
	case len(ops.words) > max:
		ops.err = ErrOpcodeExtraArgs
	}

	return ops.err == nil
}

// aluMap maps the 8XYN mnemonics to their low nibble.
var aluMap = map[string]uint16{
	"or":   0x1,
	"and":  0x2,
	"xor":  0x3,
	"sub":  0x5,
	"shr":  0x6,
	"subn": 0x7,
	"shl":  0xe,
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var code []byte
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || len(code) == 0 {
			return
		}
		addr := asm.currentAddr()
		if asm.Verbose {
			log.Printf("%03x: % x", addr, code)
		}
		opcode := Opcode{LineNo: lineno, Addr: uint16(addr), Words: initial_words, Bytes: code, LinkLabel: label}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	ops := &operands{asm: asm, words: words[1:]}

	var word uint16
	switch mnemonic := strings.ToLower(words[0]); mnemonic {
	case "cls":
		ops.count(0, 0)
		word = 0x00e0
	case "ret":
		ops.count(0, 0)
		word = 0x00ee
	case "jp":
		if !ops.count(1, 2) {
			break
		}
		if len(ops.words) == 2 {
			// jp v0 addr
			if ops.reg(0) != 0 {
				ops.err = ErrRegisterInvalid
				break
			}
			var nnn uint16
			nnn, label = ops.addr(1)
			word = 0xb000 | nnn
		} else {
			var nnn uint16
			nnn, label = ops.addr(0)
			word = 0x1000 | nnn
		}
	case "call":
		if !ops.count(1, 1) {
			break
		}
		var nnn uint16
		nnn, label = ops.addr(0)
		word = 0x2000 | nnn
	case "se", "sne":
		if !ops.count(2, 2) {
			break
		}
		x := ops.reg(0)
		if ops.isRegister(1) {
			word = 0x5000 | x<<8 | ops.reg(1)<<4
			if mnemonic == "sne" {
				word = 0x9000 | x<<8 | ops.reg(1)<<4
			}
		} else {
			word = 0x3000 | x<<8 | ops.imm(1, 8)
			if mnemonic == "sne" {
				word = 0x4000 | x<<8 | ops.imm(1, 8)
			}
		}
	case "ld":
		if !ops.count(2, 2) {
			break
		}
		switch ops.keyword(0) {
		case "i":
			var nnn uint16
			nnn, label = ops.addr(1)
			word = 0xa000 | nnn
		case "dt":
			word = 0xf015 | ops.reg(1)<<8
		case "st":
			word = 0xf018 | ops.reg(1)<<8
		case "f":
			word = 0xf029 | ops.reg(1)<<8
		case "b":
			word = 0xf033 | ops.reg(1)<<8
		case "[i]":
			word = 0xf055 | ops.reg(1)<<8
		default:
			x := ops.reg(0)
			switch ops.keyword(1) {
			case "dt":
				word = 0xf007 | x<<8
			case "k":
				word = 0xf00a | x<<8
			case "[i]":
				word = 0xf065 | x<<8
			default:
				if ops.isRegister(1) {
					word = 0x8000 | x<<8 | ops.reg(1)<<4
				} else {
					word = 0x6000 | x<<8 | ops.imm(1, 8)
				}
			}
		}
	case "add":
		if !ops.count(2, 2) {
			break
		}
		switch {
		case ops.keyword(0) == "i":
			word = 0xf01e | ops.reg(1)<<8
		case ops.isRegister(1):
			word = 0x8004 | ops.reg(0)<<8 | ops.reg(1)<<4
		default:
			word = 0x7000 | ops.reg(0)<<8 | ops.imm(1, 8)
		}
	case "or", "and", "xor", "sub", "subn":
		if !ops.count(2, 2) {
			break
		}
		word = 0x8000 | ops.reg(0)<<8 | ops.reg(1)<<4 | aluMap[mnemonic]
	case "shr", "shl":
		if !ops.count(1, 2) {
			break
		}
		word = 0x8000 | ops.reg(0)<<8 | aluMap[mnemonic]
		if len(ops.words) == 2 {
			word |= ops.reg(1) << 4
		}
	case "rnd":
		if !ops.count(2, 2) {
			break
		}
		word = 0xc000 | ops.reg(0)<<8 | ops.imm(1, 8)
	case "drw":
		if !ops.count(3, 3) {
			break
		}
		word = 0xd000 | ops.reg(0)<<8 | ops.reg(1)<<4 | ops.imm(2, 4)
	case "skp":
		if !ops.count(1, 1) {
			break
		}
		word = 0xe09e | ops.reg(0)<<8
	case "sknp":
		if !ops.count(1, 1) {
			break
		}
		word = 0xe0a1 | ops.reg(0)<<8
	case ".byte":
		if !ops.count(1, len(ops.words)) {
			break
		}
		var data []byte
		for n := range ops.words {
			data = append(data, byte(ops.imm(n, 8)))
		}
		if ops.err == nil {
			code = data
		}
		err = ops.err
		return
	case ".word":
		if !ops.count(1, len(ops.words)) {
			break
		}
		var data []byte
		for n := range ops.words {
			value := ops.imm(n, 16)
			data = append(data, byte(value>>8), byte(value))
		}
		if ops.err == nil {
			code = data
		}
		err = ops.err
		return
	default:
		err = ErrInstructionInvalid
		return
	}

	if ops.err != nil {
		err = ops.err
		label = ""
		return
	}

	code = []byte{byte(word >> 8), byte(word)}

	return
}
