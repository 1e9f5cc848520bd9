package cpu

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand/v2"

	"github.com/ezrec/chip8/internal"
)

var _cpu_defines = map[string]string{
	"STACK_LIMIT": fmt.Sprintf("%d", STACK_LIMIT),
	"KEY_COUNT":   fmt.Sprintf("%d", KEY_COUNT),
}

// RandomSource supplies the random bytes used by CXNN.
type RandomSource interface {
	Byte() byte
}

type randomSource struct{}

func (randomSource) Byte() byte {
	return byte(rand.Uint32())
}

// Quirks select between historically divergent opcode behaviours.
// The zero value is the behaviour of the common modern interpreters.
type Quirks struct {
	IndexOverflow  bool // FX1E sets VF to 1 when I passes 0xFFF, and 0 otherwise.
	IndexIncrement bool // FX55 and FX65 leave I one past the last register transferred.
}

// Cpu is the complete CHIP-8 machine state.
type Cpu struct {
	Verbose bool         // Set to enable verbose logging.
	Quirks  Quirks       // Opcode behaviour selection.
	Random  RandomSource // Source for CXNN.

	Memory  Memory    // 4KiB address space.
	V       [16]uint8 // General purpose registers. VF is the flag register.
	I       uint16    // Index register.
	Pc      uint16    // Program counter.
	Stack   Stack     // Call stack.
	Timers  Timers    // Delay and sound timers.
	Display Display   // Framebuffer.
	Keypad  Keypad    // Key state, written by the input adapter.

	Ticks int // Cycles run since reset.

	waiting  bool     // Parked on FX0A.
	waitReg  int      // Destination register of the parked FX0A.
	keys     KeyState // Key snapshot for the current cycle.
	prevKeys KeyState // Key snapshot of the previous cycle.
	fault    error    // Latched fatal error.
}

// NewCpu creates a CPU in its reset state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Random: randomSource{},
	}
	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(
		maps.All(_memory_defines),
		maps.All(_display_defines),
		maps.All(_cpu_defines),
	)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text = fmt.Sprintf("   pc: %03X\n    i: %03X\n", cpu.Pc, cpu.I)
	for n, v := range cpu.V {
		text += fmt.Sprintf("   v%X: %02X\n", n, v)
	}
	text += fmt.Sprintf("   sp: %d\n", cpu.Stack.Sp)
	if ret, ok := cpu.Stack.Peek(); ok {
		text += fmt.Sprintf("stack: %03X\n", ret)
	} else {
		text += "stack: ---\n"
	}
	text += fmt.Sprintf("   dt: %02X\n   st: %02X\n", cpu.Timers.Delay, cpu.Timers.Sound)

	return
}

// Reset the CPU state.
// - Zeros memory and reinstalls the font.
// - Clears the registers, stack, timers, display and keypad.
// - Sets PC to PROGRAM_START.
// - Clears any latched fault and pending key wait.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	cpu.Memory.Reset()
	clear(cpu.V[:])
	cpu.I = 0
	cpu.Pc = PROGRAM_START
	cpu.Stack.Reset()
	cpu.Timers.Reset()
	cpu.Display.Clear()
	cpu.Keypad.Reset()
	cpu.Ticks = 0

	cpu.waiting = false
	cpu.waitReg = 0
	cpu.keys = KeyState{}
	cpu.prevKeys = KeyState{}
	cpu.fault = nil
}

// Load resets the machine and copies a program to PROGRAM_START.
// An oversized program is rejected before anything is modified.
func (cpu *Cpu) Load(program []byte) (err error) {
	if len(program) > PROGRAM_LIMIT {
		err = ErrProgramSize(len(program))
		return
	}

	cpu.Reset()
	err = cpu.Memory.Load(program)
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("cpu: loaded %d bytes", len(program))
	}

	return
}

// Fault returns the latched fatal error, if any.
func (cpu *Cpu) Fault() error {
	return cpu.fault
}

// Waiting is true while the CPU is parked on FX0A.
func (cpu *Cpu) Waiting() bool {
	return cpu.waiting
}

// SetKey records a keypad transition from the input adapter.
func (cpu *Cpu) SetKey(key int, down bool) (err error) {
	return cpu.Keypad.Set(key, down)
}

// DisplaySnapshot returns a copy of the framebuffer.
func (cpu *Cpu) DisplaySnapshot() Display {
	return cpu.Display
}

// ShouldPlaySound is true while the sound timer is non-zero.
func (cpu *Cpu) ShouldPlaySound() bool {
	return cpu.Timers.Sounding()
}

// TickTimers decrements the delay and sound timers. The host calls this at
// TIMER_HZ, independent of the instruction rate.
func (cpu *Cpu) TickTimers() {
	cpu.Timers.Tick()
}

// Fetch reads the opcode word at PC and advances PC past it.
func (cpu *Cpu) Fetch() (inst Instruction) {
	inst = Decode(cpu.Memory.Word(cpu.Pc))
	cpu.Pc = (cpu.Pc + 2) & ADDRESS_MASK
	return
}

// Tick executes a single CPU instruction cycle.
//
// While parked on FX0A, a cycle only looks for a newly pressed key.
// A fatal error leaves PC at the faulting instruction and is latched; every
// later Tick returns it again without touching the machine.
func (cpu *Cpu) Tick() (err error) {
	if cpu.fault != nil {
		err = cpu.fault
		return
	}

	cpu.keys = cpu.Keypad.Snapshot()
	defer func() { cpu.prevKeys = cpu.keys }()

	if cpu.waiting {
		cpu.awaitKey()
		cpu.Ticks++
		return
	}

	pc := cpu.Pc
	inst := cpu.Fetch()
	if cpu.Verbose {
		log.Printf("%03x: %v", pc, inst)
	}

	err = cpu.execute(inst)
	if err != nil {
		cpu.Pc = pc
		err = &ErrExecute{Pc: pc, Instruction: inst, Err: err}
		cpu.fault = err
		if cpu.Verbose {
			log.Printf("cpu: %v", err)
		}
		return
	}

	cpu.Ticks++
	return
}

// Execute executes a single decoded instruction against the current key
// state. PC must already point past the instruction.
func (cpu *Cpu) Execute(inst Instruction) (err error) {
	cpu.keys = cpu.Keypad.Snapshot()
	err = cpu.execute(inst)
	cpu.prevKeys = cpu.keys
	return
}

// awaitKey completes a parked FX0A once a key goes from up to down.
func (cpu *Cpu) awaitKey() {
	key, ok := cpu.keys.Pressed(cpu.prevKeys)
	if !ok {
		return
	}

	if cpu.Verbose {
		log.Printf("cpu: key %X pressed", key)
	}

	cpu.V[cpu.waitReg] = uint8(key)
	cpu.waiting = false
	cpu.Pc = (cpu.Pc + 2) & ADDRESS_MASK
}

func flag(set bool) uint8 {
	if set {
		return 1
	}
	return 0
}

func (cpu *Cpu) skip() {
	cpu.Pc = (cpu.Pc + 2) & ADDRESS_MASK
}

func (cpu *Cpu) write(addr uint16, value uint8) {
	if !cpu.Memory.Write(addr, value) && cpu.Verbose {
		log.Printf("cpu: write to %03x dropped", addr&ADDRESS_MASK)
	}
}

// execute dispatches on the decoded operation. Flag results are written to
// VF after the destination register, so that VF as a destination keeps the
// flag.
func (cpu *Cpu) execute(inst Instruction) (err error) {
	x, y := inst.X(), inst.Y()
	vx, vy := cpu.V[x], cpu.V[y]

	switch inst.Op {
	case OP_CLS:
		cpu.Display.Clear()
	case OP_RET:
		ret, ok := cpu.Stack.Pop()
		if !ok {
			err = ErrStackUnderflow
			return
		}
		cpu.Pc = ret
	case OP_JP:
		cpu.Pc = inst.NNN()
	case OP_CALL:
		if !cpu.Stack.Push(cpu.Pc) {
			err = ErrStackOverflow
			return
		}
		cpu.Pc = inst.NNN()
	case OP_SE_IMM:
		if vx == inst.NN() {
			cpu.skip()
		}
	case OP_SNE_IMM:
		if vx != inst.NN() {
			cpu.skip()
		}
	case OP_SE_REG:
		if vx == vy {
			cpu.skip()
		}
	case OP_SNE_REG:
		if vx != vy {
			cpu.skip()
		}
	case OP_LD_IMM:
		cpu.V[x] = inst.NN()
	case OP_ADD_IMM:
		cpu.V[x] = vx + inst.NN()
	case OP_LD_REG:
		cpu.V[x] = vy
	case OP_OR:
		cpu.V[x] = vx | vy
	case OP_AND:
		cpu.V[x] = vx & vy
	case OP_XOR:
		cpu.V[x] = vx ^ vy
	case OP_ADD_REG:
		sum := uint16(vx) + uint16(vy)
		cpu.V[x] = uint8(sum)
		cpu.V[0xf] = flag(sum > 0xff)
	case OP_SUB:
		cpu.V[x] = vx - vy
		cpu.V[0xf] = flag(vx >= vy)
	case OP_SHR:
		cpu.V[x] = vx >> 1
		cpu.V[0xf] = vx & 0x01
	case OP_SUBN:
		cpu.V[x] = vy - vx
		cpu.V[0xf] = flag(vy >= vx)
	case OP_SHL:
		cpu.V[x] = vx << 1
		cpu.V[0xf] = vx >> 7
	case OP_LD_I:
		cpu.I = inst.NNN()
	case OP_JP_V0:
		cpu.Pc = (inst.NNN() + uint16(cpu.V[0])) & ADDRESS_MASK
	case OP_RND:
		random := cpu.Random
		if random == nil {
			random = randomSource{}
		}
		cpu.V[x] = random.Byte() & inst.NN()
	case OP_DRW:
		cpu.draw(vx, vy, inst.N())
	case OP_SKP:
		if cpu.keys[vx&0xf] {
			cpu.skip()
		}
	case OP_SKNP:
		if !cpu.keys[vx&0xf] {
			cpu.skip()
		}
	case OP_LD_VX_DT:
		cpu.V[x] = cpu.Timers.Delay
	case OP_LD_VX_K:
		// Park on this instruction until a key is pressed.
		cpu.waiting = true
		cpu.waitReg = x
		cpu.Pc = (cpu.Pc - 2) & ADDRESS_MASK
	case OP_LD_DT_VX:
		cpu.Timers.Delay = vx
	case OP_LD_ST_VX:
		cpu.Timers.Sound = vx
	case OP_ADD_I:
		sum := cpu.I + uint16(vx)
		cpu.I = sum & ADDRESS_MASK
		if cpu.Quirks.IndexOverflow {
			cpu.V[0xf] = flag(sum > ADDRESS_MASK)
		}
	case OP_LD_F:
		cpu.I = FONT_BASE + uint16(vx&0xf)*FONT_GLYPH_SIZE
	case OP_LD_B:
		cpu.write(cpu.I, vx/100)
		cpu.write(cpu.I+1, (vx/10)%10)
		cpu.write(cpu.I+2, vx%10)
	case OP_LD_STORE:
		for n := range x + 1 {
			cpu.write(cpu.I+uint16(n), cpu.V[n])
		}
		if cpu.Quirks.IndexIncrement {
			cpu.I = (cpu.I + uint16(x) + 1) & ADDRESS_MASK
		}
	case OP_LD_LOAD:
		for n := range x + 1 {
			cpu.V[n] = cpu.Memory.Read(cpu.I + uint16(n))
		}
		if cpu.Quirks.IndexIncrement {
			cpu.I = (cpu.I + uint16(x) + 1) & ADDRESS_MASK
		}
	case OP_UNKNOWN:
		err = ErrOpcodeUnknown
	default:
		err = ErrOpcodeUnhandled
	}

	return
}

// draw XORs the N row sprite at I onto the display at (vx, vy), setting VF
// on collision.
func (cpu *Cpu) draw(vx, vy uint8, height uint8) {
	var rows [15]byte
	sprite := rows[:height]
	for n := range sprite {
		sprite[n] = cpu.Memory.Read(cpu.I + uint16(n))
	}

	collision := cpu.Display.Blit(int(vx)%DISPLAY_WIDTH, int(vy)%DISPLAY_HEIGHT, sprite)
	cpu.V[0xf] = flag(collision)
}
