// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log"
	"maps"
	"path"
	"slices"
	"time"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/internal"
)

const (
	FRAME_HZ    = 60                     // Frames presented per second by Run.
	MAX_ADVANCE = 250 * time.Millisecond // Longest wall-clock step emulated at once.
	SOURCE_EXT  = ".c8s"                 // Files with this extension are assembled.
)

var _emulator_defines = map[string]string{
	"CYCLE_HZ": fmt.Sprintf("%v", CYCLE_HZ),
	"TIMER_HZ": fmt.Sprintf("%v", cpu.TIMER_HZ),
	"FRAME_HZ": fmt.Sprintf("%v", FRAME_HZ),
}

// KeySetter receives key transitions from a front end.
type KeySetter interface {
	SetKey(key int, down bool) error
}

// Frontend is the host side of the machine: keypad input, video and audio.
type Frontend interface {
	// Poll delivers pending key transitions. quit is set once the user
	// has asked to stop.
	Poll(keys KeySetter) (quit bool, err error)
	// Present shows a frame, and gates the tone on sound.
	Present(display cpu.Display, sound bool) (err error)
}

// Emulator state. CPU, loaded program, and the host clock.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.
	Config   Config       // Active configuration.

	rom       []byte        // Image to reload on Reset.
	cycleDebt time.Duration // Elapsed time times CycleHz not yet run.
	timerDebt time.Duration // Elapsed time times TIMER_HZ not yet run.
}

// NewEmulator creates a new emulator.
func NewEmulator(cfg Config) (emu *Emulator, err error) {
	err = cfg.Validate()
	if err != nil {
		return
	}

	emu = &Emulator{
		Verbose: cfg.Verbose,
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
		Config:  cfg,
	}
	emu.Cpu.Quirks = cfg.Quirks
	emu.Cpu.Verbose = cfg.Verbose

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Load a ROM image, and restart the machine with it.
func (emu *Emulator) Load(rom []byte) (err error) {
	err = emu.Cpu.Load(rom)
	if err != nil {
		return
	}

	emu.rom = slices.Clone(rom)
	emu.Program = &cpu.Program{}
	emu.cycleDebt = 0
	emu.timerDebt = 0

	return
}

// LoadProgram loads an assembled program, keeping its listing so that
// runtime errors can name a source line.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = emu.Load(prog.Binary())
	if err != nil {
		return
	}

	emu.Program = prog
	return
}

// LoadFile loads a ROM image from fsys. Files named with SOURCE_EXT are
// assembled first, with the emulator defines predefined.
func (emu *Emulator) LoadFile(fsys fs.FS, name string) (err error) {
	if path.Ext(name) != SOURCE_EXT {
		var rom []byte
		rom, err = fs.ReadFile(fsys, name)
		if err != nil {
			return
		}
		err = emu.Load(rom)
		return
	}

	inf, err := fsys.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	prog, err := emu.Assemble(inf)
	if err != nil {
		return
	}

	err = emu.LoadProgram(prog)
	return
}

// Assemble a source program, with the emulator defines predefined.
func (emu *Emulator) Assemble(input io.Reader) (prog *cpu.Program, err error) {
	asm := &cpu.Assembler{Verbose: emu.Verbose}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}

	prog, err = asm.Parse(input)
	return
}

// Rom returns a copy of the loaded ROM image.
func (emu *Emulator) Rom() []byte {
	return slices.Clone(emu.rom)
}

// Reset restarts the loaded program.
func (emu *Emulator) Reset() (err error) {
	prog := emu.Program

	err = emu.Load(emu.rom)
	if err != nil {
		return
	}

	emu.Program = prog
	return
}

// LineNo returns the source line number of the instruction at PC, or 0 when
// the program has no listing.
func (emu *Emulator) LineNo() int {
	return emu.lineNo(emu.Cpu.Pc)
}

func (emu *Emulator) lineNo(pc uint16) int {
	dbg := emu.Program.Debug(pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.Opcode.LineNo
}

// Tick performs a single instruction cycle.
func (emu *Emulator) Tick() (err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc

	err = emu.Cpu.Tick()
	if err != nil {
		err = &ErrRuntime{Pc: pc, LineNo: emu.lineNo(pc), Err: err}
	}

	return
}

// Advance emulates elapsed wall-clock time: elapsed × CycleHz instruction
// cycles, and elapsed × TIMER_HZ timer ticks spread evenly between them.
// Fractions carry over to the next call. elapsed is clamped to MAX_ADVANCE.
// A fault stops the step, and the timers stay frozen with the machine until
// it is reset.
func (emu *Emulator) Advance(elapsed time.Duration) (err error) {
	elapsed = min(max(elapsed, 0), MAX_ADVANCE)

	emu.cycleDebt += elapsed * time.Duration(emu.Config.CycleHz)
	emu.timerDebt += elapsed * cpu.TIMER_HZ

	cycles := int(emu.cycleDebt / time.Second)
	emu.cycleDebt %= time.Second
	timers := int(emu.timerDebt / time.Second)
	emu.timerDebt %= time.Second

	if emu.Verbose {
		log.Printf("emulator: advance %v: %d cycles, %d timer ticks", elapsed, cycles, timers)
	}

	ticked := 0
	for n := range cycles {
		err = emu.Tick()
		if err != nil {
			return
		}

		for due := timers * (n + 1) / cycles; ticked < due; ticked++ {
			emu.Cpu.TickTimers()
		}
	}

	for ; ticked < timers; ticked++ {
		emu.Cpu.TickTimers()
	}

	return
}

// Frame polls the front end for input, advances the machine by elapsed,
// and presents the result. The frame is presented even when the machine
// faults, so that the last picture stays on screen. A faulted machine is
// presented silent.
func (emu *Emulator) Frame(elapsed time.Duration, fe Frontend) (quit bool, err error) {
	quit, err = fe.Poll(emu.Cpu)
	if err != nil || quit {
		return
	}

	aerr := emu.Advance(elapsed)
	sound := emu.Cpu.ShouldPlaySound() && emu.Cpu.Fault() == nil
	perr := fe.Present(emu.Cpu.DisplaySnapshot(), sound)
	err = errors.Join(aerr, perr)

	return
}

// Run drives frames at FRAME_HZ until the front end quits, the machine
// faults, or ctx is done.
func (emu *Emulator) Run(ctx context.Context, fe Frontend) (err error) {
	ticker := time.NewTicker(time.Second / FRAME_HZ)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case now := <-ticker.C:
			var quit bool
			quit, err = emu.Frame(now.Sub(last), fe)
			last = now
			if err != nil || quit {
				return
			}
		}
	}
}
