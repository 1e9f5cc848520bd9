package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// rom packs opcode words into a ROM image.
func rom(words ...uint16) (data []byte) {
	for _, word := range words {
		data = append(data, byte(word>>8), byte(word))
	}
	return
}

// runWords loads the words and runs one cycle per word.
func runWords(t *testing.T, cpu *Cpu, words ...uint16) {
	t.Helper()

	err := cpu.Load(rom(words...))
	if err != nil {
		t.Fatal(err)
	}

	for range words {
		err = cpu.Tick()
		if err != nil {
			t.Fatal(err)
		}
	}
}

type fixedRandom byte

func (fr fixedRandom) Byte() byte {
	return byte(fr)
}

func TestCpuReset(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0x6a12, 0xa234, 0xf315, 0x2300)

	err := cpu.Load(rom(0x00e0))
	assert.NoError(err)
	assert.Equal(uint16(PROGRAM_START), cpu.Pc)
	assert.Equal([16]uint8{}, cpu.V)
	assert.Equal(uint16(0), cpu.I)
	assert.True(cpu.Stack.Empty())
	assert.Equal(Timers{}, cpu.Timers)
	assert.Equal(Display{}, cpu.DisplaySnapshot())
	assert.Equal(0, cpu.Ticks)
	assert.Equal(Font[:], cpu.Memory[FONT_BASE:FONT_BASE+len(Font)])
	assert.Equal(byte(0x00), cpu.Memory[PROGRAM_START])
	assert.Equal(byte(0xe0), cpu.Memory[PROGRAM_START+1])
}

func TestCpuLoadTooLarge(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0x6a12)

	err := cpu.Load(make([]byte, PROGRAM_LIMIT+1))
	assert.ErrorIs(err, ErrProgramTooLarge)

	var es ErrProgramSize
	assert.True(errors.As(err, &es))
	assert.Equal(PROGRAM_LIMIT+1, int(es))

	// Nothing was touched.
	assert.Equal(uint8(0x12), cpu.V[0xa])
	assert.Equal(uint16(0x202), cpu.Pc)
	assert.Equal(byte(0x6a), cpu.Memory[PROGRAM_START])

	assert.NoError(cpu.Load(make([]byte, PROGRAM_LIMIT)))
}

func TestCpuOpcodes(t *testing.T) {
	assert := assert.New(t)

	type state struct {
		V  map[int]uint8
		I  uint16
		Pc uint16
	}

	table := [](struct {
		name   string
		setup  func(cpu *Cpu)
		words  []uint16
		expect state
	}){
		{"jp", nil, []uint16{0x1456}, state{Pc: 0x456}},
		{"call", nil, []uint16{0x2456}, state{Pc: 0x456}},
		{"call_ret", nil, []uint16{0x2204, 0x6155, 0x00ee}, state{V: map[int]uint8{1: 0x55}, Pc: 0x204}},
		{"se_imm_taken", nil, []uint16{0x3000}, state{Pc: 0x204}},
		{"se_imm_not", nil, []uint16{0x3001}, state{Pc: 0x202}},
		{"sne_imm_taken", nil, []uint16{0x4001}, state{Pc: 0x204}},
		{"sne_imm_not", nil, []uint16{0x4000}, state{Pc: 0x202}},
		{"se_reg_taken", nil, []uint16{0x5120}, state{Pc: 0x204}},
		{"sne_reg_taken", nil, []uint16{0x6101, 0x9120}, state{V: map[int]uint8{1: 1}, Pc: 0x206}},
		{"ld_imm", nil, []uint16{0x6a5c}, state{V: map[int]uint8{0xa: 0x5c}, Pc: 0x202}},
		{"add_imm_wraps", nil, []uint16{0x6af0, 0x7a20}, state{V: map[int]uint8{0xa: 0x10}, Pc: 0x204}},
		{"add_imm_no_flag", nil, []uint16{0x6f01, 0x6aff, 0x7a02}, state{V: map[int]uint8{0xa: 0x01, 0xf: 0x01}, Pc: 0x206}},
		{"ld_reg", nil, []uint16{0x6133, 0x8210}, state{V: map[int]uint8{1: 0x33, 2: 0x33}, Pc: 0x204}},
		{"or", nil, []uint16{0x6111, 0x6222, 0x8121}, state{V: map[int]uint8{1: 0x33, 2: 0x22}, Pc: 0x206}},
		{"and", nil, []uint16{0x6113, 0x6222, 0x8122}, state{V: map[int]uint8{1: 0x02, 2: 0x22}, Pc: 0x206}},
		{"xor", nil, []uint16{0x6133, 0x6222, 0x8123}, state{V: map[int]uint8{1: 0x11, 2: 0x22}, Pc: 0x206}},
		{"add_reg", nil, []uint16{0x6005, 0x6103, 0x8014}, state{V: map[int]uint8{0: 8, 1: 3, 0xf: 0}, Pc: 0x206}},
		{"add_reg_carry", nil, []uint16{0x60ff, 0x6102, 0x8014}, state{V: map[int]uint8{0: 1, 1: 2, 0xf: 1}, Pc: 0x206}},
		{"sub", nil, []uint16{0x6005, 0x6103, 0x8015}, state{V: map[int]uint8{0: 2, 1: 3, 0xf: 1}, Pc: 0x206}},
		{"sub_equal", nil, []uint16{0x6003, 0x6103, 0x8015}, state{V: map[int]uint8{0: 0, 1: 3, 0xf: 1}, Pc: 0x206}},
		{"sub_borrow", nil, []uint16{0x6003, 0x6105, 0x8015}, state{V: map[int]uint8{0: 0xfe, 1: 5, 0xf: 0}, Pc: 0x206}},
		{"shr", nil, []uint16{0x6005, 0x61ff, 0x8016}, state{V: map[int]uint8{0: 2, 1: 0xff, 0xf: 1}, Pc: 0x206}},
		{"subn", nil, []uint16{0x6003, 0x6105, 0x8017}, state{V: map[int]uint8{0: 2, 1: 5, 0xf: 1}, Pc: 0x206}},
		{"subn_borrow", nil, []uint16{0x6005, 0x6103, 0x8017}, state{V: map[int]uint8{0: 0xfe, 1: 3, 0xf: 0}, Pc: 0x206}},
		{"shl", nil, []uint16{0x6081, 0x801e}, state{V: map[int]uint8{0: 0x02, 0xf: 1}, Pc: 0x204}},
		{"shl_vf", nil, []uint16{0x6f41, 0x8f0e}, state{V: map[int]uint8{0xf: 0}, Pc: 0x204}},
		{"add_reg_vf", nil, []uint16{0x6ff0, 0x6120, 0x8f14}, state{V: map[int]uint8{1: 0x20, 0xf: 1}, Pc: 0x206}},
		{"ld_i", nil, []uint16{0xa123}, state{I: 0x123, Pc: 0x202}},
		{"jp_v0", nil, []uint16{0x6010, 0xb300}, state{V: map[int]uint8{0: 0x10}, Pc: 0x310}},
		{"jp_v0_wraps", nil, []uint16{0x60ff, 0xbfff}, state{V: map[int]uint8{0: 0xff}, Pc: 0x0fe}},
		{"rnd", func(cpu *Cpu) { cpu.Random = fixedRandom(0xa5) }, []uint16{0xc30f}, state{V: map[int]uint8{3: 0x05}, Pc: 0x202}},
		{"ld_dt", nil, []uint16{0x6742, 0xf715, 0xf807}, state{V: map[int]uint8{7: 0x42, 8: 0x42}, Pc: 0x206}},
		{"ld_st", nil, []uint16{0x6742, 0xf718}, state{V: map[int]uint8{7: 0x42}, Pc: 0x204}},
		{"add_i", nil, []uint16{0xa100, 0x6320, 0xf31e}, state{V: map[int]uint8{3: 0x20}, I: 0x120, Pc: 0x206}},
		{"add_i_wraps", nil, []uint16{0xaff0, 0x6320, 0xf31e}, state{V: map[int]uint8{3: 0x20, 0xf: 0}, I: 0x010, Pc: 0x206}},
		{"add_i_overflow", func(cpu *Cpu) { cpu.Quirks.IndexOverflow = true }, []uint16{0xaff0, 0x6320, 0xf31e}, state{V: map[int]uint8{3: 0x20, 0xf: 1}, I: 0x010, Pc: 0x206}},
		{"ld_f", nil, []uint16{0x6a1c, 0xfa29}, state{V: map[int]uint8{0xa: 0x1c}, I: FONT_BASE + 0xc*FONT_GLYPH_SIZE, Pc: 0x204}},
		{"ld_load", nil, []uint16{0xa050, 0xf265}, state{V: map[int]uint8{0: 0xf0, 1: 0x90, 2: 0x90}, I: 0x050, Pc: 0x204}},
		{"ld_load_increment", func(cpu *Cpu) { cpu.Quirks.IndexIncrement = true }, []uint16{0xa050, 0xf265}, state{V: map[int]uint8{0: 0xf0, 1: 0x90, 2: 0x90}, I: 0x053, Pc: 0x204}},
	}

	for _, entry := range table {
		cpu := NewCpu()
		if entry.setup != nil {
			entry.setup(cpu)
		}

		assert.NoError(cpu.Load(rom(entry.words...)), entry.name)
		for range entry.words {
			assert.NoError(cpu.Tick(), entry.name)
		}

		var expect [16]uint8
		for reg, value := range entry.expect.V {
			expect[reg] = value
		}
		assert.Equal(expect, cpu.V, entry.name)
		assert.Equal(entry.expect.I, cpu.I, entry.name)
		assert.Equal(entry.expect.Pc, cpu.Pc, entry.name)
	}
}

func TestCpuStoreBcd(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0xa300, 0x65fe, 0xf533)

	assert.Equal([]byte{2, 5, 4}, cpu.Memory[0x300:0x303])
	assert.Equal(uint16(0x300), cpu.I)
}

func TestCpuStoreLoadRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0xa400, 0xf755, 0xf765)))

	for x := range 8 {
		cpu.V[x] = uint8(0x11 * (x + 1))
	}
	saved := cpu.V

	assert.NoError(cpu.Tick())
	assert.NoError(cpu.Tick())
	assert.Equal([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}, cpu.Memory[0x400:0x408])

	for x := range 8 {
		cpu.V[x] = 0xee
	}
	assert.NoError(cpu.Tick())
	assert.Equal(saved, cpu.V)
	assert.Equal(uint16(0x400), cpu.I)
}

func TestCpuStoreIntoFont(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0x60ab, 0xa050, 0xf055, 0xa1fe, 0xf033)

	assert.Equal(Font[:], cpu.Memory[FONT_BASE:FONT_BASE+len(Font)])
	assert.Equal([]byte{1, 7, 1}, cpu.Memory[0x1fe:0x201])
}

func TestCpuStoreLoadLowMemory(t *testing.T) {
	assert := assert.New(t)

	table := [...]struct {
		index uint16
		addrs []uint16
	}{
		{0x100, []uint16{0x100, 0x101, 0x102, 0x103}},
		{0xffe, []uint16{0xffe, 0xfff, 0x000, 0x001}},
	}

	for _, entry := range table {
		cpu := NewCpu()
		// LD I, index; LD [I], V3; LD V3, [I]
		assert.NoError(cpu.Load(rom(0xa000|entry.index, 0xf355, 0xf365)))
		cpu.V[0], cpu.V[1], cpu.V[2], cpu.V[3] = 1, 2, 3, 4
		saved := cpu.V

		assert.NoError(cpu.Tick())
		assert.NoError(cpu.Tick())
		for n, addr := range entry.addrs {
			assert.Equal(byte(n+1), cpu.Memory[addr], "%03x", addr)
		}

		for x := range 4 {
			cpu.V[x] = 0xee
		}
		assert.NoError(cpu.Tick())
		assert.Equal(saved, cpu.V, "%03x", entry.index)
	}
}

func TestCpuDraw(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	// Draw glyph 0 at (2, 3) twice.
	assert.NoError(cpu.Load(rom(0x6002, 0x6103, 0xa050, 0xd015, 0xd015)))
	for range 4 {
		assert.NoError(cpu.Tick())
	}

	assert.Equal(uint8(0), cpu.V[0xf])
	assert.True(cpu.Display.Pixel(2, 3))
	assert.True(cpu.Display.Pixel(5, 3))
	assert.False(cpu.Display.Pixel(6, 3))
	assert.True(cpu.Display.Pixel(2, 4))
	assert.False(cpu.Display.Pixel(3, 4))
	assert.Equal(14, cpu.Display.Lit())

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(1), cpu.V[0xf])
	assert.Equal(Display{}, cpu.DisplaySnapshot())
}

func TestCpuDrawCollision(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0xa300, 0xd003)))
	cpu.Memory.Write(0x300, 0b0011_1100)
	cpu.Memory.Write(0x301, 0b1100_0011)
	cpu.Memory.Write(0x302, 0b1111_1111)

	// Prior display, three by three at the top left.
	cpu.Display[0] = 0b101 << 61
	cpu.Display[1] = 0b111 << 61
	cpu.Display[2] = 0b010 << 61

	assert.NoError(cpu.Tick())
	assert.NoError(cpu.Tick())

	assert.Equal(uint8(1), cpu.V[0xf])
	assert.Equal(uint64(0b1001_1100)<<56, cpu.Display[0])
	assert.Equal(uint64(0b0010_0011)<<56, cpu.Display[1])
	assert.Equal(uint64(0b1011_1111)<<56, cpu.Display[2])
}

func TestCpuDrawWraps(t *testing.T) {
	assert := assert.New(t)

	// V0 = 62 + 64, V1 = 31 + 32: starting positions wrap too.
	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0x607e, 0x613f, 0xa300, 0xd012)))
	cpu.Memory.Write(0x300, 0xff)
	cpu.Memory.Write(0x301, 0x81)
	for range 4 {
		assert.NoError(cpu.Tick())
	}

	assert.Equal(uint8(0), cpu.V[0xf])
	assert.Equal(10, cpu.Display.Lit())
	assert.True(cpu.Display.Pixel(62, 31))
	assert.True(cpu.Display.Pixel(63, 31))
	assert.True(cpu.Display.Pixel(0, 31))
	assert.True(cpu.Display.Pixel(5, 31))
	assert.False(cpu.Display.Pixel(6, 31))
	assert.True(cpu.Display.Pixel(62, 0))
	assert.False(cpu.Display.Pixel(63, 0))
	assert.True(cpu.Display.Pixel(5, 0))
}

func TestCpuClear(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0xa050, 0xd005, 0xd105, 0x00e0)

	assert.Equal(Display{}, cpu.DisplaySnapshot())
}

func TestCpuKeys(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0x6a07, 0xea9e, 0x0000, 0xeaa1, 0x1300)))
	assert.NoError(cpu.SetKey(7, true))

	assert.NoError(cpu.Tick())
	assert.NoError(cpu.Tick())
	assert.Equal(uint16(0x206), cpu.Pc)

	assert.NoError(cpu.Tick())
	assert.Equal(uint16(0x208), cpu.Pc)

	assert.NoError(cpu.SetKey(7, false))
	cpu.Pc = 0x206
	assert.NoError(cpu.Tick())
	assert.Equal(uint16(0x20a), cpu.Pc)
}

func TestCpuSetKeyInvalid(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.ErrorIs(cpu.SetKey(16, true), ErrKeyInvalid)
	assert.ErrorIs(cpu.SetKey(-1, true), ErrKeyInvalid)
	assert.Equal(KeyState{}, cpu.Keypad.Snapshot())
}

func TestCpuWaitKey(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0xf50a, 0x6101)))

	// A key already held does not satisfy the wait.
	assert.NoError(cpu.SetKey(3, true))
	for range 5 {
		assert.NoError(cpu.Tick())
		assert.True(cpu.Waiting())
		assert.Equal(uint16(PROGRAM_START), cpu.Pc)
	}

	// A release, then a press of another key, does.
	assert.NoError(cpu.SetKey(3, false))
	assert.NoError(cpu.Tick())
	assert.True(cpu.Waiting())

	assert.NoError(cpu.SetKey(0xb, true))
	assert.NoError(cpu.Tick())
	assert.False(cpu.Waiting())
	assert.Equal(uint8(0xb), cpu.V[5])
	assert.Equal(uint16(0x202), cpu.Pc)

	assert.NoError(cpu.Tick())
	assert.Equal(uint8(1), cpu.V[1])
	assert.Equal(uint16(0x204), cpu.Pc)
}

func TestCpuWaitKeyLowest(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0xf00a)))
	assert.NoError(cpu.Tick())

	assert.NoError(cpu.SetKey(9, true))
	assert.NoError(cpu.SetKey(4, true))
	assert.NoError(cpu.Tick())
	assert.Equal(uint8(4), cpu.V[0])
}

func TestCpuWaitKeyTimers(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load(rom(0x6003, 0xf015, 0xf10a)))
	for range 3 {
		assert.NoError(cpu.Tick())
	}
	assert.True(cpu.Waiting())

	// Timers keep running while parked.
	for range 3 {
		cpu.TickTimers()
		assert.NoError(cpu.Tick())
	}
	assert.Equal(uint8(0), cpu.Timers.Delay)
	assert.True(cpu.Waiting())
}

func TestCpuTimers(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0x6005, 0xf015, 0xf018)
	assert.True(cpu.ShouldPlaySound())

	for range 5 {
		cpu.TickTimers()
	}
	assert.Equal(uint8(0), cpu.Timers.Delay)
	assert.Equal(uint8(0), cpu.Timers.Sound)
	assert.False(cpu.ShouldPlaySound())

	cpu.TickTimers()
	assert.Equal(uint8(0), cpu.Timers.Delay)
	assert.Equal(uint8(0), cpu.Timers.Sound)
}

func TestCpuFaults(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		words []uint16
		at    uint16
		err   error
	}){
		{"unknown", []uint16{0x0123}, 0x200, ErrOpcodeUnknown},
		{"unknown_8", []uint16{0x6001, 0x8008}, 0x202, ErrOpcodeUnknown},
		{"unknown_5", []uint16{0x5121}, 0x200, ErrOpcodeUnknown},
		{"unknown_e", []uint16{0xe100}, 0x200, ErrOpcodeUnknown},
		{"unknown_f", []uint16{0xf1ff}, 0x200, ErrOpcodeUnknown},
		{"underflow", []uint16{0x00ee}, 0x200, ErrStackUnderflow},
		{"overflow", []uint16{0x2200}, 0x200, ErrStackOverflow},
	}

	for _, entry := range table {
		cpu := NewCpu()
		assert.NoError(cpu.Load(rom(entry.words...)), entry.name)
		cpu.Display[4] = 0xf0
		cpu.Timers.Sound = 9

		var err error
		for range 64 {
			err = cpu.Tick()
			if err != nil {
				break
			}
		}

		assert.ErrorIs(err, entry.err, entry.name)
		var ee *ErrExecute
		if assert.True(errors.As(err, &ee), entry.name) {
			assert.Equal(entry.at, ee.Pc, entry.name)
			assert.Equal(cpu.Memory.Word(entry.at), ee.Instruction.Word, entry.name)
		}
		assert.Equal(entry.at, cpu.Pc, entry.name)
		assert.Equal(err, cpu.Fault(), entry.name)

		// Latched; nothing else changes.
		v := cpu.V
		stack := cpu.Stack
		assert.Equal(err, cpu.Tick(), entry.name)
		assert.Equal(entry.at, cpu.Pc, entry.name)
		assert.Equal(v, cpu.V, entry.name)
		assert.Equal(stack, cpu.Stack, entry.name)
		assert.Equal(uint64(0xf0), cpu.Display[4], entry.name)
		assert.Equal(uint8(9), cpu.Timers.Sound, entry.name)
	}
}

func TestCpuAddProperty(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	for vx := range 256 {
		for vy := range 256 {
			cpu.V[1] = uint8(vx)
			cpu.V[2] = uint8(vy)
			assert.NoError(cpu.Execute(Decode(0x8124)))
			assert.Equal(uint8(vx+vy), cpu.V[1])
			assert.Equal(flag(vx+vy > 255), cpu.V[0xf])

			cpu.V[1] = uint8(vx)
			assert.NoError(cpu.Execute(Decode(0x8125)))
			assert.Equal(uint8(vx-vy), cpu.V[1])
			assert.Equal(flag(vx >= vy), cpu.V[0xf])
		}
	}
}

func TestCpuString(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	runWords(t, cpu, 0x6a12, 0xa345)

	text := cpu.String()
	assert.Contains(text, "   pc: 204\n")
	assert.Contains(text, "    i: 345\n")
	assert.Contains(text, "   vA: 12\n")
	assert.Contains(text, "stack: ---\n")
}

func TestCpuDefines(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}

	assert.Equal("0x200", defines["PROGRAM_START"])
	assert.Equal("0x50", defines["FONT_BASE"])
	assert.Equal("64", defines["DISPLAY_WIDTH"])
	assert.Equal("16", defines["STACK_LIMIT"])
}

func TestCpuRandomDefault(t *testing.T) {
	assert := assert.New(t)

	for _, cpu := range []*Cpu{{}, NewCpu()} {
		cpu.Random = nil
		assert.NoError(cpu.Load(rom(0xc30f)))
		assert.NotPanics(func() { assert.NoError(cpu.Tick()) })
		assert.Equal(uint8(0), cpu.V[3]&0xf0)
		assert.Equal(uint16(0x202), cpu.Pc)
	}
}

func TestCpuUnhandledOp(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Pc = 0x202

	err := cpu.Execute(Instruction{Word: 0x1234, Op: Op(1000)})
	assert.ErrorIs(err, ErrOpcodeUnhandled)
	assert.NotErrorIs(err, ErrOpcodeUnknown)

	err = cpu.Execute(Decode(0xffff))
	assert.ErrorIs(err, ErrOpcodeUnknown)
}
