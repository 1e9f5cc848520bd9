package emulator

import (
	"github.com/ezrec/chip8/cpu"
)

const (
	CYCLE_HZ     = 700       // Default instruction rate.
	MIN_CYCLE_HZ = 1         // Slowest instruction rate.
	MAX_CYCLE_HZ = 1_000_000 // Fastest instruction rate.
)

// Config selects the machine speed and behaviour.
type Config struct {
	CycleHz int        // Instruction cycles per second.
	Quirks  cpu.Quirks // Opcode behaviour selection.
	Verbose bool       // If set, enables verbose logging.
}

// DefaultConfig returns the configuration most CHIP-8 programs expect.
func DefaultConfig() Config {
	return Config{
		CycleHz: CYCLE_HZ,
	}
}

// Validate checks the configuration.
func (cfg Config) Validate() (err error) {
	if cfg.CycleHz < MIN_CYCLE_HZ || cfg.CycleHz > MAX_CYCLE_HZ {
		err = ErrCycleHz(cfg.CycleHz)
		return
	}

	return
}
