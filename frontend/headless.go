//go:build headless

package frontend

import (
	"github.com/ezrec/chip8/emulator"
)

// Beeper is unavailable in headless builds.
type Beeper struct{}

func NewBeeper() (b *Beeper, err error) {
	err = ErrHeadless
	return
}

func (b *Beeper) SetSounding(on bool) {}

func (b *Beeper) Close() error {
	return nil
}

// Window is unavailable in headless builds.
type Window struct{}

func NewWindow(emu *emulator.Emulator, beeper *Beeper) *Window {
	return &Window{}
}

func (w *Window) Run() error {
	return ErrHeadless
}
