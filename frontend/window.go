//go:build !headless

package frontend

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/emulator"
)

const (
	WINDOW_SCALE = 15 // Host pixels per CHIP-8 pixel.
)

// Host keys for KEY_MAP.
var _window_keys = map[ebiten.Key]rune{
	ebiten.KeyDigit1: '1', ebiten.KeyDigit2: '2', ebiten.KeyDigit3: '3', ebiten.KeyDigit4: '4',
	ebiten.KeyQ: 'q', ebiten.KeyW: 'w', ebiten.KeyE: 'e', ebiten.KeyR: 'r',
	ebiten.KeyA: 'a', ebiten.KeyS: 's', ebiten.KeyD: 'd', ebiten.KeyF: 'f',
	ebiten.KeyZ: 'z', ebiten.KeyX: 'x', ebiten.KeyC: 'c', ebiten.KeyV: 'v',
}

// Window is a desktop front end. Ebiten owns the main loop, so the window
// drives the emulator one frame per Update.
type Window struct {
	Title string
	Scale int

	emu    *emulator.Emulator
	beeper *Beeper
	last   time.Time

	display cpu.Display
	image   *ebiten.Image
	pixels  []byte
}

var _ emulator.Frontend = (*Window)(nil)

// NewWindow creates a window for emu. beeper may be nil for silence.
func NewWindow(emu *emulator.Emulator, beeper *Beeper) *Window {
	return &Window{
		Title:  "CHIP-8",
		Scale:  WINDOW_SCALE,
		emu:    emu,
		beeper: beeper,
		pixels: make([]byte, cpu.DISPLAY_WIDTH*cpu.DISPLAY_HEIGHT*4),
	}
}

// Run opens the window and runs until it is closed, Escape is pressed, or
// the emulator faults. It must be called from the main goroutine.
func (w *Window) Run() (err error) {
	ebiten.SetWindowSize(cpu.DISPLAY_WIDTH*w.Scale, cpu.DISPLAY_HEIGHT*w.Scale)
	ebiten.SetWindowTitle(w.Title)
	ebiten.SetTPS(emulator.FRAME_HZ)

	err = ebiten.RunGame(w)

	if w.beeper != nil {
		w.beeper.SetSounding(false)
	}

	return
}

// Update is called by ebiten at FRAME_HZ.
func (w *Window) Update() error {
	now := time.Now()
	elapsed := time.Second / emulator.FRAME_HZ
	if !w.last.IsZero() {
		elapsed = now.Sub(w.last)
	}
	w.last = now

	quit, err := w.emu.Frame(elapsed, w)
	if err != nil {
		return err
	}
	if quit {
		return ebiten.Termination
	}

	return nil
}

// Poll reads the keyboard.
func (w *Window) Poll(keys emulator.KeySetter) (quit bool, err error) {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		quit = true
		return
	}

	for hostKey, r := range _window_keys {
		key, _ := Key(r)
		switch {
		case inpututil.IsKeyJustPressed(hostKey):
			err = keys.SetKey(key, true)
		case inpututil.IsKeyJustReleased(hostKey):
			err = keys.SetKey(key, false)
		}
		if err != nil {
			return
		}
	}

	return
}

// Present keeps the frame for the next Draw, and gates the beeper.
func (w *Window) Present(display cpu.Display, sound bool) (err error) {
	w.display = display
	if w.beeper != nil {
		w.beeper.SetSounding(sound)
	}

	return
}

// Draw is called by ebiten to render the screen.
func (w *Window) Draw(screen *ebiten.Image) {
	if w.image == nil {
		w.image = ebiten.NewImage(cpu.DISPLAY_WIDTH, cpu.DISPLAY_HEIGHT)
	}

	for y := range cpu.DISPLAY_HEIGHT {
		for x := range cpu.DISPLAY_WIDTH {
			var level byte
			if w.display.Pixel(x, y) {
				level = 0xff
			}
			n := (y*cpu.DISPLAY_WIDTH + x) * 4
			w.pixels[n+0] = level
			w.pixels[n+1] = level
			w.pixels[n+2] = level
			w.pixels[n+3] = 0xff
		}
	}

	w.image.WritePixels(w.pixels)
	screen.DrawImage(w.image, nil)
}

// Layout keeps the logical screen at the CHIP-8 resolution; ebiten scales
// it to the window.
func (w *Window) Layout(_, _ int) (int, int) {
	return cpu.DISPLAY_WIDTH, cpu.DISPLAY_HEIGHT
}
