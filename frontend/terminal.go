package frontend

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/emulator"
)

const (
	HOLD_FRAMES = 20 // Frames a key stays down after its last repeat.

	KEY_ESCAPE = 0x1b // Quits.
	KEY_CTRL_C = 0x03 // Quits.
)

// Terminal is a text front end. The display is drawn with half-block
// characters, two pixel rows per text row, and the sound timer rings the
// terminal bell.
//
// Terminals report key presses but not releases, so a key is held down
// until HOLD_FRAMES frames pass without it repeating.
type Terminal struct {
	Verbose bool
	Hold    int // Frames to hold a key down, see HOLD_FRAMES.

	out   io.Writer
	fd    int
	state *term.State

	mutex   sync.Mutex
	pending []byte // Input bytes not yet polled.

	held     [cpu.KEY_COUNT]int // Frames left before release.
	drawn    bool
	last     cpu.Display
	sounding bool
}

var _ emulator.Frontend = (*Terminal)(nil)

// NewTerminal creates a terminal front end reading keys from in and drawing
// to out. If in is a terminal it is put in raw mode until Close.
// A nil in reads nothing, and input can be supplied with Feed.
func NewTerminal(in io.Reader, out io.Writer) (t *Terminal, err error) {
	t = &Terminal{
		Hold: HOLD_FRAMES,
		out:  out,
		fd:   -1,
	}

	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		t.fd = int(file.Fd())
		t.state, err = term.MakeRaw(t.fd)
		if err != nil {
			t = nil
			return
		}
	}

	if in != nil {
		go t.read(in)
	}

	// Clear the screen and hide the cursor.
	_, err = io.WriteString(out, "\x1b[2J\x1b[?25l")
	if err != nil {
		t.Close()
		t = nil
		return
	}

	return
}

// Close restores the terminal.
func (t *Terminal) Close() (err error) {
	_, err = io.WriteString(t.out, "\x1b[?25h\r\n")

	if t.state != nil {
		rerr := term.Restore(t.fd, t.state)
		if err == nil {
			err = rerr
		}
		t.state = nil
	}

	return
}

func (t *Terminal) read(in io.Reader) {
	buf := make([]byte, 64)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			t.Feed(buf[:n])
		}
		if err != nil {
			if t.Verbose && err != io.EOF {
				log.Printf("terminal: %v", err)
			}
			return
		}
	}
}

// Feed queues raw input bytes for the next Poll.
func (t *Terminal) Feed(data []byte) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.pending = append(t.pending, data...)
}

// Poll releases keys that have stopped repeating, then presses the keys
// typed since the last poll.
func (t *Terminal) Poll(keys emulator.KeySetter) (quit bool, err error) {
	t.mutex.Lock()
	input := t.pending
	t.pending = nil
	t.mutex.Unlock()

	var typed [cpu.KEY_COUNT]bool
	for _, b := range input {
		if b == KEY_ESCAPE || b == KEY_CTRL_C {
			quit = true
			return
		}
		key, ok := Key(rune(b))
		if ok {
			typed[key] = true
		}
	}

	for key := range cpu.KEY_COUNT {
		switch {
		case typed[key]:
			if t.held[key] == 0 {
				err = keys.SetKey(key, true)
				if err != nil {
					return
				}
			}
			t.held[key] = t.Hold
		case t.held[key] > 0:
			t.held[key]--
			if t.held[key] == 0 {
				err = keys.SetKey(key, false)
				if err != nil {
					return
				}
			}
		}
	}

	return
}

// Present redraws the display when it has changed, and rings the bell
// when the sound timer starts.
func (t *Terminal) Present(display cpu.Display, sound bool) (err error) {
	var text strings.Builder

	if !t.drawn || display != t.last {
		text.WriteString(Render(display))
		t.last = display
		t.drawn = true
	}

	if sound && !t.sounding {
		text.WriteString("\a")
	}
	t.sounding = sound

	if text.Len() == 0 {
		return
	}

	_, err = io.WriteString(t.out, text.String())
	return
}

// Render draws a display as half-block text, homed to the top left of the
// terminal. Lines end in CR LF, as raw mode does not translate them.
func Render(display cpu.Display) string {
	var text strings.Builder

	text.WriteString("\x1b[H")
	for y := 0; y < cpu.DISPLAY_HEIGHT; y += 2 {
		for x := range cpu.DISPLAY_WIDTH {
			top := display.Pixel(x, y)
			bottom := display.Pixel(x, y+1)
			switch {
			case top && bottom:
				text.WriteRune('█')
			case top:
				text.WriteRune('▀')
			case bottom:
				text.WriteRune('▄')
			default:
				text.WriteByte(' ')
			}
		}
		text.WriteString("\r\n")
	}

	return text.String()
}
