package frontend

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

const (
	SAMPLE_RATE = 44100 // Samples per second.
	TONE_HZ     = 250   // Square wave frequency.
	TONE_VOLUME = 0.1   // Square wave amplitude.
)

// Tone is a square wave stream of mono float32LE samples, silent unless
// sounding.
type Tone struct {
	SampleRate int
	Hz         float32
	Volume     float32

	phase    float32
	sounding atomic.Bool
}

// NewTone creates the beeper tone.
func NewTone() *Tone {
	return &Tone{
		SampleRate: SAMPLE_RATE,
		Hz:         TONE_HZ,
		Volume:     TONE_VOLUME,
	}
}

// SetSounding gates the tone. Safe to call while the tone is being read.
func (t *Tone) SetSounding(on bool) {
	t.sounding.Store(on)
}

// Sounding reports whether the tone is gated on.
func (t *Tone) Sounding() bool {
	return t.sounding.Load()
}

// Read fills p with whole samples.
func (t *Tone) Read(p []byte) (n int, err error) {
	on := t.sounding.Load()
	step := t.Hz / float32(t.SampleRate)

	for ; n+4 <= len(p); n += 4 {
		var sample float32
		if on {
			if t.phase < 0.5 {
				sample = t.Volume
			} else {
				sample = -t.Volume
			}
			t.phase += step
			t.phase -= float32(math.Floor(float64(t.phase)))
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(sample))
	}

	return
}
