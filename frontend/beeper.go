//go:build !headless

package frontend

import (
	"github.com/ebitengine/oto/v3"
)

// Beeper plays the tone on the host audio device.
type Beeper struct {
	tone   *Tone
	ctx    *oto.Context
	player *oto.Player
}

// NewBeeper opens the audio device and starts the (silent) tone.
func NewBeeper() (b *Beeper, err error) {
	tone := NewTone()

	op := &oto.NewContextOptions{
		SampleRate:   tone.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return
	}
	<-ready

	b = &Beeper{
		tone:   tone,
		ctx:    ctx,
		player: ctx.NewPlayer(tone),
	}
	b.player.Play()

	return
}

// SetSounding gates the tone.
func (b *Beeper) SetSounding(on bool) {
	b.tone.SetSounding(on)
}

// Close stops playback.
func (b *Beeper) Close() error {
	return b.player.Close()
}
