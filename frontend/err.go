package frontend

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrHeadless = errors.New(f("built without window and audio support"))
)
