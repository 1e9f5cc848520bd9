package emulator

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrCycleRate = errors.New(f("cycle rate out of range"))
)

// ErrCycleHz is an instruction rate outside MIN_CYCLE_HZ to MAX_CYCLE_HZ.
type ErrCycleHz int

func (err ErrCycleHz) Error() string {
	return f("cycle rate %d Hz not in %d..%d Hz", int(err), MIN_CYCLE_HZ, MAX_CYCLE_HZ)
}

func (err ErrCycleHz) Is(target error) bool {
	return target == ErrCycleRate
}

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc     uint16
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return err.Err.Error()
	}
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
