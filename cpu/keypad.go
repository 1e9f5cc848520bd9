package cpu

import (
	"sync"
)

const (
	KEY_COUNT = 16
)

// KeyState is the down state of each key at one instant.
type KeyState [KEY_COUNT]bool

// Pressed returns the lowest key that is down in ks but was up in prior.
func (ks KeyState) Pressed(prior KeyState) (key int, ok bool) {
	for key = range KEY_COUNT {
		if ks[key] && !prior[key] {
			ok = true
			return
		}
	}
	return
}

// Keypad is the hexadecimal keypad. It is written by input adapters,
// possibly from another goroutine, and read by the CPU once per cycle.
type Keypad struct {
	mutex sync.Mutex
	down  KeyState
}

// Set records a key transition.
func (kp *Keypad) Set(key int, down bool) (err error) {
	if key < 0 || key >= KEY_COUNT {
		err = ErrKeyInvalid
		return
	}

	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	kp.down[key] = down
	return
}

// Snapshot returns a consistent copy of the key state.
func (kp *Keypad) Snapshot() (ks KeyState) {
	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	return kp.down
}

func (kp *Keypad) Reset() {
	kp.mutex.Lock()
	defer kp.mutex.Unlock()

	kp.down = KeyState{}
}
