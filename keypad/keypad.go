// Package keypad defines the 16 key hex keypad as seen by the CHIP-8 CPU
// along with a simple concrete implementation hosts can drive from their
// own input handling.
package keypad

import (
	"fmt"
	"sync/atomic"
)

// NumKeys is the number of logical keys (0x0-0xF).
const NumKeys = 16

// Pad is the read only view of the keypad the CPU consumes.
type Pad interface {
	// Down returns true if the given logical key is currently held.
	Down(key uint8) bool
	// Pressed returns the lowest numbered key currently held (if any).
	Pressed() (uint8, bool)
}

// InvalidKey is returned when setting a key outside 0x0-0xF.
type InvalidKey struct {
	Key uint8
}

// Error implements the interface for error types.
func (e InvalidKey) Error() string {
	return fmt.Sprintf("invalid key code 0x%.2X", e.Key)
}

var _ = Pad(&State{})

// State is a Pad whose keys are set by the host. Keys may be set from a
// different goroutine than the one stepping the CPU.
type State struct {
	keys [NumKeys]atomic.Bool
}

// Set updates the held state of key.
func (s *State) Set(key uint8, down bool) error {
	if key >= NumKeys {
		return InvalidKey{key}
	}
	s.keys[key].Store(down)
	return nil
}

// Release lets go of every key.
func (s *State) Release() {
	for i := range s.keys {
		s.keys[i].Store(false)
	}
}

// Down implements the interface for keypad.Pad. Out of range keys are never down.
func (s *State) Down(key uint8) bool {
	if key >= NumKeys {
		return false
	}
	return s.keys[key].Load()
}

// Pressed implements the interface for keypad.Pad.
func (s *State) Pressed() (uint8, bool) {
	for i := range s.keys {
		if s.keys[i].Load() {
			return uint8(i), true
		}
	}
	return 0, false
}

// Layout maps host keyboard characters to logical keys using the
// usual 4x4 block on the left of a QWERTY keyboard:
//
//	1 2 3 4      1 2 3 C
//	Q W E R  ->  4 5 6 D
//	A S D F      7 8 9 E
//	Z X C V      A 0 B F
var Layout = map[rune]uint8{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xC,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xD,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xE,
	'z': 0xA, 'x': 0x0, 'c': 0xB, 'v': 0xF,
}
