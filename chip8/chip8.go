// Package chip8 is the main logic for pulling together a CHIP-8 virtual machine.
// The actual components are implemented in other packages and most the logic here
// is simply wiring them together and owning the timer goroutine lifecycle.
package chip8

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/jmchacon/chip8/cpu"
	"github.com/jmchacon/chip8/display"
	"github.com/jmchacon/chip8/keypad"
	"github.com/jmchacon/chip8/memory"
	"github.com/jmchacon/chip8/timer"
)

// DefaultSpeed is the default instructions per second for Run.
const DefaultSpeed = 700

// VM is a complete CHIP-8 machine.
type VM struct {
	cpu     *cpu.Chip
	ram     *memory.RAM
	display *display.Display
	timers  *timer.Timers
	keys    keypad.Pad
	state   *keypad.State // Non-nil only if the VM created its own keypad.
}

// VMDef defines the pieces needed to setup a CHIP-8 machine.
type VMDef struct {
	// Rom is the program image loaded at 0x200.
	Rom []uint8
	// Keys optionally supplies the keypad. If nil a keypad.State is created
	// and made available through KeyState().
	Keys keypad.Pad
	// FrameDone is called at the end of any Step that changed the display.
	FrameDone func(*image.NRGBA)
	// TimerRate overrides the 60Hz timer decay (mostly for tests).
	TimerRate time.Duration
	// Rand optionally overrides the random source used by RND.
	Rand func() uint8
	// Debug enables CPU Debug() output.
	Debug bool
}

// LoadROM reads a ROM image from disk making sure it fits in memory.
func LoadROM(path string) ([]uint8, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read ROM %s: %w", path, err)
	}
	if len(b) > memory.MaxROM {
		return nil, memory.ROMTooLarge{Len: len(b)}
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("ROM %s is empty", path)
	}
	return b, nil
}

// Init returns an initialized and powered on machine. Timers are not running
// until Start is called.
func Init(def *VMDef) (*VM, error) {
	if def == nil {
		return nil, errors.New("VMDef must be non-nil")
	}
	ram, err := memory.New(def.Rom)
	if err != nil {
		return nil, fmt.Errorf("can't initialize RAM: %w", err)
	}
	d, err := display.Init(&display.Def{
		FrameDone: def.FrameDone,
	})
	if err != nil {
		return nil, fmt.Errorf("can't initialize display: %w", err)
	}
	tm, err := timer.Init(&timer.Def{
		Rate: def.TimerRate,
	})
	if err != nil {
		return nil, fmt.Errorf("can't initialize timers: %w", err)
	}
	v := &VM{
		ram:     ram,
		display: d,
		timers:  tm,
		keys:    def.Keys,
	}
	if v.keys == nil {
		v.state = &keypad.State{}
		v.keys = v.state
	}
	c, err := cpu.Init(&cpu.ChipDef{
		Ram:     ram,
		Display: d,
		Timers:  tm,
		Keys:    v.keys,
		Rand:    def.Rand,
		Debug:   def.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("can't initialize cpu: %w", err)
	}
	v.cpu = c
	return v, nil
}

// Start begins timer decay. It stops when ctx is done or Stop is called.
func (v *VM) Start(ctx context.Context) error {
	return v.timers.Start(ctx)
}

// Stop halts timer decay.
func (v *VM) Stop() {
	v.timers.Stop()
}

// Step runs a single instruction and then marks a frame boundary on the display.
func (v *VM) Step() error {
	err := v.cpu.Step()
	v.display.Frame()
	return err
}

// Run steps at speed instructions per second until ctx is done or the CPU
// halts. Timers must be started separately. A speed <= 0 uses DefaultSpeed.
func (v *VM) Run(ctx context.Context, speed int) error {
	if speed <= 0 {
		speed = DefaultSpeed
	}
	tk := time.NewTicker(time.Second / time.Duration(speed))
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			if err := v.Step(); err != nil {
				return err
			}
		}
	}
}

// PowerOn resets memory, display and CPU back to the loaded ROM.
func (v *VM) PowerOn() {
	v.cpu.PowerOn()
	v.timers.SetDelay(0)
	v.timers.SetSound(0)
}

// CPU returns the CPU for introspection.
func (v *VM) CPU() *cpu.Chip {
	return v.cpu
}

// Memory returns the memory image.
func (v *VM) Memory() memory.Bank {
	return v.ram
}

// Display returns the display surface. Callers must only read from it between steps.
func (v *VM) Display() *display.Display {
	return v.display
}

// Timers returns the delay/sound timers.
func (v *VM) Timers() *timer.Timers {
	return v.timers
}

// KeyState returns the keypad the VM created or nil if one was supplied in VMDef.
func (v *VM) KeyState() *keypad.State {
	return v.state
}
