// Package cpu defines the CHIP-8 architecture and provides
// the methods needed to run the CPU and interface with it
// for emulation.
package cpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/jmchacon/chip8/instruction"
	"github.com/jmchacon/chip8/keypad"
	"github.com/jmchacon/chip8/memory"
)

const (
	NumRegisters    = 16
	StackSize       = 16
	VF              = 0xF   // Flag register for carry/borrow/shift/collision.
	InstructionSize = 2     // Every instruction is 2 bytes.
	SpriteWidth     = 8     // Sprites are always 8 pixels (one byte) wide.
	ResetPC         = 0x200 // Where execution starts.
)

// Surface is the part of the display the CPU drives. Only CLS and DRW touch it.
type Surface interface {
	// Clear turns every pixel off.
	Clear()
	// DrawPixel XOR toggles a pixel and returns true if it was lit (a collision).
	DrawPixel(x, y int) bool
}

// Timers is the view of the delay/sound timers the CPU needs. Implementations
// decay them independently so these must be safe to call concurrently with decay.
type Timers interface {
	Delay() uint8
	SetDelay(v uint8)
	Sound() uint8
}

type Chip struct {
	v        [NumRegisters]uint8 // V0-VF general registers. VF doubles as the flag register.
	i        uint16              // Index register.
	pc       uint16              // Program counter.
	sp       uint8               // Stack pointer. Number of valid entries in stack.
	stack    [StackSize]uint16   // Return addresses.
	ram      memory.Bank         // Memory image.
	display  Surface             // Display the sprite/clear instructions draw on.
	timers   Timers              // Delay and sound timers.
	keys     keypad.Pad          // Keypad state for the skip/wait instructions.
	rand     func() uint8        // Random byte source for RND.
	awaitKey bool                // True when FX0A is waiting for a key.
	awaitReg uint8               // Register FX0A stores into once a key arrives.
	halted   bool                // If stopped due to a fatal error.
	haltErr  error               // Error which caused the halt.
	steps    uint64              // Total instructions completed.
	debug    bool                // If true Debug() emits output.
}

// ChipDef defines everything a Chip is wired to.
type ChipDef struct {
	// Ram is the memory image. Required.
	Ram memory.Bank
	// Display is the surface sprites get drawn on. Required.
	Display Surface
	// Timers holds the delay/sound timers. Required.
	Timers Timers
	// Keys is the keypad. Required.
	Keys keypad.Pad
	// Rand optionally overrides the random byte source for RND.
	Rand func() uint8
	// Debug if true will have Debug() return state.
	Debug bool
}

// A few custom error types to distinguish why the CPU stopped

// DecodeError represents an opcode that isn't in the instruction table.
type DecodeError struct {
	PC     uint16
	Opcode uint16
}

// Error implements the interface for error types.
func (e DecodeError) Error() string {
	return fmt.Sprintf("invalid opcode 0x%.4X at PC 0x%.3X", e.Opcode, e.PC)
}

// Unwrap returns the underlying decoder error.
func (e DecodeError) Unwrap() error {
	return instruction.InvalidOpcode{Opcode: e.Opcode}
}

// MemoryBoundsError represents a fetch or indirect access past the end of memory.
// Addr is an int since I plus an offset can go past 16 bits.
type MemoryBoundsError struct {
	PC   uint16
	Addr int
}

// Error implements the interface for error types.
func (e MemoryBoundsError) Error() string {
	return fmt.Sprintf("memory access at 0x%.4X out of bounds at PC 0x%.3X", e.Addr, e.PC)
}

// StackError represents a CALL with a full stack or a RET with an empty one.
type StackError struct {
	PC       uint16
	SP       uint8
	Overflow bool
}

// Error implements the interface for error types.
func (e StackError) Error() string {
	s := "underflow"
	if e.Overflow {
		s = "overflow"
	}
	return fmt.Sprintf("stack %s (SP %d) at PC 0x%.3X", s, e.SP, e.PC)
}

// InvalidCPUState represents an invalid CPU state in the emulator.
type InvalidCPUState struct {
	Reason string
}

// Error implements the interface for error types.
func (e InvalidCPUState) Error() string {
	return fmt.Sprintf("invalid CPU state: %s", e.Reason)
}

// Init will create a new CPU wired as requested and return it in powered on state.
// The memory passed in will also be powered on.
func Init(def *ChipDef) (*Chip, error) {
	if def == nil {
		return nil, errors.New("ChipDef must be non-nil")
	}
	if def.Ram == nil {
		return nil, errors.New("Ram must be non-nil")
	}
	if def.Display == nil {
		return nil, errors.New("Display must be non-nil")
	}
	if def.Timers == nil {
		return nil, errors.New("Timers must be non-nil")
	}
	if def.Keys == nil {
		return nil, errors.New("Keys must be non-nil")
	}
	c := &Chip{
		ram:     def.Ram,
		display: def.Display,
		timers:  def.Timers,
		keys:    def.Keys,
		rand:    def.Rand,
		debug:   def.Debug,
	}
	if c.rand == nil {
		c.rand = func() uint8 { return uint8(rand.Intn(256)) }
	}
	c.PowerOn()
	return c, nil
}

// PowerOn resets memory and the display along with the CPU.
func (c *Chip) PowerOn() {
	c.ram.PowerOn()
	c.display.Clear()
	c.Reset()
}

// Reset zeros registers and the stack and moves the PC back to ResetPC.
// Memory and the display are left alone.
func (c *Chip) Reset() {
	c.v = [NumRegisters]uint8{}
	c.i = 0
	c.pc = ResetPC
	c.sp = 0
	c.stack = [StackSize]uint16{}
	c.awaitKey = false
	c.awaitReg = 0
	c.halted = false
	c.haltErr = nil
	c.steps = 0
}

// Step runs one complete instruction. If the CPU is waiting on FX0A this only
// polls the keypad and returns without moving the PC until a key is held.
// Any error returned is fatal and the CPU halts. Further calls to Step just
// return the same error.
func (c *Chip) Step() error {
	// Fast path if halted. The PC won't advance. i.e. we just keep returning the same error.
	if c.halted {
		return c.haltErr
	}
	if c.awaitKey {
		k, ok := c.keys.Pressed()
		if !ok {
			return nil
		}
		c.v[c.awaitReg] = k
		c.awaitKey = false
		c.pc += InstructionSize
		c.steps++
		return nil
	}

	op, err := memory.ReadWord(c.ram, c.pc)
	if err != nil {
		return c.halt(c.memError(err))
	}
	inst, err := instruction.Decode(op)
	if err != nil {
		return c.halt(DecodeError{PC: c.pc, Opcode: op})
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("exec",
			"pc", fmt.Sprintf("0x%.3X", c.pc),
			"opcode", fmt.Sprintf("0x%.4X", op),
			"instr", inst.String(),
		)
	}
	next, err := c.execute(inst)
	if err != nil {
		return c.halt(err)
	}
	c.pc = next
	if !c.awaitKey {
		c.steps++
	}
	return nil
}

func (c *Chip) halt(err error) error {
	c.halted = true
	c.haltErr = err
	return err
}

// execute runs the semantics for inst and returns the address of the next
// instruction. Control flow instructions return their target directly.
func (c *Chip) execute(inst instruction.Instruction) (uint16, error) {
	next := c.pc + InstructionSize
	skip := c.pc + 2*InstructionSize

	switch in := inst.(type) {
	case instruction.Cls:
		c.display.Clear()
	case instruction.Ret:
		if c.sp == 0 {
			return 0, StackError{PC: c.pc, SP: c.sp}
		}
		c.sp--
		next = c.stack[c.sp]
	case instruction.Jmp:
		next = in.Addr
	case instruction.Call:
		if int(c.sp) >= StackSize {
			return 0, StackError{PC: c.pc, SP: c.sp, Overflow: true}
		}
		c.stack[c.sp] = c.pc + InstructionSize
		c.sp++
		next = in.Addr
	case instruction.SkipEqImm:
		if c.v[in.X] == in.K {
			next = skip
		}
	case instruction.SkipNeImm:
		if c.v[in.X] != in.K {
			next = skip
		}
	case instruction.LoadImm:
		c.v[in.X] = in.K
	case instruction.AddImm:
		c.v[in.X] += in.K
	case instruction.Move:
		c.v[in.X] = c.v[in.Y]
	case instruction.And:
		c.v[in.X] &= c.v[in.Y]
	case instruction.AddReg:
		sum := uint16(c.v[in.X]) + uint16(c.v[in.Y])
		c.v[in.X] = uint8(sum)
		c.v[VF] = 0
		if sum > 0xFF {
			c.v[VF] = 1
		}
	case instruction.Sub:
		x, y := c.v[in.X], c.v[in.Y]
		c.v[in.X] = x - y
		// VF is NOT borrow.
		c.v[VF] = 0
		if x >= y {
			c.v[VF] = 1
		}
	case instruction.Shr:
		lsb := c.v[in.X] & 0x01
		c.v[in.X] >>= 1
		c.v[VF] = lsb
	case instruction.SkipNeReg:
		if c.v[in.X] != c.v[in.Y] {
			next = skip
		}
	case instruction.LoadI:
		c.i = in.Addr
	case instruction.Rand:
		c.v[in.X] = c.rand() & in.K
	case instruction.Draw:
		if err := c.draw(in); err != nil {
			return 0, err
		}
	case instruction.SkipKey:
		if c.keys.Down(c.v[in.X]) {
			next = skip
		}
	case instruction.SkipNoKey:
		if !c.keys.Down(c.v[in.X]) {
			next = skip
		}
	case instruction.GetDelay:
		c.v[in.X] = c.timers.Delay()
	case instruction.SetDelay:
		c.timers.SetDelay(c.v[in.X])
	case instruction.WaitKey:
		k, ok := c.keys.Pressed()
		if !ok {
			// Stay on this instruction. Step polls until a key shows up.
			c.awaitKey = true
			c.awaitReg = in.X
			next = c.pc
			break
		}
		c.v[in.X] = k
	case instruction.AddI:
		c.i += uint16(c.v[in.X])
	case instruction.Font:
		c.i = memory.FontBase + uint16(c.v[in.X])*memory.FontSize
	case instruction.BCD:
		if err := c.checkSpan(c.i, 3); err != nil {
			return 0, err
		}
		val := c.v[in.X]
		for n, d := range [3]uint8{val / 100, (val / 10) % 10, val % 10} {
			if err := c.write(c.i+uint16(n), d); err != nil {
				return 0, err
			}
		}
	case instruction.Store:
		if err := c.checkSpan(c.i, int(in.X)+1); err != nil {
			return 0, err
		}
		for r := uint8(0); r <= in.X; r++ {
			if err := c.write(c.i+uint16(r), c.v[r]); err != nil {
				return 0, err
			}
		}
	case instruction.Load:
		if err := c.checkSpan(c.i, int(in.X)+1); err != nil {
			return 0, err
		}
		for r := uint8(0); r <= in.X; r++ {
			val, err := c.read(c.i + uint16(r))
			if err != nil {
				return 0, err
			}
			c.v[r] = val
		}
	default:
		return 0, InvalidCPUState{fmt.Sprintf("no handler for %T (%v)", inst, inst)}
	}
	return next, nil
}

// draw implements DXYN. All sprite rows are read before any pixel changes so a
// bad I leaves the display untouched.
func (c *Chip) draw(in instruction.Draw) error {
	if err := c.checkSpan(c.i, int(in.N)); err != nil {
		return err
	}
	rows := make([]uint8, in.N)
	for r := range rows {
		val, err := c.read(c.i + uint16(r))
		if err != nil {
			return err
		}
		rows[r] = val
	}
	x0, y0 := int(c.v[in.X]), int(c.v[in.Y])
	c.v[VF] = 0
	for r, b := range rows {
		for col := 0; col < SpriteWidth; col++ {
			if b&(0x80>>col) == 0 {
				continue
			}
			if c.display.DrawPixel(x0+col, y0+r) {
				c.v[VF] = 1
			}
		}
	}
	return nil
}

// checkSpan verifies [base, base+n) is inside memory without any 16 bit wraparound.
func (c *Chip) checkSpan(base uint16, n int) error {
	if n <= 0 {
		return nil
	}
	if end := int(base) + n - 1; end >= memory.Size {
		addr := int(base)
		if addr < memory.Size {
			addr = memory.Size
		}
		return MemoryBoundsError{PC: c.pc, Addr: addr}
	}
	return nil
}

func (c *Chip) read(addr uint16) (uint8, error) {
	v, err := c.ram.Read(addr)
	if err != nil {
		return 0, c.memError(err)
	}
	return v, nil
}

func (c *Chip) write(addr uint16, val uint8) error {
	if err := c.ram.Write(addr, val); err != nil {
		return c.memError(err)
	}
	return nil
}

func (c *Chip) memError(err error) error {
	var oob memory.OutOfBounds
	if errors.As(err, &oob) {
		return MemoryBoundsError{PC: c.pc, Addr: int(oob.Addr)}
	}
	return fmt.Errorf("memory error at PC 0x%.3X: %w", c.pc, err)
}

// PC returns the program counter.
func (c *Chip) PC() uint16 {
	return c.pc
}

// V returns a copy of the register file.
func (c *Chip) V() [NumRegisters]uint8 {
	return c.v
}

// I returns the index register.
func (c *Chip) I() uint16 {
	return c.i
}

// SP returns the stack pointer (number of return addresses held).
func (c *Chip) SP() uint8 {
	return c.sp
}

// Stack returns a copy of the full stack including unused entries.
func (c *Chip) Stack() [StackSize]uint16 {
	return c.stack
}

// Delay returns the current delay timer.
func (c *Chip) Delay() uint8 {
	return c.timers.Delay()
}

// Sound returns the current sound timer.
func (c *Chip) Sound() uint8 {
	return c.timers.Sound()
}

// Memory returns a copy of n bytes starting at addr.
func (c *Chip) Memory(addr uint16, n int) ([]uint8, error) {
	if err := c.checkSpan(addr, n); err != nil {
		return nil, err
	}
	out := make([]uint8, n)
	for i := range out {
		v, err := c.read(addr + uint16(i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// AwaitingKey returns true if FX0A is blocked waiting for input.
func (c *Chip) AwaitingKey() bool {
	return c.awaitKey
}

// Halted returns the error which halted the CPU or nil if it's still running.
func (c *Chip) Halted() error {
	return c.haltErr
}

// Steps returns the number of instructions completed since reset.
func (c *Chip) Steps() uint64 {
	return c.steps
}

// Debug returns a one line summary of CPU state if debugging was enabled in ChipDef.
func (c *Chip) Debug() string {
	if !c.debug {
		return ""
	}
	return fmt.Sprintf("%.6d PC: %.3X I: %.3X SP: %.2d V: % X DT: %.2X ST: %.2X await: %t\n", c.steps, c.pc, c.i, c.sp, c.v[:], c.timers.Delay(), c.timers.Sound(), c.awaitKey)
}
