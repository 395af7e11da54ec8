// Package debugger implements a line mode debugger for a CHIP-8 machine.
// It only touches the machine through its introspection accessors and
// single step so it can be driven between steps of any host loop.
package debugger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jmchacon/chip8/cpu"
	"github.com/jmchacon/chip8/disassemble"
	"github.com/jmchacon/chip8/display"
	"github.com/jmchacon/chip8/memory"
)

// Machine is the view of a CHIP-8 machine the debugger needs.
type Machine interface {
	// Step executes one instruction.
	Step() error
	// CPU returns the processor for introspection.
	CPU() *cpu.Chip
	// Memory returns the memory image.
	Memory() memory.Bank
	// Display returns the display surface.
	Display() *display.Display
}

// LineReader supplies command lines.
type LineReader interface {
	// ReadLine shows prompt and returns the next line without the newline.
	ReadLine(prompt string) (string, error)
}

// Action tells the host what to do after a command line.
type Action int

const (
	// Prompt means read another command.
	Prompt Action = iota
	// StepOne means execute one instruction and then prompt again.
	StepOne
	// Resume means run until ShouldBreak reports a breakpoint.
	Resume
	// Exit means the user asked to quit.
	Exit
)

// Def defines a debugger.
type Def struct {
	// Machine is the machine being debugged.
	Machine Machine
	// Out receives all output. Required.
	Out io.Writer
	// Breakpoints to install at startup.
	Breakpoints []uint16
}

// Debugger holds breakpoint and cursor state for a debugging session.
type Debugger struct {
	m            Machine
	out          io.Writer
	breakpoints  map[uint16]bool
	cursor       uint16 // Where dump and disasm operate.
	onBreakpoint bool   // Set when stopped on a breakpoint so resuming doesn't immediately stop again.
	last         Command
	haveLast     bool
}

// Init returns a debugger ready to drive def.Machine.
func Init(def *Def) (*Debugger, error) {
	if def == nil {
		return nil, errors.New("Def must be non-nil")
	}
	if def.Machine == nil {
		return nil, errors.New("Machine must be non-nil")
	}
	if def.Out == nil {
		return nil, errors.New("Out must be non-nil")
	}
	d := &Debugger{
		m:           def.Machine,
		out:         def.Out,
		breakpoints: make(map[uint16]bool),
		cursor:      def.Machine.CPU().PC(),
	}
	for _, b := range def.Breakpoints {
		d.breakpoints[b] = true
	}
	return d, nil
}

// Cursor returns the current cursor address.
func (d *Debugger) Cursor() uint16 {
	return d.cursor
}

// Breakpoints returns the installed breakpoints in ascending order.
func (d *Debugger) Breakpoints() []uint16 {
	var out []uint16
	for b := range d.breakpoints {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ShouldBreak reports whether execution must stop at the current PC. Once it
// returns true it won't again for the same stop until an instruction executes.
func (d *Debugger) ShouldBreak() bool {
	if d.onBreakpoint || !d.breakpoints[d.m.CPU().PC()] {
		return false
	}
	d.onBreakpoint = true
	d.cursor = d.m.CPU().PC()
	fmt.Fprintf(d.out, "Breakpoint hit at 0x%.3X\n", d.cursor)
	return true
}

// Advance executes one instruction without tracing.
func (d *Debugger) Advance() error {
	err := d.m.Step()
	d.onBreakpoint = false
	return err
}

// Step prints the instruction at PC and executes it.
func (d *Debugger) Step() error {
	dis, _ := disassemble.Step(d.m.CPU().PC(), d.m.Memory())
	fmt.Fprintln(d.out, dis)
	err := d.Advance()
	d.cursor = d.m.CPU().PC()
	return err
}

// RunUntilBreak executes until a breakpoint, an error or ctx is done. It also
// stops if the CPU blocks on FX0A since nothing updates the keypad while the
// debugger owns the loop. Hosts which poll input should drive Advance themselves.
func (d *Debugger) RunUntilBreak(ctx context.Context) error {
	for !d.ShouldBreak() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Advance(); err != nil {
			return err
		}
		if c := d.m.CPU(); c.AwaitingKey() {
			d.cursor = c.PC()
			fmt.Fprintf(d.out, "Waiting for key at 0x%.3X\n", d.cursor)
			return nil
		}
	}
	return nil
}

// Next reads and executes commands from in until one needs the host to act.
// Parse errors are reported and another line is read.
func (d *Debugger) Next(in LineReader) (Action, error) {
	for {
		line, err := in.ReadLine(fmt.Sprintf("(0x%.3X)> ", d.m.CPU().PC()))
		if err != nil {
			return Exit, err
		}
		cmd, err := Parse(line)
		if err != nil {
			fmt.Fprintln(d.out, err)
			continue
		}
		if act := d.Exec(cmd); act != Prompt {
			return act, nil
		}
	}
}

// Exec performs cmd and returns what the host should do next.
func (d *Debugger) Exec(cmd Command) Action {
	if cmd.Kind == Repeat {
		if !d.haveLast {
			return Prompt
		}
		cmd = d.last
	}
	d.last, d.haveLast = cmd, true

	switch cmd.Kind {
	case Goto:
		d.cursor = cmd.Addr
	case Dump:
		d.dump(cmd.Count)
	case VideoDump:
		fmt.Fprint(d.out, d.m.Display().String())
	case Disasm:
		pc := d.cursor
		for i := 0; i < cmd.Count; i++ {
			dis, n := disassemble.Step(pc, d.m.Memory())
			fmt.Fprintln(d.out, dis)
			pc += uint16(n)
			if int(pc) >= memory.Size {
				break
			}
		}
	case Break:
		d.breakpoints[cmd.Addr] = true
		fmt.Fprintf(d.out, "Breakpoint installed at 0x%.3X\n", cmd.Addr)
	case Delete:
		if !d.breakpoints[cmd.Addr] {
			fmt.Fprintf(d.out, "No breakpoint at 0x%.3X\n", cmd.Addr)
			break
		}
		delete(d.breakpoints, cmd.Addr)
		fmt.Fprintf(d.out, "Breakpoint removed at 0x%.3X\n", cmd.Addr)
	case Regs:
		d.regs()
	case Help:
		fmt.Fprint(d.out, helpText)
	case Step:
		return StepOne
	case Run:
		return Resume
	case Quit:
		return Exit
	}
	return Prompt
}

func (d *Debugger) regs() {
	c := d.m.CPU()
	v := c.V()
	for i, r := range v {
		fmt.Fprintf(d.out, "v%X=%.2X", i, r)
		if i%8 == 7 {
			fmt.Fprintln(d.out)
		} else {
			fmt.Fprint(d.out, " ")
		}
	}
	fmt.Fprintf(d.out, "pc=%.3X i=%.3X sp=%d dt=%.2X st=%.2X\n", c.PC(), c.I(), c.SP(), c.Delay(), c.Sound())
	st := c.Stack()
	for i := 0; i < int(c.SP()); i++ {
		fmt.Fprintf(d.out, "stack[%d]=%.3X\n", i, st[i])
	}
}

// dump prints n bytes starting at the cursor, 16 to a line.
func (d *Debugger) dump(n int) {
	if int(d.cursor)+n > memory.Size {
		n = memory.Size - int(d.cursor)
	}
	var b strings.Builder
	for i := 0; i < n; i++ {
		addr := d.cursor + uint16(i)
		if i%16 == 0 {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[0x%.3X]", addr)
		}
		v, err := d.m.Memory().Read(addr)
		if err != nil {
			fmt.Fprintf(&b, " ??")
			continue
		}
		fmt.Fprintf(&b, " %.2X", v)
	}
	b.WriteString("\n")
	fmt.Fprint(d.out, b.String())
}

// Session runs a complete debugging session reading commands from in until quit
// or end of input. Machine errors are reported and the session continues so
// state can still be inspected. The machine's halt error, if any, is returned.
func (d *Debugger) Session(ctx context.Context, in LineReader) error {
	for {
		act, err := d.Next(in)
		if err != nil && err != io.EOF {
			return err
		}
		var stepErr error
		switch act {
		case Exit:
			return d.m.CPU().Halted()
		case StepOne:
			stepErr = d.Step()
		case Resume:
			stepErr = d.RunUntilBreak(ctx)
		}
		if stepErr != nil {
			if ctx.Err() != nil {
				return stepErr
			}
			fmt.Fprintf(d.out, "Halted: %v\n", stepErr)
		}
	}
}
