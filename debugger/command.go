package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmchacon/chip8/memory"
)

// Kind identifies a debugger command.
type Kind int

const (
	// Repeat re-executes the previous command (an empty line).
	Repeat Kind = iota
	// Goto moves the cursor used by Dump and Disasm.
	Goto
	// Dump prints memory at the cursor.
	Dump
	// VideoDump prints the display as rows of 0/1.
	VideoDump
	// Disasm disassembles instructions starting at the cursor.
	Disasm
	// Break installs a breakpoint.
	Break
	// Delete removes a breakpoint.
	Delete
	// Regs prints the CPU state.
	Regs
	// Step executes a single instruction.
	Step
	// Run executes until a breakpoint is hit.
	Run
	// Quit exits the debugger.
	Quit
	// Help prints the command list.
	Help
)

var kindNames = map[Kind]string{
	Repeat:    "repeat",
	Goto:      "goto",
	Dump:      "dump",
	VideoDump: "vdump",
	Disasm:    "disasm",
	Break:     "break",
	Delete:    "delete",
	Regs:      "regs",
	Step:      "step",
	Run:       "run",
	Quit:      "quit",
	Help:      "help",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is a parsed debugger command line.
type Command struct {
	Kind  Kind
	Addr  uint16 // Goto, Break and Delete.
	Count int    // Dump and Disasm.
}

// ParseError is returned for any command line which can't be understood.
// These are never fatal, the caller should report and prompt again.
type ParseError struct {
	Line   string
	Reason string
}

// Error implements the interface for error types.
func (e ParseError) Error() string {
	return fmt.Sprintf("can't parse %q: %s", e.Line, e.Reason)
}

var aliases = map[string]Kind{
	"goto":   Goto,
	"g":      Goto,
	"dump":   Dump,
	"x":      Dump,
	"vdump":  VideoDump,
	"vx":     VideoDump,
	"disasm": Disasm,
	"d":      Disasm,
	"break":  Break,
	"b":      Break,
	"delete": Delete,
	"del":    Delete,
	"regs":   Regs,
	"v":      Regs,
	"step":   Step,
	"s":      Step,
	".":      Step,
	"run":    Run,
	"r":      Run,
	"quit":   Quit,
	"q":      Quit,
	"help":   Help,
	"h":      Help,
	"?":      Help,
}

const helpText = `goto|g <addr>     move the cursor to addr (hex)
dump|x [n]        dump n bytes at the cursor
vdump|vx          dump the display as 0/1 rows
disasm|d [n]      disassemble n instructions at the cursor
break|b <addr>    set a breakpoint at addr (hex)
delete|del <addr> remove the breakpoint at addr (hex)
regs|v            print CPU registers
step|s|.          execute one instruction
run|r             run until a breakpoint
quit|q            exit
<empty line>      repeat the last command
`

// Parse turns a line of input into a Command. An empty line is Repeat.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Kind: Repeat}, nil
	}
	k, ok := aliases[strings.ToLower(fields[0])]
	if !ok {
		return Command{}, ParseError{line, fmt.Sprintf("unknown command %q", fields[0])}
	}
	cmd := Command{Kind: k}
	args := fields[1:]
	switch k {
	case Goto, Break, Delete:
		if len(args) != 1 {
			return Command{}, ParseError{line, fmt.Sprintf("%s takes exactly one address", k)}
		}
		a, err := parseAddr(args[0])
		if err != nil {
			return Command{}, ParseError{line, err.Error()}
		}
		cmd.Addr = a
	case Dump, Disasm:
		cmd.Count = 1
		if len(args) > 1 {
			return Command{}, ParseError{line, fmt.Sprintf("%s takes at most one count", k)}
		}
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return Command{}, ParseError{line, fmt.Sprintf("invalid count %q", args[0])}
			}
			cmd.Count = n
		}
	default:
		if len(args) != 0 {
			return Command{}, ParseError{line, fmt.Sprintf("%s takes no arguments", k)}
		}
	}
	return cmd, nil
}

// parseAddr reads a hex address with an optional 0x prefix.
func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	if v >= memory.Size {
		return 0, fmt.Errorf("address 0x%X past end of memory (0x%X)", v, memory.Size)
	}
	return uint16(v), nil
}
