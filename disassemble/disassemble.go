// Package disassemble implements a disassembler for CHIP-8 opcodes
package disassemble

import (
	"fmt"

	"github.com/jmchacon/chip8/instruction"
	"github.com/jmchacon/chip8/memory"
)

// Step will take the given PC value and disassemble the instruction at that location
// returning a string for the disassembly and the bytes forward the PC should move to get to
// the next instruction. This does not interpret the instructions so JMP, CLS in memory
// will disassemble as that sequence and not follow the JMP.
// Words which don't decode are emitted as data (dw). A lone trailing byte at the
// end of memory is emitted as db and only advances by one.
func Step(pc uint16, b memory.Bank) (string, int) {
	hi, err := b.Read(pc)
	if err != nil {
		return fmt.Sprintf("0x%.3X           <out of range>", pc), 1
	}
	lo, err := b.Read(pc + 1)
	if err != nil {
		return fmt.Sprintf("0x%.3X %.2X        db     0x%.2X", pc, hi, hi), 1
	}
	op := uint16(hi)<<8 | uint16(lo)
	inst, err := instruction.Decode(op)
	if err != nil {
		return fmt.Sprintf("0x%.3X %.4X      dw     0x%.4X", pc, op, op), 2
	}
	return fmt.Sprintf("0x%.3X %.4X      %s", pc, op, inst), 2
}
