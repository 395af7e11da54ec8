// disassembler takes a filename and loads it as a CHIP-8 ROM and then
// disassembles it to stdout starting at the first instruction. Since
// instructions and data are mixed freely in ROMs any word which doesn't
// decode is printed as dw.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jmchacon/chip8/chip8"
	"github.com/jmchacon/chip8/disassemble"
	"github.com/jmchacon/chip8/memory"
)

var (
	startPC = flag.Int("start_pc", int(memory.ProgramStart), "PC value to start disassembling. Must be inside the loaded ROM.")
)

func main() {
	flag.Parse()
	if len(flag.Args()) != 1 {
		log.Fatalf("Invalid command: %s [-start_pc <PC>] <filename>", os.Args[0])
	}
	fn := flag.Args()[0]

	b, err := chip8.LoadROM(fn)
	if err != nil {
		log.Fatalf("Can't load %s - %v", fn, err)
	}
	r, err := memory.New(b)
	if err != nil {
		log.Fatalf("Can't setup memory: %v", err)
	}
	end := int(memory.ProgramStart) + len(b)
	if *startPC < int(memory.ProgramStart) || *startPC >= end {
		log.Fatalf("start_pc 0x%.3X outside of ROM (0x%.3X-0x%.3X)", *startPC, memory.ProgramStart, end-1)
	}
	fmt.Printf("0x%.2X bytes at pc: 0x%.3X\n", len(b), memory.ProgramStart)
	pc := uint16(*startPC)
	for int(pc) < end {
		dis, off := disassemble.Step(pc, r)
		pc += uint16(off)
		fmt.Printf("%s\n", dis)
	}
}
