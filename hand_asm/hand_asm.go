// hand_asm takes a filename and produces a CHIP-8 ROM
// from parsing the input as a hand assembled listing
// of the form:
//
// XXX OPCD ....
//
// Where XXX is the address field (optionally prefixed with 0x) and OPCD is the
// 4 hex digit word to store there. A 2 hex digit field stores a single byte.
// Anything after that is a comment so disassembler output can be fed back in.
// Lines which don't start with an address and a hex field are ignored.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/jmchacon/chip8/instruction"
	"github.com/jmchacon/chip8/memory"
)

var (
	strict = flag.Bool("strict", false, "If true any word which doesn't decode as an instruction is an error")
)

// assemble reads a listing and returns the ROM image starting at 0x200. Gaps
// between addresses are zero filled.
func assemble(r io.Reader, strict bool) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	var output []byte
	l := 0
	for scanner.Scan() {
		l++
		toks := strings.Fields(scanner.Text())
		if len(toks) < 2 {
			continue
		}
		a, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(toks[0]), "0x"), 16, 16)
		if err != nil {
			// Not a listing line.
			continue
		}
		if _, err := strconv.ParseUint(toks[1], 16, 16); err != nil {
			continue
		}
		addr := int(a)
		if addr < int(memory.ProgramStart) || addr >= memory.Size {
			return nil, fmt.Errorf("line %d: address 0x%.3X outside of ROM space", l, addr)
		}
		off := addr - int(memory.ProgramStart)
		if off < len(output) {
			return nil, fmt.Errorf("line %d: address 0x%.3X overlaps earlier data", l, addr)
		}
		var data []byte
		switch f := toks[1]; len(f) {
		case 4:
			w, err := strconv.ParseUint(f, 16, 16)
			if err != nil {
				return nil, fmt.Errorf("line %d: can't parse word %q - %v", l, f, err)
			}
			if _, err := instruction.Decode(uint16(w)); err != nil && strict {
				return nil, fmt.Errorf("line %d: %v", l, err)
			}
			data = []byte{byte(w >> 8), byte(w)}
		case 2:
			b, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: can't parse byte %q - %v", l, f, err)
			}
			data = []byte{byte(b)}
		default:
			return nil, fmt.Errorf("line %d: invalid data field %q", l, f)
		}
		for len(output) < off {
			output = append(output, 0x00)
		}
		output = append(output, data...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(output) > memory.MaxROM {
		return nil, memory.ROMTooLarge{Len: len(output)}
	}
	return output, nil
}

func main() {
	flag.Parse()
	if len(flag.Args()) != 2 {
		log.Fatalf("Invalid command: %s [-strict] <input> <output>", os.Args[0])
	}
	fn := flag.Args()[0]
	out := flag.Args()[1]

	in, err := os.Open(fn)
	if err != nil {
		log.Fatalf("Can't open %q for input - %v", fn, err)
	}
	defer in.Close()
	output, err := assemble(in, *strict)
	if err != nil {
		log.Fatalf("Can't assemble %q - %v", fn, err)
	}

	of, err := os.Create(out)
	if err != nil {
		log.Fatalf("Can't open output %q - %v", out, err)
	}
	n, err := of.Write(output)
	if got, want := n, len(output); got != want {
		log.Fatalf("Short write to %q. Got %d and want %d", out, got, want)
	}
	if err != nil {
		log.Fatalf("Got error writing to %q - %v", out, err)
	}
	if err := of.Close(); err != nil {
		log.Fatalf("Error closing %q - %v", out, err)
	}
}
