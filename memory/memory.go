// Package memory defines the basic interfaces for working
// with a CHIP-8 memory image along with the flat RAM implementation
// used by the interpreter. Unlike a real bus every access is bounds
// checked since an out of range address is a fatal program error
// and not something to alias or mirror.
package memory

import "fmt"

const (
	// Size is the total length of the memory image in bytes.
	Size = 0xFFF

	// FontBase is the address the built in hex font is loaded at.
	FontBase = uint16(0x000)
	// FontSize is the number of bytes per glyph.
	FontSize = 5
	// NumGlyphs is the number of glyphs (0-F) in the font.
	NumGlyphs = 16

	// ProgramStart is where ROM images are loaded and execution begins.
	ProgramStart = uint16(0x200)
	// MaxROM is the largest ROM image which can be loaded.
	MaxROM = Size - int(ProgramStart)
)

// Font is the built in 4x5 hex font. Each glyph is 5 rows where the
// upper nibble holds the pixels.
var Font = [NumGlyphs * FontSize]uint8{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

type Bank interface {
	// Read returns the data byte stored at addr or an OutOfBounds error.
	Read(addr uint16) (uint8, error)
	// Write updates addr with the new value or returns an OutOfBounds error.
	Write(addr uint16, val uint8) error
	// PowerOn performs power on reset of the memory. For RAM this zeros everything
	// and then reloads the font.
	PowerOn()
}

// OutOfBounds represents an access past the end of the memory image.
type OutOfBounds struct {
	Addr uint16
}

// Error implements the interface for error types.
func (e OutOfBounds) Error() string {
	return fmt.Sprintf("address 0x%.4X out of bounds (size 0x%.4X)", e.Addr, Size)
}

// ROMTooLarge is returned when a ROM image doesn't fit above ProgramStart.
type ROMTooLarge struct {
	Len int
}

// Error implements the interface for error types.
func (e ROMTooLarge) Error() string {
	return fmt.Sprintf("ROM of %d bytes exceeds maximum of %d bytes", e.Len, MaxROM)
}

var _ = Bank(&RAM{})

// RAM is the flat memory image. Font data lives at FontBase and
// programs at ProgramStart.
type RAM struct {
	addr [Size]uint8
	rom  []uint8
}

// New returns a powered on RAM with the given ROM loaded at ProgramStart.
// A nil rom is allowed and leaves program space zero'd.
func New(rom []uint8) (*RAM, error) {
	if len(rom) > MaxROM {
		return nil, ROMTooLarge{len(rom)}
	}
	r := &RAM{
		rom: append([]uint8(nil), rom...),
	}
	r.PowerOn()
	return r, nil
}

// PowerOn implements the interface for memory.Bank. Memory is cleared, the font
// reloaded and any ROM supplied at creation copied back in.
func (r *RAM) PowerOn() {
	for i := range r.addr {
		r.addr[i] = 0x00
	}
	copy(r.addr[FontBase:], Font[:])
	copy(r.addr[ProgramStart:], r.rom)
}

// Read implements the interface for memory.Bank.
func (r *RAM) Read(addr uint16) (uint8, error) {
	if int(addr) >= Size {
		return 0, OutOfBounds{addr}
	}
	return r.addr[addr], nil
}

// Write implements the interface for memory.Bank.
func (r *RAM) Write(addr uint16, val uint8) error {
	if int(addr) >= Size {
		return OutOfBounds{addr}
	}
	r.addr[addr] = val
	return nil
}

// ReadWord returns the big endian 16 bit value at addr, addr+1.
func ReadWord(b Bank, addr uint16) (uint16, error) {
	hi, err := b.Read(addr)
	if err != nil {
		return 0, err
	}
	lo, err := b.Read(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}
