// Package instruction decodes CHIP-8 opcodes into a closed set of
// instruction types. Decoding is pure: the same 16 bit value always
// yields the same Instruction (or InvalidOpcode) and nothing else is touched.
//
// Each documented opcode pattern maps to exactly one concrete type below.
// Operands are pre-extracted so executors and disassemblers never need
// to re-mask the opcode.
package instruction

import "fmt"

// Instruction is implemented only by the types in this package.
type Instruction interface {
	fmt.Stringer
	instruction()
}

// InvalidOpcode is returned for any opcode not in the documented table.
type InvalidOpcode struct {
	Opcode uint16
}

// Error implements the interface for error types.
func (e InvalidOpcode) Error() string {
	return fmt.Sprintf("0x%.4X is an invalid opcode", e.Opcode)
}

// Cls is 00E0.
type Cls struct{}

// Ret is 00EE.
type Ret struct{}

// Jmp is 1nnn.
type Jmp struct{ Addr uint16 }

// Call is 2nnn.
type Call struct{ Addr uint16 }

// SkipEqImm is 3xkk.
type SkipEqImm struct {
	X uint8
	K uint8
}

// SkipNeImm is 4xkk.
type SkipNeImm struct {
	X uint8
	K uint8
}

// LoadImm is 6xkk.
type LoadImm struct {
	X uint8
	K uint8
}

// AddImm is 7xkk. No carry flag is set.
type AddImm struct {
	X uint8
	K uint8
}

// Move is 8xy0.
type Move struct{ X, Y uint8 }

// And is 8xy2.
type And struct{ X, Y uint8 }

// AddReg is 8xy4. VF is the carry.
type AddReg struct{ X, Y uint8 }

// Sub is 8xy5. VF is set to NOT borrow.
type Sub struct{ X, Y uint8 }

// Shr is 8xy6. Y is ignored and VF gets the bit shifted out.
type Shr struct{ X uint8 }

// SkipNeReg is 9xy0.
type SkipNeReg struct{ X, Y uint8 }

// LoadI is Annn.
type LoadI struct{ Addr uint16 }

// Rand is Cxkk.
type Rand struct {
	X uint8
	K uint8
}

// Draw is Dxyn.
type Draw struct {
	X uint8
	Y uint8
	N uint8
}

// SkipKey is Ex9E.
type SkipKey struct{ X uint8 }

// SkipNoKey is ExA1.
type SkipNoKey struct{ X uint8 }

// GetDelay is Fx07.
type GetDelay struct{ X uint8 }

// WaitKey is Fx0A.
type WaitKey struct{ X uint8 }

// SetDelay is Fx15.
type SetDelay struct{ X uint8 }

// AddI is Fx1E.
type AddI struct{ X uint8 }

// Font is Fx29.
type Font struct{ X uint8 }

// BCD is Fx33.
type BCD struct{ X uint8 }

// Store is Fx55. V0 through VX inclusive are written starting at I.
type Store struct{ X uint8 }

// Load is Fx65. V0 through VX inclusive are read starting at I.
type Load struct{ X uint8 }

func (Cls) instruction()       {}
func (Ret) instruction()       {}
func (Jmp) instruction()       {}
func (Call) instruction()      {}
func (SkipEqImm) instruction() {}
func (SkipNeImm) instruction() {}
func (LoadImm) instruction()   {}
func (AddImm) instruction()    {}
func (Move) instruction()      {}
func (And) instruction()       {}
func (AddReg) instruction()    {}
func (Sub) instruction()       {}
func (Shr) instruction()       {}
func (SkipNeReg) instruction() {}
func (LoadI) instruction()     {}
func (Rand) instruction()      {}
func (Draw) instruction()      {}
func (SkipKey) instruction()   {}
func (SkipNoKey) instruction() {}
func (GetDelay) instruction()  {}
func (WaitKey) instruction()   {}
func (SetDelay) instruction()  {}
func (AddI) instruction()      {}
func (Font) instruction()      {}
func (BCD) instruction()       {}
func (Store) instruction()     {}
func (Load) instruction()      {}

// Field extraction. Nibbles are a,b,c,d from high to low.
func x(op uint16) uint8    { return uint8((op & 0x0F00) >> 8) }
func y(op uint16) uint8    { return uint8((op & 0x00F0) >> 4) }
func n(op uint16) uint8    { return uint8(op & 0x000F) }
func kk(op uint16) uint8   { return uint8(op & 0x00FF) }
func nnn(op uint16) uint16 { return op & 0x0FFF }

// Decode classifies op by its top nibble and then, for families with
// sub-opcodes, by the secondary field. Anything else is an InvalidOpcode.
func Decode(op uint16) (Instruction, error) {
	switch op & 0xF000 {
	case 0x0000:
		// Only the two exact values are valid here (no SYS nnn).
		switch op {
		case 0x00E0:
			return Cls{}, nil
		case 0x00EE:
			return Ret{}, nil
		}
	case 0x1000:
		return Jmp{nnn(op)}, nil
	case 0x2000:
		return Call{nnn(op)}, nil
	case 0x3000:
		return SkipEqImm{x(op), kk(op)}, nil
	case 0x4000:
		return SkipNeImm{x(op), kk(op)}, nil
	case 0x6000:
		return LoadImm{x(op), kk(op)}, nil
	case 0x7000:
		return AddImm{x(op), kk(op)}, nil
	case 0x8000:
		switch n(op) {
		case 0x0:
			return Move{x(op), y(op)}, nil
		case 0x2:
			return And{x(op), y(op)}, nil
		case 0x4:
			return AddReg{x(op), y(op)}, nil
		case 0x5:
			return Sub{x(op), y(op)}, nil
		case 0x6:
			return Shr{x(op)}, nil
		}
	case 0x9000:
		if n(op) == 0x0 {
			return SkipNeReg{x(op), y(op)}, nil
		}
	case 0xA000:
		return LoadI{nnn(op)}, nil
	case 0xC000:
		return Rand{x(op), kk(op)}, nil
	case 0xD000:
		return Draw{x(op), y(op), n(op)}, nil
	case 0xE000:
		switch kk(op) {
		case 0x9E:
			return SkipKey{x(op)}, nil
		case 0xA1:
			return SkipNoKey{x(op)}, nil
		}
	case 0xF000:
		switch kk(op) {
		case 0x07:
			return GetDelay{x(op)}, nil
		case 0x0A:
			return WaitKey{x(op)}, nil
		case 0x15:
			return SetDelay{x(op)}, nil
		case 0x1E:
			return AddI{x(op)}, nil
		case 0x29:
			return Font{x(op)}, nil
		case 0x33:
			return BCD{x(op)}, nil
		case 0x55:
			return Store{x(op)}, nil
		case 0x65:
			return Load{x(op)}, nil
		}
	}
	return nil, InvalidOpcode{op}
}

func (Cls) String() string         { return "cls" }
func (Ret) String() string         { return "ret" }
func (i Jmp) String() string       { return fmt.Sprintf("jmp    0x%.3X", i.Addr) }
func (i Call) String() string      { return fmt.Sprintf("jsr    0x%.3X", i.Addr) }
func (i SkipEqImm) String() string { return fmt.Sprintf("skeq   v%X, 0x%.2X", i.X, i.K) }
func (i SkipNeImm) String() string { return fmt.Sprintf("skne   v%X, 0x%.2X", i.X, i.K) }
func (i LoadImm) String() string   { return fmt.Sprintf("mov    v%X, 0x%.2X", i.X, i.K) }
func (i AddImm) String() string    { return fmt.Sprintf("add    v%X, 0x%.2X", i.X, i.K) }
func (i Move) String() string      { return fmt.Sprintf("mov    v%X, v%X", i.X, i.Y) }
func (i And) String() string       { return fmt.Sprintf("and    v%X, v%X", i.X, i.Y) }
func (i AddReg) String() string    { return fmt.Sprintf("add    v%X, v%X", i.X, i.Y) }
func (i Sub) String() string       { return fmt.Sprintf("sub    v%X, v%X", i.X, i.Y) }
func (i Shr) String() string       { return fmt.Sprintf("shr    v%X", i.X) }
func (i SkipNeReg) String() string { return fmt.Sprintf("skne   v%X, v%X", i.X, i.Y) }
func (i LoadI) String() string     { return fmt.Sprintf("mvi    0x%.3X", i.Addr) }
func (i Rand) String() string      { return fmt.Sprintf("rand   v%X, 0x%.2X", i.X, i.K) }
func (i Draw) String() string      { return fmt.Sprintf("sprite v%X, v%X, %d", i.X, i.Y, i.N) }
func (i SkipKey) String() string   { return fmt.Sprintf("skpr   v%X", i.X) }
func (i SkipNoKey) String() string { return fmt.Sprintf("skup   v%X", i.X) }
func (i GetDelay) String() string  { return fmt.Sprintf("gdelay v%X", i.X) }
func (i WaitKey) String() string   { return fmt.Sprintf("key    v%X", i.X) }
func (i SetDelay) String() string  { return fmt.Sprintf("sdelay v%X", i.X) }
func (i AddI) String() string      { return fmt.Sprintf("adi    v%X", i.X) }
func (i Font) String() string      { return fmt.Sprintf("font   v%X", i.X) }
func (i BCD) String() string       { return fmt.Sprintf("bcd    v%X", i.X) }
func (i Store) String() string     { return fmt.Sprintf("str    v0-v%X", i.X) }
func (i Load) String() string      { return fmt.Sprintf("ldr    v0-v%X", i.X) }
