package isa

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

const (
	// WordSize is the CVM word width in bytes.
	WordSize = 8
	// InstrSize is the encoded width of one instruction: half a word.
	InstrSize = 4

	// MaxImm12 bounds the immediate of ClassRRI instructions.
	MaxImm12 = 1<<12 - 1
	// MaxImm18 bounds the immediate of ClassRI instructions.
	MaxImm18 = 1<<18 - 1
	// MaxImm24 bounds the immediate of ClassI instructions. This is also
	// the single-instruction addressable range for stack allocation, in
	// words.
	MaxImm24 = 1<<24 - 1
)

// Instruction is one decoded CVM instruction word.
type Instruction struct {
	Op  Opcode
	A   Register
	B   Register
	C   Register
	Imm uint32
}

// Encode packs the instruction into its 4-byte big-endian wire form:
//
//	op(8) | rA(6) | rB(6) | rC(6) | spare(6)   ClassRRR
//	op(8) | rA(6) | rB(6) | imm(12)            ClassRRI
//	op(8) | rA(6) | imm(18)                    ClassRI
//	op(8) | imm(24)                            ClassI
func (ins Instruction) Encode() ([InstrSize]byte, error) {
	var out [InstrSize]byte
	word := uint32(ins.Op) << 24

	regBits := func(r Register, shift uint) (uint32, error) {
		if !r.Valid() {
			return 0, fmt.Errorf("%s: register %d out of range", ins.Op, r)
		}
		return uint32(r) << shift, nil
	}

	switch ins.Op.Class() {
	case ClassRRR:
		for _, p := range []struct {
			r     Register
			shift uint
		}{{ins.A, 18}, {ins.B, 12}, {ins.C, 6}} {
			bits, err := regBits(p.r, p.shift)
			if err != nil {
				return out, err
			}
			word |= bits
		}
	case ClassRRI:
		if ins.Imm > MaxImm12 {
			return out, fmt.Errorf("%s: immediate %d exceeds 12 bits", ins.Op, ins.Imm)
		}
		a, err := regBits(ins.A, 18)
		if err != nil {
			return out, err
		}
		b, err := regBits(ins.B, 12)
		if err != nil {
			return out, err
		}
		word |= a | b | ins.Imm
	case ClassRI:
		if ins.Imm > MaxImm18 {
			return out, fmt.Errorf("%s: immediate %d exceeds 18 bits", ins.Op, ins.Imm)
		}
		a, err := regBits(ins.A, 18)
		if err != nil {
			return out, err
		}
		word |= a | ins.Imm
	case ClassI:
		if ins.Imm > MaxImm24 {
			return out, fmt.Errorf("%s: immediate %d exceeds 24 bits", ins.Op, ins.Imm)
		}
		word |= ins.Imm
	case ClassR:
		a, err := regBits(ins.A, 18)
		if err != nil {
			return out, err
		}
		word |= a
	case ClassNone:
	}

	binary.BigEndian.PutUint32(out[:], word)
	return out, nil
}

// Decode unpacks a 4-byte wire word. Used by the disassembler and tests.
func Decode(raw [InstrSize]byte) (Instruction, error) {
	word := binary.BigEndian.Uint32(raw[:])
	opByte, err := safecast.Conv[uint8](word >> 24)
	if err != nil {
		return Instruction{}, err
	}
	op := Opcode(opByte)
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("unknown opcode byte %#x", opByte)
	}

	ins := Instruction{Op: op}
	switch op.Class() {
	case ClassRRR:
		ins.A = Register(word >> 18 & 0x3f)
		ins.B = Register(word >> 12 & 0x3f)
		ins.C = Register(word >> 6 & 0x3f)
	case ClassRRI:
		ins.A = Register(word >> 18 & 0x3f)
		ins.B = Register(word >> 12 & 0x3f)
		ins.Imm = word & MaxImm12
	case ClassRI:
		ins.A = Register(word >> 18 & 0x3f)
		ins.Imm = word & MaxImm18
	case ClassI:
		ins.Imm = word & MaxImm24
	case ClassR:
		ins.A = Register(word >> 18 & 0x3f)
	}
	return ins, nil
}

func (ins Instruction) String() string {
	switch ins.Op.Class() {
	case ClassRRR:
		return fmt.Sprintf("%-5s %s %s %s", ins.Op, ins.A, ins.B, ins.C)
	case ClassRRI:
		return fmt.Sprintf("%-5s %s %s %d", ins.Op, ins.A, ins.B, ins.Imm)
	case ClassRI:
		return fmt.Sprintf("%-5s %s %d", ins.Op, ins.A, ins.Imm)
	case ClassI:
		return fmt.Sprintf("%-5s %d", ins.Op, ins.Imm)
	case ClassR:
		return fmt.Sprintf("%-5s %s", ins.Op, ins.A)
	default:
		return ins.Op.String()
	}
}
