package isa

// Opcode identifies one real CVM machine instruction.
type Opcode uint8

const (
	OpNoop Opcode = iota

	// Arithmetic and logic (register forms)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpSll
	OpSrl
	OpNot

	// Arithmetic and logic (immediate forms)
	OpAddi
	OpSubi
	OpMuli
	OpDivi
	OpAndi
	OpOri
	OpXori
	OpSlli
	OpSrli

	// Comparison
	OpEq
	OpLt
	OpGt

	// Moves and immediates
	OpMove
	OpMovi

	// Memory
	OpLw
	OpSw
	OpLb
	OpSb
	OpMcli
	OpMcl
	OpMcp

	// Stack frame
	OpCfei
	OpCfsi
	OpCfe
	OpCfs

	// Control transfer
	OpJi
	OpJnei
	OpJnzi
	OpJal // jump and link: rA receives the return half-word index
	OpJmp // computed target, register operand
	OpRet
	OpRetd
	OpRvrt

	numOpcodes
)

// OperandClass describes the operand layout of an instruction word.
type OperandClass uint8

const (
	// ClassRRR packs three register operands.
	ClassRRR OperandClass = iota
	// ClassRRI packs two registers and a 12-bit immediate.
	ClassRRI
	// ClassRI packs one register and an 18-bit immediate.
	ClassRI
	// ClassI packs a single 24-bit immediate.
	ClassI
	// ClassR packs a single register operand.
	ClassR
	// ClassNone has no operands.
	ClassNone
)

type opcodeInfo struct {
	name  string
	class OperandClass
}

var opcodeTable = [numOpcodes]opcodeInfo{
	OpNoop: {"noop", ClassNone},

	OpAdd: {"add", ClassRRR},
	OpSub: {"sub", ClassRRR},
	OpMul: {"mul", ClassRRR},
	OpDiv: {"div", ClassRRR},
	OpMod: {"mod", ClassRRR},
	OpAnd: {"and", ClassRRR},
	OpOr:  {"or", ClassRRR},
	OpXor: {"xor", ClassRRR},
	OpSll: {"sll", ClassRRR},
	OpSrl: {"srl", ClassRRR},
	OpNot: {"not", ClassRRR},

	OpAddi: {"addi", ClassRRI},
	OpSubi: {"subi", ClassRRI},
	OpMuli: {"muli", ClassRRI},
	OpDivi: {"divi", ClassRRI},
	OpAndi: {"andi", ClassRRI},
	OpOri:  {"ori", ClassRRI},
	OpXori: {"xori", ClassRRI},
	OpSlli: {"slli", ClassRRI},
	OpSrli: {"srli", ClassRRI},

	OpEq: {"eq", ClassRRR},
	OpLt: {"lt", ClassRRR},
	OpGt: {"gt", ClassRRR},

	OpMove: {"move", ClassRRR},
	OpMovi: {"movi", ClassRI},

	OpLw:   {"lw", ClassRRI},
	OpSw:   {"sw", ClassRRI},
	OpLb:   {"lb", ClassRRI},
	OpSb:   {"sb", ClassRRI},
	OpMcli: {"mcli", ClassRI},
	OpMcl:  {"mcl", ClassRRR},
	OpMcp:  {"mcp", ClassRRR},

	OpCfei: {"cfei", ClassI},
	OpCfsi: {"cfsi", ClassI},
	OpCfe:  {"cfe", ClassR},
	OpCfs:  {"cfs", ClassR},

	OpJi:   {"ji", ClassI},
	OpJnei: {"jnei", ClassRRI},
	OpJnzi: {"jnzi", ClassRI},
	OpJal:  {"jal", ClassRI},
	OpJmp:  {"jmp", ClassR},
	OpRet:  {"ret", ClassR},
	OpRetd: {"retd", ClassRRR},
	OpRvrt: {"rvrt", ClassR},
}

func (o Opcode) Valid() bool { return o < numOpcodes }

func (o Opcode) String() string {
	if !o.Valid() {
		return "op?"
	}
	return opcodeTable[o].name
}

// Class returns the operand layout of the opcode.
func (o Opcode) Class() OperandClass {
	if !o.Valid() {
		return ClassNone
	}
	return opcodeTable[o].class
}

// HasSideEffect reports whether the instruction has an observable effect
// beyond its destination register. Such instructions are never removed by
// dead code elimination.
func (o Opcode) HasSideEffect() bool {
	switch o {
	case OpSw, OpSb, OpMcli, OpMcl, OpMcp,
		OpCfei, OpCfsi, OpCfe, OpCfs,
		OpJi, OpJnei, OpJnzi, OpJal, OpJmp,
		OpRet, OpRetd, OpRvrt:
		return true
	}
	return false
}

// IsControlTransfer reports whether the instruction redirects execution.
func (o Opcode) IsControlTransfer() bool {
	switch o {
	case OpJi, OpJnei, OpJnzi, OpJal, OpJmp, OpRet, OpRetd, OpRvrt:
		return true
	}
	return false
}
