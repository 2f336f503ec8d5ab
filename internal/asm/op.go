package asm

import (
	"fmt"
	"strings"

	"cinder/internal/isa"
	"cinder/internal/source"
)

// DataID indexes an entry of the data section.
type DataID uint32

// OpKind separates real machine instructions from organizational
// pseudo-ops that exist only before serialization.
type OpKind uint8

const (
	// OpMachine is a real machine instruction over virtual registers.
	OpMachine OpKind = iota
	// OpLabel defines a jump target at this position.
	OpLabel
	// OpJump transfers to a label unconditionally.
	OpJump
	// OpJumpIfNotEq transfers to a label when two registers differ.
	OpJumpIfNotEq
	// OpJumpIfNotZero transfers to a label when a register is nonzero.
	OpJumpIfNotZero
	// OpCall is a call-type jump: it redirects execution but falls
	// through to the next instruction semantically once the callee
	// returns.
	OpCall
	// OpDataLoad loads the address (or word value) of a data section
	// entry into a register. May expand into several machine words at
	// serialization when the resolved offset exceeds the immediate
	// range.
	OpDataLoad
	// OpStackAlloc extends the stack frame by a word count.
	OpStackAlloc
	// OpStackFree shrinks the stack frame by a word count.
	OpStackFree
	// OpComment carries no code, only its comment text.
	OpComment
)

// MachineOp is the payload of an OpMachine op.
type MachineOp struct {
	Opcode isa.Opcode
	HasDst bool
	Dst    VirtualRegister
	Srcs   []VirtualRegister
	Imm    uint32
}

// Op is one abstract assembly instruction.
type Op struct {
	Kind OpKind

	Machine MachineOp

	// Label payload: definition target for OpLabel, jump target for the
	// jump kinds.
	Label Label
	// Cond registers for conditional jumps: [a, b] or [a].
	Cond []VirtualRegister
	// Callee names the target function of OpCall.
	Callee string
	// Data identifies the data section entry of OpDataLoad; Dst is in
	// Machine.Dst.
	Data DataID
	// Words is the size operand of stack alloc/free ops.
	Words uint64

	// Span ties the op to originating source for diagnostics and the
	// source map.
	Span source.Span
	// Comment is free-form human-readable context.
	Comment string
}

// NewMachineOp builds a plain machine op with a destination.
func NewMachineOp(opcode isa.Opcode, dst VirtualRegister, srcs ...VirtualRegister) Op {
	return Op{Kind: OpMachine, Machine: MachineOp{Opcode: opcode, HasDst: true, Dst: dst, Srcs: srcs}}
}

// NewMachineOpNoDst builds a machine op without a destination register.
func NewMachineOpNoDst(opcode isa.Opcode, srcs ...VirtualRegister) Op {
	return Op{Kind: OpMachine, Machine: MachineOp{Opcode: opcode, Srcs: srcs}}
}

// NewNoop builds a machine no-op.
func NewNoop() Op {
	return Op{Kind: OpMachine, Machine: MachineOp{Opcode: isa.OpNoop}}
}

// WithImm sets the immediate operand.
func (op Op) WithImm(imm uint32) Op {
	op.Machine.Imm = imm
	return op
}

// WithSpan attaches a source span.
func (op Op) WithSpan(sp source.Span) Op {
	op.Span = sp
	return op
}

// WithComment attaches a comment.
func (op Op) WithComment(text string) Op {
	op.Comment = text
	return op
}

// IsNoop reports whether the op is a machine no-op.
func (op *Op) IsNoop() bool {
	return op.Kind == OpMachine && op.Machine.Opcode == isa.OpNoop
}

// Defs returns the registers the op defines.
func (op *Op) Defs() []VirtualRegister {
	switch op.Kind {
	case OpMachine:
		if op.Machine.HasDst {
			return []VirtualRegister{op.Machine.Dst}
		}
	case OpDataLoad:
		return []VirtualRegister{op.Machine.Dst}
	case OpCall:
		// The return-value register is written by the callee.
		return []VirtualRegister{Fixed(isa.RegReturnValue)}
	}
	return nil
}

// Uses returns the registers the op reads.
func (op *Op) Uses() []VirtualRegister {
	switch op.Kind {
	case OpMachine:
		return op.Machine.Srcs
	case OpJumpIfNotEq, OpJumpIfNotZero:
		return op.Cond
	case OpCall:
		return op.Machine.Srcs
	}
	return nil
}

// HasSideEffect reports whether the op must survive dead code elimination
// regardless of whether its results are used.
func (op *Op) HasSideEffect() bool {
	switch op.Kind {
	case OpMachine:
		return op.Machine.Opcode.HasSideEffect()
	case OpJump, OpJumpIfNotEq, OpJumpIfNotZero, OpCall, OpStackAlloc, OpStackFree, OpLabel:
		return true
	}
	return false
}

// IsComputedJump reports whether the op transfers to an address no static
// analysis can bound.
func (op *Op) IsComputedJump() bool {
	return op.Kind == OpMachine && op.Machine.Opcode == isa.OpJmp
}

// IsUnconditionalJump reports whether control never falls through to the
// next op. Calls are excluded: they come back.
func (op *Op) IsUnconditionalJump() bool {
	if op.Kind == OpJump {
		return true
	}
	if op.Kind != OpMachine {
		return false
	}
	switch op.Machine.Opcode {
	case isa.OpJi, isa.OpJmp, isa.OpRet, isa.OpRetd, isa.OpRvrt:
		return true
	}
	return false
}

func (op *Op) String() string {
	var body string
	switch op.Kind {
	case OpMachine:
		parts := make([]string, 0, len(op.Machine.Srcs)+1)
		if op.Machine.HasDst {
			parts = append(parts, op.Machine.Dst.String())
		}
		for _, s := range op.Machine.Srcs {
			parts = append(parts, s.String())
		}
		body = fmt.Sprintf("%-5s %s", op.Machine.Opcode, strings.Join(parts, " "))
		if op.Machine.Opcode.Class() == isa.ClassRRI || op.Machine.Opcode.Class() == isa.ClassRI || op.Machine.Opcode.Class() == isa.ClassI {
			body += fmt.Sprintf(" %d", op.Machine.Imm)
		}
	case OpLabel:
		return op.Label.String() + ":"
	case OpJump:
		body = fmt.Sprintf("jump  %s", op.Label)
	case OpJumpIfNotEq:
		body = fmt.Sprintf("jnei  %s %s %s", op.Cond[0], op.Cond[1], op.Label)
	case OpJumpIfNotZero:
		body = fmt.Sprintf("jnzi  %s %s", op.Cond[0], op.Label)
	case OpCall:
		body = fmt.Sprintf("call  %s", op.Callee)
	case OpDataLoad:
		body = fmt.Sprintf("ldata %s data_%d", op.Machine.Dst, op.Data)
	case OpStackAlloc:
		body = fmt.Sprintf("cfei  %d", op.Words)
	case OpStackFree:
		body = fmt.Sprintf("cfsi  %d", op.Words)
	case OpComment:
		return "; " + op.Comment
	}
	if op.Comment != "" {
		body += "  ; " + op.Comment
	}
	return body
}
