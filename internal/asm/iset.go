package asm

import (
	"strings"

	"cinder/internal/diag"
)

// AbstractInstructionSet is the op stream of one function before register
// allocation: virtual registers, symbolic labels.
type AbstractInstructionSet struct {
	FuncName string
	Ops      []Op
}

// AllocatedInstructionSet is the op stream after allocation: every
// register operand is fixed. Labels are still symbolic; they resolve at
// serialization.
type AllocatedInstructionSet struct {
	FuncName string
	Ops      []Op
}

// VerifyAllocated checks that no virtual register survived allocation.
// A leftover virtual is a bug in the allocator, not in user input.
func (s *AllocatedInstructionSet) VerifyAllocated() {
	for i := range s.Ops {
		op := &s.Ops[i]
		for _, r := range op.Defs() {
			if r.IsVirtual() {
				diag.Internalf("regalloc", "virtual register %s survived allocation in %s", r, s.FuncName)
			}
		}
		for _, r := range op.Uses() {
			if r.IsVirtual() {
				diag.Internalf("regalloc", "virtual register %s survived allocation in %s", r, s.FuncName)
			}
		}
	}
}

func (s *AbstractInstructionSet) String() string {
	var b strings.Builder
	b.WriteString(s.FuncName)
	b.WriteString(":\n")
	for i := range s.Ops {
		op := &s.Ops[i]
		if op.Kind != OpLabel {
			b.WriteString("  ")
		}
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *AllocatedInstructionSet) String() string {
	var b strings.Builder
	b.WriteString(s.FuncName)
	b.WriteString(":\n")
	for i := range s.Ops {
		op := &s.Ops[i]
		if op.Kind != OpLabel {
			b.WriteString("  ")
		}
		b.WriteString(op.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// labelIndex maps every label definition to its op index.
func labelIndex(ops []Op) map[Label]int {
	m := make(map[Label]int)
	for i := range ops {
		if ops[i].Kind == OpLabel {
			m[ops[i].Label] = i
		}
	}
	return m
}
