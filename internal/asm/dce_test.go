package asm

import (
	"testing"

	"cinder/internal/isa"
)

func TestEliminateDeadCodeRemovesDeadChain(t *testing.T) {
	v0, v1 := Virtual(0), Virtual(1)
	s := &AbstractInstructionSet{
		FuncName: "f",
		Ops: []Op{
			NewMachineOp(isa.OpMovi, v0).WithImm(7),
			NewMachineOp(isa.OpMove, v1, v0),
			NewMachineOpNoDst(isa.OpRet, Fixed(isa.RegZero)),
		},
	}

	if !EliminateDeadCode(s) {
		t.Fatal("expected dead chain to be removed")
	}
	if len(s.Ops) != 1 || s.Ops[0].Machine.Opcode != isa.OpRet {
		t.Fatalf("got %d ops after dce:\n%s", len(s.Ops), s)
	}
}

func TestEliminateDeadCodeKeepsSideEffects(t *testing.T) {
	v0, v1 := Virtual(0), Virtual(1)
	s := &AbstractInstructionSet{
		FuncName: "f",
		Ops: []Op{
			NewMachineOp(isa.OpMovi, v0).WithImm(7),
			NewMachineOp(isa.OpMovi, v1).WithImm(0),
			// Store has an observable effect even though nothing reads v0
			// afterwards.
			NewMachineOpNoDst(isa.OpSw, v1, v0),
			NewMachineOpNoDst(isa.OpRet, Fixed(isa.RegZero)),
		},
	}

	EliminateDeadCode(s)

	if len(s.Ops) != 4 {
		t.Fatalf("store or its inputs were removed:\n%s", s)
	}
}

func TestEliminateDeadCodeAbortsOnComputedJump(t *testing.T) {
	v0, v1 := Virtual(0), Virtual(1)
	s := &AbstractInstructionSet{
		FuncName: "f",
		Ops: []Op{
			NewMachineOp(isa.OpMovi, v0).WithImm(7),
			NewMachineOp(isa.OpMovi, v1).WithImm(64),
			NewMachineOpNoDst(isa.OpJmp, v1),
		},
	}

	if EliminateDeadCode(s) {
		t.Fatal("dce must not touch a function with a computed jump")
	}
	if len(s.Ops) != 3 {
		t.Fatalf("ops changed despite abort:\n%s", s)
	}
}

func TestEliminateDeadCodeIdempotent(t *testing.T) {
	v0, v1 := Virtual(0), Virtual(1)
	s := &AbstractInstructionSet{
		FuncName: "f",
		Ops: []Op{
			NewMachineOp(isa.OpMovi, v0).WithImm(7),
			NewMachineOp(isa.OpMove, v1, v0),
			NewMachineOpNoDst(isa.OpRet, v1),
		},
	}

	if EliminateDeadCode(s) {
		t.Fatal("first pass removed live ops")
	}
	if len(s.Ops) != 3 {
		t.Fatalf("live chain shrank:\n%s", s)
	}
}
