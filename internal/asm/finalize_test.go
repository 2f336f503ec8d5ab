package asm

import (
	"testing"

	"cinder/internal/isa"
)

func sizeOneWordEach(op *Op) int {
	if op.Kind == OpLabel || op.Kind == OpComment {
		return 0
	}
	return 1
}

func TestFinalizePadsOddWordCount(t *testing.T) {
	s := &AllocatedInstructionSet{
		FuncName: "f",
		Ops: []Op{
			NewMachineOp(isa.OpMovi, Fixed(isa.AllocatableAt(0))).WithImm(1),
			{Kind: OpLabel, Label: Label(0)},
			NewMachineOpNoDst(isa.OpRet, Fixed(isa.RegZero)),
		},
	}

	Finalize(s, sizeOneWordEach)

	if len(s.Ops) != 4 {
		t.Fatalf("got %d ops, want padding noop appended", len(s.Ops))
	}
	if !s.Ops[3].IsNoop() {
		t.Fatalf("padding op is %s, want noop", s.Ops[3].String())
	}
}

func TestFinalizeLeavesEvenWordCount(t *testing.T) {
	s := &AllocatedInstructionSet{
		FuncName: "f",
		Ops: []Op{
			NewMachineOp(isa.OpMovi, Fixed(isa.AllocatableAt(0))).WithImm(1),
			NewMachineOpNoDst(isa.OpRet, Fixed(isa.RegZero)),
		},
	}

	Finalize(s, sizeOneWordEach)

	if len(s.Ops) != 2 {
		t.Fatalf("even stream padded to %d ops", len(s.Ops))
	}
}

func TestFinalizeCountsVariableSizeOps(t *testing.T) {
	dataLoad := Op{Kind: OpDataLoad, Machine: MachineOp{HasDst: true, Dst: Fixed(isa.AllocatableAt(0))}, Data: 0}
	s := &AllocatedInstructionSet{
		FuncName: "f",
		Ops: []Op{
			dataLoad,
			NewMachineOpNoDst(isa.OpRet, Fixed(isa.RegZero)),
		},
	}

	// A data load that expands to three words tips the total to odd.
	size := func(op *Op) int {
		if op.Kind == OpDataLoad {
			return 3
		}
		return sizeOneWordEach(op)
	}
	Finalize(s, size)

	if len(s.Ops) != 3 || !s.Ops[2].IsNoop() {
		t.Fatalf("expanded data load not accounted for: %d ops", len(s.Ops))
	}
}
