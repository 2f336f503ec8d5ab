package ir

import (
	"testing"

	"cinder/internal/source"
)

func buildDCEFunc(t *testing.T) (*Context, FuncID, ValueID, ValueID) {
	t.Helper()
	c := NewContext()
	fn := c.NewFunc("test", source.Span{})
	entry := c.NewBlock(fn, "entry")
	one := c.AddConstant(UintConstant(1, 64))

	// Dead chain: unusedB reads unusedA, nothing reads unusedB.
	unusedA := c.AppendInstr(entry, Instruction{
		Kind:   InstrBinary,
		Binary: BinaryInstr{Op: BinAdd, Left: one, Right: one},
	}, UintType(64), source.Span{})
	unusedB := c.AppendInstr(entry, Instruction{
		Kind:   InstrBinary,
		Binary: BinaryInstr{Op: BinMul, Left: unusedA, Right: one},
	}, UintType(64), source.Span{})

	// Side effect whose result is unused: must survive.
	ptr := c.AppendInstr(entry, Instruction{
		Kind:       InstrStackAlloc,
		StackAlloc: StackAllocInstr{Alloc: UintType(64)},
	}, PointerType(), source.Span{})
	c.AppendInstr(entry, Instruction{
		Kind:  InstrStore,
		Store: StoreInstr{Ptr: ptr, Val: one},
	}, UnitType(), source.Span{})

	c.AppendInstr(entry, Instruction{Kind: InstrRet, Ret: RetInstr{Val: one}}, UnitType(), source.Span{})
	return c, fn, unusedA, unusedB
}

func TestEliminateDeadValues(t *testing.T) {
	c, fn, unusedA, unusedB := buildDCEFunc(t)

	if !c.EliminateDeadValues(fn) {
		t.Fatal("expected dead values to be removed")
	}
	entry := c.Block(c.Func(fn).Blocks[0])
	for _, vid := range entry.Instrs {
		if vid == unusedA || vid == unusedB {
			t.Errorf("value v%d should have been removed", vid)
		}
	}
	// store + stack_alloc + ret survive.
	if len(entry.Instrs) != 3 {
		t.Errorf("expected 3 surviving instructions, got %d", len(entry.Instrs))
	}
}

func TestEliminateDeadValuesIdempotent(t *testing.T) {
	c, fn, _, _ := buildDCEFunc(t)
	c.EliminateDeadValues(fn)
	first := append([]ValueID(nil), c.Block(c.Func(fn).Blocks[0]).Instrs...)

	if c.EliminateDeadValues(fn) {
		t.Error("second run should find nothing to remove")
	}
	second := c.Block(c.Func(fn).Blocks[0]).Instrs
	if len(first) != len(second) {
		t.Fatalf("instruction count changed between runs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("instruction %d changed between runs", i)
		}
	}
}

func TestEliminateDeadValuesSkipsComputedJump(t *testing.T) {
	c := NewContext()
	fn := c.NewFunc("test", source.Span{})
	entry := c.NewBlock(fn, "entry")
	one := c.AddConstant(UintConstant(1, 64))

	dead := c.AppendInstr(entry, Instruction{
		Kind:   InstrBinary,
		Binary: BinaryInstr{Op: BinAdd, Left: one, Right: one},
	}, UintType(64), source.Span{})
	target := c.AppendInstr(entry, Instruction{
		Kind:   InstrBinary,
		Binary: BinaryInstr{Op: BinAdd, Left: one, Right: one},
	}, UintType(64), source.Span{})
	c.AppendInstr(entry, Instruction{
		Kind:         InstrJumpIndirect,
		JumpIndirect: JumpIndirectInstr{Target: target},
	}, UnitType(), source.Span{})

	if c.EliminateDeadValues(fn) {
		t.Error("computed jump must abort the pass for the function")
	}
	entryBlk := c.Block(c.Func(fn).Blocks[0])
	found := false
	for _, vid := range entryBlk.Instrs {
		if vid == dead {
			found = true
		}
	}
	if !found {
		t.Error("no instruction may be removed when the pass is aborted")
	}
}
