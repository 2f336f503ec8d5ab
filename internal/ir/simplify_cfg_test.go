package ir

import (
	"testing"

	"cinder/internal/source"
)

func TestSimplifyCFGDropsUnreachable(t *testing.T) {
	c := NewContext()
	fn := c.NewFunc("test", source.Span{})
	entry := c.NewBlock(fn, "entry")
	dead := c.NewBlock(fn, "dead")
	zero := c.AddConstant(UintConstant(0, 64))

	c.AppendInstr(entry, Instruction{Kind: InstrRet, Ret: RetInstr{Val: zero}}, UnitType(), source.Span{})
	c.AppendInstr(dead, Instruction{Kind: InstrRet, Ret: RetInstr{Val: zero}}, UnitType(), source.Span{})

	if !c.SimplifyCFG(fn) {
		t.Fatal("expected simplification to report a change")
	}
	f := c.Func(fn)
	if len(f.Blocks) != 1 || f.Blocks[0] != entry {
		t.Errorf("expected only the entry block to survive, got %v", f.Blocks)
	}
}

func TestSimplifyCFGCollapsesBranchChain(t *testing.T) {
	c := NewContext()
	fn := c.NewFunc("test", source.Span{})
	entry := c.NewBlock(fn, "entry")
	hop1 := c.NewBlock(fn, "hop1")
	hop2 := c.NewBlock(fn, "hop2")
	exit := c.NewBlock(fn, "exit")
	zero := c.AddConstant(UintConstant(0, 64))

	c.AppendInstr(entry, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: hop1}}, UnitType(), source.Span{})
	c.AppendInstr(hop1, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: hop2}}, UnitType(), source.Span{})
	c.AppendInstr(hop2, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: exit}}, UnitType(), source.Span{})
	c.AppendInstr(exit, Instruction{Kind: InstrRet, Ret: RetInstr{Val: zero}}, UnitType(), source.Span{})

	c.SimplifyCFG(fn)

	f := c.Func(fn)
	// The entry itself is a trivial branch block, so it redirects straight
	// to exit and the hops become unreachable.
	if f.Entry != exit {
		t.Errorf("expected entry to collapse to exit, got block %d", f.Entry)
	}
	if len(f.Blocks) != 1 {
		t.Errorf("expected 1 surviving block, got %d", len(f.Blocks))
	}
}

// TestSimplifyCFGNoDanglingTargets checks reachability completeness: after
// simplification every remaining jump target is still in the function.
func TestSimplifyCFGNoDanglingTargets(t *testing.T) {
	c := NewContext()
	fn := c.NewFunc("test", source.Span{})
	entry := c.NewBlock(fn, "entry")
	then := c.NewBlock(fn, "then")
	els := c.NewBlock(fn, "else")
	exit := c.NewBlock(fn, "exit")
	orphan := c.NewBlock(fn, "orphan")
	cond := c.AddConstant(BoolConstant(false))
	zero := c.AddConstant(UintConstant(0, 64))

	c.AppendInstr(entry, Instruction{
		Kind:       InstrCondBranch,
		CondBranch: CondBranchInstr{Cond: cond, Then: then, Else: els},
	}, UnitType(), source.Span{})
	c.AppendInstr(then, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: exit}}, UnitType(), source.Span{})
	c.AppendInstr(els, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: exit}}, UnitType(), source.Span{})
	c.AppendInstr(exit, Instruction{Kind: InstrRet, Ret: RetInstr{Val: zero}}, UnitType(), source.Span{})
	c.AppendInstr(orphan, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: exit}}, UnitType(), source.Span{})

	c.SimplifyCFG(fn)

	f := c.Func(fn)
	present := make(map[BlockID]bool)
	for _, bid := range f.Blocks {
		present[bid] = true
	}
	if present[orphan] {
		t.Error("orphan block should have been dropped")
	}
	for _, bid := range f.Blocks {
		for _, succ := range c.Successors(c.Block(bid)) {
			if !present[succ] {
				t.Errorf("block %d targets removed block %d", bid, succ)
			}
		}
	}
}
