package ir

import (
	"testing"

	"cinder/internal/source"
)

// buildDiamond constructs:
//
//	entry -> then, els; then -> exit; els -> exit; exit -> ret
func buildDiamond(t *testing.T) (*Context, FuncID, [4]BlockID) {
	t.Helper()
	c := NewContext()
	fn := c.NewFunc("diamond", source.Span{})
	entry := c.NewBlock(fn, "entry")
	then := c.NewBlock(fn, "then")
	els := c.NewBlock(fn, "else")
	exit := c.NewBlock(fn, "exit")

	cond := c.AddConstant(BoolConstant(true))
	zero := c.AddConstant(UintConstant(0, 64))

	c.AppendInstr(entry, Instruction{
		Kind:       InstrCondBranch,
		CondBranch: CondBranchInstr{Cond: cond, Then: then, Else: els},
	}, UnitType(), source.Span{})
	c.AppendInstr(then, Instruction{
		Kind:   InstrBranch,
		Branch: BranchInstr{Target: exit},
	}, UnitType(), source.Span{})
	c.AppendInstr(els, Instruction{
		Kind:   InstrBranch,
		Branch: BranchInstr{Target: exit},
	}, UnitType(), source.Span{})
	c.AppendInstr(exit, Instruction{
		Kind: InstrRet,
		Ret:  RetInstr{Val: zero},
	}, UnitType(), source.Span{})

	return c, fn, [4]BlockID{entry, then, els, exit}
}

func TestDominatorsDiamond(t *testing.T) {
	c, fn, bbs := buildDiamond(t)
	entry, then, els, exit := bbs[0], bbs[1], bbs[2], bbs[3]

	dom := c.ComputeDominators(fn)
	if dom.Idom[then] != entry {
		t.Errorf("idom(then) should be entry, got %d", dom.Idom[then])
	}
	if dom.Idom[els] != entry {
		t.Errorf("idom(else) should be entry, got %d", dom.Idom[els])
	}
	// Neither branch dominates the join.
	if dom.Idom[exit] != entry {
		t.Errorf("idom(exit) should be entry, got %d", dom.Idom[exit])
	}

	if !dom.Dominates(entry, exit) {
		t.Error("entry should dominate exit")
	}
	if dom.Dominates(then, exit) {
		t.Error("then must not dominate exit")
	}
	if !dom.Dominates(then, then) {
		t.Error("dominance is reflexive")
	}
}

func TestDominatorsLinearChain(t *testing.T) {
	c := NewContext()
	fn := c.NewFunc("chain", source.Span{})
	a := c.NewBlock(fn, "a")
	b := c.NewBlock(fn, "b")
	d := c.NewBlock(fn, "d")
	zero := c.AddConstant(UintConstant(0, 64))

	c.AppendInstr(a, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: b}}, UnitType(), source.Span{})
	c.AppendInstr(b, Instruction{Kind: InstrBranch, Branch: BranchInstr{Target: d}}, UnitType(), source.Span{})
	c.AppendInstr(d, Instruction{Kind: InstrRet, Ret: RetInstr{Val: zero}}, UnitType(), source.Span{})

	dom := c.ComputeDominators(fn)
	if dom.Idom[b] != a || dom.Idom[d] != b {
		t.Errorf("chain idoms wrong: idom(b)=%d idom(d)=%d", dom.Idom[b], dom.Idom[d])
	}
	if !dom.Dominates(a, d) {
		t.Error("a should transitively dominate d")
	}
}

func TestAnalysisCacheInvalidate(t *testing.T) {
	c, fn, _ := buildDiamond(t)
	cache := NewAnalysisCache()

	first := cache.Dominators(c, fn)
	again := cache.Dominators(c, fn)
	if first != again {
		t.Error("cache should return the same tree until invalidated")
	}
	cache.Invalidate(fn)
	fresh := cache.Dominators(c, fn)
	if fresh == first {
		t.Error("invalidate should force recomputation")
	}
}
