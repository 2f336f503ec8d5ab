// Package backend drives one IR module through the full compilation
// pipeline: verification, IR optimization, lowering to abstract
// assembly, register allocation, and serialization to bytecode.
// Functions compile independently and in parallel; only the final
// layout pass sees the whole module.
package backend

import (
	"cinder/internal/asm"
	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/lower"
)

// maxOptRounds bounds the optimization fixed-point loop. The passes
// individually terminate, but their interleaving is capped so a pass
// bug cannot spin the build.
const maxOptRounds = 8

// StageObserver is notified when a function enters a pipeline stage.
type StageObserver func(Stage)

// CompileFunction runs one function through every per-function stage
// and returns its finalized op stream. User-facing failures are
// reported through rep and return ok=false; broken pipeline invariants
// panic with a diag.ICE. obs may be nil.
func CompileFunction(c *ir.Context, fid ir.FuncID, data *emit.DataSection, ns *lower.Namespace, rep diag.Reporter, obs StageObserver) (*asm.AllocatedInstructionSet, bool) {
	observe := func(s Stage) {
		if obs != nil {
			obs(s)
		}
	}

	observe(StageVerify)
	if err := c.Verify(fid); err != nil {
		diag.Internalf("verify", "function %s: %v", c.Func(fid).Name, err)
	}

	observe(StageOptimize)
	OptimizeFunction(c, fid)

	observe(StageLower)
	set, ok := lower.Function(c, fid, data, ns, rep)
	if !ok {
		return nil, false
	}
	asm.EliminateDeadCode(set)
	asm.Peephole(set)

	observe(StageRegalloc)
	out := asm.Allocate(set)
	asm.Finalize(out, emit.OpSlots)
	return out, true
}

// OptimizeFunction interleaves the IR passes to a fixed point. Each
// pass can expose work for the others: simplification merges blocks
// branch propagation made unconditional, and both strand values for
// dead value elimination.
func OptimizeFunction(c *ir.Context, fid ir.FuncID) {
	cache := ir.NewAnalysisCache()
	for round := 0; round < maxOptRounds; round++ {
		changed := false
		if c.SimplifyCFG(fid) {
			changed = true
			cache.Invalidate(fid)
		}
		if c.PropagateBranchConstants(fid, cache) {
			changed = true
			cache.Invalidate(fid)
		}
		if c.EliminateDeadValues(fid) {
			changed = true
		}
		if !changed {
			return
		}
	}
}
