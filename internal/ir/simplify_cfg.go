package ir

// SimplifyCFG performs control flow graph simplification on a function:
//
//  1. Redirect branches through empty branch-only blocks (chains collapsed)
//  2. Drop blocks unreachable from the entry
//
// Reachability is a transitive closure over successor edges resolved via
// the successor map: marking is monotone and the graph is finite, so one
// worklist pass terminates. Returns true if the function changed.
func (c *Context) SimplifyCFG(fn FuncID) bool {
	f := c.Func(fn)
	if f == nil || len(f.Blocks) == 0 {
		return false
	}

	changed := c.redirectTrivialBranches(f)

	reachable := c.reachableBlocks(f)
	if len(reachable) == len(f.Blocks) {
		return changed
	}

	kept := make([]BlockID, 0, len(reachable))
	for _, bid := range f.Blocks {
		if reachable[bid] {
			kept = append(kept, bid)
		}
	}
	f.Blocks = kept
	return true
}

// LabelMap resolves block labels to their position in the function's block
// list.
func (c *Context) LabelMap(f *Function) map[string]int {
	m := make(map[string]int, len(f.Blocks))
	for i, bid := range f.Blocks {
		if b := c.Block(bid); b != nil {
			m[b.Label] = i
		}
	}
	return m
}

// redirectTrivialBranches rewrites terminators that target a block holding
// nothing but an unconditional branch, following chains to the final
// target.
func (c *Context) redirectTrivialBranches(f *Function) bool {
	isTrivial := func(bid BlockID) (BlockID, bool) {
		b := c.Block(bid)
		if b == nil || len(b.Instrs) != 1 {
			return NoBlockID, false
		}
		v := c.Value(b.Instrs[0])
		if v.Instr.Kind != InstrBranch {
			return NoBlockID, false
		}
		return v.Instr.Branch.Target, true
	}

	redirects := make(map[BlockID]BlockID)
	for _, bid := range f.Blocks {
		target, ok := isTrivial(bid)
		if !ok {
			continue
		}
		visited := map[BlockID]bool{bid: true}
		for {
			next, trivial := isTrivial(target)
			if !trivial || visited[target] {
				break
			}
			visited[target] = true
			target = next
		}
		redirects[bid] = target
	}
	if len(redirects) == 0 {
		return false
	}

	redirect := func(id BlockID) BlockID {
		if to, ok := redirects[id]; ok && to != id {
			return to
		}
		return id
	}

	changed := false
	for _, bid := range f.Blocks {
		term := c.Terminator(c.Block(bid))
		if !term.IsValid() {
			continue
		}
		in := &c.values[term].Instr
		switch in.Kind {
		case InstrBranch:
			if to := redirect(in.Branch.Target); to != in.Branch.Target {
				in.Branch.Target = to
				changed = true
			}
		case InstrCondBranch:
			if to := redirect(in.CondBranch.Then); to != in.CondBranch.Then {
				in.CondBranch.Then = to
				changed = true
			}
			if to := redirect(in.CondBranch.Else); to != in.CondBranch.Else {
				in.CondBranch.Else = to
				changed = true
			}
		}
	}
	if to := redirect(f.Entry); to != f.Entry {
		f.Entry = to
		changed = true
	}
	return changed
}

// reachableBlocks marks every block reachable from the entry with a
// worklist walk over successor edges.
func (c *Context) reachableBlocks(f *Function) map[BlockID]bool {
	reachable := make(map[BlockID]bool, len(f.Blocks))
	worklist := []BlockID{f.Entry}
	reachable[f.Entry] = true
	for len(worklist) > 0 {
		bid := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, succ := range c.Successors(c.Block(bid)) {
			if !reachable[succ] {
				reachable[succ] = true
				worklist = append(worklist, succ)
			}
		}
	}
	return reachable
}
