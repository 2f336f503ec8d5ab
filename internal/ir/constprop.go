package ir

// PropagateBranchConstants rewrites uses of a compared register to the
// constant it was compared against, inside the region where the comparison
// is known to hold.
//
// Pattern: a conditional branch whose condition is `cmp eq v1, v2` with
// exactly one of v1/v2 constant, and whose taken target has exactly one
// predecessor. Every use of the non-constant operand inside the region
// dominated by the taken target is then rewritten to the constant.
//
// The traversal is an explicit preorder/postorder walk of the dominator
// tree using (block, next-child) frames: a substitution becomes active on
// preorder entry of the taken target and is retracted on postorder exit of
// its subtree, restoring whatever substitution was shadowed. Returns true
// if any operand was rewritten.
func (c *Context) PropagateBranchConstants(fn FuncID, cache *AnalysisCache) bool {
	f := c.Func(fn)
	if f == nil || !f.Entry.IsValid() {
		return false
	}
	dom := cache.Dominators(c, fn)

	type pending struct {
		from ValueID
		to   ValueID
	}
	type saved struct {
		from ValueID
		prev ValueID
		had  bool
	}
	type frame struct {
		block  BlockID
		child  int
		pushed []saved
	}

	// substForBlock holds substitutions that become active when the
	// keyed block is entered.
	substForBlock := make(map[BlockID][]pending)
	subst := make(map[ValueID]ValueID)
	changed := false

	apply := func(bid BlockID) {
		if len(subst) == 0 {
			return
		}
		b := c.Block(bid)
		for _, vid := range b.Instrs {
			in := &c.values[vid].Instr
			for _, op := range in.Operands() {
				if to, ok := subst[op]; ok {
					in.ReplaceOperand(op, to)
					changed = true
				}
			}
		}
	}

	// matchBranch inspects bid's terminator for the rewrite pattern and
	// registers the substitution for the taken target.
	matchBranch := func(bid BlockID) {
		term := c.Terminator(c.Block(bid))
		if !term.IsValid() {
			return
		}
		in := &c.values[term].Instr
		if in.Kind != InstrCondBranch {
			return
		}
		cond := c.Value(in.CondBranch.Cond)
		if cond == nil || cond.Kind != ValueInstr || cond.Instr.Kind != InstrCmp {
			return
		}
		cmp := cond.Instr.Cmp
		if cmp.Pred != CmpEqual {
			return
		}
		left, right := c.Value(cmp.Left), c.Value(cmp.Right)
		if left == nil || right == nil {
			return
		}
		var from, to ValueID
		switch {
		case left.IsConstant() && !right.IsConstant():
			from, to = cmp.Right, cmp.Left
		case right.IsConstant() && !left.IsConstant():
			from, to = cmp.Left, cmp.Right
		default:
			return
		}
		taken := in.CondBranch.Then
		// The taken block must be entered only through this edge: one
		// incoming edge, and the fall-through side must not alias it.
		if taken == in.CondBranch.Else || c.PredecessorEdgeCount(fn, taken) != 1 {
			return
		}
		substForBlock[taken] = append(substForBlock[taken], pending{from: from, to: to})
	}

	stack := []frame{{block: f.Entry}}
	enter := func(fr *frame) {
		for _, p := range substForBlock[fr.block] {
			prev, had := subst[p.from]
			fr.pushed = append(fr.pushed, saved{from: p.from, prev: prev, had: had})
			subst[p.from] = p.to
		}
		apply(fr.block)
		matchBranch(fr.block)
	}
	enter(&stack[0])

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := dom.Children[top.block]
		if top.child < len(kids) {
			next := kids[top.child]
			top.child++
			stack = append(stack, frame{block: next})
			enter(&stack[len(stack)-1])
			continue
		}
		// Postorder exit: retract this block's substitutions in reverse,
		// restoring shadowed entries.
		for i := len(top.pushed) - 1; i >= 0; i-- {
			s := top.pushed[i]
			if s.had {
				subst[s.from] = s.prev
			} else {
				delete(subst, s.from)
			}
		}
		stack = stack[:len(stack)-1]
	}
	return changed
}
