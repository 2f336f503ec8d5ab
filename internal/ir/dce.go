package ir

// EliminateDeadValues removes instructions whose results are never used
// and that carry no observable side effect. Removing one instruction can
// make its operands dead, so the pass loops until nothing changes; the
// loop is a local fixed point bounded by the instruction count. Functions
// containing a computed jump are skipped wholesale: such jumps may target
// code whose uses cannot be statically bounded. Returns true if anything
// was removed.
func (c *Context) EliminateDeadValues(fn FuncID) bool {
	f := c.Func(fn)
	if f == nil {
		return false
	}
	for _, bid := range f.Blocks {
		for _, vid := range c.Block(bid).Instrs {
			if c.values[vid].Instr.Kind == InstrJumpIndirect {
				return false
			}
		}
	}

	changed := false
	for {
		uses := make(map[ValueID]int)
		for _, bid := range f.Blocks {
			for _, vid := range c.Block(bid).Instrs {
				for _, op := range c.values[vid].Instr.Operands() {
					uses[op]++
				}
			}
		}

		removedAny := false
		for _, bid := range f.Blocks {
			b := c.Block(bid)
			kept := b.Instrs[:0]
			for _, vid := range b.Instrs {
				in := &c.values[vid].Instr
				if uses[vid] == 0 && !in.HasSideEffect() {
					removedAny = true
					continue
				}
				kept = append(kept, vid)
			}
			b.Instrs = kept
		}
		if !removedAny {
			break
		}
		changed = true
	}
	return changed
}
