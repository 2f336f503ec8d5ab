package ir

// Block is a straight-line run of instructions ending in exactly one
// terminator, always last. Predecessors are computed, never stored.
type Block struct {
	ID     BlockID
	Func   FuncID
	Label  string
	Instrs []ValueID
}

// Terminator returns the block's terminator value ID, or NoValueID if the
// block is not terminated yet.
func (c *Context) Terminator(b *Block) ValueID {
	if b == nil || len(b.Instrs) == 0 {
		return NoValueID
	}
	last := b.Instrs[len(b.Instrs)-1]
	if v := c.Value(last); v != nil && v.Kind == ValueInstr && v.Instr.IsTerminator() {
		return last
	}
	return NoValueID
}

// Successors returns the statically known successor blocks of b.
func (c *Context) Successors(b *Block) []BlockID {
	term := c.Terminator(b)
	if !term.IsValid() {
		return nil
	}
	return c.values[term].Instr.Successors()
}

// Predecessors computes the predecessors of target within fn by scanning
// every block's terminator.
func (c *Context) Predecessors(fn FuncID, target BlockID) []BlockID {
	f := c.Func(fn)
	if f == nil {
		return nil
	}
	var preds []BlockID
	for _, bid := range f.Blocks {
		for _, succ := range c.Successors(c.Block(bid)) {
			if succ == target {
				preds = append(preds, bid)
				break
			}
		}
	}
	return preds
}

// PredecessorEdgeCount counts incoming CFG edges of target, counting a
// block twice when both sides of its conditional branch land on target.
func (c *Context) PredecessorEdgeCount(fn FuncID, target BlockID) int {
	f := c.Func(fn)
	if f == nil {
		return 0
	}
	count := 0
	for _, bid := range f.Blocks {
		for _, succ := range c.Successors(c.Block(bid)) {
			if succ == target {
				count++
			}
		}
	}
	return count
}
