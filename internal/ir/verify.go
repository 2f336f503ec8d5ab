package ir

import (
	"fmt"
)

// Verify checks structural invariants of a function: every block ends in
// exactly one terminator (its last instruction), no terminator appears
// mid-block, every referenced block belongs to the function, and every
// operand resolves in the value arena. Violations are bugs in whatever
// produced the IR, so they come back as errors for the driver to escalate.
func (c *Context) Verify(fn FuncID) error {
	f := c.Func(fn)
	if f == nil {
		return fmt.Errorf("verify: unknown function %d", fn)
	}
	if !f.Entry.IsValid() {
		return fmt.Errorf("verify %s: missing entry block", f.Name)
	}
	owned := make(map[BlockID]bool, len(f.Blocks))
	for _, bid := range f.Blocks {
		owned[bid] = true
	}
	if !owned[f.Entry] {
		return fmt.Errorf("verify %s: entry block %d not owned by function", f.Name, f.Entry)
	}

	for _, bid := range f.Blocks {
		b := c.Block(bid)
		if b == nil {
			return fmt.Errorf("verify %s: dangling block id %d", f.Name, bid)
		}
		if len(b.Instrs) == 0 {
			return fmt.Errorf("verify %s: block %q is empty", f.Name, b.Label)
		}
		for i, vid := range b.Instrs {
			v := c.Value(vid)
			if v == nil {
				return fmt.Errorf("verify %s: block %q references unknown value %d", f.Name, b.Label, vid)
			}
			if v.Kind != ValueInstr {
				return fmt.Errorf("verify %s: block %q holds non-instruction value %d", f.Name, b.Label, vid)
			}
			isLast := i == len(b.Instrs)-1
			if v.Instr.IsTerminator() != isLast {
				if isLast {
					return fmt.Errorf("verify %s: block %q does not end in a terminator", f.Name, b.Label)
				}
				return fmt.Errorf("verify %s: block %q has a terminator before its end", f.Name, b.Label)
			}
			for _, op := range v.Instr.Operands() {
				if c.Value(op) == nil {
					return fmt.Errorf("verify %s: instruction %d has unresolved operand %d", f.Name, vid, op)
				}
			}
			for _, succ := range v.Instr.Successors() {
				if !owned[succ] {
					return fmt.Errorf("verify %s: block %q targets foreign block %d", f.Name, b.Label, succ)
				}
			}
		}
	}
	return nil
}
