package asm

// EliminateDeadCode removes ops that define only registers no later op
// reads and that carry no observable side effect. The walk is reverse,
// maintaining a currently-live set seeded from the liveness analysis; at
// an unconditional non-call jump the set is reseeded from the jump
// target's live-in, mirroring the liveness reset rule.
//
// A computed-address jump anywhere in the function aborts the pass: such
// a jump may target code whose liveness cannot be statically bounded, so
// removing anything would be unsound. Returns true if any op was removed.
func EliminateDeadCode(s *AbstractInstructionSet) bool {
	for i := range s.Ops {
		if s.Ops[i].IsComputedJump() {
			return false
		}
	}

	liveIn := Liveness(s.Ops)
	labels := labelIndex(s.Ops)

	live := make(RegSet)
	keep := make([]bool, len(s.Ops))
	for i := len(s.Ops) - 1; i >= 0; i-- {
		op := &s.Ops[i]

		switch {
		case op.Kind == OpJump:
			live = liveIn[labels[op.Label]].Clone()
		case op.IsUnconditionalJump():
			live = make(RegSet)
		case op.Kind == OpJumpIfNotEq || op.Kind == OpJumpIfNotZero:
			live.union(liveIn[labels[op.Label]])
		}

		defs := op.Defs()
		if len(defs) > 0 && !op.HasSideEffect() {
			dead := true
			for _, d := range defs {
				if live.Has(d) {
					dead = false
					break
				}
			}
			if dead {
				continue
			}
		}
		keep[i] = true

		for _, d := range defs {
			delete(live, d)
		}
		for _, u := range op.Uses() {
			live.Add(u)
		}
	}

	changed := false
	kept := s.Ops[:0]
	for i := range s.Ops {
		if keep[i] {
			kept = append(kept, s.Ops[i])
		} else {
			changed = true
		}
	}
	s.Ops = kept
	return changed
}
