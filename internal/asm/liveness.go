package asm

import (
	"cinder/internal/diag"
)

// RegSet is a set of virtual registers.
type RegSet map[VirtualRegister]struct{}

// Has reports membership.
func (s RegSet) Has(r VirtualRegister) bool {
	_, ok := s[r]
	return ok
}

// Add inserts a register.
func (s RegSet) Add(r VirtualRegister) { s[r] = struct{}{} }

// Clone copies the set.
func (s RegSet) Clone() RegSet {
	out := make(RegSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

func (s RegSet) union(other RegSet) {
	for r := range other {
		s[r] = struct{}{}
	}
}

func (s RegSet) equal(other RegSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Liveness computes, for every op index, the set of registers live just
// before that op: used by some later op before any redefinition.
//
// The walk is backward over the flattened op list, block-boundary aware:
// at an unconditional non-call jump the live set is reset to the live-in
// of the jump's target rather than accumulated, because liveness does not
// flow through a non-fallthrough edge. Conditional jumps merge the
// target's live-in into the fallthrough set. The analysis iterates to a
// fixed point because backward edges feed targets whose live-in grows
// monotonically.
func Liveness(ops []Op) []RegSet {
	labels := labelIndex(ops)
	liveIn := make([]RegSet, len(ops))
	for i := range liveIn {
		liveIn[i] = make(RegSet)
	}

	targetLiveIn := func(l Label) RegSet {
		idx, ok := labels[l]
		if !ok {
			diag.Internalf("liveness", "jump to undefined label %s", l)
		}
		return liveIn[idx]
	}

	for changed := true; changed; {
		changed = false
		for i := len(ops) - 1; i >= 0; i-- {
			op := &ops[i]

			var out RegSet
			switch {
			case op.Kind == OpJump:
				// Reset rule: control only continues at the target.
				out = targetLiveIn(op.Label).Clone()
			case op.IsUnconditionalJump():
				// ret/rvrt/computed jump: no known successor.
				out = make(RegSet)
			default:
				out = make(RegSet)
				if i+1 < len(ops) {
					out = liveIn[i+1].Clone()
				}
				if op.Kind == OpJumpIfNotEq || op.Kind == OpJumpIfNotZero {
					out.union(targetLiveIn(op.Label))
				}
			}

			for _, d := range op.Defs() {
				delete(out, d)
			}
			for _, u := range op.Uses() {
				out.Add(u)
			}

			if !liveIn[i].equal(out) {
				liveIn[i] = out
				changed = true
			}
		}
	}
	return liveIn
}
