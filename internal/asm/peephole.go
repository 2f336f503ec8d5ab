package asm

import (
	"cinder/internal/isa"
)

// RemoveRedundantJumps replaces a jump whose target label is the
// immediately following op with a no-op. Returns true if anything changed.
func RemoveRedundantJumps(s *AbstractInstructionSet) bool {
	changed := false
	for i := 0; i+1 < len(s.Ops); i++ {
		op := &s.Ops[i]
		next := &s.Ops[i+1]
		if op.Kind == OpJump && next.Kind == OpLabel && op.Label == next.Label {
			noop := NewNoop()
			noop.Span = op.Span
			noop.Comment = op.Comment
			s.Ops[i] = noop
			changed = true
		}
	}
	return changed
}

// RemoveDeadMoves replaces register-to-register moves whose destination is
// never subsequently used with no-ops. "Used" is decided against the
// full-instruction use-set of the whole stream, not local liveness.
// Removing one dead move can expose another (its source may feed an
// earlier move), so the rewrite loops until a pass finds nothing: a local
// fixed point. Returns true if anything changed.
func RemoveDeadMoves(s *AbstractInstructionSet) bool {
	changed := false
	for {
		used := make(RegSet)
		for i := range s.Ops {
			for _, u := range s.Ops[i].Uses() {
				used.Add(u)
			}
		}

		removedAny := false
		for i := range s.Ops {
			op := &s.Ops[i]
			if op.Kind != OpMachine || op.Machine.Opcode != isa.OpMove {
				continue
			}
			// Moves into fixed registers reach machine state the use-set
			// cannot see.
			if !op.Machine.Dst.IsVirtual() {
				continue
			}
			if used.Has(op.Machine.Dst) {
				continue
			}
			noop := NewNoop()
			noop.Span = op.Span
			noop.Comment = op.Comment
			s.Ops[i] = noop
			removedAny = true
		}
		if !removedAny {
			break
		}
		changed = true
	}
	return changed
}

// RemoveRedundantOps drops no-ops and zero-sized stack allocations
// outright. Returns true if anything changed.
func RemoveRedundantOps(s *AbstractInstructionSet) bool {
	kept := s.Ops[:0]
	changed := false
	for i := range s.Ops {
		op := &s.Ops[i]
		redundant := op.IsNoop() ||
			((op.Kind == OpStackAlloc || op.Kind == OpStackFree) && op.Words == 0)
		if redundant {
			changed = true
			continue
		}
		kept = append(kept, s.Ops[i])
	}
	s.Ops = kept
	return changed
}

// Peephole applies all three local rewrites until none of them changes
// the stream.
func Peephole(s *AbstractInstructionSet) bool {
	changed := false
	for {
		any := RemoveRedundantJumps(s)
		any = RemoveDeadMoves(s) || any
		any = RemoveRedundantOps(s) || any
		if !any {
			break
		}
		changed = true
	}
	return changed
}
