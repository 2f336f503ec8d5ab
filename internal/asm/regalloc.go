package asm

import (
	"sort"

	"cinder/internal/diag"
	"cinder/internal/isa"
)

// interval is the live range of one virtual register over flattened op
// indices, inclusive on both ends.
type interval struct {
	reg   VirtualRegister
	start int
	end   int
	phys  isa.Register
}

// Allocate maps every virtual register to a general-purpose machine
// register with a linear scan over live intervals. Fixed registers pass
// through untouched. Exhausting the 48-register pool is an internal
// error: lowering never produces that much simultaneous pressure and
// there is no spill path.
func Allocate(s *AbstractInstructionSet) *AllocatedInstructionSet {
	intervals := buildIntervals(s.Ops)

	sort.Slice(intervals, func(i, j int) bool {
		if intervals[i].start != intervals[j].start {
			return intervals[i].start < intervals[j].start
		}
		return intervals[i].reg.ID < intervals[j].reg.ID
	})

	free := make([]isa.Register, 0, isa.NumAllocatable)
	for i := isa.NumAllocatable - 1; i >= 0; i-- {
		free = append(free, isa.AllocatableAt(i))
	}

	var active []*interval
	assign := make(map[VirtualRegister]isa.Register, len(intervals))
	for i := range intervals {
		iv := &intervals[i]

		// Expire intervals that ended before this one starts.
		kept := active[:0]
		for _, a := range active {
			if a.end < iv.start {
				free = append(free, a.phys)
				continue
			}
			kept = append(kept, a)
		}
		active = kept

		if len(free) == 0 {
			diag.Internalf("regalloc", "register pressure exceeds %d in %s", isa.NumAllocatable, s.FuncName)
		}
		iv.phys = free[len(free)-1]
		free = free[:len(free)-1]
		active = append(active, iv)
		assign[iv.reg] = iv.phys
	}

	out := &AllocatedInstructionSet{FuncName: s.FuncName, Ops: make([]Op, len(s.Ops))}
	copy(out.Ops, s.Ops)
	for i := range out.Ops {
		rewriteRegisters(&out.Ops[i], assign)
	}
	out.VerifyAllocated()
	return out
}

// buildIntervals derives one interval per virtual register. A register's
// range covers every index where it is defined, used, or live-in; the
// live-in part matters on loops, where liveness extends past the last
// textual use.
func buildIntervals(ops []Op) []interval {
	liveIn := Liveness(ops)
	ranges := make(map[VirtualRegister]*interval)

	touch := func(r VirtualRegister, i int) {
		if !r.IsVirtual() {
			return
		}
		iv, ok := ranges[r]
		if !ok {
			ranges[r] = &interval{reg: r, start: i, end: i}
			return
		}
		if i < iv.start {
			iv.start = i
		}
		if i > iv.end {
			iv.end = i
		}
	}

	for i := range ops {
		for _, d := range ops[i].Defs() {
			touch(d, i)
		}
		for _, u := range ops[i].Uses() {
			touch(u, i)
		}
		for r := range liveIn[i] {
			touch(r, i)
		}
	}

	out := make([]interval, 0, len(ranges))
	for _, iv := range ranges {
		out = append(out, *iv)
	}
	return out
}

func rewriteRegisters(op *Op, assign map[VirtualRegister]isa.Register) {
	fix := func(r VirtualRegister) VirtualRegister {
		if !r.IsVirtual() {
			return r
		}
		phys, ok := assign[r]
		if !ok {
			diag.Internalf("regalloc", "no assignment for %s", r)
		}
		return Fixed(phys)
	}

	if op.Kind == OpMachine || op.Kind == OpDataLoad || op.Kind == OpCall {
		if op.Machine.HasDst || op.Kind == OpDataLoad {
			op.Machine.Dst = fix(op.Machine.Dst)
		}
		if len(op.Machine.Srcs) > 0 {
			srcs := make([]VirtualRegister, len(op.Machine.Srcs))
			for i, s := range op.Machine.Srcs {
				srcs[i] = fix(s)
			}
			op.Machine.Srcs = srcs
		}
	}
	if len(op.Cond) > 0 {
		cond := make([]VirtualRegister, len(op.Cond))
		for i, c := range op.Cond {
			cond[i] = fix(c)
		}
		op.Cond = cond
	}
}
