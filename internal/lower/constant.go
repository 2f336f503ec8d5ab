package lower

import (
	"cinder/internal/asm"
	"cinder/internal/diag"
	"cinder/internal/ir"
	"cinder/internal/isa"
	"cinder/internal/source"
)

// materializeConstant puts a constant's value (or, for multi-word
// constants, its address) into a register. Fully defined multi-word
// constants live in the read-only data section; aggregates with
// undefined members are built on the stack.
func (l *funcLowerer) materializeConstant(k ir.Constant, sp source.Span) asm.VirtualRegister {
	switch k.Kind {
	case ir.ConstUnit:
		return asm.Fixed(isa.RegZero)
	case ir.ConstBool:
		if k.Bool {
			return asm.Fixed(isa.RegOne)
		}
		return asm.Fixed(isa.RegZero)
	case ir.ConstUint:
		return l.wordConstant(k.Uint, sp)
	case ir.ConstUndef:
		if k.Type.Kind == ir.TypeAggregate || k.Type.Kind == ir.TypeB256 || k.Type.Kind == ir.TypeString {
			base, _ := l.buildAggregate(k, sp)
			return base
		}
		return asm.Fixed(isa.RegZero)
	case ir.ConstB256, ir.ConstString:
		return l.dataPointer(k, sp)
	case ir.ConstStruct, ir.ConstArray:
		if fullyDefined(k) {
			return l.dataPointer(k, sp)
		}
		base, _ := l.buildAggregate(k, sp)
		return base
	}
	diag.Internalf("lower", "%s: unhandled constant kind %d", l.fn.Name, k.Kind)
	return asm.VirtualRegister{}
}

// dataPointer interns the constant in the data section and loads its
// address.
func (l *funcLowerer) dataPointer(k ir.Constant, sp source.Span) asm.VirtualRegister {
	id := l.data.Insert(l.ctx, k)
	addr := l.regs.Next()
	l.emit(asm.Op{Kind: asm.OpDataLoad, Machine: asm.MachineOp{HasDst: true, Dst: addr}, Data: id, Span: sp})
	return addr
}

// fullyDefined reports whether the constant contains no undef member
// anywhere, making it eligible for the read-only data section.
func fullyDefined(k ir.Constant) bool {
	if k.Kind == ir.ConstUndef {
		return false
	}
	for _, e := range k.Elems {
		if !fullyDefined(e) {
			return false
		}
	}
	return true
}

// buildAggregate constructs an aggregate value on the stack: allocate
// its flat size, zero the region, then store each member at its static
// word offset from the base pointer captured before the allocation.
// Enum payloads sit one word past the tag.
func (l *funcLowerer) buildAggregate(k ir.Constant, sp source.Span) (asm.VirtualRegister, bool) {
	words := l.ctx.SizeInWords(k.Type)
	base, ok := l.allocStack(words, sp)
	if !ok {
		return asm.VirtualRegister{}, false
	}
	l.zeroFill(base, words*isa.WordSize, sp)

	if k.Kind != ir.ConstStruct && k.Kind != ir.ConstArray {
		// Undef blobs are fully covered by the zero fill.
		return base, true
	}

	agg := l.ctx.Aggregate(k.Type.Agg)
	if agg == nil {
		diag.Internalf("lower", "%s: constant references unknown aggregate %d", l.fn.Name, k.Type.Agg)
	}
	for i, elem := range k.Elems {
		var off uint64
		var typ ir.TypeRef
		switch agg.Kind {
		case ir.AggregateStruct:
			if i >= len(agg.Fields) {
				diag.Internalf("lower", "%s: struct constant has %d members for %d fields", l.fn.Name, len(k.Elems), len(agg.Fields))
			}
			off = l.ctx.FieldOffsetInWords(k.Type.Agg, i)
			typ = agg.Fields[i]
		case ir.AggregateArray:
			off = l.ctx.FieldOffsetInWords(k.Type.Agg, i)
			typ = agg.Elem
		case ir.AggregateEnum:
			// Member 0 is the tag word, member 1 the payload.
			if i == 0 {
				off, typ = 0, ir.UintType(64)
			} else {
				off, typ = 1, elem.Type
			}
		}
		if !l.storeMember(base, off, elem, typ, sp) {
			return asm.VirtualRegister{}, false
		}
	}
	return base, true
}

// zeroFill clears bytes starting at base.
func (l *funcLowerer) zeroFill(base asm.VirtualRegister, bytes uint64, sp source.Span) {
	if bytes == 0 {
		return
	}
	if bytes <= isa.MaxImm18 {
		l.emit(asm.NewMachineOpNoDst(isa.OpMcli, base).WithImm(uint32(bytes)).WithSpan(sp))
		return
	}
	length := l.wordConstant(bytes, sp)
	l.emit(asm.NewMachineOpNoDst(isa.OpMcl, base, length).WithSpan(sp))
}

// storeMember writes one aggregate member at a word offset from base.
// Word-sized members store directly; larger ones are materialized and
// copied. Undefined members are skipped, the zero fill already wrote
// them.
func (l *funcLowerer) storeMember(base asm.VirtualRegister, off uint64, k ir.Constant, typ ir.TypeRef, sp source.Span) bool {
	size := l.ctx.SizeInWords(typ)
	if size == 1 {
		val := l.materializeConstant(k, sp)
		if l.failed {
			return false
		}
		if off <= isa.MaxImm12 {
			l.emit(asm.NewMachineOpNoDst(isa.OpSw, base, val).
				WithImm(uint32(off)).WithSpan(sp))
		} else {
			addr := l.addWordOffset(base, off, sp)
			l.emit(asm.NewMachineOpNoDst(isa.OpSw, addr, val).WithSpan(sp))
		}
		return true
	}

	if k.Kind == ir.ConstUndef {
		return true
	}
	src := l.materializeConstant(k, sp)
	if l.failed {
		return false
	}
	dst := base
	if off > 0 {
		dst = l.addWordOffset(base, off, sp)
	}
	length := l.wordConstant(size*isa.WordSize, sp)
	l.emit(asm.NewMachineOpNoDst(isa.OpMcp, dst, src, length).WithSpan(sp))
	return true
}
