package lower

import (
	"fmt"

	"cinder/internal/asm"
	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/isa"
	"cinder/internal/source"
)

// stackChunkWords is the largest stack adjustment one instruction can
// express: the 24-bit byte immediate divided by the word size.
const stackChunkWords = (isa.MaxImm24 + 1) / isa.WordSize

// Function lowers one IR function to abstract assembly. User-facing
// failures (oversized aggregates) are reported through rep and abort
// this function only; the second return value is false in that case.
func Function(c *ir.Context, id ir.FuncID, data *emit.DataSection, ns *Namespace, rep diag.Reporter) (*asm.AbstractInstructionSet, bool) {
	fn := c.Func(id)
	if fn == nil {
		diag.Internalf("lower", "lowering unknown function %d", id)
	}

	l := &funcLowerer{
		ctx:    c,
		fn:     fn,
		data:   data,
		ns:     ns,
		rep:    rep,
		regs:   asm.NewRegisterSequencer(),
		labels: asm.NewLabelSequencer(),
		values: make(map[ir.ValueID]asm.VirtualRegister),
		blocks: make(map[ir.BlockID]asm.Label),
	}
	return l.run()
}

// funcLowerer threads the per-function state through lowering: the
// sequencers, the value-to-register map, and the block label map. One
// lowerer per function, never shared.
type funcLowerer struct {
	ctx    *ir.Context
	fn     *ir.Function
	data   *emit.DataSection
	ns     *Namespace
	rep    diag.Reporter
	regs   *asm.RegisterSequencer
	labels *asm.LabelSequencer
	values map[ir.ValueID]asm.VirtualRegister
	blocks map[ir.BlockID]asm.Label
	ops    []asm.Op
	failed bool
}

func (l *funcLowerer) run() (*asm.AbstractInstructionSet, bool) {
	for _, bid := range l.blockOrder() {
		l.blocks[bid] = l.labels.Next()
	}

	l.lowerParams()
	for _, bid := range l.blockOrder() {
		b := l.ctx.Block(bid)
		l.emit(asm.Op{Kind: asm.OpLabel, Label: l.blocks[bid]})
		for _, vid := range b.Instrs {
			v := l.ctx.Value(vid)
			l.lowerInstr(vid, v)
			if l.failed {
				return nil, false
			}
		}
	}
	return &asm.AbstractInstructionSet{FuncName: l.fn.Name, Ops: l.ops}, true
}

// blockOrder yields the entry block first, then the rest in creation
// order.
func (l *funcLowerer) blockOrder() []ir.BlockID {
	out := make([]ir.BlockID, 0, len(l.fn.Blocks))
	out = append(out, l.fn.Entry)
	for _, bid := range l.fn.Blocks {
		if bid != l.fn.Entry {
			out = append(out, bid)
		}
	}
	return out
}

// lowerParams binds each parameter value to a register loaded from the
// caller's frame: parameter i lives at word i past the frame pointer.
func (l *funcLowerer) lowerParams() {
	for i, p := range l.fn.Params {
		r := l.regs.Next()
		op := asm.NewMachineOp(isa.OpLw, r, asm.Fixed(isa.RegFramePtr)).
			WithImm(uint32(i)). //nolint:gosec // G115: parameter counts are tiny
			WithComment("param " + p.Name)
		l.emit(op)
		l.values[p.Value] = r
		l.ns.BindReg(l.fn.Name+"."+p.Name, r)
	}
}

func (l *funcLowerer) emit(op asm.Op) {
	l.ops = append(l.ops, op)
}

func (l *funcLowerer) fail(code diag.Code, sp source.Span, msg string) {
	diag.Errorf(l.rep, code, sp, msg)
	l.failed = true
}

// valueReg returns the register holding a value, materializing constants
// on first use.
func (l *funcLowerer) valueReg(id ir.ValueID, sp source.Span) asm.VirtualRegister {
	if r, ok := l.values[id]; ok {
		return r
	}
	v := l.ctx.Value(id)
	if v == nil {
		diag.Internalf("lower", "%s: use of unknown value %d", l.fn.Name, id)
	}
	if !v.IsConstant() {
		diag.Internalf("lower", "%s: use of value %d before its definition", l.fn.Name, id)
	}
	r := l.materializeConstant(v.Const, sp)
	l.values[id] = r
	return r
}

var binaryOpcodes = map[ir.BinaryKind]isa.Opcode{
	ir.BinAdd: isa.OpAdd,
	ir.BinSub: isa.OpSub,
	ir.BinMul: isa.OpMul,
	ir.BinDiv: isa.OpDiv,
	ir.BinMod: isa.OpMod,
	ir.BinAnd: isa.OpAnd,
	ir.BinOr:  isa.OpOr,
	ir.BinXor: isa.OpXor,
	ir.BinLsh: isa.OpSll,
	ir.BinRsh: isa.OpSrl,
}

var cmpOpcodes = map[ir.CmpKind]isa.Opcode{
	ir.CmpEqual:       isa.OpEq,
	ir.CmpLessThan:    isa.OpLt,
	ir.CmpGreaterThan: isa.OpGt,
}

func (l *funcLowerer) lowerInstr(vid ir.ValueID, v *ir.Value) {
	in := &v.Instr
	sp := v.Span

	switch in.Kind {
	case ir.InstrBinary:
		left := l.valueReg(in.Binary.Left, sp)
		right := l.valueReg(in.Binary.Right, sp)
		dst := l.regs.Next()
		l.emit(asm.NewMachineOp(binaryOpcodes[in.Binary.Op], dst, left, right).WithSpan(sp))
		l.values[vid] = dst

	case ir.InstrCmp:
		left := l.valueReg(in.Cmp.Left, sp)
		right := l.valueReg(in.Cmp.Right, sp)
		dst := l.regs.Next()
		l.emit(asm.NewMachineOp(cmpOpcodes[in.Cmp.Pred], dst, left, right).WithSpan(sp))
		l.values[vid] = dst

	case ir.InstrLoad:
		ptr := l.valueReg(in.Load.Ptr, sp)
		dst := l.regs.Next()
		l.emit(asm.NewMachineOp(isa.OpLw, dst, ptr).WithSpan(sp))
		l.values[vid] = dst

	case ir.InstrStore:
		ptr := l.valueReg(in.Store.Ptr, sp)
		val := l.valueReg(in.Store.Val, sp)
		l.emit(asm.NewMachineOpNoDst(isa.OpSw, ptr, val).WithSpan(sp))

	case ir.InstrGetPtr:
		base := l.valueReg(in.GetPtr.Base, sp)
		if in.GetPtr.WordOffset == 0 {
			l.values[vid] = base
			return
		}
		l.values[vid] = l.addWordOffset(base, in.GetPtr.WordOffset, sp)

	case ir.InstrStackAlloc:
		words := l.ctx.SizeInWords(in.StackAlloc.Alloc)
		base, ok := l.allocStack(words, sp)
		if !ok {
			return
		}
		l.values[vid] = base

	case ir.InstrIntCast:
		l.lowerIntCast(vid, in, sp)

	case ir.InstrCall:
		l.lowerCall(vid, in, sp)

	case ir.InstrBranch:
		l.emit(asm.Op{Kind: asm.OpJump, Label: l.blocks[in.Branch.Target], Span: sp})

	case ir.InstrCondBranch:
		// Branching on an equality comparison jumps off the operands
		// directly: jnei takes the else edge when they differ, and the eq
		// that fed the branch dies in dead code elimination unless some
		// other use keeps it.
		if cv := l.ctx.Value(in.CondBranch.Cond); cv != nil &&
			cv.Kind == ir.ValueInstr && cv.Instr.Kind == ir.InstrCmp &&
			cv.Instr.Cmp.Pred == ir.CmpEqual {
			left := l.valueReg(cv.Instr.Cmp.Left, sp)
			right := l.valueReg(cv.Instr.Cmp.Right, sp)
			l.emit(asm.Op{
				Kind:  asm.OpJumpIfNotEq,
				Cond:  []asm.VirtualRegister{left, right},
				Label: l.blocks[in.CondBranch.Else],
				Span:  sp,
			})
			l.emit(asm.Op{Kind: asm.OpJump, Label: l.blocks[in.CondBranch.Then], Span: sp})
			return
		}
		cond := l.valueReg(in.CondBranch.Cond, sp)
		l.emit(asm.Op{
			Kind:  asm.OpJumpIfNotZero,
			Cond:  []asm.VirtualRegister{cond},
			Label: l.blocks[in.CondBranch.Then],
			Span:  sp,
		})
		l.emit(asm.Op{Kind: asm.OpJump, Label: l.blocks[in.CondBranch.Else], Span: sp})

	case ir.InstrRet:
		val := l.valueReg(in.Ret.Val, sp)
		l.emit(asm.NewMachineOpNoDst(isa.OpRet, val).WithSpan(sp))

	case ir.InstrRetData:
		ptr := l.valueReg(in.RetData.Ptr, sp)
		length := l.valueReg(in.RetData.Len, sp)
		l.emit(asm.NewMachineOpNoDst(isa.OpRetd, ptr, length).WithSpan(sp))

	case ir.InstrRevert:
		code := l.valueReg(in.Revert.Code, sp)
		l.emit(asm.NewMachineOpNoDst(isa.OpRvrt, code).WithSpan(sp))

	case ir.InstrJumpIndirect:
		target := l.valueReg(in.JumpIndirect.Target, sp)
		l.emit(asm.NewMachineOpNoDst(isa.OpJmp, target).WithSpan(sp))

	default:
		diag.Internalf("lower", "%s: unhandled instruction kind %d", l.fn.Name, in.Kind)
	}
}

// lowerIntCast narrows with a mask when the destination is smaller than
// a word; widening is a plain move since every integer occupies one
// word.
func (l *funcLowerer) lowerIntCast(vid ir.ValueID, in *ir.Instruction, sp source.Span) {
	src := l.valueReg(in.IntCast.Val, sp)
	to := in.IntCast.To
	dst := l.regs.Next()

	if to.Kind == ir.TypeUint && to.Width < 64 {
		mask := uint64(1)<<to.Width - 1
		if mask <= isa.MaxImm12 {
			l.emit(asm.NewMachineOp(isa.OpAndi, dst, src).WithImm(uint32(mask)).WithSpan(sp))
		} else {
			maskReg := l.wordConstant(mask, sp)
			l.emit(asm.NewMachineOp(isa.OpAnd, dst, src, maskReg).WithSpan(sp))
		}
	} else {
		l.emit(asm.NewMachineOp(isa.OpMove, dst, src).WithSpan(sp))
	}
	l.values[vid] = dst
}

// lowerCall spills the arguments to the stack top, emits the call, and
// captures the callee's return value from $ret.
func (l *funcLowerer) lowerCall(vid ir.ValueID, in *ir.Instruction, sp source.Span) {
	callee := l.ctx.Func(in.Call.Callee)
	if callee == nil {
		diag.Internalf("lower", "%s: call to unknown function %d", l.fn.Name, in.Call.Callee)
	}

	args := make([]asm.VirtualRegister, len(in.Call.Args))
	for i, a := range in.Call.Args {
		args[i] = l.valueReg(a, sp)
	}
	for i, a := range args {
		l.emit(asm.NewMachineOpNoDst(isa.OpSw, asm.Fixed(isa.RegStackPtr), a).
			WithImm(uint32(i)). //nolint:gosec // G115: argument counts are tiny
			WithSpan(sp))
	}
	l.emit(asm.Op{Kind: asm.OpCall, Callee: callee.Name, Machine: asm.MachineOp{Srcs: args}, Span: sp})

	dst := l.regs.Next()
	l.emit(asm.NewMachineOp(isa.OpMove, dst, asm.Fixed(isa.RegReturnValue)).WithSpan(sp))
	l.values[vid] = dst
}

// allocStack captures the stack pointer as the base, then grows the
// frame, chunked when the byte size exceeds one instruction's immediate
// range. Aggregates beyond the 24-bit word limit are a user error.
func (l *funcLowerer) allocStack(words uint64, sp source.Span) (asm.VirtualRegister, bool) {
	if words > isa.MaxImm24 {
		l.fail(diag.LowerAggregateTooLarge, sp,
			fmt.Sprintf("aggregate of %d words exceeds the %d-word limit", words, isa.MaxImm24))
		return asm.VirtualRegister{}, false
	}
	base := l.regs.Next()
	l.emit(asm.NewMachineOp(isa.OpMove, base, asm.Fixed(isa.RegStackPtr)).WithSpan(sp))
	for words > 0 {
		chunk := words
		if chunk > stackChunkWords {
			chunk = stackChunkWords
		}
		l.emit(asm.Op{Kind: asm.OpStackAlloc, Words: chunk, Span: sp})
		words -= chunk
	}
	return base, true
}

// addWordOffset computes base plus a static word offset, in bytes.
func (l *funcLowerer) addWordOffset(base asm.VirtualRegister, words uint64, sp source.Span) asm.VirtualRegister {
	dst := l.regs.Next()
	bytes := words * isa.WordSize
	if bytes <= isa.MaxImm12 {
		l.emit(asm.NewMachineOp(isa.OpAddi, dst, base).WithImm(uint32(bytes)).WithSpan(sp))
	} else {
		off := l.wordConstant(bytes, sp)
		l.emit(asm.NewMachineOp(isa.OpAdd, dst, base, off).WithSpan(sp))
	}
	return dst
}

// wordConstant materializes a bare machine word. Small values use the
// zero and one registers or a movi; anything wider goes through the
// data section.
func (l *funcLowerer) wordConstant(v uint64, sp source.Span) asm.VirtualRegister {
	switch {
	case v == 0:
		return asm.Fixed(isa.RegZero)
	case v == 1:
		return asm.Fixed(isa.RegOne)
	case v <= isa.MaxImm18:
		dst := l.regs.Next()
		l.emit(asm.NewMachineOp(isa.OpMovi, dst).WithImm(uint32(v)).WithSpan(sp))
		return dst
	default:
		id := l.data.Insert(l.ctx, ir.UintConstant(v, 64))
		addr := l.regs.Next()
		l.emit(asm.Op{Kind: asm.OpDataLoad, Machine: asm.MachineOp{HasDst: true, Dst: addr}, Data: id, Span: sp})
		dst := l.regs.Next()
		l.emit(asm.NewMachineOp(isa.OpLw, dst, addr).WithSpan(sp))
		return dst
	}
}
