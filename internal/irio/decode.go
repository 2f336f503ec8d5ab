package irio

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"cinder/internal/ir"
	"cinder/internal/source"
)

// Decode rebuilds an arena-owned context from frontend output. The
// returned names map seeds the backend namespace.
func Decode(r io.Reader) (*ir.Context, *ir.Module, map[string]ir.ValueID, error) {
	var wm wireModule
	if err := msgpack.NewDecoder(r).Decode(&wm); err != nil {
		return nil, nil, nil, fmt.Errorf("decode module: %w", err)
	}
	if wm.Schema != SchemaVersion {
		return nil, nil, nil, fmt.Errorf("unsupported IR schema %d, want %d", wm.Schema, SchemaVersion)
	}

	d := decoder{ctx: ir.NewContext()}

	// Aggregates first: every type reference below may point at them.
	// The frontend emits shapes in dependency order, so each field ref
	// resolves to an already interned shape.
	d.aggMap = make([]ir.AggregateID, len(wm.Aggregates)+1)
	for i, wa := range wm.Aggregates {
		agg := ir.Aggregate{
			Kind:  ir.AggregateKind(wa.Kind),
			Elem:  d.decodeType(wa.Elem),
			Count: wa.Count,
		}
		for _, f := range wa.Fields {
			agg.Fields = append(agg.Fields, d.decodeType(f))
		}
		id, err := d.ctx.InternAggregate(agg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("aggregate %d: %w", i+1, err)
		}
		d.aggMap[i+1] = id
	}

	d.constIDs = make([]ir.ValueID, len(wm.Constants))
	for i, wc := range wm.Constants {
		k, err := d.decodeConstant(wc)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("constant %d: %w", i, err)
		}
		d.constIDs[i] = d.ctx.AddConstant(k)
	}

	mod := &ir.Module{Name: wm.Name, Kind: ir.ProgramKind(wm.Kind)}

	// Create every function up front so call targets resolve across
	// the module.
	fids := make([]ir.FuncID, len(wm.Funcs))
	for i, wf := range wm.Funcs {
		fids[i] = d.ctx.NewFunc(wf.Name, decodeSpan(wf.Span))
		mod.Funcs = append(mod.Funcs, fids[i])
	}

	// First pass: create blocks and instruction values, numbering the
	// results. Operands stay unresolved until every result has an ID.
	type pending struct {
		value ir.ValueID
		wire  *wireInstr
	}
	var todo []pending
	for i := range wm.Funcs {
		wf := &wm.Funcs[i]
		fn := d.ctx.Func(fids[i])
		fn.Result = d.decodeType(wf.Result)
		fn.IsEntry = wf.IsEntry
		fn.HasSelector = wf.HasSelector
		if wf.HasSelector {
			if len(wf.Selector) != len(fn.Selector) {
				return nil, nil, nil, fmt.Errorf("function %s: selector is %d bytes", wf.Name, len(wf.Selector))
			}
			copy(fn.Selector[:], wf.Selector)
		}

		blocks := make([]ir.BlockID, len(wf.Blocks)+1)
		for j := range wf.Blocks {
			blocks[j+1] = d.ctx.NewBlock(fids[i], wf.Blocks[j].Label)
		}
		for j := range wf.Blocks {
			wb := &wf.Blocks[j]
			for k := range wb.Instrs {
				wi := &wb.Instrs[k]
				in, err := d.decodeInstrShell(wi, blocks, fids)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("function %s: %w", wf.Name, err)
				}
				vid := d.ctx.AppendInstr(blocks[j+1], in, d.decodeType(wi.Type), decodeSpan(wi.Span))
				d.resultIDs = append(d.resultIDs, vid)
				todo = append(todo, pending{value: vid, wire: wi})
			}
		}
	}

	// Second pass: patch operands now that every reference resolves.
	for _, p := range todo {
		args := make([]ir.ValueID, len(p.wire.Args))
		for i, ref := range p.wire.Args {
			vid, err := d.value(ref)
			if err != nil {
				return nil, nil, nil, err
			}
			args[i] = vid
		}
		if err := setOperands(&d.ctx.Value(p.value).Instr, args); err != nil {
			return nil, nil, nil, err
		}
	}

	// Params, afterwards: their values may be either constants or
	// instruction results.
	for i := range wm.Funcs {
		fn := d.ctx.Func(fids[i])
		for _, wp := range wm.Funcs[i].Params {
			vid, err := d.value(wp.Value)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("function %s, param %s: %w", fn.Name, wp.Name, err)
			}
			fn.Params = append(fn.Params, ir.Param{Name: wp.Name, Type: d.decodeType(wp.Type), Value: vid})
		}
	}

	var names map[string]ir.ValueID
	if len(wm.Names) > 0 {
		names = make(map[string]ir.ValueID, len(wm.Names))
		for name, ref := range wm.Names {
			vid, err := d.value(ref)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("name %q: %w", name, err)
			}
			names[name] = vid
		}
	}
	return d.ctx, mod, names, nil
}

type decoder struct {
	ctx       *ir.Context
	aggMap    []ir.AggregateID
	constIDs  []ir.ValueID
	resultIDs []ir.ValueID
}

func (d *decoder) value(ref valueRef) (ir.ValueID, error) {
	switch {
	case ref > 0:
		i := int(ref) - 1
		if i >= len(d.resultIDs) {
			return ir.NoValueID, fmt.Errorf("value ref %d out of range", ref)
		}
		return d.resultIDs[i], nil
	case ref < 0:
		i := int(-ref) - 1
		if i >= len(d.constIDs) {
			return ir.NoValueID, fmt.Errorf("constant ref %d out of range", ref)
		}
		return d.constIDs[i], nil
	}
	return ir.NoValueID, fmt.Errorf("zero value ref")
}

func (d *decoder) decodeType(t wireType) ir.TypeRef {
	out := ir.TypeRef{
		Kind:   ir.TypeKind(t.Kind),
		Width:  t.Width,
		StrLen: t.StrLen,
	}
	if out.Kind == ir.TypeAggregate && int(t.Agg) < len(d.aggMap) {
		out.Agg = d.aggMap[t.Agg]
	}
	return out
}

func (d *decoder) decodeConstant(wc wireConstant) (ir.Constant, error) {
	k := ir.Constant{
		Kind: ir.ConstantKind(wc.Kind),
		Type: d.decodeType(wc.Type),
		Bool: wc.Bool,
		Uint: wc.Uint,
		Str:  wc.Str,
	}
	if k.Kind == ir.ConstB256 {
		if len(wc.B256) != len(k.B256) {
			return k, fmt.Errorf("b256 constant is %d bytes", len(wc.B256))
		}
		copy(k.B256[:], wc.B256)
	}
	for _, we := range wc.Elems {
		e, err := d.decodeConstant(we)
		if err != nil {
			return k, err
		}
		k.Elems = append(k.Elems, e)
	}
	return k, nil
}

// decodeInstrShell builds the instruction with everything except its
// value operands, which are patched in the second pass.
func (d *decoder) decodeInstrShell(wi *wireInstr, blocks []ir.BlockID, fids []ir.FuncID) (ir.Instruction, error) {
	in := ir.Instruction{Kind: ir.InstrKind(wi.Kind)}

	block := func(i int) (ir.BlockID, error) {
		if i >= len(wi.Blocks) || wi.Blocks[i] == 0 || int(wi.Blocks[i]) >= len(blocks) {
			return ir.NoBlockID, fmt.Errorf("bad block ref in %d", wi.Kind)
		}
		return blocks[wi.Blocks[i]], nil
	}

	var err error
	switch in.Kind {
	case ir.InstrBinary:
		in.Binary.Op = ir.BinaryKind(wi.Sub)
	case ir.InstrCmp:
		in.Cmp.Pred = ir.CmpKind(wi.Sub)
	case ir.InstrGetPtr:
		in.GetPtr.WordOffset = wi.Offset
	case ir.InstrStackAlloc:
		in.StackAlloc.Alloc = d.decodeType(wi.Alloc)
	case ir.InstrIntCast:
		in.IntCast.To = d.decodeType(wi.Alloc)
	case ir.InstrCall:
		if wi.Callee == 0 || int(wi.Callee) > len(fids) {
			return in, fmt.Errorf("bad callee ref %d", wi.Callee)
		}
		in.Call.Callee = fids[wi.Callee-1]
		in.Call.Args = make([]ir.ValueID, len(wi.Args))
	case ir.InstrBranch:
		in.Branch.Target, err = block(0)
	case ir.InstrCondBranch:
		if in.CondBranch.Then, err = block(0); err == nil {
			in.CondBranch.Else, err = block(1)
		}
	}
	return in, err
}

// setOperands writes resolved value operands back in ir operand order.
func setOperands(in *ir.Instruction, args []ir.ValueID) error {
	need := len(in.Operands())
	if in.Kind == ir.InstrCall {
		need = len(in.Call.Args)
	}
	if len(args) != need {
		return fmt.Errorf("instruction kind %d carries %d operands, got %d", in.Kind, need, len(args))
	}
	switch in.Kind {
	case ir.InstrBinary:
		in.Binary.Left, in.Binary.Right = args[0], args[1]
	case ir.InstrCmp:
		in.Cmp.Left, in.Cmp.Right = args[0], args[1]
	case ir.InstrLoad:
		in.Load.Ptr = args[0]
	case ir.InstrStore:
		in.Store.Ptr, in.Store.Val = args[0], args[1]
	case ir.InstrGetPtr:
		in.GetPtr.Base = args[0]
	case ir.InstrIntCast:
		in.IntCast.Val = args[0]
	case ir.InstrCall:
		copy(in.Call.Args, args)
	case ir.InstrCondBranch:
		in.CondBranch.Cond = args[0]
	case ir.InstrRet:
		in.Ret.Val = args[0]
	case ir.InstrRetData:
		in.RetData.Ptr, in.RetData.Len = args[0], args[1]
	case ir.InstrRevert:
		in.Revert.Code = args[0]
	case ir.InstrJumpIndirect:
		in.JumpIndirect.Target = args[0]
	case ir.InstrBranch:
		// No value operands.
	}
	return nil
}

func decodeSpan(sp wireSpan) source.Span {
	return source.Span{File: source.FileID(sp.File), Start: sp.Start, End: sp.End}
}
