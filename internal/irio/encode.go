package irio

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"cinder/internal/ir"
)

// Encode serializes a module and the parts of the context it reaches.
// names seeds the backend namespace with frontend-visible bindings.
func Encode(w io.Writer, c *ir.Context, m *ir.Module, names map[string]ir.ValueID) error {
	e := encoder{ctx: c, refs: make(map[ir.ValueID]valueRef)}

	wm := wireModule{
		Schema: SchemaVersion,
		Name:   m.Name,
		Kind:   uint8(m.Kind),
	}

	for i := 1; i <= c.NumAggregates(); i++ {
		agg := c.Aggregate(ir.AggregateID(i)) //nolint:gosec // G115: bounded by arena length
		wa := wireAggregate{Kind: uint8(agg.Kind), Count: agg.Count, Elem: encodeType(agg.Elem)}
		for _, f := range agg.Fields {
			wa.Fields = append(wa.Fields, encodeType(f))
		}
		wm.Aggregates = append(wm.Aggregates, wa)
	}

	// Number every instruction result before encoding operands, so
	// forward references resolve.
	next := valueRef(1)
	for _, fid := range m.Funcs {
		fn := c.Func(fid)
		for _, bid := range fn.Blocks {
			for _, vid := range c.Block(bid).Instrs {
				e.refs[vid] = next
				next++
			}
		}
	}

	for _, fid := range m.Funcs {
		fn := c.Func(fid)
		wf := wireFunc{
			Name:        fn.Name,
			Span:        wireSpan{File: uint32(fn.Span.File), Start: fn.Span.Start, End: fn.Span.End},
			Result:      encodeType(fn.Result),
			IsEntry:     fn.IsEntry,
			HasSelector: fn.HasSelector,
		}
		if fn.HasSelector {
			wf.Selector = append([]byte(nil), fn.Selector[:]...)
		}
		for _, p := range fn.Params {
			ref, err := e.ref(p.Value)
			if err != nil {
				return err
			}
			wf.Params = append(wf.Params, wireParam{Name: p.Name, Type: encodeType(p.Type), Value: ref})
		}

		blockIdx := make(map[ir.BlockID]uint32, len(fn.Blocks))
		for i, bid := range fn.Blocks {
			blockIdx[bid] = uint32(i) + 1 //nolint:gosec // G115: block counts are small
		}
		for _, bid := range fn.Blocks {
			b := c.Block(bid)
			wb := wireBlock{Label: b.Label}
			for _, vid := range b.Instrs {
				wi, err := e.encodeInstr(c.Value(vid), blockIdx)
				if err != nil {
					return fmt.Errorf("function %s: %w", fn.Name, err)
				}
				wb.Instrs = append(wb.Instrs, wi)
			}
			wf.Blocks = append(wf.Blocks, wb)
		}
		wm.Funcs = append(wm.Funcs, wf)
	}

	wm.Constants = e.consts
	if len(names) > 0 {
		wm.Names = make(map[string]valueRef, len(names))
		for name, vid := range names {
			ref, err := e.ref(vid)
			if err != nil {
				return err
			}
			wm.Names[name] = ref
		}
	}
	return msgpack.NewEncoder(w).Encode(&wm)
}

type encoder struct {
	ctx    *ir.Context
	refs   map[ir.ValueID]valueRef
	consts []wireConstant
}

// ref resolves a value to its wire reference, adding constants to the
// table on first sight.
func (e *encoder) ref(id ir.ValueID) (valueRef, error) {
	if r, ok := e.refs[id]; ok {
		return r, nil
	}
	v := e.ctx.Value(id)
	if v == nil {
		return 0, fmt.Errorf("dangling value reference %d", id)
	}
	if !v.IsConstant() {
		return 0, fmt.Errorf("instruction result %d not reachable from the module", id)
	}
	r := -valueRef(len(e.consts) + 1)
	e.consts = append(e.consts, encodeConstant(v.Const))
	e.refs[id] = r
	return r, nil
}

func (e *encoder) encodeInstr(v *ir.Value, blockIdx map[ir.BlockID]uint32) (wireInstr, error) {
	in := &v.Instr
	wi := wireInstr{
		Kind: uint8(in.Kind),
		Type: encodeType(v.Type),
		Span: wireSpan{File: uint32(v.Span.File), Start: v.Span.Start, End: v.Span.End},
	}
	for _, op := range in.Operands() {
		ref, err := e.ref(op)
		if err != nil {
			return wi, err
		}
		wi.Args = append(wi.Args, ref)
	}

	switch in.Kind {
	case ir.InstrBinary:
		wi.Sub = uint8(in.Binary.Op)
	case ir.InstrCmp:
		wi.Sub = uint8(in.Cmp.Pred)
	case ir.InstrGetPtr:
		wi.Offset = in.GetPtr.WordOffset
	case ir.InstrStackAlloc:
		wi.Alloc = encodeType(in.StackAlloc.Alloc)
	case ir.InstrIntCast:
		wi.Alloc = encodeType(in.IntCast.To)
	case ir.InstrCall:
		wi.Callee = uint32(in.Call.Callee)
	case ir.InstrBranch:
		wi.Blocks = []uint32{blockIdx[in.Branch.Target]}
	case ir.InstrCondBranch:
		wi.Blocks = []uint32{blockIdx[in.CondBranch.Then], blockIdx[in.CondBranch.Else]}
	}
	return wi, nil
}

func encodeType(t ir.TypeRef) wireType {
	return wireType{Kind: uint8(t.Kind), Width: t.Width, StrLen: t.StrLen, Agg: uint32(t.Agg)}
}

func encodeConstant(k ir.Constant) wireConstant {
	wc := wireConstant{
		Kind: uint8(k.Kind),
		Type: encodeType(k.Type),
		Bool: k.Bool,
		Uint: k.Uint,
		Str:  k.Str,
	}
	if k.Kind == ir.ConstB256 {
		wc.B256 = append([]byte(nil), k.B256[:]...)
	}
	for _, e := range k.Elems {
		wc.Elems = append(wc.Elems, encodeConstant(e))
	}
	return wc
}
