package lower

import (
	"testing"

	"cinder/internal/asm"
	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/isa"
	"cinder/internal/source"
)

func lowerOne(t *testing.T, c *ir.Context, fid ir.FuncID) (*asm.AbstractInstructionSet, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(16)
	set, ok := Function(c, fid, emit.NewDataSection(), NewNamespace(), diag.BagReporter{Bag: bag})
	if !ok {
		return nil, bag
	}
	return set, bag
}

func machineOps(set *asm.AbstractInstructionSet, opcode isa.Opcode) []asm.Op {
	var out []asm.Op
	for _, op := range set.Ops {
		if op.Kind == asm.OpMachine && op.Machine.Opcode == opcode {
			out = append(out, op)
		}
	}
	return out
}

func TestLowerBinaryExpression(t *testing.T) {
	c := ir.NewContext()
	fid := c.NewFunc("f", source.Span{})
	b := c.NewBlock(fid, "entry")

	two := c.AddConstant(ir.UintConstant(2, 64))
	three := c.AddConstant(ir.UintConstant(3, 64))
	sum := c.AppendInstr(b, ir.Instruction{
		Kind:   ir.InstrBinary,
		Binary: ir.BinaryInstr{Op: ir.BinAdd, Left: two, Right: three},
	}, ir.UintType(64), source.Span{})
	c.AppendInstr(b, ir.Instruction{
		Kind: ir.InstrRet,
		Ret:  ir.RetInstr{Val: sum},
	}, ir.UnitType(), source.Span{})

	set, _ := lowerOne(t, c, fid)
	if set == nil {
		t.Fatal("lowering failed")
	}

	adds := machineOps(set, isa.OpAdd)
	if len(adds) != 1 {
		t.Fatalf("got %d add ops, want 1:\n%s", len(adds), set)
	}
	if len(machineOps(set, isa.OpMovi)) != 2 {
		t.Fatalf("both operands should be materialized with movi:\n%s", set)
	}
	rets := machineOps(set, isa.OpRet)
	if len(rets) != 1 || rets[0].Machine.Srcs[0] != adds[0].Machine.Dst {
		t.Fatalf("ret does not return the sum:\n%s", set)
	}
}

func TestLowerStructLiteral(t *testing.T) {
	c := ir.NewContext()
	fields := make([]ir.TypeRef, 8)
	for i := range fields {
		fields[i] = ir.UintType(64)
	}
	agg, err := c.InternAggregate(ir.Aggregate{Kind: ir.AggregateStruct, Fields: fields})
	if err != nil {
		t.Fatal(err)
	}

	fid := c.NewFunc("f", source.Span{})
	b := c.NewBlock(fid, "entry")
	lit := c.AddConstant(c.UndefOf(ir.AggregateType(agg)))
	length := c.AddConstant(ir.UintConstant(64, 64))
	c.AppendInstr(b, ir.Instruction{
		Kind:    ir.InstrRetData,
		RetData: ir.RetDataInstr{Ptr: lit, Len: length},
	}, ir.UnitType(), source.Span{})

	set, _ := lowerOne(t, c, fid)
	if set == nil {
		t.Fatal("lowering failed")
	}

	allocs := 0
	for _, op := range set.Ops {
		if op.Kind == asm.OpStackAlloc {
			allocs++
			if op.Words != 8 {
				t.Errorf("allocation of %d words, want 8", op.Words)
			}
		}
	}
	if allocs != 1 {
		t.Fatalf("got %d stack allocations, want 1:\n%s", allocs, set)
	}

	fills := machineOps(set, isa.OpMcli)
	if len(fills) != 1 || fills[0].Machine.Imm != 64 {
		t.Fatalf("want one 64-byte zero fill:\n%s", set)
	}

	stores := machineOps(set, isa.OpSw)
	if len(stores) != 8 {
		t.Fatalf("got %d stores, want one per field:\n%s", len(stores), set)
	}
	for i, st := range stores {
		if st.Machine.Imm != uint32(i) {
			t.Errorf("store %d at word offset %d, want %d", i, st.Machine.Imm, i)
		}
		if st.Machine.Srcs[0] != stores[0].Machine.Srcs[0] {
			t.Errorf("store %d does not use the shared base pointer", i)
		}
		if st.Machine.Srcs[1] != asm.Fixed(isa.RegZero) {
			t.Errorf("store %d stores %s, want $zero", i, st.Machine.Srcs[1])
		}
	}
}

func TestLowerOversizedAggregateFailsFunction(t *testing.T) {
	c := ir.NewContext()
	agg, err := c.InternAggregate(ir.Aggregate{
		Kind:  ir.AggregateArray,
		Elem:  ir.UintType(64),
		Count: 1 << 24,
	})
	if err != nil {
		t.Fatal(err)
	}

	fid := c.NewFunc("f", source.Span{})
	b := c.NewBlock(fid, "entry")
	c.AppendInstr(b, ir.Instruction{
		Kind:       ir.InstrStackAlloc,
		StackAlloc: ir.StackAllocInstr{Alloc: ir.AggregateType(agg)},
	}, ir.PointerType(), source.Span{File: 1, Start: 5, End: 9})

	set, bag := lowerOne(t, c, fid)
	if set != nil {
		t.Fatal("oversized aggregate must abort lowering")
	}
	if !bag.HasErrors() {
		t.Fatal("no diagnostic reported")
	}
	d := bag.Items()[0]
	if d.Code != diag.LowerAggregateTooLarge {
		t.Errorf("code = %s, want %s", d.Code, diag.LowerAggregateTooLarge)
	}
	if d.Primary.Start != 5 {
		t.Errorf("diagnostic lost the originating span: %+v", d.Primary)
	}
}

func TestLowerCondBranch(t *testing.T) {
	c := ir.NewContext()
	fid := c.NewFunc("f", source.Span{})
	entry := c.NewBlock(fid, "entry")
	then := c.NewBlock(fid, "then")
	els := c.NewBlock(fid, "else")

	one := c.AddConstant(ir.UintConstant(1, 64))
	two := c.AddConstant(ir.UintConstant(2, 64))
	cond := c.AppendInstr(entry, ir.Instruction{
		Kind: ir.InstrCmp,
		Cmp:  ir.CmpInstr{Pred: ir.CmpLessThan, Left: one, Right: two},
	}, ir.BoolType(), source.Span{})
	c.AppendInstr(entry, ir.Instruction{
		Kind:       ir.InstrCondBranch,
		CondBranch: ir.CondBranchInstr{Cond: cond, Then: then, Else: els},
	}, ir.UnitType(), source.Span{})
	c.AppendInstr(then, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: one}}, ir.UnitType(), source.Span{})
	c.AppendInstr(els, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: two}}, ir.UnitType(), source.Span{})

	set, _ := lowerOne(t, c, fid)
	if set == nil {
		t.Fatal("lowering failed")
	}

	var jnz, jump *asm.Op
	for i := range set.Ops {
		switch set.Ops[i].Kind {
		case asm.OpJumpIfNotZero:
			jnz = &set.Ops[i]
		case asm.OpJump:
			jump = &set.Ops[i]
		}
	}
	if jnz == nil || jump == nil {
		t.Fatalf("conditional lowering missing jumps:\n%s", set)
	}

	labels := make(map[asm.Label]bool)
	for _, op := range set.Ops {
		if op.Kind == asm.OpLabel {
			labels[op.Label] = true
		}
	}
	if !labels[jnz.Label] || !labels[jump.Label] {
		t.Fatalf("jump targets are not defined labels:\n%s", set)
	}
	if jnz.Label == jump.Label {
		t.Fatal("then and else share a label")
	}
}

func TestLowerCondBranchOnEqualityFusesJnei(t *testing.T) {
	c := ir.NewContext()
	fid := c.NewFunc("f", source.Span{})
	entry := c.NewBlock(fid, "entry")
	then := c.NewBlock(fid, "then")
	els := c.NewBlock(fid, "else")

	one := c.AddConstant(ir.UintConstant(1, 64))
	two := c.AddConstant(ir.UintConstant(2, 64))
	cond := c.AppendInstr(entry, ir.Instruction{
		Kind: ir.InstrCmp,
		Cmp:  ir.CmpInstr{Pred: ir.CmpEqual, Left: one, Right: two},
	}, ir.BoolType(), source.Span{})
	c.AppendInstr(entry, ir.Instruction{
		Kind:       ir.InstrCondBranch,
		CondBranch: ir.CondBranchInstr{Cond: cond, Then: then, Else: els},
	}, ir.UnitType(), source.Span{})
	c.AppendInstr(then, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: one}}, ir.UnitType(), source.Span{})
	c.AppendInstr(els, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: two}}, ir.UnitType(), source.Span{})

	set, _ := lowerOne(t, c, fid)
	if set == nil {
		t.Fatal("lowering failed")
	}

	var jnei, jump *asm.Op
	var labelOrder []asm.Label
	for i := range set.Ops {
		switch set.Ops[i].Kind {
		case asm.OpJumpIfNotEq:
			jnei = &set.Ops[i]
		case asm.OpJumpIfNotZero:
			t.Fatalf("equality branch should not need a materialized condition:\n%s", set)
		case asm.OpJump:
			jump = &set.Ops[i]
		case asm.OpLabel:
			labelOrder = append(labelOrder, set.Ops[i].Label)
		}
	}
	if jnei == nil || jump == nil {
		t.Fatalf("fused lowering missing jumps:\n%s", set)
	}
	if len(jnei.Cond) != 2 {
		t.Fatalf("jnei reads %d registers, want the two operands", len(jnei.Cond))
	}
	// Blocks are laid out entry, then, else; jnei takes the else edge and
	// the fall-through jump takes the then edge.
	if len(labelOrder) != 3 {
		t.Fatalf("got %d labels, want 3:\n%s", len(labelOrder), set)
	}
	if jnei.Label != labelOrder[2] {
		t.Errorf("jnei targets %s, want the else block %s", jnei.Label, labelOrder[2])
	}
	if jump.Label != labelOrder[1] {
		t.Errorf("jump targets %s, want the then block %s", jump.Label, labelOrder[1])
	}
}

func TestLowerCall(t *testing.T) {
	c := ir.NewContext()
	helper := c.NewFunc("helper", source.Span{})
	hb := c.NewBlock(helper, "entry")
	zero := c.AddConstant(ir.UintConstant(0, 64))
	c.AppendInstr(hb, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: zero}}, ir.UnitType(), source.Span{})

	fid := c.NewFunc("main", source.Span{})
	b := c.NewBlock(fid, "entry")
	arg := c.AddConstant(ir.UintConstant(41, 64))
	res := c.AppendInstr(b, ir.Instruction{
		Kind: ir.InstrCall,
		Call: ir.CallInstr{Callee: helper, Args: []ir.ValueID{arg}},
	}, ir.UintType(64), source.Span{})
	c.AppendInstr(b, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: res}}, ir.UnitType(), source.Span{})

	set, _ := lowerOne(t, c, fid)
	if set == nil {
		t.Fatal("lowering failed")
	}

	var call *asm.Op
	for i := range set.Ops {
		if set.Ops[i].Kind == asm.OpCall {
			call = &set.Ops[i]
		}
	}
	if call == nil || call.Callee != "helper" {
		t.Fatalf("call op missing or mistargeted:\n%s", set)
	}

	spills := machineOps(set, isa.OpSw)
	if len(spills) != 1 || spills[0].Machine.Srcs[0] != asm.Fixed(isa.RegStackPtr) {
		t.Fatalf("argument not spilled to the stack top:\n%s", set)
	}

	moves := machineOps(set, isa.OpMove)
	found := false
	for _, m := range moves {
		if len(m.Machine.Srcs) == 1 && m.Machine.Srcs[0] == asm.Fixed(isa.RegReturnValue) {
			found = true
		}
	}
	if !found {
		t.Fatalf("return value not captured from $ret:\n%s", set)
	}
}

func TestLowerParamsLoadFromFrame(t *testing.T) {
	c := ir.NewContext()
	fid := c.NewFunc("f", source.Span{})
	fn := c.Func(fid)

	b := c.NewBlock(fid, "entry")
	pv := c.AddConstant(ir.UintConstant(0, 64)) // placeholder slot rebound below
	fn.Params = []ir.Param{{Name: "x", Type: ir.UintType(64), Value: pv}}
	c.AppendInstr(b, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: pv}}, ir.UnitType(), source.Span{})

	set, _ := lowerOne(t, c, fid)
	if set == nil {
		t.Fatal("lowering failed")
	}

	loads := machineOps(set, isa.OpLw)
	if len(loads) != 1 || loads[0].Machine.Srcs[0] != asm.Fixed(isa.RegFramePtr) {
		t.Fatalf("parameter not loaded from the frame pointer:\n%s", set)
	}
	rets := machineOps(set, isa.OpRet)
	if rets[0].Machine.Srcs[0] != loads[0].Machine.Dst {
		t.Fatalf("ret does not use the parameter register:\n%s", set)
	}
}
