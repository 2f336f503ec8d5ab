package backend

import (
	"context"
	"testing"

	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/lower"
	"cinder/internal/source"
)

// scriptModule builds a two-function script: helper returns its single
// parameter, main adds two constants and returns helper's answer.
func scriptModule() (*ir.Context, *ir.Module) {
	c := ir.NewContext()

	helper := c.NewFunc("helper", source.Span{File: 1, Start: 0, End: 6})
	hfn := c.Func(helper)
	px := c.AddConstant(ir.UintConstant(0, 64))
	hfn.Params = append(hfn.Params, ir.Param{Name: "x", Type: ir.UintType(64), Value: px})
	hb := c.NewBlock(helper, "entry")
	c.AppendInstr(hb, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: px}}, ir.UnitType(), source.Span{})

	main := c.NewFunc("main", source.Span{File: 1, Start: 10, End: 14})
	c.Func(main).IsEntry = true
	mb := c.NewBlock(main, "entry")
	two := c.AddConstant(ir.UintConstant(2, 64))
	three := c.AddConstant(ir.UintConstant(3, 64))
	sum := c.AppendInstr(mb, ir.Instruction{
		Kind:   ir.InstrBinary,
		Binary: ir.BinaryInstr{Op: ir.BinAdd, Left: two, Right: three},
	}, ir.UintType(64), source.Span{File: 1, Start: 20, End: 25})
	call := c.AppendInstr(mb, ir.Instruction{
		Kind: ir.InstrCall,
		Call: ir.CallInstr{Callee: helper, Args: []ir.ValueID{sum}},
	}, ir.UintType(64), source.Span{})
	c.AppendInstr(mb, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: call}}, ir.UnitType(), source.Span{})

	mod := &ir.Module{Name: "demo", Kind: ir.KindScript, Funcs: []ir.FuncID{helper, main}}
	return c, mod
}

func TestBuildScript(t *testing.T) {
	c, mod := scriptModule()

	events := make(chan Event, 128)
	res, err := Build(context.Background(), &BuildRequest{
		Context:  c,
		Module:   mod,
		Jobs:     2,
		Progress: ChannelSink{Ch: events},
	})
	if err != nil {
		t.Fatal(err)
	}
	close(events)

	if res.Bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", res.Bag.Items())
	}
	if res.Program == nil {
		t.Fatal("script build produced no program")
	}
	if len(res.Program.Bytecode)%4 != 0 {
		t.Errorf("bytecode length %d is not a whole number of instructions", len(res.Program.Bytecode))
	}
	if res.Program.CodeBytes%8 != 0 {
		t.Errorf("code size %d is not word aligned", res.Program.CodeBytes)
	}

	if len(res.Program.Entries) != 1 || res.Program.Entries[0].Name != "main" {
		t.Fatalf("entry table = %+v, want exactly main", res.Program.Entries)
	}
	if res.Program.Entries[0].Offset == 0 {
		t.Error("main starts at offset 0, but helper is laid out first")
	}

	if _, ok := res.Namespace.LookupReg("helper.x"); !ok {
		t.Error("parameter binding missing from the merged namespace")
	}

	var mainDone, emitDone bool
	for evt := range events {
		if evt.Func == "main" && evt.Status == StatusDone {
			mainDone = true
		}
		if evt.Func == "" && evt.Stage == StageEmit && evt.Status == StatusDone {
			emitDone = true
		}
	}
	if !mainDone || !emitDone {
		t.Errorf("progress stream incomplete: mainDone=%t emitDone=%t", mainDone, emitDone)
	}

	if !res.Timings.Has(StageEmit) {
		t.Error("emit stage was not timed")
	}
}

func TestBuildLibraryEmitsNoCode(t *testing.T) {
	c, mod := scriptModule()
	mod.Kind = ir.KindLibrary

	res, err := Build(context.Background(), &BuildRequest{Context: c, Module: mod})
	if err != nil {
		t.Fatal(err)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", res.Bag.Items())
	}
	if res.Program != nil {
		t.Fatal("library build emitted bytecode")
	}
}

func TestBuildScriptWithoutMain(t *testing.T) {
	c := ir.NewContext()
	f := c.NewFunc("not_main", source.Span{})
	b := c.NewBlock(f, "entry")
	zero := c.AddConstant(ir.UintConstant(0, 64))
	c.AppendInstr(b, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: zero}}, ir.UnitType(), source.Span{})
	mod := &ir.Module{Name: "demo", Kind: ir.KindScript, Funcs: []ir.FuncID{f}}

	res, err := Build(context.Background(), &BuildRequest{Context: c, Module: mod})
	if err != nil {
		t.Fatal(err)
	}
	if res.Program != nil {
		t.Fatal("program emitted despite missing entry point")
	}
	if !hasCode(res.Bag, diag.EmitMissingEntryPoint) {
		t.Fatalf("diagnostics = %+v, want missing entry point", res.Bag.Items())
	}
}

func TestBuildRejectsDuplicateSelectors(t *testing.T) {
	c := ir.NewContext()
	zero := c.AddConstant(ir.UintConstant(0, 64))
	sel := ir.Selector{0xde, 0xad, 0xbe, 0xef}

	var fids []ir.FuncID
	for _, name := range []string{"get_balance", "set_balance"} {
		fid := c.NewFunc(name, source.Span{})
		fn := c.Func(fid)
		fn.IsEntry = true
		fn.HasSelector = true
		fn.Selector = sel
		b := c.NewBlock(fid, "entry")
		c.AppendInstr(b, ir.Instruction{Kind: ir.InstrRet, Ret: ir.RetInstr{Val: zero}}, ir.UnitType(), source.Span{})
		fids = append(fids, fid)
	}
	mod := &ir.Module{Name: "token", Kind: ir.KindContract, Funcs: fids}

	res, err := Build(context.Background(), &BuildRequest{Context: c, Module: mod})
	if err != nil {
		t.Fatal(err)
	}
	if res.Program != nil {
		t.Fatal("program emitted despite selector clash")
	}
	if !hasCode(res.Bag, diag.EmitDuplicateSelector) {
		t.Fatalf("diagnostics = %+v, want duplicate selector", res.Bag.Items())
	}
}

func TestBuildConvertsICEToDiagnostic(t *testing.T) {
	c := ir.NewContext()
	f := c.NewFunc("main", source.Span{})
	fn := c.Func(f)
	fn.IsEntry = true
	// A block without a terminator fails verification, which the build
	// must surface as an internal diagnostic rather than a panic.
	b := c.NewBlock(f, "entry")
	two := c.AddConstant(ir.UintConstant(2, 64))
	c.AppendInstr(b, ir.Instruction{
		Kind:   ir.InstrBinary,
		Binary: ir.BinaryInstr{Op: ir.BinAdd, Left: two, Right: two},
	}, ir.UintType(64), source.Span{})
	mod := &ir.Module{Name: "demo", Kind: ir.KindScript, Funcs: []ir.FuncID{f}}

	res, err := Build(context.Background(), &BuildRequest{Context: c, Module: mod})
	if err != nil {
		t.Fatal(err)
	}
	if res.Program != nil {
		t.Fatal("program emitted from a function that failed verification")
	}
	if !hasCode(res.Bag, diag.InternalError) {
		t.Fatalf("diagnostics = %+v, want an internal error", res.Bag.Items())
	}
}

func TestBuildSeedsNamedConstants(t *testing.T) {
	c, mod := scriptModule()
	greeting := c.AddConstant(ir.StringConstant("hello, chain"))

	res, err := Build(context.Background(), &BuildRequest{
		Context: c,
		Module:  mod,
		Names:   map[string]ir.ValueID{"demo.greeting": greeting},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %+v", res.Bag.Items())
	}
	if _, ok := res.Namespace.LookupData("demo.greeting"); !ok {
		t.Fatal("named constant missing from the merged namespace")
	}
}

func TestCompileFunctionStageOrder(t *testing.T) {
	c, mod := scriptModule()

	var stages []Stage
	set, ok := CompileFunction(c, mod.Funcs[1], emit.NewDataSection(), lower.NewNamespace(), diag.NopReporter{}, func(s Stage) {
		stages = append(stages, s)
	})
	if !ok || set == nil {
		t.Fatal("compilation failed")
	}

	want := []Stage{StageVerify, StageOptimize, StageLower, StageRegalloc}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}
