package backend

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"cinder/internal/asm"
	"cinder/internal/decls"
	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/lower"
	"cinder/internal/observ"
	"cinder/internal/source"
)

// defaultMaxDiagnostics caps the bag when the request does not.
const defaultMaxDiagnostics = 100

// perFuncDiagnostics caps each worker's private bag. The build bag grows
// to hold every merged worker bag, so no function's errors are ever
// dropped; the request cap bounds module-level reporting and each worker
// bounds its own.
const perFuncDiagnostics = 16

// BuildRequest configures one module build.
type BuildRequest struct {
	Context *ir.Context
	Module  *ir.Module

	// Names carries the frontend's module-level constant bindings; they
	// seed the data section and the result namespace.
	Names map[string]ir.ValueID

	// Decls receives one declaration per function. A nil arena is
	// created on demand.
	Decls *decls.Arena

	// Jobs bounds concurrent function compilation; zero means one
	// worker per CPU.
	Jobs           int
	MaxDiagnostics int
	Progress       ProgressSink
	Timer          *observ.Timer
}

// BuildResult captures the build artefacts. Program is nil for
// libraries and for builds whose bag holds errors.
type BuildResult struct {
	Program   *emit.Program
	Namespace *lower.Namespace
	Bag       *diag.Bag
	Timings   Timings
}

// Build compiles every function of the module in parallel, merges the
// per-function artefacts in function order, and serializes the result.
// The returned error covers infrastructure failures only; compilation
// problems land in the result bag.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing build request")
	}
	if req.Context == nil || req.Module == nil {
		return result, fmt.Errorf("missing module")
	}

	maxDiags := req.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = defaultMaxDiagnostics
	}
	bag := diag.NewBag(maxDiags)
	result.Bag = bag
	rep := diag.BagReporter{Bag: bag}

	mod := req.Module
	checkEntryPoints(req.Context, mod, rep)

	arena := req.Decls
	if arena == nil {
		arena = decls.NewArena()
	}
	for _, fid := range mod.Funcs {
		fn := req.Context.Func(fid)
		arena.Insert(decls.Decl{Name: fn.Name, Kind: decls.DeclFunc, Span: fn.Span, Func: fid})
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	for _, fid := range mod.Funcs {
		emitFuncEvent(req.Progress, req.Context.Func(fid).Name, StageVerify, StatusQueued, nil, 0)
	}

	compilePhase := -1
	if req.Timer != nil {
		compilePhase = req.Timer.Begin("compile")
	}
	results := make([]funcResult, len(mod.Funcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, fid := range mod.Funcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = compileOne(req.Context, fid, req.Progress)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if req.Timer != nil {
		req.Timer.End(compilePhase, fmt.Sprintf("%d functions", len(mod.Funcs)))
	}

	data := emit.NewDataSection()
	ns := lower.NewNamespace()
	result.Namespace = ns
	seedNames(req.Context, req.Names, data, ns)

	// Merge in function order: diagnostics, data entries, and namespace
	// bindings all come out deterministic regardless of worker timing.
	compiledOK := make(map[ir.FuncID]bool, len(mod.Funcs))
	inputs := make([]emit.Input, 0, len(mod.Funcs))
	for i, fid := range mod.Funcs {
		r := &results[i]
		bag.Merge(r.bag)
		for stage, dur := range r.stages {
			result.Timings.Add(stage, dur)
		}
		compiledOK[fid] = r.ok
		if !r.ok {
			continue
		}
		remap := data.Absorb(r.data)
		retargetData(r.set, remap)
		mergeNamespace(ns, r.ns, remap)
		inputs = append(inputs, emit.Input{Func: req.Context.Func(fid), Set: r.set})
	}
	if len(inputs) < len(mod.Funcs) {
		arena.Retain(func(_ decls.ID, d *decls.Decl) bool {
			return d.Kind != decls.DeclFunc || compiledOK[d.Func]
		})
	}

	if mod.Kind == ir.KindLibrary {
		emitModuleEvent(req.Progress, StageEmit, StatusDone, nil, 0)
		return result, nil
	}
	if bag.HasErrors() {
		emitModuleEvent(req.Progress, StageEmit, StatusError, nil, 0)
		return result, nil
	}

	emitModuleEvent(req.Progress, StageEmit, StatusWorking, nil, 0)
	emitPhase := -1
	if req.Timer != nil {
		emitPhase = req.Timer.Begin("emit")
	}
	start := time.Now()
	prog, err := serialize(req.Context, inputs, data, rep, bag)
	elapsed := time.Since(start)
	result.Timings.Add(StageEmit, elapsed)
	if req.Timer != nil {
		req.Timer.End(emitPhase, fmt.Sprintf("%d bytes", programSize(prog)))
	}
	if err != nil {
		emitModuleEvent(req.Progress, StageEmit, StatusError, err, elapsed)
		return result, nil
	}
	result.Program = prog
	emitModuleEvent(req.Progress, StageEmit, StatusDone, nil, elapsed)
	return result, nil
}

// funcResult is one worker's output, merged on the build goroutine.
type funcResult struct {
	set    *asm.AllocatedInstructionSet
	data   *emit.DataSection
	ns     *lower.Namespace
	bag    *diag.Bag
	ok     bool
	stages map[Stage]time.Duration
}

// compileOne runs a single function through the pipeline on its own
// private data section, namespace, and bag. A diag.ICE panic from any
// stage is converted into an internal diagnostic on the function; any
// other panic propagates.
func compileOne(c *ir.Context, fid ir.FuncID, sink ProgressSink) (res funcResult) {
	fn := c.Func(fid)
	res.data = emit.NewDataSection()
	res.ns = lower.NewNamespace()
	res.bag = diag.NewBag(perFuncDiagnostics)
	res.stages = make(map[Stage]time.Duration)

	start := time.Now()
	cur := StageVerify
	curStart := start
	closeStage := func() {
		res.stages[cur] += time.Since(curStart)
	}
	obs := func(s Stage) {
		closeStage()
		cur, curStart = s, time.Now()
		emitFuncEvent(sink, fn.Name, s, StatusWorking, nil, 0)
	}

	defer func() {
		closeStage()
		if r := recover(); r != nil {
			ice, isICE := r.(diag.ICE)
			if !isICE {
				panic(r)
			}
			diag.BagReporter{Bag: res.bag}.Report(diag.InternalError, diag.SevInternal, fn.Span, ice.Error(), nil)
			res.set = nil
			res.ok = false
		}
		status := StatusDone
		if !res.ok {
			status = StatusError
		}
		emitFuncEvent(sink, fn.Name, cur, status, nil, time.Since(start))
	}()

	res.set, res.ok = CompileFunction(c, fid, res.data, res.ns, diag.BagReporter{Bag: res.bag}, obs)
	return res
}

// serialize wraps emit.Serialize with ICE recovery so one broken
// invariant surfaces as a diagnostic instead of killing the process.
func serialize(c *ir.Context, inputs []emit.Input, data *emit.DataSection, rep diag.Reporter, bag *diag.Bag) (prog *emit.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			ice, isICE := r.(diag.ICE)
			if !isICE {
				panic(r)
			}
			diag.BagReporter{Bag: bag}.Report(diag.InternalError, diag.SevInternal, source.Span{}, ice.Error(), nil)
			prog, err = nil, fmt.Errorf("serialization failed: %s", ice.Msg)
		}
	}()
	return emit.Serialize(c, inputs, data, rep)
}

// checkEntryPoints enforces the module-level entry invariants before
// any function compiles: a script needs a main entry point, and no two
// entry points may share an ABI selector.
func checkEntryPoints(c *ir.Context, mod *ir.Module, rep diag.Reporter) {
	seen := make(map[ir.Selector]string)
	hasMain := false
	for _, fid := range mod.Funcs {
		fn := c.Func(fid)
		if !fn.IsEntry {
			continue
		}
		if fn.Name == "main" {
			hasMain = true
		}
		if !fn.HasSelector {
			continue
		}
		if prev, ok := seen[fn.Selector]; ok {
			diag.Errorf(rep, diag.EmitDuplicateSelector, fn.Span,
				fmt.Sprintf("selector %x of %s is already taken by %s", fn.Selector, fn.Name, prev))
			continue
		}
		seen[fn.Selector] = fn.Name
	}
	if mod.Kind == ir.KindScript && !hasMain {
		diag.Errorf(rep, diag.EmitMissingEntryPoint, source.Span{},
			fmt.Sprintf("script %s declares no main entry point", mod.Name))
	}
}

// seedNames inserts the frontend's named constants into the data
// section ahead of any function data, in name order.
func seedNames(c *ir.Context, names map[string]ir.ValueID, data *emit.DataSection, ns *lower.Namespace) {
	keys := make([]string, 0, len(names))
	for name := range names {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		v := c.Value(names[name])
		if v == nil || !v.IsConstant() {
			continue
		}
		ns.BindData(name, data.Insert(c, v.Const))
	}
}

// retargetData rewrites a function's data references through the merge
// remapping.
func retargetData(set *asm.AllocatedInstructionSet, remap []asm.DataID) {
	for i := range set.Ops {
		op := &set.Ops[i]
		if op.Kind == asm.OpDataLoad {
			op.Data = remap[op.Data]
		}
	}
}

func mergeNamespace(dst, src *lower.Namespace, remap []asm.DataID) {
	for name, r := range src.Regs {
		dst.BindReg(name, r)
	}
	for name, id := range src.Data {
		dst.BindData(name, remap[id])
	}
}

func programSize(p *emit.Program) int {
	if p == nil {
		return 0
	}
	return len(p.Bytecode)
}

func emitFuncEvent(sink ProgressSink, name string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Func: name, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func emitModuleEvent(sink ProgressSink, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
