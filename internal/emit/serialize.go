package emit

import (
	"fmt"

	"fortio.org/safecast"

	"cinder/internal/asm"
	"cinder/internal/diag"
	"cinder/internal/ir"
	"cinder/internal/isa"
)

// Program is the final backend output: bytecode (instructions followed
// by the data section), the source map, and the entry point table.
type Program struct {
	Bytecode  []byte
	CodeBytes uint32
	SourceMap SourceMap
	Entries   []EntryPoint
}

// Input pairs one function's metadata with its finalized op stream.
type Input struct {
	Func *ir.Function
	Set  *asm.AllocatedInstructionSet
}

// OpSlots reports how many instruction slots (half words) an op occupies
// in the emitted stream. Data loads expand to two real instructions:
// materialize the absolute offset, then add the code base register.
// Finalization and the serializer must agree on these sizes, so both go
// through this one function.
func OpSlots(op *asm.Op) int {
	switch op.Kind {
	case asm.OpLabel, asm.OpComment:
		return 0
	case asm.OpDataLoad:
		return 2
	default:
		return 1
	}
}

// Serialize lays out every function back to back, resolves labels,
// callee offsets and data references to absolute values, and emits the
// final byte buffer. Offsets exist only here; everything upstream works
// with symbolic labels.
func Serialize(c *ir.Context, inputs []Input, data *DataSection, rep diag.Reporter) (*Program, error) {
	// Layout pass: function start slots and per-function label slots.
	funcStart := make(map[string]uint32, len(inputs))
	labelSlots := make([]map[asm.Label]uint32, len(inputs))
	slot := uint32(0)
	for i := range inputs {
		set := inputs[i].Set
		funcStart[set.FuncName] = slot
		labels := make(map[asm.Label]uint32)
		start := slot
		for j := range set.Ops {
			op := &set.Ops[j]
			if op.Kind == asm.OpLabel {
				labels[op.Label] = slot
			}
			n, err := safecast.Conv[uint32](OpSlots(op))
			if err != nil {
				panic(fmt.Errorf("op slot overflow: %w", err))
			}
			slot += n
		}
		if (slot-start)%2 != 0 {
			diag.Internalf("emit", "function %s occupies %d half words, finalization must make it even", set.FuncName, slot-start)
		}
		labelSlots[i] = labels
	}
	codeBytes := slot * isa.InstrSize

	s := serializer{
		ctx:       c,
		data:      data,
		rep:       rep,
		funcStart: funcStart,
		codeBytes: codeBytes,
	}
	out := &Program{CodeBytes: codeBytes}
	out.Bytecode = make([]byte, 0, int(codeBytes)+int(data.SizeBytes()))

	for i := range inputs {
		s.labels = labelSlots[i]
		if err := s.emitFunc(inputs[i].Set, out); err != nil {
			return nil, err
		}
	}
	out.Bytecode = append(out.Bytecode, data.Encode()...)

	for i := range inputs {
		fn := inputs[i].Func
		if fn == nil || !fn.IsEntry {
			continue
		}
		out.Entries = append(out.Entries, EntryPoint{
			Name:        fn.Name,
			Offset:      funcStart[inputs[i].Set.FuncName] * isa.InstrSize,
			HasSelector: fn.HasSelector,
			Selector:    fn.Selector,
		})
	}
	return out, nil
}

type serializer struct {
	ctx       *ir.Context
	data      *DataSection
	rep       diag.Reporter
	funcStart map[string]uint32
	labels    map[asm.Label]uint32
	codeBytes uint32
	slot      uint32
}

func (s *serializer) emitFunc(set *asm.AllocatedInstructionSet, out *Program) error {
	for i := range set.Ops {
		op := &set.Ops[i]
		if OpSlots(op) > 0 {
			out.SourceMap.Add(s.slot, op.Span)
		}
		if err := s.emitOp(set.FuncName, op, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *serializer) emitOp(fname string, op *asm.Op, out *Program) error {
	switch op.Kind {
	case asm.OpLabel, asm.OpComment:
		return nil

	case asm.OpMachine:
		return s.put(out, machineInstruction(&op.Machine))

	case asm.OpJump:
		target, ok := s.labels[op.Label]
		if !ok {
			diag.Internalf("emit", "unresolved label %s in %s", op.Label, fname)
		}
		return s.put(out, isa.Instruction{Op: isa.OpJi, Imm: target})

	case asm.OpJumpIfNotEq:
		target := s.labels[op.Label]
		if target > isa.MaxImm12 {
			diag.Errorf(s.rep, diag.EmitJumpOffsetOverflow, op.Span,
				fmt.Sprintf("jump target of %s exceeds the 12-bit immediate range", fname))
			return fmt.Errorf("jump offset overflow in %s", fname)
		}
		return s.put(out, isa.Instruction{
			Op: isa.OpJnei, A: op.Cond[0].Fixed, B: op.Cond[1].Fixed, Imm: target,
		})

	case asm.OpJumpIfNotZero:
		target := s.labels[op.Label]
		if target > isa.MaxImm18 {
			diag.Errorf(s.rep, diag.EmitJumpOffsetOverflow, op.Span,
				fmt.Sprintf("jump target of %s exceeds the 18-bit immediate range", fname))
			return fmt.Errorf("jump offset overflow in %s", fname)
		}
		return s.put(out, isa.Instruction{Op: isa.OpJnzi, A: op.Cond[0].Fixed, Imm: target})

	case asm.OpCall:
		target, ok := s.funcStart[op.Callee]
		if !ok {
			diag.Internalf("emit", "call to unknown function %q in %s", op.Callee, fname)
		}
		return s.put(out, isa.Instruction{Op: isa.OpJal, A: isa.RegReturnLength, Imm: target})

	case asm.OpDataLoad:
		off := s.codeBytes + s.data.Offset(op.Data)
		if off > isa.MaxImm18 {
			diag.Errorf(s.rep, diag.EmitDataOffsetOverflow, op.Span,
				fmt.Sprintf("data section entry at byte offset %d is out of addressable range", off))
			return fmt.Errorf("data offset overflow in %s", fname)
		}
		dst := op.Machine.Dst.Fixed
		if err := s.put(out, isa.Instruction{Op: isa.OpMovi, A: dst, Imm: off}); err != nil {
			return err
		}
		return s.put(out, isa.Instruction{Op: isa.OpAdd, A: dst, B: dst, C: isa.RegInstrStart})

	case asm.OpStackAlloc, asm.OpStackFree:
		bytes := op.Words * isa.WordSize
		if bytes > isa.MaxImm24 {
			diag.Internalf("emit", "stack adjustment of %d bytes in %s, lowering must chunk", bytes, fname)
		}
		opcode := isa.OpCfei
		if op.Kind == asm.OpStackFree {
			opcode = isa.OpCfsi
		}
		return s.put(out, isa.Instruction{Op: opcode, Imm: uint32(bytes)})
	}
	diag.Internalf("emit", "unhandled op kind %d in %s", op.Kind, fname)
	return nil
}

func (s *serializer) put(out *Program, ins isa.Instruction) error {
	raw, err := ins.Encode()
	if err != nil {
		diag.Internalf("emit", "unencodable instruction %s: %v", ins, err)
	}
	out.Bytecode = append(out.Bytecode, raw[:]...)
	s.slot++
	return nil
}

// machineInstruction packs an allocated machine op into its wire layout:
// the destination, when present, takes the first register field and the
// sources fill the rest in order.
func machineInstruction(m *asm.MachineOp) isa.Instruction {
	ins := isa.Instruction{Op: m.Opcode, Imm: m.Imm}
	regs := make([]isa.Register, 0, 3)
	if m.HasDst {
		regs = append(regs, m.Dst.Fixed)
	}
	for _, src := range m.Srcs {
		regs = append(regs, src.Fixed)
	}
	if len(regs) > 0 {
		ins.A = regs[0]
	}
	if len(regs) > 1 {
		ins.B = regs[1]
	}
	if len(regs) > 2 {
		ins.C = regs[2]
	}
	return ins
}
