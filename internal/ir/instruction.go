package ir

// InstrKind enumerates instruction kinds in the IR.
type InstrKind uint8

const (
	// InstrBinary is an arithmetic or bitwise operation.
	InstrBinary InstrKind = iota
	// InstrCmp is a comparison producing a bool.
	InstrCmp
	// InstrLoad reads a word through a pointer.
	InstrLoad
	// InstrStore writes a word through a pointer.
	InstrStore
	// InstrGetPtr takes the address of a stack slot plus a static offset.
	InstrGetPtr
	// InstrStackAlloc reserves a stack slot for a type and yields its
	// pointer.
	InstrStackAlloc
	// InstrIntCast converts between integer widths.
	InstrIntCast
	// InstrCall invokes another function.
	InstrCall

	// Terminators. Exactly one per block, always last.

	// InstrBranch transfers to a block unconditionally.
	InstrBranch
	// InstrCondBranch transfers to Then when Cond holds, else to Else.
	InstrCondBranch
	// InstrRet returns a single word.
	InstrRet
	// InstrRetData returns a memory region (pointer + length).
	InstrRetData
	// InstrRevert aborts the whole transaction.
	InstrRevert
	// InstrJumpIndirect transfers to a computed address. Conservative
	// barrier for every liveness-based pass.
	InstrJumpIndirect
)

// BinaryKind enumerates InstrBinary operators.
type BinaryKind uint8

const (
	BinAdd BinaryKind = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinLsh
	BinRsh
)

// CmpKind enumerates InstrCmp predicates.
type CmpKind uint8

const (
	CmpEqual CmpKind = iota
	CmpLessThan
	CmpGreaterThan
)

// Instruction is one typed IR operation. The Kind selects which payload
// field is meaningful; passes pattern-match on it explicitly.
type Instruction struct {
	Kind InstrKind

	Binary     BinaryInstr
	Cmp        CmpInstr
	Load       LoadInstr
	Store      StoreInstr
	GetPtr     GetPtrInstr
	StackAlloc StackAllocInstr
	IntCast    IntCastInstr
	Call       CallInstr

	Branch       BranchInstr
	CondBranch   CondBranchInstr
	Ret          RetInstr
	RetData      RetDataInstr
	Revert       RevertInstr
	JumpIndirect JumpIndirectInstr
}

type BinaryInstr struct {
	Op    BinaryKind
	Left  ValueID
	Right ValueID
}

type CmpInstr struct {
	Pred  CmpKind
	Left  ValueID
	Right ValueID
}

type LoadInstr struct {
	Ptr ValueID
}

type StoreInstr struct {
	Ptr ValueID
	Val ValueID
}

type GetPtrInstr struct {
	Base       ValueID
	WordOffset uint64
}

type StackAllocInstr struct {
	Alloc TypeRef
}

type IntCastInstr struct {
	Val ValueID
	To  TypeRef
}

type CallInstr struct {
	Callee FuncID
	Args   []ValueID
}

type BranchInstr struct {
	Target BlockID
}

type CondBranchInstr struct {
	Cond ValueID
	Then BlockID
	Else BlockID
}

type RetInstr struct {
	Val ValueID
}

type RetDataInstr struct {
	Ptr ValueID
	Len ValueID
}

type RevertInstr struct {
	Code ValueID
}

type JumpIndirectInstr struct {
	Target ValueID
}

// IsTerminator reports whether the instruction ends a block.
func (in *Instruction) IsTerminator() bool {
	switch in.Kind {
	case InstrBranch, InstrCondBranch, InstrRet, InstrRetData, InstrRevert, InstrJumpIndirect:
		return true
	}
	return false
}

// HasSideEffect reports whether removing the instruction could change
// observable behavior even when its result is unused.
func (in *Instruction) HasSideEffect() bool {
	switch in.Kind {
	case InstrStore, InstrCall, InstrStackAlloc,
		InstrBranch, InstrCondBranch, InstrRet, InstrRetData, InstrRevert, InstrJumpIndirect:
		return true
	}
	return false
}

// Operands returns the value operands of the instruction in order.
func (in *Instruction) Operands() []ValueID {
	switch in.Kind {
	case InstrBinary:
		return []ValueID{in.Binary.Left, in.Binary.Right}
	case InstrCmp:
		return []ValueID{in.Cmp.Left, in.Cmp.Right}
	case InstrLoad:
		return []ValueID{in.Load.Ptr}
	case InstrStore:
		return []ValueID{in.Store.Ptr, in.Store.Val}
	case InstrGetPtr:
		return []ValueID{in.GetPtr.Base}
	case InstrIntCast:
		return []ValueID{in.IntCast.Val}
	case InstrCall:
		return in.Call.Args
	case InstrCondBranch:
		return []ValueID{in.CondBranch.Cond}
	case InstrRet:
		return []ValueID{in.Ret.Val}
	case InstrRetData:
		return []ValueID{in.RetData.Ptr, in.RetData.Len}
	case InstrRevert:
		return []ValueID{in.Revert.Code}
	case InstrJumpIndirect:
		return []ValueID{in.JumpIndirect.Target}
	}
	return nil
}

// ReplaceOperand substitutes every occurrence of old with new in the
// instruction's operand list.
func (in *Instruction) ReplaceOperand(old, new ValueID) {
	sub := func(v *ValueID) {
		if *v == old {
			*v = new
		}
	}
	switch in.Kind {
	case InstrBinary:
		sub(&in.Binary.Left)
		sub(&in.Binary.Right)
	case InstrCmp:
		sub(&in.Cmp.Left)
		sub(&in.Cmp.Right)
	case InstrLoad:
		sub(&in.Load.Ptr)
	case InstrStore:
		sub(&in.Store.Ptr)
		sub(&in.Store.Val)
	case InstrGetPtr:
		sub(&in.GetPtr.Base)
	case InstrIntCast:
		sub(&in.IntCast.Val)
	case InstrCall:
		for i := range in.Call.Args {
			sub(&in.Call.Args[i])
		}
	case InstrCondBranch:
		sub(&in.CondBranch.Cond)
	case InstrRet:
		sub(&in.Ret.Val)
	case InstrRetData:
		sub(&in.RetData.Ptr)
		sub(&in.RetData.Len)
	case InstrRevert:
		sub(&in.Revert.Code)
	case InstrJumpIndirect:
		sub(&in.JumpIndirect.Target)
	}
}

// Successors returns the blocks a terminator can transfer to. Indirect
// jumps have no statically known successors.
func (in *Instruction) Successors() []BlockID {
	switch in.Kind {
	case InstrBranch:
		return []BlockID{in.Branch.Target}
	case InstrCondBranch:
		return []BlockID{in.CondBranch.Then, in.CondBranch.Else}
	}
	return nil
}
