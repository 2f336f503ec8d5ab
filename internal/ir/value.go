package ir

import "cinder/internal/source"

// ValueKind distinguishes constants from instruction results.
type ValueKind uint8

const (
	// ValueConstant is a pooled compile-time constant.
	ValueConstant ValueKind = iota
	// ValueInstr is the result of an instruction.
	ValueInstr
)

// Value is either a constant or the result of an instruction. A value has
// a single producer and any number of readers.
type Value struct {
	ID   ValueID
	Kind ValueKind
	Type TypeRef
	Span source.Span

	// Block is the owning block for ValueInstr values.
	Block BlockID

	Const Constant
	Instr Instruction
}

// IsConstant reports whether the value is a compile-time constant.
func (v *Value) IsConstant() bool { return v.Kind == ValueConstant }
