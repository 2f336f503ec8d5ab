package ir

import "cinder/internal/source"

// Param is one function parameter, pre-bound to a value by the frontend.
type Param struct {
	Name  string
	Type  TypeRef
	Value ValueID
}

// Selector is the 4-byte ABI method discriminator of a contract entry
// point.
type Selector [4]byte

// Function is an ordered sequence of blocks with one designated entry.
type Function struct {
	ID   FuncID
	Name string
	Span source.Span

	Params []Param
	Result TypeRef

	Blocks []BlockID
	Entry  BlockID

	// IsEntry marks functions that get a row in the emitted entry table.
	IsEntry bool
	// HasSelector is true for ABI methods; an entry point without a
	// selector whose name is not "main" is a test entry point.
	HasSelector bool
	Selector    Selector
}

// IsTestEntry reports whether the function is a test entry point.
func (f *Function) IsTestEntry() bool {
	return f.IsEntry && !f.HasSelector && f.Name != "main"
}

// ProgramKind selects the kind of program a module compiles to. All kinds
// share the same pipeline; a library simply emits no code.
type ProgramKind uint8

const (
	// KindLibrary produces no bytecode.
	KindLibrary ProgramKind = iota
	// KindScript is a directly runnable program.
	KindScript
	// KindPredicate is a boolean spending condition.
	KindPredicate
	// KindContract exposes selector-addressed entry points.
	KindContract
)

func (k ProgramKind) String() string {
	switch k {
	case KindLibrary:
		return "library"
	case KindScript:
		return "script"
	case KindPredicate:
		return "predicate"
	case KindContract:
		return "contract"
	}
	return "unknown"
}

// Module is one compilation unit: a program kind plus its functions.
type Module struct {
	Name  string
	Kind  ProgramKind
	Funcs []FuncID
}
