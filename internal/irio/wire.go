package irio

// The wire structs mirror internal/ir but replace every arena index
// with a position on the wire: aggregates and blocks are referenced by
// 1-based emission order, values by a signed ref (see valueRef).

// wireType is a flattened ir.TypeRef.
type wireType struct {
	Kind   uint8  `msgpack:"k"`
	Width  uint16 `msgpack:"w,omitempty"`
	StrLen uint32 `msgpack:"l,omitempty"`
	Agg    uint32 `msgpack:"a,omitempty"`
}

type wireAggregate struct {
	Kind   uint8      `msgpack:"k"`
	Fields []wireType `msgpack:"f,omitempty"`
	Elem   wireType   `msgpack:"e,omitempty"`
	Count  uint32     `msgpack:"n,omitempty"`
}

type wireConstant struct {
	Kind  uint8          `msgpack:"k"`
	Type  wireType       `msgpack:"t"`
	Bool  bool           `msgpack:"b,omitempty"`
	Uint  uint64         `msgpack:"u,omitempty"`
	B256  []byte         `msgpack:"h,omitempty"`
	Str   string         `msgpack:"s,omitempty"`
	Elems []wireConstant `msgpack:"e,omitempty"`
}

// valueRef points at a value: zero is invalid, a positive ref is the
// 1-based index of an instruction result in module emission order, a
// negative ref is -(1+i) for constant table entry i.
type valueRef int64

type wireSpan struct {
	File  uint32 `msgpack:"f,omitempty"`
	Start uint32 `msgpack:"s,omitempty"`
	End   uint32 `msgpack:"e,omitempty"`
}

type wireInstr struct {
	Kind uint8    `msgpack:"k"`
	Type wireType `msgpack:"t"`
	Span wireSpan `msgpack:"sp,omitempty"`

	// Operand value refs in ir.Instruction operand order.
	Args []valueRef `msgpack:"a,omitempty"`

	// Kind-specific extras.
	Sub    uint8    `msgpack:"op,omitempty"`  // binary operator / cmp predicate
	Offset uint64   `msgpack:"off,omitempty"` // getptr word offset
	Alloc  wireType `msgpack:"al,omitempty"`  // stack alloc / int cast target type
	Callee uint32   `msgpack:"fn,omitempty"`  // 1-based function index
	Blocks []uint32 `msgpack:"bl,omitempty"`  // 1-based block indices (branch targets)
}

type wireBlock struct {
	Label  string      `msgpack:"l,omitempty"`
	Instrs []wireInstr `msgpack:"i"`
}

type wireParam struct {
	Name  string   `msgpack:"n"`
	Type  wireType `msgpack:"t"`
	Value valueRef `msgpack:"v"`
}

type wireFunc struct {
	Name        string      `msgpack:"name"`
	Span        wireSpan    `msgpack:"span,omitempty"`
	Params      []wireParam `msgpack:"params,omitempty"`
	Result      wireType    `msgpack:"result"`
	Blocks      []wireBlock `msgpack:"blocks"`
	IsEntry     bool        `msgpack:"entry,omitempty"`
	HasSelector bool        `msgpack:"has_sel,omitempty"`
	Selector    []byte      `msgpack:"sel,omitempty"`
}

type wireModule struct {
	Schema     uint32          `msgpack:"schema"`
	Name       string          `msgpack:"name"`
	Kind       uint8           `msgpack:"kind"`
	Aggregates []wireAggregate `msgpack:"aggs,omitempty"`
	Constants  []wireConstant  `msgpack:"consts,omitempty"`
	Funcs      []wireFunc      `msgpack:"funcs"`

	// Names binds frontend-visible names to values, the backend's
	// namespace seed.
	Names map[string]valueRef `msgpack:"names,omitempty"`
}

// SchemaVersion guards against stale frontend output.
const SchemaVersion = 1
