package ir

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ConstantKind distinguishes constant variants.
type ConstantKind uint8

const (
	// ConstUndef is an uninitialized value of a known type.
	ConstUndef ConstantKind = iota
	// ConstUnit is the unit value.
	ConstUnit
	// ConstBool is a boolean constant.
	ConstBool
	// ConstUint is an unsigned integer constant of parametrized width.
	ConstUint
	// ConstB256 is a 256-bit blob constant.
	ConstB256
	// ConstString is a byte-string constant.
	ConstString
	// ConstStruct is an ordered list of field constants.
	ConstStruct
	// ConstArray is an ordered list of element constants.
	ConstArray
)

// Constant is a compile-time value. Struct and Array constants carry their
// elements inline; their shape lives in the aggregate arena via Type.
type Constant struct {
	Kind ConstantKind
	Type TypeRef

	Bool  bool
	Uint  uint64
	B256  [32]byte
	Str   string
	Elems []Constant
}

func UnitConstant() Constant {
	return Constant{Kind: ConstUnit, Type: UnitType()}
}

func BoolConstant(v bool) Constant {
	return Constant{Kind: ConstBool, Type: BoolType(), Bool: v}
}

func UintConstant(v uint64, width uint16) Constant {
	return Constant{Kind: ConstUint, Type: UintType(width), Uint: v}
}

func B256Constant(v [32]byte) Constant {
	return Constant{Kind: ConstB256, Type: B256Type(), B256: v}
}

func StringConstant(s string) Constant {
	return Constant{Kind: ConstString, Type: StringType(uint32(len(s))), Str: s}
}

func StructConstant(agg AggregateID, fields []Constant) Constant {
	return Constant{Kind: ConstStruct, Type: AggregateType(agg), Elems: fields}
}

func ArrayConstant(agg AggregateID, elems []Constant) Constant {
	return Constant{Kind: ConstArray, Type: AggregateType(agg), Elems: elems}
}

// UndefOf builds the undefined value of a type. For aggregate types the
// undef is expanded member-wise; the aggregate arena rejects recursive
// shapes at interning time, so the expansion always terminates.
func (c *Context) UndefOf(t TypeRef) Constant {
	if t.Kind != TypeAggregate {
		return Constant{Kind: ConstUndef, Type: t}
	}
	agg := c.Aggregate(t.Agg)
	if agg == nil {
		return Constant{Kind: ConstUndef, Type: t}
	}
	switch agg.Kind {
	case AggregateStruct:
		fields := make([]Constant, len(agg.Fields))
		for i, f := range agg.Fields {
			fields[i] = c.UndefOf(f)
		}
		return Constant{Kind: ConstStruct, Type: t, Elems: fields}
	case AggregateArray:
		elems := make([]Constant, agg.Count)
		for i := range elems {
			elems[i] = c.UndefOf(agg.Elem)
		}
		return Constant{Kind: ConstArray, Type: t, Elems: elems}
	default:
		return Constant{Kind: ConstUndef, Type: t}
	}
}

// Equal reports structural equality of two constants.
func (k Constant) Equal(other Constant) bool {
	return k.Key() == other.Key()
}

// Key returns a canonical identity string used for pooling and data
// section deduplication.
func (k Constant) Key() string {
	var b strings.Builder
	k.writeKey(&b)
	return b.String()
}

func (k Constant) writeKey(b *strings.Builder) {
	switch k.Kind {
	case ConstUndef:
		fmt.Fprintf(b, "undef:%s", k.Type)
	case ConstUnit:
		b.WriteString("unit")
	case ConstBool:
		fmt.Fprintf(b, "bool:%t", k.Bool)
	case ConstUint:
		fmt.Fprintf(b, "u%d:%d", k.Type.Width, k.Uint)
	case ConstB256:
		b.WriteString("b256:")
		b.WriteString(hex.EncodeToString(k.B256[:]))
	case ConstString:
		fmt.Fprintf(b, "str:%q", k.Str)
	case ConstStruct:
		fmt.Fprintf(b, "struct:%s{", k.Type)
		for _, e := range k.Elems {
			e.writeKey(b)
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case ConstArray:
		fmt.Fprintf(b, "array:%s[", k.Type)
		for _, e := range k.Elems {
			e.writeKey(b)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	}
}

func (k Constant) String() string {
	switch k.Kind {
	case ConstUndef:
		return "undef"
	case ConstUnit:
		return "()"
	case ConstBool:
		return fmt.Sprintf("%t", k.Bool)
	case ConstUint:
		return fmt.Sprintf("%d", k.Uint)
	case ConstB256:
		return "0x" + hex.EncodeToString(k.B256[:])
	case ConstString:
		return fmt.Sprintf("%q", k.Str)
	case ConstStruct, ConstArray:
		parts := make([]string, len(k.Elems))
		for i, e := range k.Elems {
			parts[i] = e.String()
		}
		lb, rb := "{", "}"
		if k.Kind == ConstArray {
			lb, rb = "[", "]"
		}
		return lb + strings.Join(parts, ", ") + rb
	}
	return "?"
}

// FitsInWord reports whether the constant can live in a single immediate
// or register, as opposed to the data section.
func (k Constant) FitsInWord() bool {
	switch k.Kind {
	case ConstUnit, ConstBool:
		return true
	case ConstUint:
		return true
	case ConstUndef:
		return k.Type.Kind != TypeAggregate && k.Type.Kind != TypeB256 && k.Type.Kind != TypeString
	default:
		return false
	}
}
