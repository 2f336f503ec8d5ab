package ir

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the flat type shapes the backend distinguishes.
// Generics and traits were resolved by the frontend; only layout matters
// here.
type TypeKind uint8

const (
	// TypeUnit is the zero-sized-but-one-word unit type.
	TypeUnit TypeKind = iota
	// TypeBool is a one-word boolean.
	TypeBool
	// TypeUint is an unsigned integer of parametrized bit width.
	TypeUint
	// TypeB256 is a 256-bit hash-sized blob.
	TypeB256
	// TypeString is a fixed-length byte string.
	TypeString
	// TypePointer is a raw address into the stack or data section.
	TypePointer
	// TypeAggregate is a struct, array or enum shape stored in the
	// aggregate arena.
	TypeAggregate
)

// TypeRef is a by-value type handle. Aggregate shapes live in the Context
// arena and are referenced by ID.
type TypeRef struct {
	Kind   TypeKind
	Width  uint16 // bit width for TypeUint
	StrLen uint32 // byte length for TypeString
	Agg    AggregateID
}

func UnitType() TypeRef          { return TypeRef{Kind: TypeUnit} }
func BoolType() TypeRef          { return TypeRef{Kind: TypeBool} }
func UintType(width uint16) TypeRef {
	return TypeRef{Kind: TypeUint, Width: width}
}
func B256Type() TypeRef          { return TypeRef{Kind: TypeB256} }
func StringType(n uint32) TypeRef {
	return TypeRef{Kind: TypeString, StrLen: n}
}
func PointerType() TypeRef { return TypeRef{Kind: TypePointer} }
func AggregateType(id AggregateID) TypeRef {
	return TypeRef{Kind: TypeAggregate, Agg: id}
}

func (t TypeRef) String() string {
	switch t.Kind {
	case TypeUnit:
		return "()"
	case TypeBool:
		return "bool"
	case TypeUint:
		return fmt.Sprintf("u%d", t.Width)
	case TypeB256:
		return "b256"
	case TypeString:
		return fmt.Sprintf("str[%d]", t.StrLen)
	case TypePointer:
		return "ptr"
	case TypeAggregate:
		return fmt.Sprintf("agg%d", t.Agg)
	}
	return "?"
}

// AggregateKind distinguishes aggregate shapes.
type AggregateKind uint8

const (
	// AggregateStruct is an ordered field list.
	AggregateStruct AggregateKind = iota
	// AggregateArray is a homogeneous element sequence.
	AggregateArray
	// AggregateEnum is a tagged payload: one tag word followed by the
	// largest variant.
	AggregateEnum
)

// Aggregate describes the flat layout of a structured value.
type Aggregate struct {
	Kind AggregateKind

	// Fields holds struct field types or enum variant payload types.
	Fields []TypeRef
	// Elem and Count describe array shapes.
	Elem  TypeRef
	Count uint32
}

// SizeInWords computes the flat 8-byte-word size of a type.
func (c *Context) SizeInWords(t TypeRef) uint64 {
	switch t.Kind {
	case TypeUnit, TypeBool, TypeUint, TypePointer:
		return 1
	case TypeB256:
		return 4
	case TypeString:
		// Padded up to a whole word.
		return (uint64(t.StrLen) + 7) / 8
	case TypeAggregate:
		return c.aggregateSizeInWords(t.Agg)
	}
	return 0
}

func (c *Context) aggregateSizeInWords(id AggregateID) uint64 {
	agg := c.Aggregate(id)
	if agg == nil {
		return 0
	}
	switch agg.Kind {
	case AggregateStruct:
		var total uint64
		for _, f := range agg.Fields {
			total += c.SizeInWords(f)
		}
		return total
	case AggregateArray:
		return uint64(agg.Count) * c.SizeInWords(agg.Elem)
	case AggregateEnum:
		var largest uint64
		for _, v := range agg.Fields {
			if s := c.SizeInWords(v); s > largest {
				largest = s
			}
		}
		return 1 + largest // tag word + payload
	}
	return 0
}

// FieldOffsetInWords returns the word offset of struct field i, or the
// payload offset of enum variant i (always 1, past the tag word).
func (c *Context) FieldOffsetInWords(id AggregateID, i int) uint64 {
	agg := c.Aggregate(id)
	if agg == nil {
		return 0
	}
	switch agg.Kind {
	case AggregateStruct:
		var off uint64
		for j := 0; j < i && j < len(agg.Fields); j++ {
			off += c.SizeInWords(agg.Fields[j])
		}
		return off
	case AggregateArray:
		return uint64(i) * c.SizeInWords(agg.Elem)
	case AggregateEnum:
		return 1
	}
	return 0
}

// key returns a canonical identity string used for aggregate interning.
func (a *Aggregate) key() string {
	var b strings.Builder
	switch a.Kind {
	case AggregateStruct:
		b.WriteString("s{")
		for _, f := range a.Fields {
			b.WriteString(f.String())
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case AggregateArray:
		fmt.Fprintf(&b, "a[%s;%d]", a.Elem.String(), a.Count)
	case AggregateEnum:
		b.WriteString("e{")
		for _, v := range a.Fields {
			b.WriteString(v.String())
			b.WriteByte(',')
		}
		b.WriteByte('}')
	}
	return b.String()
}
