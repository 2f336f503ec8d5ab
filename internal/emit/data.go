package emit

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"cinder/internal/asm"
	"cinder/internal/ir"
	"cinder/internal/isa"
)

type dataEntry struct {
	key    string
	bytes  []byte
	offset uint32
}

// DataSection is the ordered, deduplicating store of constants too large
// or too structured for an immediate operand. Entries are identified by
// their insertion index; the byte offset of entry i is the sum of the
// encoded sizes of entries 0..i-1.
type DataSection struct {
	entries []dataEntry
	index   map[string]asm.DataID
	size    uint32
}

// NewDataSection creates an empty data section.
func NewDataSection() *DataSection {
	return &DataSection{index: make(map[string]asm.DataID)}
}

// Insert adds a constant and returns its DataID. Structurally identical
// constants share one entry: insertion is idempotent.
func (d *DataSection) Insert(c *ir.Context, k ir.Constant) asm.DataID {
	return d.insert(k.Key(), func() []byte { return encodeConstant(c, k) })
}

// Absorb merges another section into this one and returns the id
// remapping, indexed by the other section's DataID. Compilation workers
// fill private sections concurrently; the build merges them in function
// order, so final offsets never depend on scheduling.
func (d *DataSection) Absorb(other *DataSection) []asm.DataID {
	remap := make([]asm.DataID, len(other.entries))
	for i := range other.entries {
		e := &other.entries[i]
		remap[i] = d.insert(e.key, func() []byte { return e.bytes })
	}
	return remap
}

func (d *DataSection) insert(key string, encode func() []byte) asm.DataID {
	if id, ok := d.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(d.entries))
	if err != nil {
		panic(fmt.Errorf("data section overflow: %w", err))
	}
	id := asm.DataID(n)
	enc := encode()
	d.entries = append(d.entries, dataEntry{key: key, bytes: enc, offset: d.size})

	total, err := safecast.Conv[uint32](int(d.size) + len(enc))
	if err != nil {
		panic(fmt.Errorf("data section size overflow: %w", err))
	}
	d.size = total
	d.index[key] = id
	return id
}

// Offset returns the byte offset of an entry within the data section.
func (d *DataSection) Offset(id asm.DataID) uint32 {
	return d.entries[id].offset
}

// Len reports the number of entries.
func (d *DataSection) Len() int { return len(d.entries) }

// SizeBytes reports the total encoded size.
func (d *DataSection) SizeBytes() uint32 { return d.size }

// Encode concatenates every entry's canonical encoding in insertion
// order.
func (d *DataSection) Encode() []byte {
	out := make([]byte, 0, d.size)
	for i := range d.entries {
		out = append(out, d.entries[i].bytes...)
	}
	return out
}

// encodeConstant produces the canonical data-section byte encoding of a
// constant: big-endian words, padded to the flat word size of its type.
func encodeConstant(c *ir.Context, k ir.Constant) []byte {
	size := c.SizeInWords(k.Type) * isa.WordSize
	out := make([]byte, 0, size)
	out = appendConstant(c, k, out)
	for uint64(len(out)) < size {
		out = append(out, 0)
	}
	return out
}

func appendConstant(c *ir.Context, k ir.Constant, out []byte) []byte {
	switch k.Kind {
	case ir.ConstUndef:
		return append(out, make([]byte, c.SizeInWords(k.Type)*isa.WordSize)...)
	case ir.ConstUnit:
		return binary.BigEndian.AppendUint64(out, 0)
	case ir.ConstBool:
		var v uint64
		if k.Bool {
			v = 1
		}
		return binary.BigEndian.AppendUint64(out, v)
	case ir.ConstUint:
		return binary.BigEndian.AppendUint64(out, k.Uint)
	case ir.ConstB256:
		return append(out, k.B256[:]...)
	case ir.ConstString:
		out = append(out, k.Str...)
		for len(out)%isa.WordSize != 0 {
			out = append(out, 0)
		}
		return out
	case ir.ConstStruct, ir.ConstArray:
		start := len(out)
		for _, e := range k.Elems {
			out = appendConstant(c, e, out)
		}
		// Pad to the aggregate's full flat size; enums occupy the
		// largest-variant slot regardless of the actual payload.
		full := int(c.SizeInWords(k.Type) * isa.WordSize)
		for len(out)-start < full {
			out = append(out, 0)
		}
		return out
	}
	return out
}
