package emit

import (
	"github.com/vmihailenco/msgpack/v5"

	"cinder/internal/source"
)

// SourceMapEntry ties one emitted instruction to its originating span.
// Index is the half-word index of the instruction's first emitted word.
type SourceMapEntry struct {
	Index uint32 `msgpack:"i"`
	File  uint32 `msgpack:"f"`
	Start uint32 `msgpack:"s"`
	End   uint32 `msgpack:"e"`
}

// SourceMap maps emitted half-word indices to source spans. It is
// append-only, built incrementally while the serializer walks the op
// stream.
type SourceMap struct {
	Entries []SourceMapEntry `msgpack:"entries"`
}

// Add appends one mapping. Empty spans contribute nothing.
func (m *SourceMap) Add(index uint32, sp source.Span) {
	if sp.Empty() && sp.File == 0 {
		return
	}
	m.Entries = append(m.Entries, SourceMapEntry{
		Index: index,
		File:  uint32(sp.File),
		Start: sp.Start,
		End:   sp.End,
	})
}

// Marshal encodes the map for sidecar files and tooling.
func (m *SourceMap) Marshal() ([]byte, error) {
	return msgpack.Marshal(m)
}

// UnmarshalSourceMap decodes a sidecar source map.
func UnmarshalSourceMap(data []byte) (*SourceMap, error) {
	var m SourceMap
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
