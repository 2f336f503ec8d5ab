package emit

import "cinder/internal/ir"

// EntryPoint is one row of the emitted entry table: a named offset into
// the bytecode, with the 4-byte ABI selector for contract methods.
// A selector-less entry named anything but "main" is a test entry point.
type EntryPoint struct {
	Name        string      `msgpack:"name"`
	Offset      uint32      `msgpack:"offset"`
	HasSelector bool        `msgpack:"has_selector"`
	Selector    ir.Selector `msgpack:"selector"`
}

// IsTest reports whether the entry point exists only for `cinder test`.
func (e *EntryPoint) IsTest() bool {
	return !e.HasSelector && e.Name != "main"
}
