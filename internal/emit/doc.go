// Package emit turns allocated instruction streams into final CVM
// bytecode: it owns the deduplicating data section, the serializer that
// resolves labels, function offsets and data references to absolute
// offsets, the source map, and the entry point table.
package emit
