// Package ir holds the typed intermediate representation the backend
// consumes: a Context owning arenas of functions, blocks, values and
// aggregate shapes, plus the analyses and rewrites that run before
// lowering. All cross-references are arena indices, never pointers, so
// handles stay cheap to copy and cannot dangle.
package ir
