// Package irio is the frontend boundary: a msgpack codec for typed IR
// modules. The frontend serializes its lowered output with Encode; the
// backend rebuilds an arena-owned Context from it with Decode.
package irio
