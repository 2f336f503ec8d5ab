package backend

import (
	"bytes"
	"testing"

	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/source"
)

func testProgram() *emit.Program {
	p := &emit.Program{
		Bytecode:  []byte{0x10, 0x00, 0x00, 0x00, 0x47, 0x00, 0x00, 0x00},
		CodeBytes: 8,
		Entries:   []emit.EntryPoint{{Name: "main", Offset: 0}},
	}
	p.SourceMap.Add(0, source.Span{File: 1, Start: 3, End: 9})
	return p
}

func TestArtifactCacheRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cache, err := OpenArtifactCache("cinder-test")
	if err != nil {
		t.Fatal(err)
	}

	mod := &ir.Module{Name: "demo", Kind: ir.KindScript}
	art, err := NewArtifact(mod, testProgram())
	if err != nil {
		t.Fatal(err)
	}

	key := DigestBytes([]byte("serialized ir"))
	if err := cache.Put(key, art); err != nil {
		t.Fatal(err)
	}

	var got Artifact
	ok, err := cache.Get(key, &got)
	if err != nil || !ok {
		t.Fatalf("get = %t, %v", ok, err)
	}
	if got.Name != "demo" || got.Kind != uint8(ir.KindScript) {
		t.Fatalf("metadata = %q kind %d", got.Name, got.Kind)
	}
	if !bytes.Equal(got.Bytecode, art.Bytecode) {
		t.Fatal("bytecode corrupted by the cache round trip")
	}

	prog, err := got.Program()
	if err != nil {
		t.Fatal(err)
	}
	if prog.CodeBytes != 8 || len(prog.Entries) != 1 || prog.Entries[0].Name != "main" {
		t.Fatalf("restored program = %+v", prog)
	}
	if len(prog.SourceMap.Entries) != 1 || prog.SourceMap.Entries[0].Start != 3 {
		t.Fatalf("restored source map = %+v", prog.SourceMap.Entries)
	}
}

func TestArtifactCacheMiss(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cache, err := OpenArtifactCache("cinder-test")
	if err != nil {
		t.Fatal(err)
	}

	var out Artifact
	ok, err := cache.Get(DigestBytes([]byte("never stored")), &out)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("hit for a key that was never stored")
	}
}

func TestArtifactCacheRejectsStaleSchema(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cache, err := OpenArtifactCache("cinder-test")
	if err != nil {
		t.Fatal(err)
	}

	key := DigestBytes([]byte("ir"))
	stale := &Artifact{Schema: artifactSchemaVersion + 1, Name: "old"}
	if err := cache.Put(key, stale); err != nil {
		t.Fatal(err)
	}

	var out Artifact
	ok, err := cache.Get(key, &out)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("stale schema served as a hit")
	}
}
