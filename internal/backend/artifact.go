package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"cinder/internal/emit"
	"cinder/internal/ir"
)

// artifactSchemaVersion invalidates cached artifacts when the payload
// layout changes.
const artifactSchemaVersion uint16 = 1

// Digest keys the artifact cache. Callers hash the serialized IR they
// fed into the build, so a changed input never hits a stale entry.
type Digest [sha256.Size]byte

// DigestBytes hashes a serialized IR module into a cache key.
func DigestBytes(b []byte) Digest { return sha256.Sum256(b) }

// IsZero reports whether the digest was never set.
func (d Digest) IsZero() bool {
	var z Digest
	return d == z
}

// Artifact is the cached output of one successful build.
type Artifact struct {
	Schema uint16

	Name string
	Kind uint8

	Bytecode  []byte
	CodeBytes uint32
	SourceMap []byte
	Entries   []emit.EntryPoint
}

// NewArtifact packages a build output for caching.
func NewArtifact(mod *ir.Module, prog *emit.Program) (*Artifact, error) {
	smap, err := prog.SourceMap.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal source map: %w", err)
	}
	return &Artifact{
		Schema:    artifactSchemaVersion,
		Name:      mod.Name,
		Kind:      uint8(mod.Kind),
		Bytecode:  prog.Bytecode,
		CodeBytes: prog.CodeBytes,
		SourceMap: smap,
		Entries:   prog.Entries,
	}, nil
}

// Program unpacks the cached bytecode back into a build output.
func (a *Artifact) Program() (*emit.Program, error) {
	smap, err := emit.UnmarshalSourceMap(a.SourceMap)
	if err != nil {
		return nil, fmt.Errorf("unmarshal source map: %w", err)
	}
	return &emit.Program{
		Bytecode:  a.Bytecode,
		CodeBytes: a.CodeBytes,
		SourceMap: *smap,
		Entries:   a.Entries,
	}, nil
}

// ArtifactCache stores build artifacts on disk, keyed by input digest.
// Safe for concurrent use.
type ArtifactCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenArtifactCache initializes a cache under the user cache directory,
// honoring XDG_CACHE_HOME.
func OpenArtifactCache(app string) (*ArtifactCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ArtifactCache{dir: dir}, nil
}

func (c *ArtifactCache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "artifacts", hex.EncodeToString(key[:])+".mp")
}

// Put serializes an artifact and replaces any existing entry
// atomically: the payload lands in a temp file first and is renamed
// into place.
func (c *ArtifactCache) Put(key Digest, a *Artifact) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(a); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads an artifact by key. A missing entry or a schema mismatch is
// a miss, not an error.
func (c *ArtifactCache) Get(key Digest, out *Artifact) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != artifactSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the whole cache, useful after format changes.
func (c *ArtifactCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
