package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"cinder/internal/ir"
)

const noCinderTomlMessage = "no cinder.toml found\nplease run from a package directory or pass one explicitly, e.g.:\n  cinder build path/to/package"

type packageManifest struct {
	Path   string
	Root   string
	Config packageConfig
}

type packageConfig struct {
	Package packageSection `toml:"package"`
	Build   buildSection   `toml:"build"`
}

type packageSection struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
}

type buildSection struct {
	// Input is the frontend-produced IR module, relative to the
	// manifest directory.
	Input string `toml:"input"`
	// Output overrides the bytecode path; empty derives it from Input.
	Output string `toml:"output"`
}

func findCinderToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "cinder.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadPackageManifest(startDir string) (*packageManifest, bool, error) {
	manifestPath, ok, err := findCinderToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadPackageConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &packageManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadPackageConfig(path string) (packageConfig, error) {
	var cfg packageConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return packageConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return packageConfig{}, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return packageConfig{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("build", "input") || strings.TrimSpace(cfg.Build.Input) == "" {
		return packageConfig{}, fmt.Errorf("%s: missing [build].input", path)
	}
	if meta.IsDefined("package", "kind") {
		if _, err := parseProgramKind(cfg.Package.Kind); err != nil {
			return packageConfig{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	return cfg, nil
}

// inputPath resolves the IR input relative to the manifest.
func (m *packageManifest) inputPath() string {
	return filepath.Join(m.Root, filepath.FromSlash(m.Config.Build.Input))
}

// outputPath resolves the bytecode destination: the explicit [build]
// output when set, otherwise the input with a .bin extension.
func (m *packageManifest) outputPath() string {
	if out := strings.TrimSpace(m.Config.Build.Output); out != "" {
		return filepath.Join(m.Root, filepath.FromSlash(out))
	}
	in := m.inputPath()
	return strings.TrimSuffix(in, filepath.Ext(in)) + ".bin"
}

func parseProgramKind(value string) (ir.ProgramKind, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "library":
		return ir.KindLibrary, nil
	case "script":
		return ir.KindScript, nil
	case "predicate":
		return ir.KindPredicate, nil
	case "contract":
		return ir.KindContract, nil
	default:
		return 0, fmt.Errorf("invalid [package].kind %q (expected library|script|predicate|contract)", value)
	}
}
