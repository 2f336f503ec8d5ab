package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cinder/internal/backend"
	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/ir"
	"cinder/internal/irio"
	"cinder/internal/observ"
)

var (
	buildUI      string
	buildOutput  string
	buildJobs    int
	buildEmitMap bool
	buildNoCache bool
)

func init() {
	buildCmd.Flags().StringVar(&buildUI, "ui", "auto", "interactive progress (auto|on|off)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "bytecode output path (overrides the manifest)")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "parallel compilation workers (0 = one per CPU)")
	buildCmd.Flags().BoolVar(&buildEmitMap, "map", false, "write a source map next to the bytecode")
	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "skip the artifact cache")
}

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Compile a package's IR module into bytecode",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	startDir := ""
	if len(args) == 1 {
		startDir = args[0]
	}
	manifest, ok, err := loadPackageManifest(startDir)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(noCinderTomlMessage)
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	timings, _ := cmd.Flags().GetBool("timings")
	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	colorFlag, _ := cmd.Flags().GetString("color")
	colorMode, err := readColorMode(colorFlag)
	if err != nil {
		return err
	}
	useUI, err := readUIMode(buildUI, isTerminal(os.Stdout))
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(manifest.inputPath())
	if err != nil {
		return fmt.Errorf("failed to read IR input: %w", err)
	}
	irCtx, mod, names, err := irio.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", manifest.inputPath(), err)
	}
	if kindStr := manifest.Config.Package.Kind; kindStr != "" {
		kind, err := parseProgramKind(kindStr)
		if err != nil {
			return err
		}
		if kind != mod.Kind {
			return fmt.Errorf("%s declares kind %s but the IR module is a %s", manifest.Path, kind, mod.Kind)
		}
	}

	outPath := manifest.outputPath()
	if buildOutput != "" {
		outPath = buildOutput
	}

	var cache *backend.ArtifactCache
	key := backend.DigestBytes(raw)
	if !buildNoCache {
		cache, err = backend.OpenArtifactCache("cinder")
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: artifact cache unavailable: %v\n", err)
			cache = nil
		}
	}
	if cache != nil {
		var art backend.Artifact
		if hit, err := cache.Get(key, &art); err == nil && hit {
			prog, err := art.Program()
			if err == nil {
				if err := writeOutputs(prog, outPath); err != nil {
					return err
				}
				if !quiet {
					fmt.Printf("%s (cached, %d bytes)\n", outPath, len(prog.Bytecode))
				}
				return nil
			}
		}
	}

	var timer *observ.Timer
	if timings {
		timer = observ.NewTimer()
	}
	req := &backend.BuildRequest{
		Context:        irCtx,
		Module:         mod,
		Names:          names,
		Jobs:           buildJobs,
		MaxDiagnostics: maxDiags,
		Timer:          timer,
	}

	var res backend.BuildResult
	if useUI {
		res, err = runBuildWithUI(context.Background(), "building "+manifest.Config.Package.Name, funcNames(irCtx, mod), req)
	} else {
		res, err = backend.Build(context.Background(), req)
	}
	if err != nil {
		return err
	}

	renderer := &diag.Renderer{Mode: colorMode, IsTTY: isTerminal(os.Stderr)}
	renderer.RenderBag(os.Stderr, res.Bag)
	if res.Bag.HasErrors() {
		return fmt.Errorf("build failed")
	}

	if timings {
		printStageTimings(os.Stderr, res.Timings)
		if timer != nil {
			fmt.Fprint(os.Stderr, timer.Summary())
		}
	}

	if mod.Kind == ir.KindLibrary {
		if !quiet {
			fmt.Printf("library %s: checked, nothing to emit\n", mod.Name)
		}
		return nil
	}
	if res.Program == nil {
		return fmt.Errorf("build produced no program")
	}

	if err := writeOutputs(res.Program, outPath); err != nil {
		return err
	}
	if cache != nil {
		art, err := backend.NewArtifact(mod, res.Program)
		if err == nil {
			if err := cache.Put(key, art); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to cache artifact: %v\n", err)
			}
		}
	}
	if !quiet {
		fmt.Printf("%s (%d bytes, %d entry points)\n", outPath, len(res.Program.Bytecode), len(res.Program.Entries))
	}
	return nil
}

// writeOutputs writes the bytecode and, when requested, the source map
// sidecar next to it.
func writeOutputs(prog *emit.Program, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outPath, prog.Bytecode, 0o644); err != nil {
		return fmt.Errorf("failed to write bytecode: %w", err)
	}
	if !buildEmitMap {
		return nil
	}
	smap, err := prog.SourceMap.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal source map: %w", err)
	}
	if err := os.WriteFile(outPath+".map.mp", smap, 0o644); err != nil {
		return fmt.Errorf("failed to write source map: %w", err)
	}
	return nil
}

func funcNames(c *ir.Context, mod *ir.Module) []string {
	names := make([]string, 0, len(mod.Funcs))
	for _, fid := range mod.Funcs {
		names = append(names, c.Func(fid).Name)
	}
	return names
}

// readUIMode resolves the --ui flag to a decision; auto follows whether
// stdout is a terminal.
func readUIMode(value string, stdoutIsTTY bool) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return stdoutIsTTY, nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func readColorMode(value string) (diag.ColorMode, error) {
	switch value {
	case "", "auto":
		return diag.ColorAuto, nil
	case "on":
		return diag.ColorOn, nil
	case "off":
		return diag.ColorOff, nil
	default:
		return 0, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}
