package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cinder/internal/asm"
	"cinder/internal/backend"
	"cinder/internal/diag"
	"cinder/internal/emit"
	"cinder/internal/irio"
	"cinder/internal/lower"
)

var (
	asmFuncFilter string
	asmRaw        bool
)

func init() {
	asmCmd.Flags().StringVar(&asmFuncFilter, "func", "", "dump only the named function")
	asmCmd.Flags().BoolVar(&asmRaw, "raw", false, "skip IR optimization and assembly cleanup passes")
}

var asmCmd = &cobra.Command{
	Use:   "asm [dir]",
	Short: "Dump a package's abstract assembly",
	Long:  `Lowers the package's IR and prints the abstract instruction stream, with virtual registers and symbolic labels, before register allocation.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAsm,
}

func runAsm(cmd *cobra.Command, args []string) error {
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

	raw, err := os.ReadFile(manifest.inputPath())
	if err != nil {
		return fmt.Errorf("failed to read IR input: %w", err)
	}
	irCtx, mod, _, err := irio.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", manifest.inputPath(), err)
	}

	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	bag := diag.NewBag(maxDiags)
	rep := diag.BagReporter{Bag: bag}
	data := emit.NewDataSection()
	ns := lower.NewNamespace()

	out := cmd.OutOrStdout()
	matched := false
	for _, fid := range mod.Funcs {
		fn := irCtx.Func(fid)
		if asmFuncFilter != "" && fn.Name != asmFuncFilter {
			continue
		}
		matched = true

		if !asmRaw {
			backend.OptimizeFunction(irCtx, fid)
		}
		set, lowered := lower.Function(irCtx, fid, data, ns, rep)
		if !lowered {
			continue
		}
		if !asmRaw {
			asm.EliminateDeadCode(set)
			asm.Peephole(set)
		}
		fmt.Fprint(out, set.String())
		fmt.Fprintln(out)
	}
	if asmFuncFilter != "" && !matched {
		return fmt.Errorf("no function named %q in %s", asmFuncFilter, mod.Name)
	}

	colorFlag, _ := cmd.Flags().GetString("color")
	colorMode, err := readColorMode(colorFlag)
	if err != nil {
		return err
	}
	renderer := &diag.Renderer{Mode: colorMode, IsTTY: isTerminal(os.Stderr)}
	renderer.RenderBag(os.Stderr, bag)
	if bag.HasErrors() {
		return fmt.Errorf("lowering failed")
	}
	return nil
}
