package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
	"github.com/lp-glsl-vm/lpirc/pkg/elf"
	"github.com/lp-glsl-vm/lpirc/pkg/logger"
	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

var (
	compileOutput string
	compileRaw    bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <input.lpir>",
	Short: "Compile an LPIR module to an RV32IM ELF32 image",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output file (default: input with .elf extension)")
	compileCmd.Flags().BoolVar(&compileRaw, "raw", false, "write raw machine code instead of an ELF32 image")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	start := time.Now()
	logger.LogCompilerStart(args)

	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	code, mod, err := compileToMachineCode(string(source))
	if err != nil {
		logger.LogCompilerComplete(false, time.Since(start).String())
		return err
	}
	logger.LogParsing(args[0], mod.FunctionCount())

	output := compileOutput
	if output == "" {
		output = outputFileName(args[0], compileRaw)
	}

	var payload []byte
	if compileRaw {
		payload = code
	} else {
		payload = elf.Generate(code)
	}

	if err := os.WriteFile(output, payload, 0644); err != nil {
		logger.LogCompilerComplete(false, time.Since(start).String())
		return fmt.Errorf("writing %s: %w", output, err)
	}
	logger.LogELFEmission(output, len(payload))
	logger.LogCompilerComplete(true, time.Since(start).String())

	fmt.Printf("wrote %s (%d bytes)\n", output, len(payload))
	return nil
}

// compileToMachineCode parses, verifies, and lowers source, returning the
// flat RV32IM instruction stream and the parsed module (for diagnostics
// like function counts that callers log separately).
func compileToMachineCode(source string) ([]byte, *lpir.Module, error) {
	logger.LogPhase("parsing")
	mod, err := lpir.ParseModule(source)
	if err != nil {
		logger.LogError("parsing", err.Error())
		return nil, nil, fmt.Errorf("parse error: %w", err)
	}
	logger.LogPhaseComplete("parsing")

	logger.LogPhase("verification")
	if errs := lpir.VerifyModule(mod); len(errs) > 0 {
		logger.LogError("verification", errs[0].Error())
		return nil, nil, fmt.Errorf("verification failed (%d errors), first: %w", len(errs), errs[0])
	}
	logger.LogVerification("module", mod.FunctionCount())
	logger.LogPhaseComplete("verification")

	logger.LogPhase("code generation")
	buf, err := riscv32.NewLowerer().LowerModule(mod)
	if err != nil {
		logger.LogError("code generation", err.Error())
		return nil, nil, fmt.Errorf("code generation error: %w", err)
	}
	logger.LogCodeGen("riscv32", "module", buf.Len())
	logger.LogPhaseComplete("code generation")

	return buf.AsBytes(), mod, nil
}

func outputFileName(input string, raw bool) string {
	base := strings.TrimSuffix(input, ".lpir")
	if raw {
		return base + ".bin"
	}
	return base + ".elf"
}
