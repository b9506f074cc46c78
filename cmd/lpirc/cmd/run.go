package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lp-glsl-vm/lpirc/pkg/disasm"
	"github.com/lp-glsl-vm/lpirc/pkg/elf"
	"github.com/lp-glsl-vm/lpirc/pkg/emulator"
	"github.com/lp-glsl-vm/lpirc/pkg/logger"
)

var (
	runRAMSize         int
	runMaxInstructions uint64
	runLogLevel        string
)

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Run an LPIR module, ELF32 image, or raw machine code under the emulator",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runRAMSize, "ram", 65536, "guest RAM size in bytes")
	runCmd.Flags().Uint64Var(&runMaxInstructions, "max-instructions", 0, "instruction budget (0 uses the emulator default)")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "none", "instruction log level: none, errors, instructions, verbose")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := loadCode(args[0])
	if err != nil {
		return err
	}

	e := emulator.New(code, make([]byte, runRAMSize))
	if runMaxInstructions > 0 {
		e = e.WithMaxInstructions(runMaxInstructions)
	}
	level, err := parseLogLevel(runLogLevel)
	if err != nil {
		return err
	}
	e = e.WithLogLevel(level)

	result, err := e.Run()
	if err != nil {
		if emuErr, ok := err.(*emulator.Error); ok {
			pc := emuErr.PC
			fmt.Fprintln(os.Stderr, e.FormatDebugInfo(&pc, 20, disasm.DisassembleWord))
			return fmt.Errorf("emulator trapped: %s", emuErr.Error())
		}
		return err
	}
	logger.LogEmulatorRun(args[0], e.GetInstructionCount(), true)

	if result.Panicked {
		fmt.Printf("panicked: %s (%s)\n", result.PanicMessage, result.PanicFile)
		os.Exit(1)
	}
	if len(result.Output) > 0 {
		os.Stdout.Write(result.Output)
	}
	fmt.Printf("exit code: %d (%d instructions)\n", result.ExitCode, e.GetInstructionCount())
	return nil
}

// loadCode accepts a .lpir source file (compiled first), a .elf image (its
// .text section is extracted), or anything else (treated as a raw code
// blob already in RV32IM machine-code form).
func loadCode(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".lpir") {
		code, _, err := compileToMachineCode(string(data))
		return code, err
	}

	if bytes.HasPrefix(data, []byte{0x7f, 'E', 'L', 'F'}) {
		img, err := elf.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing ELF image %s: %w", path, err)
		}
		text, ok := img.TextSection()
		if !ok {
			return nil, fmt.Errorf("%s: no .text section", path)
		}
		return text, nil
	}

	return data, nil
}

func parseLogLevel(s string) (emulator.LogLevel, error) {
	switch s {
	case "none":
		return emulator.LogNone, nil
	case "errors":
		return emulator.LogErrors, nil
	case "instructions":
		return emulator.LogInstructions, nil
	case "verbose":
		return emulator.LogVerbose, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
