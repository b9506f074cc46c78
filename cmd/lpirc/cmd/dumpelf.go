package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lp-glsl-vm/lpirc/pkg/disasm"
	"github.com/lp-glsl-vm/lpirc/pkg/elf"
)

var dumpElfCmd = &cobra.Command{
	Use:   "dump-elf <input.elf>",
	Short: "Print an ELF32 image's headers and disassembled text section",
	Args:  cobra.ExactArgs(1),
	RunE:  runDumpElf,
}

func init() {
	rootCmd.AddCommand(dumpElfCmd)
}

func runDumpElf(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	report, err := elf.Dump(data, func(code []byte) string {
		text, err := disasm.Disassemble(code, nil)
		if err != nil {
			return fmt.Sprintf("<disassembly failed: %v>", err)
		}
		return text
	})
	if err != nil {
		return fmt.Errorf("dumping %s: %w", args[0], err)
	}
	fmt.Print(report)
	return nil
}
