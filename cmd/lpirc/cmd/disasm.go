package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lp-glsl-vm/lpirc/pkg/disasm"
	"github.com/lp-glsl-vm/lpirc/pkg/elf"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <input.elf|input.bin>",
	Short: "Disassemble an ELF32 image or raw machine code blob",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
}

func runDisasm(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	code := data
	if bytes.HasPrefix(data, []byte{0x7f, 'E', 'L', 'F'}) {
		img, err := elf.Parse(data)
		if err != nil {
			return fmt.Errorf("parsing ELF image %s: %w", args[0], err)
		}
		text, ok := img.TextSection()
		if !ok {
			return fmt.Errorf("%s: no .text section", args[0])
		}
		code = text
	}

	out, err := disasm.Disassemble(code, nil)
	if err != nil {
		return fmt.Errorf("disassembling %s: %w", args[0], err)
	}
	fmt.Print(out)
	return nil
}
