// Package cmd implements the lpirc command-line toolchain: compile, run,
// disasm, and dump-elf subcommands over a cobra root command.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lp-glsl-vm/lpirc/pkg/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "lpirc",
	Short: "LPIR to RV32IM compiler, emulator, and disassembler",
	Long: `lpirc turns LPIR module text into RV32IM machine code, runs it
against the bundled cycle-bounded emulator, and can disassemble or inspect
the ELF32 images it produces.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.InitDev()
		} else {
			_ = logger.Init(logger.DefaultConfig())
		}
	},
}

// Execute runs the root command, printing any error to stderr before
// returning it to main for the process exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
