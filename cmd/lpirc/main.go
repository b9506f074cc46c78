// Command lpirc compiles LPIR text to RV32IM machine code, runs it under
// the bundled emulator, and inspects the resulting ELF32 images.
package main

import (
	"os"

	"github.com/lp-glsl-vm/lpirc/cmd/lpirc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
