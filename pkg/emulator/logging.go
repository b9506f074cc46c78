package emulator

import (
	"fmt"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

// LogLevel controls how much instruction-level detail the emulator records
// into its rolling log buffer.
type LogLevel int

const (
	LogNone LogLevel = iota
	LogErrors
	LogInstructions
	LogVerbose
)

// logBufferLimit is the rolling window size: the oldest entry is evicted
// once the buffer would exceed this many entries.
const logBufferLimit = 100

// InstLog captures one executed instruction for diagnostics: its cycle
// number, address, raw word, decoded kind, and the destination register's
// value before and after execution.
type InstLog struct {
	Cycle  uint64
	PC     uint32
	Word   uint32
	Kind   riscv32.Kind
	Rd     riscv32.Gpr
	Before int32
	After  int32
}

func (l InstLog) String() string {
	return fmt.Sprintf("[%6d] 0x%08x %-8v %s: 0x%08x -> 0x%08x",
		l.Cycle, l.PC, l.Kind, l.Rd, uint32(l.Before), uint32(l.After))
}
