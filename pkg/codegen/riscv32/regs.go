// Package riscv32 lowers LPIR functions into RV32IM machine instructions:
// prologue/epilogue synthesis against a computed frame layout, per-opcode
// instruction selection, phi-copy resolution on block edges, and a
// relocation/fixup pass that turns placeholder branch/call/jump offsets into
// real PC-relative displacements once every function's size is known.
package riscv32

import "fmt"

// Gpr is a RISC-V general-purpose register number (x0-x31).
type Gpr uint8

const (
	Zero Gpr = 0
	Ra   Gpr = 1
	Sp   Gpr = 2
	Gp   Gpr = 3
	Tp   Gpr = 4
	T0   Gpr = 5
	T1   Gpr = 6
	T2   Gpr = 7
	S0   Gpr = 8
	S1   Gpr = 9
	A0   Gpr = 10
	A1   Gpr = 11
	A2   Gpr = 12
	A3   Gpr = 13
	A4   Gpr = 14
	A5   Gpr = 15
	A6   Gpr = 16
	A7   Gpr = 17
	S2   Gpr = 18
	S3   Gpr = 19
	S4   Gpr = 20
	S5   Gpr = 21
	S6   Gpr = 22
	S7   Gpr = 23
	S8   Gpr = 24
	S9   Gpr = 25
	S10  Gpr = 26
	S11  Gpr = 27
	T3   Gpr = 28
	T4   Gpr = 29
	T5   Gpr = 30
	T6   Gpr = 31
)

var gprNames = map[Gpr]string{
	Zero: "zero", Ra: "ra", Sp: "sp", Gp: "gp", Tp: "tp",
	T0: "t0", T1: "t1", T2: "t2", S0: "s0", S1: "s1",
	A0: "a0", A1: "a1", A2: "a2", A3: "a3", A4: "a4", A5: "a5", A6: "a6", A7: "a7",
	S2: "s2", S3: "s3", S4: "s4", S5: "s5", S6: "s6", S7: "s7", S8: "s8", S9: "s9",
	S10: "s10", S11: "s11", T3: "t3", T4: "t4", T5: "t5", T6: "t6",
}

var gprByName = func() map[string]Gpr {
	m := make(map[string]Gpr, len(gprNames))
	for r, n := range gprNames {
		m[n] = r
	}
	return m
}()

func (r Gpr) String() string {
	if n, ok := gprNames[r]; ok {
		return n
	}
	return fmt.Sprintf("x%d", uint8(r))
}

// ParseGpr resolves an ABI register name ("a0", "s3", "sp", ...) to its
// encoding number.
func ParseGpr(name string) (Gpr, bool) {
	r, ok := gprByName[name]
	return r, ok
}

// MustParseGpr panics if name is not a valid register name; used for the
// fixed register set the lowerer references by literal name (scratch
// registers, sp, ra) where a typo is a programming error, not user input.
func MustParseGpr(name string) Gpr {
	r, ok := ParseGpr(name)
	if !ok {
		panic(fmt.Sprintf("riscv32: not a register name: %q", name))
	}
	return r
}
