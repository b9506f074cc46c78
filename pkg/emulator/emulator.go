// Package emulator runs compiled RV32IM code against a deterministic,
// cycle-bounded interpreter with split code/RAM memory, so compiled output
// can be executed and inspected without leaving the host process.
package emulator

import (
	"fmt"
	"strings"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

// defaultMaxInstructions bounds every run unless overridden: the interpreter
// enforces its own budget rather than relying on a caller-side timeout to
// interrupt it, since a hung interpreter cannot be cooperatively cancelled
// mid-instruction.
const defaultMaxInstructions = 100_000

// StepKind tags what a single Step call produced.
type StepKind int

const (
	StepContinue StepKind = iota
	StepSyscall
	StepHalted
)

// SyscallInfo is the ecall payload handed back to the host: the syscall
// number from a7 and its arguments from a0..a6.
type SyscallInfo struct {
	Number int32
	Args   [7]int32
}

// StepResult is the outcome of one Step call.
type StepResult struct {
	Kind    StepKind
	Syscall SyscallInfo
}

// Emulator is a RISC-V 32-bit interpreter over a fixed code/RAM image.
type Emulator struct {
	regs             [32]int32
	pc               uint32
	memory           *Memory
	instructionCount uint64
	maxInstructions  uint64
	logLevel         LogLevel
	logBuffer        []InstLog
}

// New creates an emulator over the given code and RAM regions, starting at
// PC 0 with all registers zeroed.
func New(code, ram []byte) *Emulator {
	return &Emulator{
		memory:          NewMemory(code, ram),
		maxInstructions: defaultMaxInstructions,
	}
}

// WithMaxInstructions overrides the instruction budget.
func (e *Emulator) WithMaxInstructions(limit uint64) *Emulator {
	e.maxInstructions = limit
	return e
}

// WithLogLevel sets the logging level.
func (e *Emulator) WithLogLevel(level LogLevel) *Emulator {
	e.logLevel = level
	return e
}

// Step executes a single instruction.
func (e *Emulator) Step() (StepResult, error) {
	if e.instructionCount >= e.maxInstructions {
		return StepResult{}, &Error{
			Kind: ErrInstructionLimitExceeded, Limit: e.maxInstructions,
			Executed: e.instructionCount, PC: e.pc, Regs: e.regs,
		}
	}

	word, err := e.memory.FetchInstruction(e.pc)
	if err != nil {
		if memErr, ok := err.(*Error); ok {
			memErr.PC = e.pc
			memErr.Regs = e.regs
		}
		return StepResult{}, err
	}

	decoded, err := riscv32.Decode(word)
	if err != nil {
		return StepResult{}, &Error{
			Kind: ErrInvalidInstruction, PC: e.pc, Instruction: word,
			Reason: err.Error(), Regs: e.regs,
		}
	}

	e.instructionCount++

	exec, err := executeInstruction(decoded, e.pc, &e.regs, e.memory)
	if err != nil {
		if memErr, ok := err.(*Error); ok {
			memErr.PC = e.pc
			memErr.Regs = e.regs
		}
		return StepResult{}, err
	}

	pc := e.pc
	if exec.newPC != nil {
		e.pc = *exec.newPC
	} else {
		e.pc += 4
	}

	e.logInstruction(InstLog{
		Cycle: e.instructionCount, PC: pc, Word: word, Kind: decoded.Kind,
		Rd: exec.rd, Before: exec.before, After: exec.after,
	})

	switch {
	case exec.shouldHalt:
		return StepResult{Kind: StepHalted}, nil
	case exec.syscall:
		info := SyscallInfo{Number: e.regs[riscv32.A7]}
		for i, r := range []riscv32.Gpr{riscv32.A0, riscv32.A1, riscv32.A2, riscv32.A3, riscv32.A4, riscv32.A5, riscv32.A6} {
			info.Args[i] = e.regs[r]
		}
		return StepResult{Kind: StepSyscall, Syscall: info}, nil
	default:
		return StepResult{Kind: StepContinue}, nil
	}
}

// RunUntilEbreak steps until ebreak, returning a0's final value. An ecall
// encountered along the way is an error — callers expecting syscalls must
// use RunUntilEcall or Run.
func (e *Emulator) RunUntilEbreak() (int32, error) {
	for {
		res, err := e.Step()
		if err != nil {
			return 0, err
		}
		switch res.Kind {
		case StepHalted:
			return e.regs[riscv32.A0], nil
		case StepSyscall:
			return 0, &Error{Kind: ErrInvalidInstruction, PC: e.pc, Reason: "unexpected ecall in RunUntilEbreak", Regs: e.regs}
		}
	}
}

// RunUntilEcall steps until ecall, returning the syscall payload.
func (e *Emulator) RunUntilEcall() (SyscallInfo, error) {
	for {
		res, err := e.Step()
		if err != nil {
			return SyscallInfo{}, err
		}
		switch res.Kind {
		case StepSyscall:
			return res.Syscall, nil
		case StepHalted:
			return SyscallInfo{}, &Error{Kind: ErrInvalidInstruction, PC: e.pc, Reason: "unexpected ebreak in RunUntilEcall", Regs: e.regs}
		}
	}
}

// GetRegister reads a register; x0 always reads 0.
func (e *Emulator) GetRegister(reg riscv32.Gpr) int32 {
	if reg == riscv32.Zero {
		return 0
	}
	return e.regs[reg]
}

// SetRegister writes a register; writes to x0 are silently dropped.
func (e *Emulator) SetRegister(reg riscv32.Gpr, value int32) {
	if reg != riscv32.Zero {
		e.regs[reg] = value
	}
}

// GetPC returns the current program counter.
func (e *Emulator) GetPC() uint32 { return e.pc }

// SetPC overrides the program counter.
func (e *Emulator) SetPC(pc uint32) { e.pc = pc }

// GetInstructionCount returns the number of instructions executed so far.
func (e *Emulator) GetInstructionCount() uint64 { return e.instructionCount }

// Memory exposes the emulator's address space for inspection or setup.
func (e *Emulator) Memory() *Memory { return e.memory }

// GetLogs returns the captured rolling instruction log.
func (e *Emulator) GetLogs() []InstLog { return e.logBuffer }

// FormatLogs renders every captured log entry, one per line.
func (e *Emulator) FormatLogs() string {
	var b strings.Builder
	for _, l := range e.logBuffer {
		fmt.Fprintf(&b, "%s\n", l)
	}
	return b.String()
}

// ClearLogs discards the captured log buffer.
func (e *Emulator) ClearLogs() { e.logBuffer = nil }

func (e *Emulator) logInstruction(log InstLog) {
	if e.logLevel != LogInstructions && e.logLevel != LogVerbose {
		return
	}
	if len(e.logBuffer) >= logBufferLimit {
		e.logBuffer = e.logBuffer[1:]
	}
	e.logBuffer = append(e.logBuffer, log)
}

// namedRegs is the subset of registers DumpState always shows by ABI name,
// in ABI-conventional order.
var namedRegs = []struct {
	reg  riscv32.Gpr
	name string
}{
	{riscv32.Zero, "zero"}, {riscv32.Ra, "ra"}, {riscv32.Sp, "sp"}, {riscv32.Gp, "gp"}, {riscv32.Tp, "tp"},
	{riscv32.T0, "t0"}, {riscv32.T1, "t1"}, {riscv32.T2, "t2"}, {riscv32.S0, "s0"}, {riscv32.S1, "s1"},
	{riscv32.A0, "a0"}, {riscv32.A1, "a1"}, {riscv32.A2, "a2"}, {riscv32.A3, "a3"},
	{riscv32.A4, "a4"}, {riscv32.A5, "a5"}, {riscv32.A6, "a6"}, {riscv32.A7, "a7"},
}

// DumpState renders pc, instruction count, and every register that is
// nonzero (plus zero itself, always shown), for diagnostics.
func (e *Emulator) DumpState() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PC: 0x%08x\n", e.pc)
	fmt.Fprintf(&b, "Instructions executed: %d\n", e.instructionCount)
	b.WriteString("\nRegisters:\n")

	for _, nr := range namedRegs {
		v := e.GetRegister(nr.reg)
		if v != 0 || nr.reg == riscv32.Zero {
			fmt.Fprintf(&b, "  %s (x%d) = 0x%08x (%d)\n", nr.name, nr.reg, uint32(v), v)
		}
	}
	for i := 18; i < 32; i++ {
		reg := riscv32.Gpr(i)
		v := e.GetRegister(reg)
		if v != 0 {
			fmt.Fprintf(&b, "  x%d = 0x%08x (%d)\n", i, uint32(v), v)
		}
	}
	return b.String()
}

// FormatDebugInfo renders a disassembly window (centred on highlightPC when
// non-nil, otherwise the most recent instructions) plus the last logCount
// log entries, for attaching to a failure report.
func (e *Emulator) FormatDebugInfo(highlightPC *uint32, logCount int, disasm func(word uint32) string) string {
	var b strings.Builder
	code := e.memory.Code()

	type line struct {
		pc   uint32
		text string
	}
	var lines []line
	for i := 0; i+4 <= len(code); i += 4 {
		word := uint32(code[i]) | uint32(code[i+1])<<8 | uint32(code[i+2])<<16 | uint32(code[i+3])<<24
		lines = append(lines, line{pc: uint32(i), text: disasm(word)})
	}

	b.WriteString("Disassembly:\n")
	writeLine := func(idx int, l line) {
		marker := "    "
		if highlightPC != nil && l.pc == *highlightPC {
			marker = ">>> "
		}
		fmt.Fprintf(&b, "%s%3d: 0x%08x: %s\n", marker, idx, l.pc, l.text)
	}

	if highlightPC != nil && len(lines) > 50 {
		failIdx := 0
		for i, l := range lines {
			if l.pc == *highlightPC {
				failIdx = i
				break
			}
		}
		start := failIdx - 10
		if start < 0 {
			start = 0
		}
		end := failIdx + 11
		if end > len(lines) {
			end = len(lines)
		}
		if start > 0 {
			b.WriteString("  ...\n")
		}
		for i := start; i < end; i++ {
			writeLine(i, lines[i])
		}
		if end < len(lines) {
			b.WriteString("  ...\n")
		}
	} else if highlightPC != nil {
		for i, l := range lines {
			writeLine(i, l)
		}
	} else if len(lines) > 50 {
		start := len(lines) - 20
		b.WriteString("  ...\n")
		for i := start; i < len(lines); i++ {
			writeLine(i, lines[i])
		}
	} else {
		for i, l := range lines {
			writeLine(i, l)
		}
	}

	if len(e.logBuffer) > 0 {
		b.WriteString("\nLast execution logs:\n")
		start := len(e.logBuffer) - logCount
		if start < 0 {
			start = 0
		}
		for _, l := range e.logBuffer[start:] {
			fmt.Fprintf(&b, "%s\n", l)
		}
	}

	return b.String()
}
