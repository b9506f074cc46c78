package emulator

import (
	"fmt"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

// Syscall numbers understood by Run's built-in host-side dispatch.
const (
	SyscallDone  = 0
	SyscallPanic = 1
	SyscallWrite = 2
	SyscallAdd   = 1000
)

// RunResult is the outcome of a full Run: either a normal halt/done with an
// exit code, or a guest-reported panic, carrying whatever bytes were
// written via SyscallWrite along the way.
type RunResult struct {
	ExitCode     int32
	Panicked     bool
	PanicMessage string
	PanicFile    string
	Output       []byte
}

// Run steps the emulator to completion, handling the four built-in
// syscalls itself: done (0) and ebreak both end the run with a0 as the
// exit code; panic (1) reads a message/file pair out of guest memory and
// ends the run; write (2) copies a guest buffer into Output and returns
// its length in a0; add (1000) is a trivial host-provided arithmetic
// primitive used by test programs to exercise the syscall path without
// needing I/O. Any other syscall number is a fatal error.
func (e *Emulator) Run() (RunResult, error) {
	var out []byte
	for {
		res, err := e.Step()
		if err != nil {
			return RunResult{}, err
		}

		switch res.Kind {
		case StepHalted:
			return RunResult{ExitCode: e.GetRegister(riscv32.A0), Output: out}, nil

		case StepSyscall:
			info := res.Syscall
			switch info.Number {
			case SyscallDone:
				return RunResult{ExitCode: info.Args[0], Output: out}, nil

			case SyscallPanic:
				msg, err := e.memory.ReadCString(uint32(info.Args[0]))
				if err != nil {
					return RunResult{}, err
				}
				file, err := e.memory.ReadCString(uint32(info.Args[1]))
				if err != nil {
					return RunResult{}, err
				}
				return RunResult{Panicked: true, PanicMessage: msg, PanicFile: file, Output: out}, nil

			case SyscallWrite:
				data, err := e.memory.ReadBytes(uint32(info.Args[0]), int(info.Args[1]))
				if err != nil {
					return RunResult{}, err
				}
				out = append(out, data...)
				e.SetRegister(riscv32.A0, int32(len(data)))

			case SyscallAdd:
				e.SetRegister(riscv32.A0, info.Args[0]+info.Args[1])

			default:
				return RunResult{}, &Error{
					Kind: ErrInvalidInstruction, PC: e.pc,
					Reason: fmt.Sprintf("unknown syscall number %d", info.Number), Regs: e.regs,
				}
			}
		}
	}
}
