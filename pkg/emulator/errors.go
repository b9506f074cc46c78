package emulator

import "fmt"

// ErrorKind classifies an emulator fault.
type ErrorKind int

const (
	ErrInvalidMemoryAccess ErrorKind = iota
	ErrUnalignedAccess
	ErrInvalidInstruction
	ErrInstructionLimitExceeded
)

// Error is a tagged emulator fault, carrying whichever fields are relevant
// to its Kind plus a snapshot of machine state at the point of failure.
type Error struct {
	Kind ErrorKind

	Addr        uint32
	PC          uint32
	Instruction uint32
	Reason      string
	Limit       uint64
	Executed    uint64
	Regs        [32]int32
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidMemoryAccess:
		return fmt.Sprintf("emulator: invalid memory access at 0x%08x (pc=0x%08x)", e.Addr, e.PC)
	case ErrUnalignedAccess:
		return fmt.Sprintf("emulator: unaligned access at 0x%08x (pc=0x%08x)", e.Addr, e.PC)
	case ErrInvalidInstruction:
		return fmt.Sprintf("emulator: invalid instruction 0x%08x at pc=0x%08x: %s", e.Instruction, e.PC, e.Reason)
	case ErrInstructionLimitExceeded:
		return fmt.Sprintf("emulator: instruction limit exceeded (%d/%d) at pc=0x%08x", e.Executed, e.Limit, e.PC)
	default:
		return "emulator: unknown error"
	}
}
