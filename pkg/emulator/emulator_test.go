package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

func assemble(insts ...riscv32.Inst) []byte {
	var code []byte
	for _, inst := range insts {
		w := inst.Encode()
		code = append(code, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return code
}

func TestStepExecutesAddi(t *testing.T) {
	code := assemble(riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 42})
	e := New(code, make([]byte, 256))

	res, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, StepContinue, res.Kind)
	assert.EqualValues(t, 42, e.GetRegister(riscv32.A0))
	assert.EqualValues(t, 4, e.GetPC())
}

func TestRunUntilEbreakReturnsA0(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 7},
		riscv32.Inst{Kind: riscv32.KEbreak},
	)
	e := New(code, nil)

	result, err := e.RunUntilEbreak()
	require.NoError(t, err)
	assert.EqualValues(t, 7, result)
}

func TestStepReportsSyscall(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A7, Rs1: riscv32.Zero, Imm: SyscallAdd},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 2},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A1, Rs1: riscv32.Zero, Imm: 3},
		riscv32.Inst{Kind: riscv32.KEcall},
		riscv32.Inst{Kind: riscv32.KEbreak},
	)
	e := New(code, nil)

	for i := 0; i < 3; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}
	res, err := e.Step()
	require.NoError(t, err)
	require.Equal(t, StepSyscall, res.Kind)
	assert.EqualValues(t, SyscallAdd, res.Syscall.Number)
	assert.EqualValues(t, 2, res.Syscall.Args[0])
	assert.EqualValues(t, 3, res.Syscall.Args[1])
}

func TestRunHandlesDoneSyscall(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 99},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A7, Rs1: riscv32.Zero, Imm: SyscallDone},
		riscv32.Inst{Kind: riscv32.KEcall},
	)
	e := New(code, nil)

	result, err := e.Run()
	require.NoError(t, err)
	assert.EqualValues(t, 99, result.ExitCode)
	assert.False(t, result.Panicked)
}

func TestRunHandlesAddSyscallThenHalts(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 10},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A1, Rs1: riscv32.Zero, Imm: 20},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A7, Rs1: riscv32.Zero, Imm: SyscallAdd},
		riscv32.Inst{Kind: riscv32.KEcall},
		riscv32.Inst{Kind: riscv32.KEbreak},
	)
	e := New(code, nil)

	result, err := e.Run()
	require.NoError(t, err)
	assert.EqualValues(t, 30, result.ExitCode)
}

func TestRunHandlesWriteSyscall(t *testing.T) {
	ram := make([]byte, 256)
	copy(ram, []byte("hi"))

	code := assemble(
		riscv32.Inst{Kind: riscv32.KLui, Rd: riscv32.A0, Imm: int32(DefaultRAMOffset)},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A1, Rs1: riscv32.Zero, Imm: 2},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A7, Rs1: riscv32.Zero, Imm: SyscallWrite},
		riscv32.Inst{Kind: riscv32.KEcall},
		riscv32.Inst{Kind: riscv32.KEbreak},
	)
	e := New(code, ram)

	result, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, "hi", string(result.Output))
}

func TestRunHandlesPanicSyscall(t *testing.T) {
	ram := make([]byte, 256)
	copy(ram[0:], []byte("boom\x00"))
	copy(ram[16:], []byte("prog.lpir\x00"))

	code := assemble(
		riscv32.Inst{Kind: riscv32.KLui, Rd: riscv32.A0, Imm: int32(DefaultRAMOffset)},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A1, Rs1: riscv32.A0, Imm: 16},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A7, Rs1: riscv32.Zero, Imm: SyscallPanic},
		riscv32.Inst{Kind: riscv32.KEcall},
	)
	e := New(code, ram)

	result, err := e.Run()
	require.NoError(t, err)
	assert.True(t, result.Panicked)
	assert.Equal(t, "boom", result.PanicMessage)
	assert.Equal(t, "prog.lpir", result.PanicFile)
}

func TestMemoryRejectsOutOfRangeAccess(t *testing.T) {
	code := assemble(riscv32.Inst{Kind: riscv32.KLw, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: int32(DefaultRAMOffset) + 1000})
	e := New(code, make([]byte, 4))

	_, err := e.Step()
	require.Error(t, err)
	emuErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidMemoryAccess, emuErr.Kind)
}

func TestMemoryRejectsUnalignedAccess(t *testing.T) {
	code := assemble(riscv32.Inst{Kind: riscv32.KLw, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 1})
	e := New(code, make([]byte, int(DefaultRAMOffset)+16))

	_, err := e.Step()
	require.Error(t, err)
	emuErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrUnalignedAccess, emuErr.Kind)
}

func TestInstructionLimitExceeded(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.A0, Imm: 1},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.A0, Imm: 1},
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.A0, Imm: 1},
	)
	e := New(code, nil).WithMaxInstructions(3)

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = e.Step()
		if lastErr != nil {
			break
		}
	}
	require.Error(t, lastErr)
	emuErr, ok := lastErr.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrInstructionLimitExceeded, emuErr.Kind)
}

func TestZeroRegisterWritesAreDropped(t *testing.T) {
	code := assemble(riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.Zero, Rs1: riscv32.Zero, Imm: 5})
	e := New(code, nil)

	_, err := e.Step()
	require.NoError(t, err)
	assert.EqualValues(t, 0, e.GetRegister(riscv32.Zero))
}

func TestLogBufferRollsOver(t *testing.T) {
	var insts []riscv32.Inst
	for i := 0; i < 150; i++ {
		insts = append(insts, riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: int32(i)})
	}
	code := assemble(insts...)
	e := New(code, nil).WithLogLevel(LogInstructions).WithMaxInstructions(1000)

	for i := 0; i < 150; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}
	assert.Len(t, e.GetLogs(), 100)
}

func TestDumpStateShowsZeroAndNonzeroRegisters(t *testing.T) {
	code := assemble(riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 5})
	e := New(code, nil)
	_, err := e.Step()
	require.NoError(t, err)

	dump := e.DumpState()
	assert.Contains(t, dump, "zero (x0)")
	assert.Contains(t, dump, "a0 (x10) = 0x00000005 (5)")
}

func TestDivisionByZeroMatchesRISCVSemantics(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 10},
		riscv32.Inst{Kind: riscv32.KDiv, Rd: riscv32.A1, Rs1: riscv32.A0, Rs2: riscv32.Zero},
	)
	e := New(code, nil)
	_, err := e.Step()
	require.NoError(t, err)
	_, err = e.Step()
	require.NoError(t, err)
	assert.EqualValues(t, -1, e.GetRegister(riscv32.A1))
}

func TestBranchTakenUpdatesPC(t *testing.T) {
	code := assemble(
		riscv32.Inst{Kind: riscv32.KAddi, Rd: riscv32.A0, Rs1: riscv32.Zero, Imm: 1},
		riscv32.Inst{Kind: riscv32.KBeq, Rs1: riscv32.A0, Rs2: riscv32.A0, Imm: 12},
	)
	e := New(code, nil)
	_, err := e.Step()
	require.NoError(t, err)
	_, err = e.Step()
	require.NoError(t, err)
	assert.EqualValues(t, 4+12, e.GetPC())
}
