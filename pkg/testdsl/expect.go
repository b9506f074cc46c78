package testdsl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/emulator"
)

// stepUntilSyscallOrHalt drives e one step at a time (bypassing Run's
// built-in host dispatch) so ExpectSyscall can observe the raw syscall
// number and argument registers the guest actually raised, rather than
// whatever semantics Run's own done/panic/write/add vocabulary gives it.
func stepUntilSyscallOrHalt(e *emulator.Emulator) (emulator.StepResult, error) {
	for {
		res, err := e.Step()
		if err != nil {
			return emulator.StepResult{}, err
		}
		if res.Kind != emulator.StepContinue {
			return res, nil
		}
	}
}

// ExpectSyscall compiles and runs source, requiring that the first syscall
// or halt it raises is syscall number with the given leading argument
// registers. t.Fatal's on a compile/lower/verify failure or a mismatched
// number/args, so a broken program fails at the point its text stopped
// making sense rather than deep inside emulator bookkeeping.
func ExpectSyscall(t *testing.T, source string, number int32, args []int32) {
	t.Helper()

	code, err := Compile(source)
	require.NoError(t, err, "program failed to compile")

	e := emulator.New(code, make([]byte, defaultRAMSize))
	res, err := stepUntilSyscallOrHalt(e)
	require.NoError(t, err, "program trapped before raising a syscall")
	require.Equal(t, emulator.StepSyscall, res.Kind, "program halted without raising a syscall")
	require.Equal(t, number, res.Syscall.Number, "syscall number mismatch")
	for i, want := range args {
		require.Equal(t, want, res.Syscall.Args[i], "syscall arg %d mismatch", i)
	}
}

// ExpectOk compiles and runs source, requiring it to halt cleanly (no
// panic, no unrecognized syscall), and returns the emulator so the caller
// can inspect final register or memory state beyond the exit code.
func ExpectOk(t *testing.T, source string) *emulator.Emulator {
	t.Helper()

	code, err := Compile(source)
	require.NoError(t, err, "program failed to compile")

	e := emulator.New(code, make([]byte, defaultRAMSize))
	result, err := e.Run()
	require.NoError(t, err, "program trapped during execution")
	require.False(t, result.Panicked, "program panicked: %s (%s)", result.PanicMessage, result.PanicFile)

	return e
}
