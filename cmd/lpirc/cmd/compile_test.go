package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/emulator"
)

func TestOutputFileNameStripsLpirExtension(t *testing.T) {
	assert.Equal(t, "foo.elf", outputFileName("foo.lpir", false))
	assert.Equal(t, "foo.bin", outputFileName("foo.lpir", true))
}

func TestParseLogLevelAcceptsAllNames(t *testing.T) {
	for _, name := range []string{"none", "errors", "instructions", "verbose"} {
		_, err := parseLogLevel(name)
		require.NoError(t, err, name)
	}
	_, err := parseLogLevel("bogus")
	assert.Error(t, err)
}

func TestCompileToMachineCodeRunsUnderEmulator(t *testing.T) {
	source := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = iconst 7
    v1 = syscall 0(v0)
    halt
}
}`

	code, mod, err := compileToMachineCode(source)
	require.NoError(t, err)
	assert.Equal(t, 1, mod.FunctionCount())

	e := emulator.New(code, make([]byte, 256))
	result, err := e.Run()
	require.NoError(t, err)
	assert.EqualValues(t, 7, result.ExitCode)
}

func TestCompileToMachineCodeRejectsBadSource(t *testing.T) {
	_, _, err := compileToMachineCode("not lpir at all {{{")
	assert.Error(t, err)
}
