package testdsl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

func TestSPInitializedBeforeExecution(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = call %main()
    v1 = syscall 0(v0)
    halt
}

function %main() -> i32 {
block0:
    v0 = iconst 42
    return v0
}
}`

	ExpectSyscall(t, ir, 0, []int32{42})
}

func TestSPPointsToValidMemoryAcrossSpills(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = iconst 5
    v1 = call %main(v0)
    v2 = syscall 0(v1)
    halt
}

function %helper(i32) -> i32 {
block0(v0: i32):
    v1 = iconst 1
    v2 = iadd v0, v1
    return v2
}

function %main(i32) -> i32 {
block0(v0: i32):
    v1 = iconst 1
    v2 = iadd v0, v1
    v3 = iconst 2
    v4 = iadd v2, v3
    v5 = iconst 3
    v6 = iadd v4, v5
    v7 = iconst 4
    v8 = iadd v6, v7
    v9 = iconst 5
    v10 = iadd v8, v9
    v11 = call %helper(v10)
    v12 = iconst 100
    v13 = iadd v11, v12
    return v13
}
}`

	// main(5) = helper(5+1+2+3+4+5) + 100 = helper(20) + 100 = 21 + 100 = 121
	ExpectSyscall(t, ir, 0, []int32{121})
}

func TestPrologueSPAdjustmentAcrossCall(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = call %main()
    v1 = syscall 0(v0)
    halt
}

function %helper(i32) -> i32 {
block0(v0: i32):
    v1 = iconst 1
    v2 = iadd v0, v1
    return v2
}

function %main() -> i32 {
block0:
    v0 = iconst 1
    v1 = iconst 2
    v2 = iadd v0, v1
    v3 = iconst 3
    v4 = iadd v2, v3
    v5 = iconst 4
    v6 = iadd v4, v5
    v7 = call %helper(v6)
    v8 = iconst 100
    v9 = iadd v7, v8
    return v9
}
}`

	// v2=3, v4=6, v6=10, helper(10)=11, v9=111
	ExpectSyscall(t, ir, 0, []int32{111})
}

func TestSPInitializationNonZero(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = call %main()
    halt
}

function %main() -> i32 {
block0:
    v0 = iconst 42
    return v0
}
}`

	e := ExpectOk(t, ir)
	sp := e.GetRegister(riscv32.Sp)
	assert.NotZero(t, sp, "sp should be initialized to a nonzero value")
}

func TestCompileRejectsUnverifiableModule(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = call %missing()
    v1 = syscall 0(v0)
    halt
}
}`

	_, err := Compile(ir)
	require.Error(t, err)
}

func TestRunTimesOutOnContextDeadline(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    jump block1
block1:
    jump block1
}
}`

	ctx, cancel := context.WithDeadline(context.Background(), time.Now())
	defer cancel()

	_, err := Run(ctx, ir, 256)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompileELFEmbedsCode(t *testing.T) {
	ir := `
module {
entry: %bootstrap

function %bootstrap() -> i32 {
block0:
    v0 = iconst 1
    v1 = syscall 0(v0)
    halt
}
}`

	image, err := CompileELF(ir)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), image[0])
	assert.Equal(t, byte('E'), image[1])
}
