package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
	"github.com/lp-glsl-vm/lpirc/pkg/regalloc"
)

func TestArgRegs(t *testing.T) {
	r, ok := ArgReg(0)
	assert.True(t, ok)
	assert.Equal(t, "a0", r)

	r, ok = ArgReg(7)
	assert.True(t, ok)
	assert.Equal(t, "a7", r)

	_, ok = ArgReg(8)
	assert.False(t, ok)
}

func TestReturnRegsMatchArgRegs(t *testing.T) {
	for i := 0; i < 8; i++ {
		r, ok := ReturnReg(i)
		assert.True(t, ok)
		ar, _ := ArgReg(i)
		assert.Equal(t, ar, r)
	}
	_, ok := ReturnReg(8)
	assert.False(t, ok)
}

func TestCallerCalleeSaved(t *testing.T) {
	assert.True(t, IsCallerSaved("a0"))
	assert.True(t, IsCallerSaved("t0"))
	assert.False(t, IsCallerSaved("s0"))

	assert.True(t, IsCalleeSaved("s0"))
	assert.True(t, IsCalleeSaved("s1"))
	assert.False(t, IsCalleeSaved("a0"))
}

func allocate(t *testing.T, src string) (*lpir.Function, *regalloc.Allocator) {
	t.Helper()
	fn, err := lpir.ParseFunction(src)
	require.NoError(t, err)
	a := regalloc.NewAllocator(fn, &regalloc.Config{
		Available:   []string{"t0", "t1", "t2", "s0", "s1"},
		CalleeSaved: []string{"s0", "s1"},
		CallerSaved: []string{"t0", "t1", "t2"},
	})
	require.NoError(t, a.Allocate())
	return fn, a
}

func TestComputeAbiInfoSimple(t *testing.T) {
	fn, a := allocate(t, `function %test(i32, i32) -> i32 {
block0(v0: i32, v1: i32):
    v2 = iadd v0, v1
    return v2
}`)
	info := Compute(fn, a)
	assert.Contains(t, info.ParamRegs, 0)
	assert.Contains(t, info.ParamRegs, 1)
}

func TestComputeAbiInfoReturnValues(t *testing.T) {
	fn, a := allocate(t, `function %test() -> i32, i32 {
block0:
    v0 = iconst 1
    v1 = iconst 2
    return v0, v1
}`)
	info := Compute(fn, a)
	assert.Equal(t, "a0", info.ReturnRegs[0])
	assert.Equal(t, "a1", info.ReturnRegs[1])
}

func TestAbiInfoTracksStackParams(t *testing.T) {
	fn, a := allocate(t, `function %test(i32, i32, i32, i32, i32, i32, i32, i32, i32, i32) -> i32 {
block0(v0: i32, v1: i32, v2: i32, v3: i32, v4: i32, v5: i32, v6: i32, v7: i32, v8: i32, v9: i32):
    v10 = iadd v0, v9
    return v10
}`)
	info := Compute(fn, a)
	assert.Equal(t, int32(0), info.ParamStackOffsets[8])
	assert.Equal(t, int32(4), info.ParamStackOffsets[9])
}

func TestAbiInfoTracksStackReturns(t *testing.T) {
	fn, a := allocate(t, `function %test() -> i32, i32, i32, i32, i32, i32, i32, i32, i32, i32 {
block0:
    v0 = iconst 0
    v1 = iconst 1
    v2 = iconst 2
    v3 = iconst 3
    v4 = iconst 4
    v5 = iconst 5
    v6 = iconst 6
    v7 = iconst 7
    v8 = iconst 8
    v9 = iconst 9
    return v0, v1, v2, v3, v4, v5, v6, v7, v8, v9
}`)
	info := Compute(fn, a)
	assert.Contains(t, info.ReturnRegs, 0)
	assert.Contains(t, info.ReturnRegs, 7)
	assert.Equal(t, int32(0), info.ReturnStackOffsets[8])
	assert.Equal(t, int32(4), info.ReturnStackOffsets[9])
}
