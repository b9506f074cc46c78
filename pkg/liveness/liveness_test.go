package liveness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

func mustParse(t *testing.T, src string) *lpir.Function {
	t.Helper()
	fn, err := lpir.ParseFunction(src)
	require.NoError(t, err)
	return fn
}

func TestSimpleSequential(t *testing.T) {
	fn := mustParse(t, `function %test() -> i32 {
block0:
    v0 = iconst 1
    v1 = iconst 2
    v2 = iadd v0, v1
    return v2
}`)
	info := Compute(fn)

	v0 := info.LiveRanges[0]
	require.NotNil(t, v0)
	assert.Equal(t, InstPoint{0, 1}, v0.Def)
	assert.Equal(t, InstPoint{0, 3}, v0.LastUse)

	v1 := info.LiveRanges[1]
	require.NotNil(t, v1)
	assert.Equal(t, InstPoint{0, 2}, v1.Def)
	assert.Equal(t, InstPoint{0, 3}, v1.LastUse)

	v2 := info.LiveRanges[2]
	require.NotNil(t, v2)
	assert.Equal(t, InstPoint{0, 3}, v2.Def)
	assert.Equal(t, InstPoint{0, 4}, v2.LastUse)
}

func TestBlockParameters(t *testing.T) {
	fn := mustParse(t, `function %test(i32) -> i32 {
block0(v0: i32):
    v1 = iadd v0, v0
    return v1
}`)
	info := Compute(fn)

	param := info.LiveRanges[0]
	require.NotNil(t, param)
	assert.Equal(t, InstPoint{0, 0}, param.Def)
	assert.Contains(t, param.Uses, InstPoint{0, 1})
}

func TestUnusedValue(t *testing.T) {
	fn := mustParse(t, `function %test() {
block0:
    v0 = iconst 1
    v1 = iconst 2
    return
}`)
	info := Compute(fn)
	v0 := info.LiveRanges[0]
	require.NotNil(t, v0)
	assert.Equal(t, v0.Def, v0.LastUse)
}

func TestMultipleUses(t *testing.T) {
	fn := mustParse(t, `function %test() {
block0:
    v0 = iconst 1
    v1 = iadd v0, v0
    v2 = iadd v1, v0
    return
}`)
	info := Compute(fn)
	v0 := info.LiveRanges[0]
	require.NotNil(t, v0)
	assert.Equal(t, InstPoint{0, 1}, v0.Def)
	assert.Equal(t, InstPoint{0, 3}, v0.LastUse)
	assert.Len(t, v0.Uses, 3)
}

func TestLoop(t *testing.T) {
	fn := mustParse(t, `function %test() {
block0:
    v0 = iconst 0
    jump block1
block1:
    v1 = iadd v0, v0
    jump block1
}`)
	info := Compute(fn)
	v0 := info.LiveRanges[0]
	require.NotNil(t, v0)
	assert.NotEmpty(t, v0.Uses)
}

func TestConditional(t *testing.T) {
	fn := mustParse(t, `function %test(i32) -> i32 {
block0(v0: i32):
    v1 = iconst 0
    brif v0, block1, block2
block1:
    v2 = iadd v0, v1
    return v2
block2:
    v3 = isub v0, v1
    return v3
}`)
	info := Compute(fn)
	v0 := info.LiveRanges[0]
	require.NotNil(t, v0)
	assert.GreaterOrEqual(t, len(v0.Uses), 2)
}

func TestBlockParamsAcrossJump(t *testing.T) {
	fn := mustParse(t, `function %test(i32) -> i32 {
block0(v0: i32):
    jump block1(v0)
block1(v1: i32):
    v2 = iadd v1, v0
    return v2
}`)
	info := Compute(fn)
	v1 := info.LiveRanges[1]
	require.NotNil(t, v1)
	assert.Equal(t, InstPoint{1, 0}, v1.Def)
}

func TestLongChainEveryValueHasRange(t *testing.T) {
	fn := mustParse(t, `function %test() -> i32 {
block0:
    v0 = iconst 1
    v1 = iconst 2
    v2 = iconst 3
    v3 = iconst 4
    v4 = iconst 5
    v5 = iadd v0, v1
    v6 = iadd v2, v3
    v7 = iadd v4, v5
    v8 = iadd v6, v7
    return v8
}`)
	info := Compute(fn)
	for i := lpir.Value(0); i <= 8; i++ {
		_, ok := info.LiveRangeOf(i)
		assert.True(t, ok, "value %d should have a live range", i)
	}
	v8 := info.LiveRanges[8]
	require.NotNil(t, v8)
	assert.GreaterOrEqual(t, v8.LastUse.Inst, 9)
}
