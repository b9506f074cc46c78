package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

func testConfig() *Config {
	return &Config{
		Available:   []string{"t0", "t1", "t2", "s0", "s1"},
		CalleeSaved: []string{"s0", "s1"},
		CallerSaved: []string{"t0", "t1", "t2"},
	}
}

func TestAllocateSimpleFunction(t *testing.T) {
	fn, err := lpir.ParseFunction(`function %test() -> i32 {
block0:
    v0 = iconst 1
    v1 = iconst 2
    v2 = iadd v0, v1
    return v2
}`)
	require.NoError(t, err)

	a := NewAllocator(fn, testConfig())
	require.NoError(t, a.Allocate())

	for _, v := range []lpir.Value{0, 1, 2} {
		_, hasReg := a.GetRegister(v)
		_, hasSpill := a.GetSpillSlot(v)
		assert.True(t, hasReg || hasSpill, "value %d should be allocated a register or spill slot", v)
	}
}

func TestAllocateSpillsWhenRegistersExhausted(t *testing.T) {
	cfg := &Config{Available: []string{"t0"}}
	fn, err := lpir.ParseFunction(`function %test() -> i32 {
block0:
    v0 = iconst 1
    v1 = iconst 2
    v2 = iconst 3
    v3 = iadd v0, v1
    v4 = iadd v3, v2
    return v4
}`)
	require.NoError(t, err)

	a := NewAllocator(fn, cfg)
	require.NoError(t, a.Allocate())

	assert.Greater(t, a.GetStackSize(), 0, "single register should force at least one spill")
}

func TestAllocateAcrossCallPrefersCalleeSaved(t *testing.T) {
	mod, err := lpir.ParseModule(`module {
function %helper(i32) -> i32 {
block0(v0: i32):
    return v0
}
function %test() -> i32 {
block0:
    v0 = iconst 7
    v1 = iconst 1
    v2 = call %helper(v1)
    v3 = iadd v0, v2
    return v3
}
}`)
	require.NoError(t, err)
	fn, ok := mod.Function("test")
	require.True(t, ok)

	a := NewAllocator(fn, testConfig())
	require.NoError(t, a.Allocate())

	reg, ok := a.GetRegister(0)
	if ok {
		assert.Contains(t, testConfig().CalleeSaved, reg, "value live across a call should prefer a callee-saved register when one is free")
	}
}
