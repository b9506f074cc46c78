package spillreload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/liveness"
	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
	"github.com/lp-glsl-vm/lpirc/pkg/regalloc"
)

func tightConfig() *regalloc.Config {
	return &regalloc.Config{
		Available:   []string{"t0"},
		CalleeSaved: nil,
		CallerSaved: []string{"t0"},
	}
}

func roomyConfig() *regalloc.Config {
	return &regalloc.Config{
		Available:   []string{"t0", "t1", "t2", "t3", "t4"},
		CallerSaved: []string{"t0", "t1", "t2", "t3", "t4"},
	}
}

func build(t *testing.T, src string, cfg *regalloc.Config) (*lpir.Function, *regalloc.Allocator, *liveness.Info) {
	t.Helper()
	fn, err := lpir.ParseFunction(src)
	require.NoError(t, err)
	a := regalloc.NewAllocator(fn, cfg)
	require.NoError(t, a.Allocate())
	info := liveness.Compute(fn)
	return fn, a, info
}

func TestSpillAfterDef(t *testing.T) {
	fn, a, info := build(t, `function %test() {
block0:
    v0 = iconst 42
    return v0
}`, tightConfig())
	plan := Create(fn, a, info)

	if _, spilled := a.GetSpillSlot(0); spilled {
		defPoint := liveness.InstPoint{Block: 0, Inst: 1}
		assert.Contains(t, plan.After, defPoint)
	}
}

func TestReloadBeforeUse(t *testing.T) {
	fn, a, info := build(t, `function %test() {
block0:
    v0 = iconst 1
    v1 = iadd v0, v0
    return v1
}`, tightConfig())
	plan := Create(fn, a, info)

	if _, spilled := a.GetSpillSlot(0); spilled {
		usePoint := liveness.InstPoint{Block: 0, Inst: 2}
		assert.Contains(t, plan.Before, usePoint)
	}
}

func TestCallSiteSpillReload(t *testing.T) {
	mod, err := lpir.ParseModule(`module {
function %helper(i32) -> i32 {
block0(v0: i32):
    return v0
}
function %test() -> i32 {
block0:
    v0 = iconst 10
    v1 = iconst 20
    v2 = call %helper(v0)
    v3 = iadd v1, v2
    return v3
}
}`)
	require.NoError(t, err)
	fn, ok := mod.Function("test")
	require.True(t, ok)

	a := regalloc.NewAllocator(fn, roomyConfig())
	require.NoError(t, a.Allocate())
	info := liveness.Compute(fn)
	plan := Create(fn, a, info)

	if reg, ok := a.GetRegister(1); ok {
		callPoint := liveness.InstPoint{Block: 0, Inst: 3}
		if callerSavedTestReg(reg) {
			assert.Contains(t, plan.Before, callPoint)
		}
	}
}

func callerSavedTestReg(reg string) bool {
	for _, r := range roomyConfig().CallerSaved {
		if r == reg {
			return true
		}
	}
	return false
}

func TestMultipleReloads(t *testing.T) {
	fn, a, info := build(t, `function %test() -> i32 {
block0:
    v0 = iconst 1
    v1 = iadd v0, v0
    v2 = iadd v0, v0
    v3 = iadd v1, v2
    return v3
}`, tightConfig())
	plan := Create(fn, a, info)

	if _, spilled := a.GetSpillSlot(0); spilled {
		count := 0
		for _, ops := range plan.Before {
			for _, op := range ops {
				if op.Kind == OpReload && op.Value == 0 {
					count++
				}
			}
		}
		assert.GreaterOrEqual(t, count, 2)
	}
}

func TestSpilledReturnValue(t *testing.T) {
	fn, a, info := build(t, `function %test() -> i32 {
block0:
    v0 = iconst 42
    return v0
}`, tightConfig())
	plan := Create(fn, a, info)

	if _, spilled := a.GetSpillSlot(0); spilled {
		returnPoint := liveness.InstPoint{Block: 0, Inst: 2}
		assert.Contains(t, plan.Before, returnPoint)
	}
}

func TestBlockBoundaryReload(t *testing.T) {
	fn, a, info := build(t, `function %test() -> i32 {
block0:
    v0 = iconst 1
    jump block1
block1:
    v1 = iadd v0, v0
    return v1
}`, tightConfig())
	plan := Create(fn, a, info)

	if _, spilled := a.GetSpillSlot(0); spilled {
		usePoint := liveness.InstPoint{Block: 1, Inst: 1}
		assert.Contains(t, plan.Before, usePoint)
	}
}
