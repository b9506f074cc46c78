package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

func TestFloatToFixed16x16RoundTrip(t *testing.T) {
	cases := []float32{0, 1, -1, 2.5, -2.5, 100.125, -32768.0}
	for _, f := range cases {
		fixed := FloatToFixed16x16(f)
		back := Fixed16x16ToFloat(fixed)
		assert.InDelta(t, float64(f), float64(back), 1.0/65536.0*2, "round trip for %v", f)
	}
}

func TestFloatToFixed16x16Clamps(t *testing.T) {
	assert.Equal(t, int32(-32768*65536), FloatToFixed16x16(-100000))
	assert.Equal(t, FloatToFixed16x16(32767.9999847412109375), FloatToFixed16x16(100000))
}

func TestConvertFloatsToFixed16x16RewritesSignatureAndBody(t *testing.T) {
	fn := lpir.NewFunction("scale", lpir.Signature{Params: []lpir.Type{lpir.TypeF32}, Returns: []lpir.Type{lpir.TypeF32}})
	b := lpir.NewBuilder(fn)
	entry, params := b.CreateBlockWithParams([]lpir.Type{lpir.TypeF32})
	b.SetBlock(entry)
	half := b.Fconst(math.Float32bits(0.5))
	product := b.Fmul(params[0], half)
	b.Return([]lpir.Value{product})

	err := ConvertFloatsToFixed16x16(fn)
	require.NoError(t, err)

	assert.Equal(t, lpir.TypeI32, fn.Signature.Params[0])
	assert.Equal(t, lpir.TypeI32, fn.Signature.Returns[0])

	var sawImulh, sawIor bool
	for _, blk := range fn.Layout.Blocks() {
		for _, inst := range fn.Layout.BlockInsts(blk) {
			op := fn.DFG.Inst(inst).Opcode
			assert.NotEqual(t, lpir.OpFmul, op)
			assert.NotEqual(t, lpir.OpFconst, op)
			if op == lpir.OpImulh {
				sawImulh = true
			}
			if op == lpir.OpIor {
				sawIor = true
			}
		}
	}
	assert.True(t, sawImulh, "fmul should expand through imulh")
	assert.True(t, sawIor, "fmul should recombine with ior")

	errs := lpir.VerifyFunction(fn, nil)
	assert.Empty(t, errs)
}

func TestConvertFloatsToFixed16x16DirectBinops(t *testing.T) {
	fn := lpir.NewFunction("addsub", lpir.Signature{Returns: []lpir.Type{lpir.TypeF32}})
	b := lpir.NewBuilder(fn)
	entry := b.CreateBlock()
	b.SetBlock(entry)
	a := b.Fconst(math.Float32bits(1.0))
	c := b.Fconst(math.Float32bits(2.0))
	sum := b.Fadd(a, c)
	diff := b.Fsub(sum, c)
	b.Return([]lpir.Value{diff})

	require.NoError(t, ConvertFloatsToFixed16x16(fn))

	var ops []lpir.Opcode
	for _, inst := range fn.Layout.BlockInsts(entry) {
		ops = append(ops, fn.DFG.Inst(inst).Opcode)
	}
	assert.Contains(t, ops, lpir.OpIadd)
	assert.Contains(t, ops, lpir.OpIsub)
	assert.NotContains(t, ops, lpir.OpFadd)
	assert.NotContains(t, ops, lpir.OpFsub)
}
