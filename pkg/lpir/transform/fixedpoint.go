// Package transform holds in-place, SSA-preserving rewrites over a parsed
// function. The only pass today converts f32 arithmetic to fixed16x16
// (Q16.16) integer arithmetic, the representation the RISC-V target expects
// since RV32IM carries no hardware FPU.
package transform

import (
	"fmt"
	"math"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

// FixedShift is the number of fractional bits in the fixed16x16
// representation: 16 integer bits, 16 fractional bits.
const FixedShift = 16

// FloatToFixed16x16 converts a float32 to its fixed16x16 (Q16.16)
// representation, clamping to the representable range and rounding to
// nearest (half away from zero).
func FloatToFixed16x16(f float32) int32 {
	const (
		minF = -32768.0
		maxF = 32767.9999847412109375
	)
	clamped := float64(f)
	if clamped < minF {
		clamped = minF
	} else if clamped > maxF {
		clamped = maxF
	}
	scaled := clamped * 65536.0
	if scaled >= 0 {
		return int32(scaled + 0.5)
	}
	return int32(scaled - 0.5)
}

// Fixed16x16ToFloat converts a fixed16x16 value back to float32, for
// debugging and for constants that must round-trip through text.
func Fixed16x16ToFloat(fixed int32) float32 {
	return float32(fixed) / 65536.0
}

// Error reports a failure of the float->fixed conversion pass, distinct from
// a parse or verification error since it names the pass that produced it.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// ConvertFloatsToFixed16x16 rewrites every f32 value, operation, and
// signature slot in fn to its fixed16x16 integer equivalent, in place:
//
//  1. the signature's f32 params/returns become i32
//  2. fconst becomes iconst of the rounded fixed value
//  3. fadd/fsub become iadd/isub directly (fixed-point add/sub needs no
//     rescaling)
//  4. fmul expands to a hi/lo double-width multiply recombined by shift,
//     since a plain 32-bit multiply of two Q16.16 values overflows before
//     the result can be rescaled
//  5. fdiv expands to a pre-shift of the dividend followed by a signed
//     divide
//  6. fcmp becomes icmp with the analogous integer condition code
//  7. load/store of type f32 become load/store of type i32
//  8. every value left typed f32 (block params, passthrough args) is
//     retyped i32
//
// The function is re-verified after rewriting; a pass that leaves the
// function malformed is a bug in the pass, not in the input, so failure is
// reported as a *transform.Error* rather than surfaced as a verifier error.
func ConvertFloatsToFixed16x16(fn *lpir.Function) error {
	for i, t := range fn.Signature.Params {
		if t == lpir.TypeF32 {
			fn.Signature.Params[i] = lpir.TypeI32
		}
	}
	for i, t := range fn.Signature.Returns {
		if t == lpir.TypeF32 {
			fn.Signature.Returns[i] = lpir.TypeI32
		}
	}

	var targets []lpir.Inst
	for _, b := range fn.Layout.Blocks() {
		targets = append(targets, fn.Layout.BlockInsts(b)...)
	}

	for _, inst := range targets {
		data := fn.DFG.Inst(inst)
		switch data.Opcode {
		case lpir.OpFconst:
			convertFconst(fn, inst, data)
		case lpir.OpFadd:
			convertDirectBinop(fn, inst, data, lpir.OpIadd)
		case lpir.OpFsub:
			convertDirectBinop(fn, inst, data, lpir.OpIsub)
		case lpir.OpFmul:
			convertFmul(fn, inst, data)
		case lpir.OpFdiv:
			convertFdiv(fn, inst, data)
		case lpir.OpFcmp:
			convertFcmp(fn, inst, data)
		case lpir.OpLoad:
			if data.MemType == lpir.TypeF32 {
				data.MemType = lpir.TypeI32
				fn.DFG.SetValueType(data.Results[0], lpir.TypeI32)
			}
		case lpir.OpStore:
			if data.MemType == lpir.TypeF32 {
				data.MemType = lpir.TypeI32
			}
		}
	}

	retypeRemainingFloats(fn)

	if errs := lpir.VerifyFunction(fn, nil); len(errs) > 0 {
		return &Error{Message: fmt.Sprintf("function %s malformed after fixed-point conversion: %s", fn.Name, errs[0])}
	}
	return nil
}

func convertFconst(fn *lpir.Function, inst lpir.Inst, data *lpir.InstData) {
	f := math.Float32frombits(data.ImmBits)
	fixed := FloatToFixed16x16(f)
	data.Opcode = lpir.OpIconst
	data.Imm = int64(fixed)
	data.ImmBits = 0
	fn.DFG.SetValueType(data.Results[0], lpir.TypeI32)
}

func convertDirectBinop(fn *lpir.Function, inst lpir.Inst, data *lpir.InstData, op lpir.Opcode) {
	data.Opcode = op
	fn.DFG.SetValueType(data.Results[0], lpir.TypeI32)
}

// convertFmul expands `result = fmul a, b` into the six-instruction
// fixed-point multiply sequence:
//
//	hi = imulh a, b         ; high 32 bits of the 64-bit product
//	lo = imul  a, b         ; low 32 bits of the 64-bit product
//	sh = iconst 16
//	hs = ishl hi, sh
//	ls = ishr lo, sh
//	result = ior hs, ls
//
// A straight `imul a, b` would compute a*b in Q32.32 and overflow 32 bits
// before it could be rescaled by >>16, so the product must be assembled
// from its high and low halves first.
func convertFmul(fn *lpir.Function, inst lpir.Inst, data *lpir.InstData) {
	result, a, b := data.Results[0], data.Args[0], data.Args[1]

	hi := fn.DFG.NextValue()
	lo := fn.DFG.NextValue()
	sh := fn.DFG.NextValue()
	hs := fn.DFG.NextValue()
	ls := fn.DFG.NextValue()
	for _, v := range []lpir.Value{hi, lo, sh, hs, ls} {
		fn.DFG.SetValueType(v, lpir.TypeI32)
	}
	fn.DFG.SetValueType(result, lpir.TypeI32)

	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpImulh, Args: []lpir.Value{a, b}, Results: []lpir.Value{hi}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpImul, Args: []lpir.Value{a, b}, Results: []lpir.Value{lo}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIconst, Imm: FixedShift, Results: []lpir.Value{sh}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIshl, Args: []lpir.Value{hi, sh}, Results: []lpir.Value{hs}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIshr, Args: []lpir.Value{lo, sh}, Results: []lpir.Value{ls}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIor, Args: []lpir.Value{hs, ls}, Results: []lpir.Value{result}})

	fn.Layout.RemoveInst(inst)
}

// convertFdiv expands `result = fdiv a, b` into:
//
//	sh = iconst 16
//	as = ishl a, sh
//	result = idiv as, b
//
// pre-shifting the dividend before the integer divide rescales the quotient
// back into Q16.16. This overflows for large |a|; the original pass carries
// the same limitation and a full-precision divide is left as future work.
func convertFdiv(fn *lpir.Function, inst lpir.Inst, data *lpir.InstData) {
	result, a, b := data.Results[0], data.Args[0], data.Args[1]

	sh := fn.DFG.NextValue()
	as := fn.DFG.NextValue()
	fn.DFG.SetValueType(sh, lpir.TypeI32)
	fn.DFG.SetValueType(as, lpir.TypeI32)
	fn.DFG.SetValueType(result, lpir.TypeI32)

	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIconst, Imm: FixedShift, Results: []lpir.Value{sh}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIshl, Args: []lpir.Value{a, sh}, Results: []lpir.Value{as}})
	insertBefore(fn, inst, lpir.InstData{Opcode: lpir.OpIdiv, Args: []lpir.Value{as, b}, Results: []lpir.Value{result}})

	fn.Layout.RemoveInst(inst)
}

func convertFcmp(fn *lpir.Function, inst lpir.Inst, data *lpir.InstData) {
	if data.Cond == lpir.CondUnordered || data.Cond == lpir.CondOrdered {
		// No NaN exists in fixed point: comparing the left operand with
		// itself makes the mapped ne/eq a constant false/true.
		data.Args[1] = data.Args[0]
	}
	data.Opcode = lpir.OpIcmp
	data.Cond = lpir.FixedToIntCond(data.Cond)
	fn.DFG.SetValueType(data.Results[0], lpir.TypeI32)
}

func insertBefore(fn *lpir.Function, before lpir.Inst, data lpir.InstData) lpir.Inst {
	id := fn.DFG.NextInst()
	fn.DFG.CreateInst(id, data)
	fn.Layout.InsertInstBefore(before, id)
	return id
}

// retypeRemainingFloats sweeps every value still typed f32 (block
// parameters and pass-through arguments that no opcode conversion above
// touched) to i32, now that no f32 operation remains to consume them.
func retypeRemainingFloats(fn *lpir.Function) {
	for v, t := range fn.DFG.AllValueTypes() {
		if t == lpir.TypeF32 {
			fn.DFG.SetValueType(v, lpir.TypeI32)
		}
	}
}
