package lpir

import "fmt"

// verifyTypes checks: arithmetic operands are integers; icmp operands are
// integers of matching type; fcmp operands are f32; load/store carry an
// explicit type; branch arguments match target parameter types; call
// argument and result types match the callee signature.
func verifyTypes(fn *Function, mod *Module) []error {
	var errs []error

	typeOf := fn.DFG.ValueType

	for _, b := range fn.Layout.Blocks() {
		for _, inst := range fn.Layout.BlockInsts(b) {
			data := fn.DFG.Inst(inst)
			switch {
			case data.Opcode.IsArithmetic():
				for _, a := range data.Args {
					if t := typeOf(a); !t.IsInteger() {
						errs = append(errs, &VerifierError{Message: fmt.Sprintf("%s requires integer operands, got %s for %s", data.Opcode, t, a), Block: b, Inst: inst, HasInst: true})
					}
				}
			case data.Opcode == OpIcmp:
				if len(data.Args) == 2 {
					lt, rt := typeOf(data.Args[0]), typeOf(data.Args[1])
					if !lt.IsInteger() || !rt.IsInteger() {
						errs = append(errs, &VerifierError{Message: "icmp requires integer operands", Block: b, Inst: inst, HasInst: true})
					} else if lt != rt {
						errs = append(errs, &VerifierError{Message: fmt.Sprintf("icmp operand type mismatch: %s vs %s", lt, rt), Block: b, Inst: inst, HasInst: true})
					}
				}
			case data.Opcode == OpFcmp:
				for _, a := range data.Args {
					if t := typeOf(a); t != TypeF32 {
						errs = append(errs, &VerifierError{Message: fmt.Sprintf("fcmp requires f32 operands, got %s for %s", t, a), Block: b, Inst: inst, HasInst: true})
					}
				}
			case data.Opcode == OpFadd, data.Opcode == OpFsub, data.Opcode == OpFmul, data.Opcode == OpFdiv:
				for _, a := range data.Args {
					if t := typeOf(a); t != TypeF32 {
						errs = append(errs, &VerifierError{Message: fmt.Sprintf("%s requires f32 operands, got %s for %s", data.Opcode, t, a), Block: b, Inst: inst, HasInst: true})
					}
				}
			case data.Opcode == OpLoad, data.Opcode == OpStore:
				if data.MemType == TypeInvalid {
					errs = append(errs, &VerifierError{Message: "load/store must carry an explicit type", Block: b, Inst: inst, HasInst: true})
				}
			case data.Opcode == OpJump:
				errs = append(errs, checkTargetTypes(fn, b, inst, data.Targets[0], data.TargetArgs[0])...)
			case data.Opcode == OpBrif:
				errs = append(errs, checkTargetTypes(fn, b, inst, data.Targets[0], data.TargetArgs[0])...)
				errs = append(errs, checkTargetTypes(fn, b, inst, data.Targets[1], data.TargetArgs[1])...)
			case data.Opcode == OpReturn:
				if len(data.ReturnVals) != len(fn.Signature.Returns) {
					errs = append(errs, &VerifierError{Message: fmt.Sprintf("return has %d value(s), signature declares %d", len(data.ReturnVals), len(fn.Signature.Returns)), Block: b, Inst: inst, HasInst: true})
				} else {
					for i, v := range data.ReturnVals {
						if t := typeOf(v); t != fn.Signature.Returns[i] {
							errs = append(errs, &VerifierError{Message: fmt.Sprintf("return value %d type %s does not match signature type %s", i, t, fn.Signature.Returns[i]), Block: b, Inst: inst, HasInst: true})
						}
					}
				}
			case data.Opcode == OpCall && mod != nil:
				if callee, ok := mod.Function(data.Callee); ok {
					for i, a := range data.Args {
						if i >= len(callee.Signature.Params) {
							break
						}
						if t := typeOf(a); t != callee.Signature.Params[i] {
							errs = append(errs, &VerifierError{Message: fmt.Sprintf("call argument %d type %s does not match callee parameter type %s", i, t, callee.Signature.Params[i]), Block: b, Inst: inst, HasInst: true})
						}
					}
					for i, r := range data.Results {
						if i >= len(callee.Signature.Returns) {
							break
						}
						if t := typeOf(r); t != callee.Signature.Returns[i] {
							errs = append(errs, &VerifierError{Message: fmt.Sprintf("call result %d type %s does not match callee return type %s", i, t, callee.Signature.Returns[i]), Block: b, Inst: inst, HasInst: true})
						}
					}
				}
			}
		}
	}

	return errs
}

func checkTargetTypes(fn *Function, origin Block, inst Inst, target Block, args []Value) []error {
	var errs []error
	params := fn.DFG.BlockParams(target)
	for i := 0; i < len(args) && i < len(params); i++ {
		at, pt := fn.DFG.ValueType(args[i]), fn.DFG.ValueType(params[i])
		if at != pt {
			errs = append(errs, &VerifierError{
				Message: fmt.Sprintf("branch argument %d type %s does not match %s parameter type %s", i, at, target, pt),
				Block:   origin, Inst: inst, HasInst: true,
			})
		}
	}
	return errs
}
