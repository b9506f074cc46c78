package lpir

import "fmt"

// verifyEntities checks that every value used is defined, every block
// referenced exists, and every called function exists in the module (when a
// module is available; a standalone function verifies this layer only for
// values/blocks).
func verifyEntities(fn *Function, mod *Module) []error {
	var errs []error

	defined := make(map[Value]bool)
	for _, b := range fn.Layout.Blocks() {
		for _, p := range fn.DFG.BlockParams(b) {
			defined[p] = true
		}
		for _, inst := range fn.Layout.BlockInsts(b) {
			for _, r := range fn.DFG.Inst(inst).Results {
				defined[r] = true
			}
		}
	}

	checkUse := func(b Block, inst Inst, v Value) {
		if !defined[v] {
			errs = append(errs, &VerifierError{Message: fmt.Sprintf("use of undefined value %s", v), Block: b, Inst: inst, HasInst: true})
		}
	}

	for _, b := range fn.Layout.Blocks() {
		for _, inst := range fn.Layout.BlockInsts(b) {
			data := fn.DFG.Inst(inst)
			for _, a := range data.Args {
				checkUse(b, inst, a)
			}
			for _, rv := range data.ReturnVals {
				checkUse(b, inst, rv)
			}
			for _, args := range data.TargetArgs {
				for _, a := range args {
					checkUse(b, inst, a)
				}
			}
			if data.Opcode == OpCall && mod != nil {
				callee, ok := mod.Function(data.Callee)
				if !ok {
					errs = append(errs, &VerifierError{Message: fmt.Sprintf("call to undefined function %%%s", data.Callee), Block: b, Inst: inst, HasInst: true})
				} else if len(data.Args) != len(callee.Signature.Params) {
					errs = append(errs, &VerifierError{
						Message: fmt.Sprintf("call to %%%s passes %d argument(s), signature expects %d", data.Callee, len(data.Args), len(callee.Signature.Params)),
						Block:   b, Inst: inst, HasInst: true,
					})
				}
			}
		}
	}

	return errs
}
