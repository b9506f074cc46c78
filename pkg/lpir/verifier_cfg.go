package lpir

import "fmt"

// verifyCFG checks: every branch target exists; block arguments match
// target parameter arities; the entry block has no incoming edges; each
// instruction's layout-derived parent block is internally consistent; every
// block has exactly one terminator, placed last.
func verifyCFG(fn *Function) []error {
	var errs []error

	blockSet := make(map[Block]bool)
	for _, b := range fn.Layout.Blocks() {
		blockSet[b] = true
	}

	entry, hasEntry := fn.EntryBlock()

	for _, b := range fn.Layout.Blocks() {
		insts := fn.Layout.BlockInsts(b)
		if len(insts) == 0 {
			errs = append(errs, &VerifierError{Message: "block has no instructions, missing terminator", Block: b})
			continue
		}
		for i, inst := range insts {
			data := fn.DFG.Inst(inst)
			if parent, ok := fn.Layout.InstBlock(inst); !ok || parent != b {
				errs = append(errs, &VerifierError{Message: "instruction parent_block inconsistent with layout", Block: b, Inst: inst, HasInst: true})
			}
			isLast := i == len(insts)-1
			if data.Opcode.IsTerminator() != isLast {
				if isLast {
					errs = append(errs, &VerifierError{Message: "block's last instruction is not a terminator", Block: b, Inst: inst, HasInst: true})
				} else {
					errs = append(errs, &VerifierError{Message: "terminator found before end of block", Block: b, Inst: inst, HasInst: true})
				}
			}
			switch data.Opcode {
			case OpJump:
				errs = append(errs, checkTarget(fn, b, inst, data.Targets[0], data.TargetArgs[0], blockSet)...)
			case OpBrif:
				errs = append(errs, checkTarget(fn, b, inst, data.Targets[0], data.TargetArgs[0], blockSet)...)
				errs = append(errs, checkTarget(fn, b, inst, data.Targets[1], data.TargetArgs[1], blockSet)...)
			}
		}
	}

	if hasEntry {
		preds := fn.Predecessors()
		if len(preds[entry]) > 0 {
			errs = append(errs, &VerifierError{Message: "entry block has incoming edges", Block: entry})
		}
	}

	return errs
}

func checkTarget(fn *Function, origin Block, inst Inst, target Block, args []Value, blockSet map[Block]bool) []error {
	var errs []error
	if !blockSet[target] {
		errs = append(errs, &VerifierError{Message: fmt.Sprintf("branch target %s does not exist", target), Block: origin, Inst: inst, HasInst: true})
		return errs
	}
	params := fn.DFG.BlockParams(target)
	if len(args) != len(params) {
		errs = append(errs, &VerifierError{
			Message: fmt.Sprintf("branch to %s passes %d argument(s), target expects %d", target, len(args), len(params)),
			Block:   origin, Inst: inst, HasInst: true,
		})
	}
	return errs
}
