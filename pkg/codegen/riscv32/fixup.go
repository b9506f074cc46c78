package riscv32

import (
	"fmt"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

// FixupError reports a relocation whose target fell outside the reach of
// its instruction's displacement field.
type FixupError struct {
	Reloc    Relocation
	Distance int
	Limit    int
}

func (e *FixupError) Error() string {
	return fmt.Sprintf("riscv32: relocation at inst %d out of range: distance %d exceeds limit %d",
		e.Reloc.InstIndex, e.Distance, e.Limit)
}

const (
	branchRangeBytes = 4096   // B-type: 13-bit signed immediate, 2-byte units
	jumpRangeBytes   = 1 << 20 // J-type: 21-bit signed immediate, 2-byte units
)

// ApplyFixups resolves every remaining relocation recorded against buf — by
// construction, only RelocCall entries survive past
// resolveIntraFunctionRelocs — replacing each placeholder jal's Imm with the
// real PC-relative byte displacement to the callee's entry, then clears buf's
// relocation list. funcStarts maps function name to its first instruction's
// index within buf.
func ApplyFixups(buf *CodeBuffer, funcStarts map[string]int) error {
	for _, reloc := range buf.Relocations() {
		if reloc.Kind != RelocCall {
			return fmt.Errorf("riscv32: unresolved non-call relocation reached module fixup pass: %v", reloc.Kind)
		}
		targetIdx, ok := funcStarts[reloc.TargetFunc]
		if !ok {
			return fmt.Errorf("riscv32: call relocation targets unknown function %q", reloc.TargetFunc)
		}

		distance := (targetIdx - reloc.InstIndex) * 4
		if distance > jumpRangeBytes-2 || distance < -jumpRangeBytes {
			return &FixupError{Reloc: reloc, Distance: distance, Limit: jumpRangeBytes}
		}

		inst := buf.Instructions()[reloc.InstIndex]
		inst.Imm = int32(distance)
		buf.Set(reloc.InstIndex, inst)
	}
	buf.SetRelocations(nil)
	return nil
}

// resolveIntraFunctionRelocs patches every RelocJump/RelocBranch/RelocEpilogue
// in buf using blockEntry (this function's own block-to-instruction-index
// map) and epilogueIdx, then strips them from buf's relocation list, leaving
// only RelocCall entries for the module-wide fixup pass to resolve once
// every function's placement in the final image is known.
func resolveIntraFunctionRelocs(buf *CodeBuffer, blockEntry map[lpir.Block]int, epilogueIdx int) error {
	var remaining []Relocation
	for _, reloc := range buf.Relocations() {
		if reloc.Kind == RelocCall {
			remaining = append(remaining, reloc)
			continue
		}

		var targetIdx int
		switch reloc.Kind {
		case RelocEpilogue:
			targetIdx = epilogueIdx
		case RelocJump, RelocBranch:
			idx, ok := blockEntry[reloc.TargetBlock]
			if !ok {
				return fmt.Errorf("riscv32: relocation at inst %d targets unresolved block %v", reloc.InstIndex, reloc.TargetBlock)
			}
			targetIdx = idx
		default:
			return fmt.Errorf("riscv32: unknown relocation kind %v", reloc.Kind)
		}

		distance := (targetIdx - reloc.InstIndex) * 4
		limit := jumpRangeBytes
		if reloc.Kind == RelocBranch {
			limit = branchRangeBytes
		}
		if distance > limit-2 || distance < -limit {
			return &FixupError{Reloc: reloc, Distance: distance, Limit: limit}
		}

		inst := buf.Instructions()[reloc.InstIndex]
		inst.Imm = int32(distance)
		buf.Set(reloc.InstIndex, inst)
	}
	buf.SetRelocations(remaining)
	return nil
}
