// Package disasm renders raw RV32IM code words as canonical assembly text,
// with symbolic labels for branch/jump targets.
package disasm

import (
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"

	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

// LabelMap maps a byte offset within a code blob to a symbolic name, used
// in place of a raw hex displacement when printing a branch or jump
// target. Offsets with no entry get an auto-generated "label_N" name the
// first time they're referenced.
type LabelMap map[uint32]string

// Disassemble renders code (a sequence of 4-byte-aligned instruction
// words) as assembly text, one instruction per line, prefixed by its byte
// offset. labels may be nil; any branch/jump target not already present
// is assigned an auto-generated name discovered by a prescan.
func Disassemble(code []byte, labels LabelMap) (string, error) {
	words := splitWords(code)

	insts := make([]riscv32.Inst, len(words))
	for i, w := range words {
		inst, err := riscv32.Decode(w)
		if err != nil {
			return "", fmt.Errorf("disasm: word %d (0x%08x): %w", i, w, err)
		}
		insts[i] = inst
	}

	all := mergeLabels(labels, prescanTargets(insts))

	var b strings.Builder
	for i, inst := range insts {
		offset := uint32(i * 4)
		fmt.Fprintf(&b, "%s:\n", offsetComment(offset))
		b.WriteString(formatInst(offset, inst, all))
		b.WriteString("\n")
	}

	formatted, err := asmfmt.Format(strings.NewReader(b.String()))
	if err != nil {
		return b.String(), nil // fall back to unformatted text rather than fail the whole dump
	}
	return string(formatted), nil
}

// DisassembleWord renders a single instruction word with no label
// resolution, for inline diagnostics (the emulator's failure formatter).
func DisassembleWord(word uint32) string {
	inst, err := riscv32.Decode(word)
	if err != nil {
		return fmt.Sprintf("<illegal 0x%08x>", word)
	}
	return formatInst(0, inst, nil)
}

func splitWords(code []byte) []uint32 {
	words := make([]uint32, 0, len(code)/4)
	for i := 0; i+4 <= len(code); i += 4 {
		w := uint32(code[i]) | uint32(code[i+1])<<8 | uint32(code[i+2])<<16 | uint32(code[i+3])<<24
		words = append(words, w)
	}
	return words
}

func offsetComment(offset uint32) string {
	return fmt.Sprintf("// 0x%08x", offset)
}

// isBranchOrJump reports whether inst's Imm is a PC-relative displacement
// rather than an arithmetic/load-store immediate.
func isBranchOrJump(k riscv32.Kind) bool {
	switch k {
	case riscv32.KBeq, riscv32.KBne, riscv32.KBlt, riscv32.KBge, riscv32.KBltu, riscv32.KBgeu, riscv32.KJal:
		return true
	default:
		return false
	}
}

func prescanTargets(insts []riscv32.Inst) []uint32 {
	var targets []uint32
	for i, inst := range insts {
		if isBranchOrJump(inst.Kind) {
			pc := uint32(i * 4)
			targets = append(targets, uint32(int32(pc)+inst.Imm))
		}
	}
	return targets
}

func mergeLabels(labels LabelMap, targets []uint32) LabelMap {
	merged := make(LabelMap, len(labels)+len(targets))
	for k, v := range labels {
		merged[k] = v
	}
	n := 0
	for _, t := range targets {
		if _, ok := merged[t]; !ok {
			merged[t] = fmt.Sprintf("label_%d", n)
			n++
		}
	}
	return merged
}

func formatInst(pc uint32, inst riscv32.Inst, labels LabelMap) string {
	mnemonic := inst.Kind.String()

	if isBranchOrJump(inst.Kind) {
		target := uint32(int32(pc) + inst.Imm)
		name := labels[target]
		if name == "" {
			name = fmt.Sprintf("0x%08x", target)
		}
		switch inst.Kind {
		case riscv32.KJal:
			if inst.Rd == riscv32.Zero {
				return fmt.Sprintf("\tJ %s", name)
			}
			return fmt.Sprintf("\t%s %s, %s", mnemonic, inst.Rd, name)
		default:
			return fmt.Sprintf("\t%s %s, %s, %s", mnemonic, inst.Rs1, inst.Rs2, name)
		}
	}

	switch inst.Kind {
	case riscv32.KEcall, riscv32.KEbreak:
		return fmt.Sprintf("\t%s", mnemonic)
	case riscv32.KAdd, riscv32.KSub, riscv32.KAnd, riscv32.KOr, riscv32.KXor,
		riscv32.KSll, riscv32.KSrl, riscv32.KSra, riscv32.KSlt, riscv32.KSltu,
		riscv32.KMul, riscv32.KMulh, riscv32.KDiv, riscv32.KDivu, riscv32.KRem, riscv32.KRemu:
		return fmt.Sprintf("\t%s %s, %s, %s", mnemonic, inst.Rd, inst.Rs1, inst.Rs2)
	case riscv32.KAddi, riscv32.KAndi, riscv32.KOri, riscv32.KXori, riscv32.KSlti, riscv32.KSltiu,
		riscv32.KSlli, riscv32.KSrli, riscv32.KSrai:
		return fmt.Sprintf("\t%s %s, %s, %d", mnemonic, inst.Rd, inst.Rs1, inst.Imm)
	case riscv32.KLw, riscv32.KLh, riscv32.KLb:
		return fmt.Sprintf("\t%s %s, %d(%s)", mnemonic, inst.Rd, inst.Imm, inst.Rs1)
	case riscv32.KSw, riscv32.KSh, riscv32.KSb:
		return fmt.Sprintf("\t%s %s, %d(%s)", mnemonic, inst.Rs2, inst.Imm, inst.Rs1)
	case riscv32.KJalr:
		return fmt.Sprintf("\t%s %s, %d(%s)", mnemonic, inst.Rd, inst.Imm, inst.Rs1)
	case riscv32.KLui:
		return fmt.Sprintf("\t%s %s, 0x%x", mnemonic, inst.Rd, uint32(inst.Imm)>>12)
	default:
		return fmt.Sprintf("\t.word 0x%08x", inst.Encode())
	}
}
