// Package abi implements the RV32 calling convention: argument/return
// register assignment, the caller/callee-saved register partition, and the
// stack-offset formula for arguments and returns that overflow the eight
// register slots.
package abi

import (
	"sort"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
	"github.com/lp-glsl-vm/lpirc/pkg/regalloc"
)

// ArgRegs is a0-a7, the eight integer argument/return registers defined by
// the RV32 calling convention, in index order.
var ArgRegs = []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}

// CallerSaved is every register a callee may clobber without saving: the
// argument/return registers, the temporaries, and the return address.
var CallerSaved = append(append([]string{}, ArgRegs...), "t0", "t1", "t2", "t3", "t4", "t5", "t6", "ra")

// CalleeSaved is every register a callee must preserve across a call:
// the frame/saved registers s0-s11.
var CalleeSaved = []string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"}

// ArgReg returns the argument register for parameter index, or "" if the
// index has overflowed into the stack (index >= 8).
func ArgReg(index int) (string, bool) {
	if index < 0 || index >= len(ArgRegs) {
		return "", false
	}
	return ArgRegs[index], true
}

// ReturnReg returns the return-value register for return index; RV32 gives
// return values the same register slots as arguments.
func ReturnReg(index int) (string, bool) {
	return ArgReg(index)
}

func isIn(regs []string, reg string) bool {
	for _, r := range regs {
		if r == reg {
			return true
		}
	}
	return false
}

// IsCallerSaved reports whether reg is clobbered by a call.
func IsCallerSaved(reg string) bool { return isIn(CallerSaved, reg) }

// IsCalleeSaved reports whether reg must be preserved across a call.
func IsCalleeSaved(reg string) bool { return isIn(CalleeSaved, reg) }

// StackSlotOffset returns the SP-relative byte offset (before the prologue
// adjusts SP) for the stack argument/return at position stackIndex, the
// zero-based count of arguments/returns past the eighth.
func StackSlotOffset(stackIndex int) int32 {
	return int32(stackIndex * 4)
}

// Info is the computed ABI shape of one function: where every parameter
// and return value lives, and which callee-saved registers its body uses.
type Info struct {
	ParamRegs         map[int]string
	ParamStackOffsets map[int]int32
	ReturnRegs        map[int]string
	ReturnStackOffsets map[int]int32
	UsedCalleeSaved   []string
	MaxOutgoingArgs   int
}

// Compute derives the ABI shape for fn given the register allocation
// already computed for it: parameters land in a0-a7 only if the allocator
// actually assigned them a register (an unused parameter never needs one),
// everything past index 7 is addressed relative to the caller's SP.
func Compute(fn *lpir.Function, alloc *regalloc.Allocator) Info {
	info := Info{
		ParamRegs:          make(map[int]string),
		ParamStackOffsets:  make(map[int]int32),
		ReturnRegs:         make(map[int]string),
		ReturnStackOffsets: make(map[int]int32),
		MaxOutgoingArgs:    8,
	}

	entry, hasEntry := fn.EntryBlock()
	if hasEntry {
		for i, param := range fn.DFG.BlockParams(entry) {
			if reg, ok := ArgReg(i); ok {
				if _, allocated := alloc.GetRegister(param); allocated {
					info.ParamRegs[i] = reg
				}
			} else {
				info.ParamStackOffsets[i] = StackSlotOffset(i - len(ArgRegs))
			}
		}
	}

	for i := range fn.Signature.Returns {
		if reg, ok := ReturnReg(i); ok {
			info.ReturnRegs[i] = reg
		} else {
			info.ReturnStackOffsets[i] = StackSlotOffset(i - len(ArgRegs))
		}
	}

	used := make(map[string]bool)
	for _, b := range fn.Layout.Blocks() {
		for _, p := range fn.DFG.BlockParams(b) {
			if reg, ok := alloc.GetRegister(p); ok && IsCalleeSaved(reg) {
				used[reg] = true
			}
		}
		for _, inst := range fn.Layout.BlockInsts(b) {
			for _, r := range fn.DFG.Inst(inst).Results {
				if reg, ok := alloc.GetRegister(r); ok && IsCalleeSaved(reg) {
					used[reg] = true
				}
			}
		}
	}
	for reg := range used {
		info.UsedCalleeSaved = append(info.UsedCalleeSaved, reg)
	}
	sort.Strings(info.UsedCalleeSaved)

	return info
}
