// Package frame computes RV32 stack frame layouts: the setup area (saved
// frame pointer + return address), the clobber area for callee-saved
// registers, and the fixed/outgoing argument areas, in the order the
// prologue lays them out from high to low addresses.
package frame

import (
	"sort"

	"github.com/lp-glsl-vm/lpirc/pkg/abi"
)

// FunctionCalls classifies a function's call pattern, which decides
// whether its frame needs a setup area at all.
type FunctionCalls int

const (
	CallsNone FunctionCalls = iota
	CallsTailOnly
	CallsRegular
)

// Update folds a newly observed call instruction into the running
// classification: a single regular call anywhere promotes the whole
// function to CallsRegular permanently; a tail call only promotes None to
// TailOnly.
func (c FunctionCalls) Update(call CallType) FunctionCalls {
	switch call {
	case CallNone:
		return c
	case CallRegular:
		return CallsRegular
	case CallTail:
		if c == CallsNone {
			return CallsTailOnly
		}
		return c
	default:
		return c
	}
}

// CallType identifies what kind of call (if any) a single instruction is.
type CallType int

const (
	CallNone CallType = iota
	CallRegular
	CallTail
)

// Layout describes one function's stack frame, high to low addresses:
// incoming arguments, setup area, clobber area, fixed frame storage,
// outgoing arguments.
type Layout struct {
	WordBytes uint32

	IncomingArgsSize uint32
	TailArgsSize     uint32
	SetupAreaSize    uint32
	ClobberSize      uint32

	FixedFrameStorageSize uint32
	StackslotsSize        uint32
	OutgoingArgsSize      uint32

	ClobberedCalleeSaves []string
	FunctionCalls        FunctionCalls
}

// ActiveSize is the FP-to-SP distance while the frame is active (excludes
// the setup area, which sits above FP).
func (l *Layout) ActiveSize() uint32 {
	return l.OutgoingArgsSize + l.FixedFrameStorageSize + l.ClobberSize
}

// SPToSizedStackSlots is the offset from SP up to the sized stack slot
// area.
func (l *Layout) SPToSizedStackSlots() uint32 {
	return l.OutgoingArgsSize
}

// SPToFP is the offset from SP up to FP.
func (l *Layout) SPToFP() uint32 {
	return l.OutgoingArgsSize + l.FixedFrameStorageSize + l.ClobberSize
}

// TotalSize is the number of bytes the prologue subtracts from SP: every
// section below the caller's incoming-args area (tail-args, setup, clobber,
// fixed frame storage, outgoing args).
func (l *Layout) TotalSize() uint32 {
	return l.TailArgsSize + l.SetupAreaSize + l.ClobberSize + l.FixedFrameStorageSize + l.OutgoingArgsSize
}

// IncomingArgOffset returns the SP-relative (pre-prologue) byte offset to
// load incoming parameter paramIndex from, if it arrived on the stack
// (index >= 8); ok is false for a register-passed parameter.
func (l *Layout) IncomingArgOffset(paramIndex int) (offset int32, ok bool) {
	if paramIndex < 8 {
		return 0, false
	}
	return int32((paramIndex - 8) * 4), true
}

// SpillSlotOffset returns the SP-relative (post-prologue) byte offset of
// the spill slot at byte offset slot within the fixed frame storage area
// (the allocator hands out slots 4 bytes apart), that area itself sitting
// just above the outgoing-args area.
func (l *Layout) SpillSlotOffset(slot int) int32 {
	return int32(l.OutgoingArgsSize) + int32(slot)
}

// CalleeSavedOffset returns the SP-relative (post-prologue) byte offset
// where reg is saved in the clobber area, if reg was clobbered by this
// function.
func (l *Layout) CalleeSavedOffset(reg string) (int32, bool) {
	for i, r := range l.ClobberedCalleeSaves {
		if r == reg {
			return int32(l.OutgoingArgsSize) + int32(l.FixedFrameStorageSize) + int32(i*4), true
		}
	}
	return 0, false
}

// RaOffset returns the SP-relative (post-prologue) byte offset where the
// return address is saved, valid only when the function makes calls (the
// setup area only exists for FP in that case otherwise).
func (l *Layout) RaOffset() int32 {
	return int32(l.OutgoingArgsSize) + int32(l.FixedFrameStorageSize) + int32(l.ClobberSize) + int32(l.SetupAreaSize) - 4
}

func calleeSavedIndex(reg string) int {
	for i, r := range abi.CalleeSaved {
		if r == reg {
			return i
		}
	}
	return -1
}

// computeClobberSize returns the 16-byte-aligned size needed to save regs,
// each register costing one RV32 word (4 bytes); the ABI requires 16-byte
// stack alignment even when only a handful of registers are saved.
func computeClobberSize(regs []string) uint32 {
	if len(regs) == 0 {
		return 0
	}
	total := uint32(len(regs)) * 4
	return (total + 15) &^ 15
}

// Compute derives a function's frame layout following cranelift's
// compute_frame_layout logic: the setup area (FP+RA, 8 bytes) is only
// needed when the frame actually requires FP-relative addressing — frame
// pointers are explicitly preserved, the function calls out, it has
// incoming stack arguments, it clobbers callee-saved registers, or it has
// fixed frame storage. A leaf function that needs none of that skips the
// setup area entirely.
func Compute(
	regs []string,
	calls FunctionCalls,
	incomingArgsSize, tailArgsSize, stackslotsSize, fixedFrameStorageSize, outgoingArgsSize uint32,
	preserveFramePointers bool,
) Layout {
	var calleeSaved []string
	for _, r := range regs {
		if calleeSavedIndex(r) >= 0 {
			calleeSaved = append(calleeSaved, r)
		}
	}
	sort.Slice(calleeSaved, func(i, j int) bool {
		return calleeSavedIndex(calleeSaved[i]) < calleeSavedIndex(calleeSaved[j])
	})

	clobberSize := computeClobberSize(calleeSaved)

	setupAreaSize := uint32(0)
	if preserveFramePointers || calls != CallsNone || incomingArgsSize > 0 || clobberSize > 0 || fixedFrameStorageSize > 0 {
		setupAreaSize = 8
	}

	return Layout{
		WordBytes:             4,
		IncomingArgsSize:      incomingArgsSize,
		TailArgsSize:          tailArgsSize,
		SetupAreaSize:         setupAreaSize,
		ClobberSize:           clobberSize,
		FixedFrameStorageSize: fixedFrameStorageSize,
		StackslotsSize:        stackslotsSize,
		OutgoingArgsSize:      outgoingArgsSize,
		ClobberedCalleeSaves:  calleeSaved,
		FunctionCalls:         calls,
	}
}
