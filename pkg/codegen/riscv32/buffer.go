package riscv32

import (
	"fmt"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

// RelocKind identifies what a Relocation's placeholder instruction must be
// patched into once the target's final address is known.
type RelocKind uint8

const (
	RelocCall     RelocKind = iota // jal ra, <function entry>
	RelocJump                      // jal zero, <block entry, same function>
	RelocBranch                    // beq/bne/.../<block entry, same function>
	RelocEpilogue                  // jal zero, <this function's epilogue>
)

// Relocation records one placeholder instruction emitted during lowering
// that must be fixed up once its target's instruction index is known: a
// call to another function (resolved once every function's start offset in
// the final image is known), or an intra-function branch/jump/epilogue-jump
// (resolved immediately after the owning function finishes lowering, since
// distances between two instructions in the same function are unaffected by
// where the function ultimately lands in the image).
type Relocation struct {
	InstIndex   int // index into CodeBuffer.insts
	Kind        RelocKind
	TargetFunc  string     // RelocCall only
	TargetBlock lpir.Block // RelocJump / RelocBranch only
}

// CodeBuffer accumulates the instructions for one function (or, after
// Append, an entire module) along with the relocations recorded against it.
// Nothing partial is committed on error: the lowerer builds into a fresh
// CodeBuffer per function and only merges it into the module buffer once the
// function lowers cleanly; a function that fails to lower has its buffer
// dropped.
type CodeBuffer struct {
	insts []Inst
	relocs []Relocation
}

// NewCodeBuffer returns an empty buffer.
func NewCodeBuffer() *CodeBuffer {
	return &CodeBuffer{}
}

// Emit appends inst and returns its index within the buffer.
func (c *CodeBuffer) Emit(inst Inst) int {
	c.insts = append(c.insts, inst)
	return len(c.insts) - 1
}

// Len returns the instruction count.
func (c *CodeBuffer) Len() int { return len(c.insts) }

// Instructions returns the buffer's instructions in order.
func (c *CodeBuffer) Instructions() []Inst { return c.insts }

// Relocations returns the buffer's recorded relocations.
func (c *CodeBuffer) Relocations() []Relocation { return c.relocs }

// AddRelocation records reloc as given; its InstIndex names the instruction
// the fixup pass patches.
func (c *CodeBuffer) AddRelocation(reloc Relocation) {
	c.relocs = append(c.relocs, reloc)
}

// Set overwrites the instruction at idx, used by the fixup pass once a
// relocation's real displacement is known.
func (c *CodeBuffer) Set(idx int, inst Inst) {
	c.insts[idx] = inst
}

// Append concatenates other onto c, offsetting every relocation's
// InstIndex by c's pre-append length. By the time a per-function buffer is
// appended, only RelocCall entries should remain (intra-function
// relocations are resolved locally beforehand), so no target besides
// InstIndex itself needs adjusting.
func (c *CodeBuffer) Append(other *CodeBuffer) {
	base := len(c.insts)
	c.insts = append(c.insts, other.insts...)
	for _, rel := range other.relocs {
		rel.InstIndex += base
		c.relocs = append(c.relocs, rel)
	}
}

// SetRelocations replaces the buffer's relocation list, used once a subset
// has been resolved and only the remainder (typically RelocCall) should
// propagate further.
func (c *CodeBuffer) SetRelocations(relocs []Relocation) {
	c.relocs = relocs
}

// AsBytes encodes every instruction into little-endian 32-bit words.
func (c *CodeBuffer) AsBytes() []byte {
	out := make([]byte, 0, len(c.insts)*4)
	for _, inst := range c.insts {
		w := inst.Encode()
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}

func (c *CodeBuffer) String() string {
	return fmt.Sprintf("CodeBuffer{%d insts, %d relocs}", len(c.insts), len(c.relocs))
}
