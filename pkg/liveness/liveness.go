// Package liveness computes per-value live ranges and per-instruction-point
// live sets over an LPIR function, for consumption by the linear-scan
// register allocator.
package liveness

import (
	"sort"

	"github.com/samber/lo"

	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

// InstPoint identifies a position within a function by block position in
// layout order and instruction position within that block; instruction
// position 0 denotes the block's entry (where its parameters become live),
// so the first real instruction sits at position 1.
type InstPoint struct {
	Block int
	Inst  int
}

// Less reports whether p sorts before other in program order.
func (p InstPoint) Less(other InstPoint) bool {
	if p.Block != other.Block {
		return p.Block < other.Block
	}
	return p.Inst < other.Inst
}

// LiveRange is the span of program points over which a value may hold a
// register: from its definition to its last use, inclusive.
type LiveRange struct {
	Def     InstPoint
	LastUse InstPoint
	Uses    []InstPoint
}

func newLiveRange(def InstPoint) *LiveRange {
	return &LiveRange{Def: def, LastUse: def}
}

func (r *LiveRange) addUse(p InstPoint) {
	if r.LastUse.Less(p) {
		r.LastUse = p
	}
	r.Uses = append(r.Uses, p)
}

// OverlapsAt reports whether r and other are both live at point: both
// defined at or before it, and both still in use at or after it.
func (r *LiveRange) OverlapsAt(other *LiveRange, point InstPoint) bool {
	if point.Less(r.Def) || point.Less(other.Def) {
		return false
	}
	if r.LastUse.Less(point) || other.LastUse.Less(point) {
		return false
	}
	return true
}

// Info is the full liveness picture for one function.
type Info struct {
	LiveRanges map[lpir.Value]*LiveRange
	LiveSets   map[InstPoint]map[lpir.Value]bool
	Defs       map[InstPoint]lpir.Value
	Uses       map[InstPoint][]lpir.Value
}

// LiveAt returns the values live at point.
func (i *Info) LiveAt(point InstPoint) map[lpir.Value]bool {
	return i.LiveSets[point]
}

// IsLive reports whether v is live at point.
func (i *Info) IsLive(v lpir.Value, point InstPoint) bool {
	return i.LiveSets[point][v]
}

// LiveRangeOf returns the live range computed for v, if it has one (values
// that are never defined or used within the function have none).
func (i *Info) LiveRangeOf(v lpir.Value) (*LiveRange, bool) {
	r, ok := i.LiveRanges[v]
	return r, ok
}

// Compute runs the liveness pass over fn in three steps: a forward scan
// collecting definitions and uses, a fixup pass anchoring block-parameter
// live ranges at their block's entry point, and a final sweep building the
// live-value set at every instruction point by propagating from each
// point's predecessor within the block.
func Compute(fn *lpir.Function) *Info {
	blocks := fn.Layout.Blocks()
	blockIndex := make(map[lpir.Block]int, len(blocks))
	for i, b := range blocks {
		blockIndex[b] = i
	}

	defs := make(map[InstPoint]lpir.Value)
	uses := make(map[InstPoint][]lpir.Value)
	ranges := make(map[lpir.Value]*LiveRange)

	// Step 1: forward pass over every block collecting defs and uses.
	for bi, b := range blocks {
		entry := InstPoint{Block: bi, Inst: 0}
		for _, p := range fn.DFG.BlockParams(b) {
			defs[entry] = p
			ranges[p] = newLiveRange(entry)
		}

		for ii, inst := range fn.Layout.BlockInsts(b) {
			point := InstPoint{Block: bi, Inst: ii + 1}
			data := fn.DFG.Inst(inst)

			for _, result := range data.Results {
				if _, already := ranges[result]; !already {
					defs[point] = result
					ranges[result] = newLiveRange(point)
				}
			}

			used := instArgs(data)
			if len(used) > 0 {
				uses[point] = append([]lpir.Value(nil), used...)
			}
			for _, v := range used {
				if r, ok := ranges[v]; ok {
					r.addUse(point)
				} else {
					r := newLiveRange(entry)
					r.addUse(point)
					ranges[v] = r
				}
			}
		}
	}

	// Step 2: values flowing into a block as branch arguments anchor that
	// block's parameters' definitions at its entry, matching a predecessor
	// handing a phi value across the edge.
	for bi, b := range blocks {
		entry := InstPoint{Block: bi, Inst: 0}
		for _, pred := range blocks {
			for _, inst := range fn.Layout.BlockInsts(pred) {
				data := fn.DFG.Inst(inst)
				if !targetsBlock(data, b) {
					continue
				}
				for _, p := range fn.DFG.BlockParams(b) {
					if r, ok := ranges[p]; ok {
						r.Def = entry
					}
				}
			}
		}
	}

	// Step 3: build the live set at every point by propagating forward
	// within each block, adding uses then killing definitions.
	liveSets := make(map[InstPoint]map[lpir.Value]bool)
	for bi, b := range blocks {
		entry := InstPoint{Block: bi, Inst: 0}
		set := map[lpir.Value]bool{}
		for _, p := range fn.DFG.BlockParams(b) {
			set[p] = true
		}
		liveSets[entry] = set

		insts := fn.Layout.BlockInsts(b)
		for ii, inst := range insts {
			point := InstPoint{Block: bi, Inst: ii + 1}
			prevPoint := entry
			if ii > 0 {
				prevPoint = InstPoint{Block: bi, Inst: ii}
			}
			next := copySet(liveSets[prevPoint])

			data := fn.DFG.Inst(inst)
			for _, v := range instArgs(data) {
				next[v] = true
			}
			for _, v := range data.ReturnVals {
				next[v] = true
			}
			for _, r := range data.Results {
				delete(next, r)
			}

			liveSets[point] = next
		}
	}

	return &Info{LiveRanges: ranges, LiveSets: liveSets, Defs: defs, Uses: uses}
}

// instArgs returns the value operands an instruction reads, across every
// payload shape (plain args, branch-target arguments, return values).
func instArgs(data *lpir.InstData) []lpir.Value {
	args := append([]lpir.Value(nil), data.Args...)
	for _, targetArgs := range data.TargetArgs {
		args = append(args, targetArgs...)
	}
	args = append(args, data.ReturnVals...)
	return lo.Uniq(args)
}

func targetsBlock(data *lpir.InstData, target lpir.Block) bool {
	return lo.Contains(data.Targets, target)
}

func copySet(s map[lpir.Value]bool) map[lpir.Value]bool {
	out := make(map[lpir.Value]bool, len(s))
	for v := range s {
		out[v] = true
	}
	return out
}

// SortedValues returns the keys of a value set in deterministic ascending
// order, for callers that need stable iteration (diagnostics, golden tests).
func SortedValues(set map[lpir.Value]bool) []lpir.Value {
	out := make([]lpir.Value, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
