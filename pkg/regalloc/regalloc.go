// Package regalloc implements linear-scan register allocation over LPIR
// liveness intervals.
//
// Design: Poletto & Sarkar's linear scan algorithm, with call-site interval
// splitting so values live across a call prefer a callee-saved register
// instead of forcing a spill/reload pair around every call.
package regalloc

import (
	"sort"

	"github.com/lp-glsl-vm/lpirc/pkg/liveness"
	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
)

// SpillSlotSize is the size in bytes of one spill slot: RV32 is a 32-bit
// target, so every GPR-sized spill slot is 4 bytes, half the 8 bytes a
// 64-bit target would need.
const SpillSlotSize = 4

// Interval is the live range of one value, expressed in linear instruction
// positions (as opposed to liveness.InstPoint's block/inst pair) so that
// "does A end before B starts" is a single integer comparison.
type Interval struct {
	Value lpir.Value
	Start int
	End   int
	Reg   string
	Spill int // stack offset if spilled, -1 if not
}

// Config describes the register file available to the allocator for one
// target architecture.
type Config struct {
	Available   []string
	Reserved    []string
	CalleeSaved []string
	CallerSaved []string
}

func (c *Config) isCalleeSaved(reg string) bool {
	for _, r := range c.CalleeSaved {
		if r == reg {
			return true
		}
	}
	return false
}

// Allocator performs linear-scan register allocation over one function.
type Allocator struct {
	fn            *lpir.Function
	cfg           *Config
	intervals     []*Interval
	active        []*Interval
	free          []string
	regMap        map[lpir.Value]string
	spillMap      map[lpir.Value]int
	nextSpillSlot int
	positions     map[liveness.InstPoint]int
	callPositions []int
}

// NewAllocator returns an allocator for fn using the register file in cfg.
func NewAllocator(fn *lpir.Function, cfg *Config) *Allocator {
	return &Allocator{
		fn:       fn,
		cfg:      cfg,
		free:     append([]string(nil), cfg.Available...),
		regMap:   make(map[lpir.Value]string),
		spillMap: make(map[lpir.Value]int),
	}
}

// Allocate runs liveness analysis, linearizes instruction positions, and
// performs the linear-scan pass itself.
func (a *Allocator) Allocate() error {
	info := liveness.Compute(a.fn)
	a.numberInstructions()

	for v, r := range info.LiveRanges {
		start := a.positions[r.Def]
		end := a.positions[r.LastUse]
		a.splitAtCalls(v, start, end)
	}

	sort.Slice(a.intervals, func(i, j int) bool { return a.intervals[i].Start < a.intervals[j].Start })

	for _, interval := range a.intervals {
		a.allocateInterval(interval)
	}

	return nil
}

// numberInstructions assigns a strictly increasing linear position to every
// InstPoint in layout order (block entry, then each instruction), and
// records the position of every call/syscall so interval splitting can find
// them.
func (a *Allocator) numberInstructions() {
	a.positions = make(map[liveness.InstPoint]int)
	pos := 0
	for bi, b := range a.fn.Layout.Blocks() {
		entry := liveness.InstPoint{Block: bi, Inst: 0}
		a.positions[entry] = pos
		pos++
		for ii, inst := range a.fn.Layout.BlockInsts(b) {
			point := liveness.InstPoint{Block: bi, Inst: ii + 1}
			a.positions[point] = pos
			data := a.fn.DFG.Inst(inst)
			if data.Opcode == lpir.OpCall || data.Opcode == lpir.OpSyscall {
				a.callPositions = append(a.callPositions, pos)
			}
			pos++
		}
	}
}

func (a *Allocator) splitAtCalls(v lpir.Value, start, end int) {
	var callsInRange []int
	for _, c := range a.callPositions {
		if c > start && c < end {
			callsInRange = append(callsInRange, c)
		}
	}
	if len(callsInRange) == 0 {
		a.intervals = append(a.intervals, &Interval{Value: v, Start: start, End: end, Spill: -1})
		return
	}
	cur := start
	for _, c := range callsInRange {
		a.intervals = append(a.intervals, &Interval{Value: v, Start: cur, End: c - 1, Spill: -1})
		cur = c + 1
	}
	if cur <= end {
		a.intervals = append(a.intervals, &Interval{Value: v, Start: cur, End: end, Spill: -1})
	}
}

func (a *Allocator) allocateInterval(interval *Interval) {
	a.expireOldIntervals(interval)

	spansCall := false
	for _, c := range a.callPositions {
		if interval.Start < c && interval.End > c {
			spansCall = true
			break
		}
	}

	if len(a.free) > 0 {
		if reg := a.selectRegister(spansCall); reg != "" {
			interval.Reg = reg
			a.regMap[interval.Value] = reg
			a.active = append(a.active, interval)
			a.sortActiveByEnd()
			return
		}
	}

	a.spillAtInterval(interval)
}

func (a *Allocator) selectRegister(preferCalleeSaved bool) string {
	if len(a.free) == 0 {
		return ""
	}
	if preferCalleeSaved {
		for i, reg := range a.free {
			if a.cfg.isCalleeSaved(reg) {
				a.free = append(a.free[:i], a.free[i+1:]...)
				return reg
			}
		}
	}
	reg := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	return reg
}

func (a *Allocator) expireOldIntervals(interval *Interval) {
	newActive := make([]*Interval, 0, len(a.active))
	for _, active := range a.active {
		if active.End >= interval.Start {
			newActive = append(newActive, active)
		} else {
			a.free = append(a.free, active.Reg)
		}
	}
	a.active = newActive
}

func (a *Allocator) spillAtInterval(interval *Interval) {
	if len(a.active) == 0 {
		interval.Spill = a.nextSpillSlot
		a.spillMap[interval.Value] = a.nextSpillSlot
		a.nextSpillSlot += SpillSlotSize
		return
	}

	spill := a.active[len(a.active)-1]
	if spill.End > interval.End {
		interval.Reg = spill.Reg
		a.regMap[interval.Value] = spill.Reg

		spill.Spill = a.nextSpillSlot
		a.spillMap[spill.Value] = a.nextSpillSlot
		a.nextSpillSlot += SpillSlotSize

		a.active[len(a.active)-1] = interval
		a.sortActiveByEnd()
	} else {
		interval.Spill = a.nextSpillSlot
		a.spillMap[interval.Value] = a.nextSpillSlot
		a.nextSpillSlot += SpillSlotSize
	}
}

func (a *Allocator) sortActiveByEnd() {
	sort.Slice(a.active, func(i, j int) bool { return a.active[i].End < a.active[j].End })
}

// GetRegister returns the register assigned to v, if it was allocated one.
func (a *Allocator) GetRegister(v lpir.Value) (string, bool) {
	reg, ok := a.regMap[v]
	return reg, ok
}

// GetSpillSlot returns the spill slot assigned to v, if it was spilled.
func (a *Allocator) GetSpillSlot(v lpir.Value) (int, bool) {
	slot, ok := a.spillMap[v]
	return slot, ok
}

// GetStackSize returns the total spill area size in bytes.
func (a *Allocator) GetStackSize() int {
	return a.nextSpillSlot
}

// Registers returns a copy of the full value-to-register assignment, for
// callers (the spill/reload planner, ABI computation) that need to walk
// every allocated value rather than look one up at a time.
func (a *Allocator) Registers() map[lpir.Value]string {
	out := make(map[lpir.Value]string, len(a.regMap))
	for v, r := range a.regMap {
		out[v] = r
	}
	return out
}

// SpillSlots returns a copy of the full value-to-slot assignment.
func (a *Allocator) SpillSlots() map[lpir.Value]int {
	out := make(map[lpir.Value]int, len(a.spillMap))
	for v, s := range a.spillMap {
		out[v] = s
	}
	return out
}

// AssignSpillSlot reserves a fresh spill slot for v and records it, for
// use sites (the call-site caller-saved spill pass) that need to spill a
// value the main linear-scan pass never assigned one to.
func (a *Allocator) AssignSpillSlot(v lpir.Value) int {
	slot := a.nextSpillSlot
	a.nextSpillSlot += SpillSlotSize
	a.spillMap[v] = slot
	return slot
}
