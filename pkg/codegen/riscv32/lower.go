package riscv32

import (
	"fmt"
	"sort"

	"github.com/lp-glsl-vm/lpirc/pkg/abi"
	"github.com/lp-glsl-vm/lpirc/pkg/frame"
	"github.com/lp-glsl-vm/lpirc/pkg/liveness"
	"github.com/lp-glsl-vm/lpirc/pkg/lpir"
	"github.com/lp-glsl-vm/lpirc/pkg/regalloc"
	"github.com/lp-glsl-vm/lpirc/pkg/spillreload"
)

// LoweringErrorKind classifies a lowering failure.
type LoweringErrorKind int

const (
	ErrValueNotAllocated LoweringErrorKind = iota
	ErrResultNotInRegister
	ErrUnimplementedInstruction
)

// LoweringError is a fatal, function-scoped lowering failure.
type LoweringError struct {
	Kind   LoweringErrorKind
	Detail string
}

func (e *LoweringError) Error() string {
	switch e.Kind {
	case ErrValueNotAllocated:
		return fmt.Sprintf("riscv32: value not allocated: %s", e.Detail)
	case ErrResultNotInRegister:
		return fmt.Sprintf("riscv32: result not in register: %s", e.Detail)
	case ErrUnimplementedInstruction:
		return fmt.Sprintf("riscv32: unimplemented instruction: %s", e.Detail)
	default:
		return fmt.Sprintf("riscv32: lowering error: %s", e.Detail)
	}
}

// scratchPool is the fixed rotation of temporary registers lowering uses to
// hold reloaded or about-to-spill values within a single instruction's
// lowering; t0-t4 are always caller-saved and never carry a live VReg across
// instruction boundaries, so reusing them here never conflicts with the
// allocator's own assignments.
var scratchPool = []Gpr{T0, T1, T2, T3, T4}

// RegallocConfig is the fixed RV32 register file: caller-saved (a0-a7,
// t0-t6) ordered before callee-saved (s1-s11, reserving s0 as the frame
// pointer and zero/ra/sp/gp/tp outright).
func RegallocConfig() *regalloc.Config {
	return &regalloc.Config{
		Available: []string{
			"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
			"t0", "t1", "t2", "t3", "t4", "t5", "t6",
			"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
		},
		Reserved:    []string{"zero", "ra", "sp", "gp", "tp", "s0"},
		CalleeSaved: []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"},
		CallerSaved: append(append([]string{}, abi.ArgRegs...), "t0", "t1", "t2", "t3", "t4", "t5", "t6"),
	}
}

// Lowerer turns an LPIR module into a single RV32IM instruction stream.
type Lowerer struct{}

// NewLowerer returns a Lowerer.
func NewLowerer() *Lowerer { return &Lowerer{} }

// LowerModule lowers every function in mod, lays them out consecutively,
// and resolves every cross-function call relocation once every function's
// start offset in the final stream is known.
func (lw *Lowerer) LowerModule(mod *lpir.Module) (*CodeBuffer, error) {
	final := NewCodeBuffer()
	funcStarts := make(map[string]int)

	entryName, hasEntry := mod.EntryName()

	for _, fn := range mod.Functions() {
		isEntry := hasEntry && fn.Name == entryName
		fnBuf, err := lw.LowerFunction(fn, isEntry)
		if err != nil {
			return nil, fmt.Errorf("lowering %s: %w", fn.Name, err)
		}
		funcStarts[fn.Name] = final.Len()
		final.Append(fnBuf)
	}

	if err := ApplyFixups(final, funcStarts); err != nil {
		return nil, err
	}
	return final, nil
}

// funcLowerer holds the per-function state needed while lowering one
// function's body: its register allocation, liveness, spill/reload plan,
// frame layout, and ABI shape.
type funcLowerer struct {
	fn     *lpir.Function
	alloc  *regalloc.Allocator
	info   *liveness.Info
	plan   spillreload.Plan
	frame  frame.Layout
	abi    abi.Info
	blocks []lpir.Block

	buf       *CodeBuffer
	blockIdx  map[lpir.Block]int
	isEntry   bool
}

// LowerFunction lowers a single function to its own instruction stream:
// prologue, each block's body and terminator in layout order, then the
// shared epilogue that every return site jumps to.
func (lw *Lowerer) LowerFunction(fn *lpir.Function, isEntry bool) (*CodeBuffer, error) {
	cfg := RegallocConfig()
	alloc := regalloc.NewAllocator(fn, cfg)
	if err := alloc.Allocate(); err != nil {
		return nil, fmt.Errorf("register allocation: %w", err)
	}
	info := liveness.Compute(fn)
	plan := spillreload.Create(fn, alloc, info)
	abiInfo := abi.Compute(fn, alloc)

	blocks := fn.Layout.Blocks()
	blockIdx := make(map[lpir.Block]int, len(blocks))
	for i, b := range blocks {
		blockIdx[b] = i
	}

	calls := frame.CallsNone
	maxOutgoing := 0
	for _, b := range blocks {
		for _, inst := range fn.Layout.BlockInsts(b) {
			data := fn.DFG.Inst(inst)
			if data.Opcode == lpir.OpCall {
				calls = calls.Update(frame.CallRegular)
				// Overflow return values past a0-a7 are read back from
				// just below SP after the call (see lowerCall), not from
				// this area; the area is still sized to fit whichever of
				// the two counts is larger.
				if n := len(data.Args) - len(abi.ArgRegs); n > maxOutgoing {
					maxOutgoing = n
				}
				if n := len(data.Results) - len(abi.ArgRegs); n > maxOutgoing {
					maxOutgoing = n
				}
			}
		}
	}

	incomingArgsSize := uint32(0)
	if entry, ok := fn.EntryBlock(); ok {
		if n := len(fn.DFG.BlockParams(entry)) - len(abi.ArgRegs); n > 0 {
			incomingArgsSize = uint32(n) * 4
		}
	}
	tailArgsSize := uint32(0)
	if n := len(fn.Signature.Returns) - len(abi.ArgRegs); n > 0 {
		tailArgsSize = uint32(n) * 4
	}
	outgoingArgsSize := uint32(maxOutgoing) * 4

	frameLayout := frame.Compute(
		abiInfo.UsedCalleeSaved, calls, incomingArgsSize, tailArgsSize,
		0, uint32(alloc.GetStackSize()), outgoingArgsSize, false,
	)

	fl := &funcLowerer{
		fn: fn, alloc: alloc, info: info, plan: plan, frame: frameLayout, abi: abiInfo,
		blocks: blocks, buf: NewCodeBuffer(), blockIdx: blockIdx, isEntry: isEntry,
	}

	if err := fl.genPrologue(); err != nil {
		return nil, err
	}
	for bi, b := range blocks {
		fl.blockIdx[b] = fl.buf.Len()
		if err := fl.lowerBlockBody(bi, b); err != nil {
			return nil, err
		}
		if err := fl.lowerTerminator(bi, b); err != nil {
			return nil, err
		}
	}
	epilogueIdx := fl.buf.Len()
	fl.genEpilogue()

	if err := resolveIntraFunctionRelocs(fl.buf, fl.blockIdx, epilogueIdx); err != nil {
		return nil, err
	}
	return fl.buf, nil
}

// --- location helpers ---

func (fl *funcLowerer) locOf(v lpir.Value) (Location, bool) {
	if reg, ok := fl.alloc.GetRegister(v); ok {
		return regLoc(MustParseGpr(reg)), true
	}
	if slot, ok := fl.alloc.GetSpillSlot(v); ok {
		return slotLoc(fl.frame.SpillSlotOffset(slot)), true
	}
	return Location{}, false
}

// --- prologue / epilogue ---

func (fl *funcLowerer) emitStoreSP(rs2 Gpr, offset int32) {
	if offset >= -2048 && offset <= 2047 {
		fl.buf.Emit(Inst{Kind: KSw, Rs1: Sp, Rs2: rs2, Imm: offset})
		return
	}
	fl.emitLoadImm(T4, offset)
	fl.buf.Emit(Inst{Kind: KAdd, Rd: T4, Rs1: Sp, Rs2: T4})
	fl.buf.Emit(Inst{Kind: KSw, Rs1: T4, Rs2: rs2, Imm: 0})
}

func (fl *funcLowerer) emitLoadSP(rd, base Gpr, offset int32) {
	if offset >= -2048 && offset <= 2047 {
		fl.buf.Emit(Inst{Kind: KLw, Rd: rd, Rs1: base, Imm: offset})
		return
	}
	scratch := T4
	if rd == T4 {
		scratch = T3
	}
	fl.emitLoadImm(scratch, offset)
	fl.buf.Emit(Inst{Kind: KAdd, Rd: scratch, Rs1: base, Rs2: scratch})
	fl.buf.Emit(Inst{Kind: KLw, Rd: rd, Rs1: scratch, Imm: 0})
}

type spilledIncoming struct {
	reg  Gpr
	slot int32
}

func (fl *funcLowerer) genPrologue() error {
	frameSize := int32(fl.frame.TotalSize())

	var toSpill []spilledIncoming
	if entry, ok := fl.fn.EntryBlock(); ok {
		for idx, param := range fl.fn.DFG.BlockParams(entry) {
			offset, onStack := fl.frame.IncomingArgOffset(idx)
			if !onStack {
				continue
			}
			if reg, ok := fl.alloc.GetRegister(param); ok {
				fl.emitLoadSP(MustParseGpr(reg), Sp, offset)
			} else if slot, ok := fl.alloc.GetSpillSlot(param); ok {
				fl.emitLoadSP(T0, Sp, offset)
				toSpill = append(toSpill, spilledIncoming{reg: T0, slot: fl.frame.SpillSlotOffset(slot)})
			}
		}
	}

	if frameSize > 0 {
		fl.buf.Emit(Inst{Kind: KAddi, Rd: Sp, Rs1: Sp, Imm: -frameSize})

		for _, s := range toSpill {
			fl.emitStoreSP(s.reg, s.slot)
		}

		if fl.frame.FunctionCalls != frame.CallsNone {
			fl.emitStoreSP(Ra, fl.frame.RaOffset())
		}

		for _, reg := range fl.abi.UsedCalleeSaved {
			if offset, ok := fl.frame.CalleeSavedOffset(reg); ok {
				fl.emitStoreSP(MustParseGpr(reg), offset)
			}
		}
	}

	for idx, argReg := range abi.ArgRegs {
		entry, ok := fl.fn.EntryBlock()
		if !ok {
			break
		}
		params := fl.fn.DFG.BlockParams(entry)
		if idx >= len(params) {
			break
		}
		param := params[idx]
		src := MustParseGpr(argReg)
		if reg, ok := fl.alloc.GetRegister(param); ok {
			if MustParseGpr(reg) != src {
				fl.buf.Emit(Mv(MustParseGpr(reg), src))
			}
		} else if slot, ok := fl.alloc.GetSpillSlot(param); ok {
			fl.emitStoreSP(src, fl.frame.SpillSlotOffset(slot))
		}
	}

	return nil
}

func (fl *funcLowerer) genEpilogue() {
	for _, reg := range fl.abi.UsedCalleeSaved {
		if offset, ok := fl.frame.CalleeSavedOffset(reg); ok {
			fl.emitLoadSP(MustParseGpr(reg), Sp, offset)
		}
	}
	if fl.frame.FunctionCalls != frame.CallsNone {
		fl.emitLoadSP(Ra, Sp, fl.frame.RaOffset())
	}

	frameSize := int32(fl.frame.TotalSize())
	if frameSize > 0 {
		fl.buf.Emit(Inst{Kind: KAddi, Rd: Sp, Rs1: Sp, Imm: frameSize})
	}

	if fl.isEntry {
		// The designated entry function has no caller to return to: its
		// return sites end the program instead of executing jalr.
		fl.buf.Emit(Inst{Kind: KEbreak})
		return
	}
	fl.buf.Emit(Inst{Kind: KJalr, Rd: Zero, Rs1: Ra, Imm: 0})
}

// --- instruction body ---

type instContext struct {
	reloaded map[lpir.Value]Gpr
	next     int
}

func (c *instContext) scratch() Gpr {
	g := scratchPool[c.next%len(scratchPool)]
	c.next++
	return g
}

func (fl *funcLowerer) lowerBlockBody(bi int, b lpir.Block) error {
	insts := fl.fn.Layout.BlockInsts(b)
	for ii, inst := range insts {
		point := liveness.InstPoint{Block: bi, Inst: ii + 1}
		data := fl.fn.DFG.Inst(inst)
		if data.Opcode.IsTerminator() {
			continue
		}
		if err := fl.lowerInst(point, data); err != nil {
			return err
		}
	}
	return nil
}

// reloadContext applies the spill/reload plan's reloads due before point and
// returns a ctx plus a getReg closure instructions at this point should use
// to read any value, reloaded or already resident.
func (fl *funcLowerer) reloadContext(point liveness.InstPoint) (*instContext, func(lpir.Value) (Gpr, error)) {
	ctx := &instContext{reloaded: make(map[lpir.Value]Gpr)}
	fl.applyReloads(point, ctx)
	getReg := func(v lpir.Value) (Gpr, error) {
		if reg, ok := ctx.reloaded[v]; ok {
			return reg, nil
		}
		if reg, ok := fl.alloc.GetRegister(v); ok {
			return MustParseGpr(reg), nil
		}
		return 0, &LoweringError{Kind: ErrValueNotAllocated, Detail: v.String()}
	}
	return ctx, getReg
}

func (fl *funcLowerer) lowerInst(point liveness.InstPoint, data *lpir.InstData) error {
	ctx, getReg := fl.reloadContext(point)

	destReg := func(v lpir.Value) Gpr {
		if reg, ok := fl.alloc.GetRegister(v); ok {
			return MustParseGpr(reg)
		}
		return ctx.scratch()
	}

	switch data.Opcode {
	case lpir.OpIconst:
		dst := destReg(data.Results[0])
		fl.emitLoadImm(dst, int32(data.Imm))
		fl.storeResultIfSpilled(point, data.Results[0], dst)
		return nil

	case lpir.OpIadd, lpir.OpIsub, lpir.OpImul, lpir.OpImulh, lpir.OpIdiv, lpir.OpIrem,
		lpir.OpIand, lpir.OpIor, lpir.OpIxor, lpir.OpIshl, lpir.OpIshr, lpir.OpIsra:
		l, err := getReg(data.Args[0])
		if err != nil {
			return err
		}
		rr, err := getReg(data.Args[1])
		if err != nil {
			return err
		}
		dst := destReg(data.Results[0])
		fl.buf.Emit(Inst{Kind: arithKind(data.Opcode), Rd: dst, Rs1: l, Rs2: rr})
		fl.storeResultIfSpilled(point, data.Results[0], dst)
		return nil

	case lpir.OpIcmp:
		l, err := getReg(data.Args[0])
		if err != nil {
			return err
		}
		rr, err := getReg(data.Args[1])
		if err != nil {
			return err
		}
		dst := destReg(data.Results[0])
		fl.emitIcmp(data.Cond, dst, l, rr)
		fl.storeResultIfSpilled(point, data.Results[0], dst)
		return nil

	case lpir.OpLoad:
		addr, err := getReg(data.Args[0])
		if err != nil {
			return err
		}
		dst := destReg(data.Results[0])
		fl.buf.Emit(Inst{Kind: KLw, Rd: dst, Rs1: addr, Imm: 0})
		fl.storeResultIfSpilled(point, data.Results[0], dst)
		return nil

	case lpir.OpStore:
		addr, err := getReg(data.Args[0])
		if err != nil {
			return err
		}
		val, err := getReg(data.Args[1])
		if err != nil {
			return err
		}
		fl.buf.Emit(Inst{Kind: KSw, Rs1: addr, Rs2: val, Imm: 0})
		return nil

	case lpir.OpCall:
		return fl.lowerCall(data, getReg)

	case lpir.OpSyscall:
		return fl.lowerSyscall(data, getReg)

	default:
		return &LoweringError{Kind: ErrUnimplementedInstruction, Detail: data.Opcode.String()}
	}
}

func arithKind(op lpir.Opcode) Kind {
	switch op {
	case lpir.OpIadd:
		return KAdd
	case lpir.OpIsub:
		return KSub
	case lpir.OpImul:
		return KMul
	case lpir.OpImulh:
		return KMulh
	case lpir.OpIdiv:
		return KDiv
	case lpir.OpIrem:
		return KRem
	case lpir.OpIand:
		return KAnd
	case lpir.OpIor:
		return KOr
	case lpir.OpIxor:
		return KXor
	case lpir.OpIshl:
		return KSll
	case lpir.OpIshr:
		return KSrl
	case lpir.OpIsra:
		return KSra
	default:
		return KInvalid
	}
}

// emitLoadImm materialises a constant into rd: a single addi when it fits
// in 12 signed bits, otherwise lui+addi with the sign-extension correction
// the addi's own sign-extending immediate requires.
func (fl *funcLowerer) emitLoadImm(rd Gpr, imm int32) {
	if imm >= -2048 && imm <= 2047 {
		fl.buf.Emit(Li12(rd, imm))
		return
	}
	upper := imm >> 12
	lower := imm & 0xfff
	if lower&0x800 != 0 {
		upper++
		lower -= 0x1000
	}
	fl.buf.Emit(Inst{Kind: KLui, Rd: rd, Imm: upper << 12})
	if lower != 0 {
		fl.buf.Emit(Inst{Kind: KAddi, Rd: rd, Rs1: rd, Imm: lower})
	}
}

// emitIcmp materialises cond(l, rr) as 0/1 into dst, reusing dst itself as
// the scratch register for the intermediate xor/slt result.
func (fl *funcLowerer) emitIcmp(cond lpir.CondCode, dst, l, rr Gpr) {
	switch cond {
	case lpir.CondEqual:
		fl.buf.Emit(Inst{Kind: KXor, Rd: dst, Rs1: l, Rs2: rr})
		fl.buf.Emit(Inst{Kind: KSltiu, Rd: dst, Rs1: dst, Imm: 1})
	case lpir.CondNotEqual:
		fl.buf.Emit(Inst{Kind: KXor, Rd: dst, Rs1: l, Rs2: rr})
		fl.buf.Emit(Inst{Kind: KSltu, Rd: dst, Rs1: Zero, Rs2: dst})
	case lpir.CondSignedLessThan:
		fl.buf.Emit(Inst{Kind: KSlt, Rd: dst, Rs1: l, Rs2: rr})
	case lpir.CondSignedLessThanOrEqual:
		fl.buf.Emit(Inst{Kind: KSlt, Rd: dst, Rs1: rr, Rs2: l})
		fl.buf.Emit(Inst{Kind: KXori, Rd: dst, Rs1: dst, Imm: 1})
	case lpir.CondSignedGreaterThan:
		fl.buf.Emit(Inst{Kind: KSlt, Rd: dst, Rs1: rr, Rs2: l})
	case lpir.CondSignedGreaterThanOrEqual:
		fl.buf.Emit(Inst{Kind: KSlt, Rd: dst, Rs1: l, Rs2: rr})
		fl.buf.Emit(Inst{Kind: KXori, Rd: dst, Rs1: dst, Imm: 1})
	case lpir.CondUnsignedLessThan:
		fl.buf.Emit(Inst{Kind: KSltu, Rd: dst, Rs1: l, Rs2: rr})
	case lpir.CondUnsignedLessThanOrEqual:
		fl.buf.Emit(Inst{Kind: KSltu, Rd: dst, Rs1: rr, Rs2: l})
		fl.buf.Emit(Inst{Kind: KXori, Rd: dst, Rs1: dst, Imm: 1})
	case lpir.CondUnsignedGreaterThan:
		fl.buf.Emit(Inst{Kind: KSltu, Rd: dst, Rs1: rr, Rs2: l})
	case lpir.CondUnsignedGreaterThanOrEqual:
		fl.buf.Emit(Inst{Kind: KSltu, Rd: dst, Rs1: l, Rs2: rr})
		fl.buf.Emit(Inst{Kind: KXori, Rd: dst, Rs1: dst, Imm: 1})
	default:
		// Float-only qualifiers never reach lowering: the float->fixed
		// transform maps them away before codegen runs.
		fl.buf.Emit(Inst{Kind: KXor, Rd: dst, Rs1: l, Rs2: rr})
		fl.buf.Emit(Inst{Kind: KSltiu, Rd: dst, Rs1: dst, Imm: 1})
	}
}

// applyReloads emits a load for every value the spill/reload plan marks as
// needing a reload before point, recording which scratch register now holds
// each one.
func (fl *funcLowerer) applyReloads(point liveness.InstPoint, ctx *instContext) {
	ops := append([]spillreload.Op(nil), fl.plan.Before[point]...)
	sort.Slice(ops, func(i, j int) bool { return ops[i].Value < ops[j].Value })
	for _, op := range ops {
		if op.Kind != spillreload.OpReload {
			continue
		}
		reg := ctx.scratch()
		fl.emitLoadSP(reg, Sp, fl.frame.SpillSlotOffset(op.Slot))
		ctx.reloaded[op.Value] = reg
	}
}

// storeResultIfSpilled writes v's just-computed value (sitting in reg) back
// to its spill slot when the spill/reload plan calls for a store after this
// point — i.e. when v's home is a stack slot rather than the register it was
// computed into.
func (fl *funcLowerer) storeResultIfSpilled(point liveness.InstPoint, v lpir.Value, reg Gpr) {
	for _, op := range fl.plan.After[point] {
		if op.Kind == spillreload.OpSpill && op.Value == v {
			fl.emitStoreSP(reg, fl.frame.SpillSlotOffset(op.Slot))
		}
	}
}

// lowerCall moves arguments into a0-a7/outgoing stack slots, emits a
// placeholder jal ra,<callee> fixed up once every function's start offset
// in the final image is known, then moves the call's return values out of
// a0-a7 into their allocated homes.
func (fl *funcLowerer) lowerCall(data *lpir.InstData, getReg func(lpir.Value) (Gpr, error)) error {
	var moves []Move
	for i, arg := range data.Args {
		src, err := getReg(arg)
		if err != nil {
			return err
		}
		if i < len(abi.ArgRegs) {
			moves = append(moves, Move{Dst: regLoc(MustParseGpr(abi.ArgRegs[i])), Src: regLoc(src)})
		} else {
			fl.emitStoreSP(src, abi.StackSlotOffset(i-len(abi.ArgRegs)))
		}
	}
	for _, mv := range SequentializeMoves(moves, regLoc(T4)) {
		fl.emitMove(mv)
	}

	fl.buf.Emit(Inst{Kind: KJal, Rd: Ra, Imm: 0})
	fl.buf.AddRelocation(Relocation{InstIndex: fl.buf.Len() - 1, Kind: RelocCall, TargetFunc: data.Callee})

	overflowResults := len(data.Results) - len(abi.ArgRegs)
	for i, res := range data.Results {
		if i < len(abi.ArgRegs) {
			src := MustParseGpr(abi.ArgRegs[i])
			if reg, ok := fl.alloc.GetRegister(res); ok {
				dst := MustParseGpr(reg)
				if dst != src {
					fl.buf.Emit(Mv(dst, src))
				}
			} else if slot, ok := fl.alloc.GetSpillSlot(res); ok {
				fl.emitStoreSP(src, fl.frame.SpillSlotOffset(slot))
			}
			continue
		}

		// The callee wrote this result into its own tail-args area, which
		// sits immediately below our SP once its frame has popped off:
		// mirror the same stack-index arithmetic used for overflow
		// arguments, anchored at the callee's (not our) frame edge.
		offset := -int32(overflowResults*4) + abi.StackSlotOffset(i-len(abi.ArgRegs))
		if reg, ok := fl.alloc.GetRegister(res); ok {
			fl.emitLoadSP(MustParseGpr(reg), Sp, offset)
		} else if slot, ok := fl.alloc.GetSpillSlot(res); ok {
			fl.emitLoadSP(T4, Sp, offset)
			fl.emitStoreSP(T4, fl.frame.SpillSlotOffset(slot))
		}
	}
	return nil
}

// lowerSyscall moves arguments into a0-a6 with the syscall number in a7,
// emits ecall, and moves the result out of a0.
func (fl *funcLowerer) lowerSyscall(data *lpir.InstData, getReg func(lpir.Value) (Gpr, error)) error {
	var moves []Move
	for i, arg := range data.Args {
		if i >= 7 {
			return &LoweringError{Kind: ErrUnimplementedInstruction, Detail: "syscall with more than 7 arguments"}
		}
		src, err := getReg(arg)
		if err != nil {
			return err
		}
		moves = append(moves, Move{Dst: regLoc(MustParseGpr(abi.ArgRegs[i])), Src: regLoc(src)})
	}
	for _, mv := range SequentializeMoves(moves, regLoc(T4)) {
		fl.emitMove(mv)
	}
	fl.emitLoadImm(A7, int32(data.SyscallNum))
	fl.buf.Emit(Inst{Kind: KEcall})

	if len(data.Results) > 0 {
		res := data.Results[0]
		if reg, ok := fl.alloc.GetRegister(res); ok {
			dst := MustParseGpr(reg)
			if dst != A0 {
				fl.buf.Emit(Mv(dst, A0))
			}
		} else if slot, ok := fl.alloc.GetSpillSlot(res); ok {
			fl.emitStoreSP(A0, fl.frame.SpillSlotOffset(slot))
		}
	}
	return nil
}

// emitMove materialises one resolved phi/argument move between two
// Locations: register-register is a single addi, anything touching a stack
// slot goes through the t4 scratch register since RV32 has no
// memory-to-memory move.
func (fl *funcLowerer) emitMove(mv Move) {
	switch {
	case mv.Dst.IsReg && mv.Src.IsReg:
		fl.buf.Emit(Mv(mv.Dst.Reg, mv.Src.Reg))
	case mv.Dst.IsReg && !mv.Src.IsReg:
		fl.emitLoadSP(mv.Dst.Reg, Sp, mv.Src.Slot)
	case !mv.Dst.IsReg && mv.Src.IsReg:
		fl.emitStoreSP(mv.Src.Reg, mv.Dst.Slot)
	default:
		fl.emitLoadSP(T4, Sp, mv.Src.Slot)
		fl.emitStoreSP(T4, mv.Dst.Slot)
	}
}

// lowerTerminator lowers the terminating instruction of block b (the bi-th
// block in layout order): phi-copies plus a jump/branch for Jump/Brif,
// value placement plus a jump to the shared epilogue for Return, a direct
// Ebreak for Halt.
func (fl *funcLowerer) lowerTerminator(bi int, b lpir.Block) error {
	insts := fl.fn.Layout.BlockInsts(b)
	if len(insts) == 0 {
		return nil
	}
	term := insts[len(insts)-1]
	data := fl.fn.DFG.Inst(term)
	point := liveness.InstPoint{Block: bi, Inst: len(insts)}
	_, getReg := fl.reloadContext(point)

	switch data.Opcode {
	case lpir.OpJump:
		moves, err := fl.phiMoves(data.Targets[0], data.TargetArgs[0], getReg)
		if err != nil {
			return err
		}
		for _, mv := range SequentializeMoves(moves, regLoc(T4)) {
			fl.emitMove(mv)
		}
		fl.buf.Emit(Inst{Kind: KJal, Rd: Zero, Imm: 0})
		fl.buf.AddRelocation(Relocation{InstIndex: fl.buf.Len() - 1, Kind: RelocJump, TargetBlock: data.Targets[0]})
		return nil

	case lpir.OpBrif:
		cond, err := getReg(data.Args[0])
		if err != nil {
			return err
		}
		trueMoves, err := fl.phiMoves(data.Targets[0], data.TargetArgs[0], getReg)
		if err != nil {
			return err
		}
		falseMoves, err := fl.phiMoves(data.Targets[1], data.TargetArgs[1], getReg)
		if err != nil {
			return err
		}

		branchIdx := fl.buf.Emit(Inst{Kind: KBne, Rs1: cond, Rs2: Zero, Imm: 0})
		for _, mv := range SequentializeMoves(falseMoves, regLoc(T4)) {
			fl.emitMove(mv)
		}
		fl.buf.Emit(Inst{Kind: KJal, Rd: Zero, Imm: 0})
		fl.buf.AddRelocation(Relocation{InstIndex: fl.buf.Len() - 1, Kind: RelocJump, TargetBlock: data.Targets[1]})

		trueIdx := fl.buf.Len()
		for _, mv := range SequentializeMoves(trueMoves, regLoc(T4)) {
			fl.emitMove(mv)
		}
		fl.buf.Emit(Inst{Kind: KJal, Rd: Zero, Imm: 0})
		fl.buf.AddRelocation(Relocation{InstIndex: fl.buf.Len() - 1, Kind: RelocJump, TargetBlock: data.Targets[0]})

		distance := (trueIdx - branchIdx) * 4
		if distance > branchRangeBytes-2 || distance < -branchRangeBytes {
			return &FixupError{Reloc: Relocation{InstIndex: branchIdx, Kind: RelocBranch}, Distance: distance, Limit: branchRangeBytes}
		}
		inst := fl.buf.Instructions()[branchIdx]
		inst.Imm = int32(distance)
		fl.buf.Set(branchIdx, inst)
		return nil

	case lpir.OpReturn:
		var moves []Move
		for i, v := range data.ReturnVals {
			src, err := getReg(v)
			if err != nil {
				return err
			}
			if i < len(abi.ArgRegs) {
				moves = append(moves, Move{Dst: regLoc(MustParseGpr(abi.ArgRegs[i])), Src: regLoc(src)})
			} else {
				tailBase := int32(fl.frame.TotalSize() - fl.frame.TailArgsSize)
				moves = append(moves, Move{Dst: slotLoc(tailBase + int32((i-len(abi.ArgRegs))*4)), Src: regLoc(src)})
			}
		}
		for _, mv := range SequentializeMoves(moves, regLoc(T4)) {
			fl.emitMove(mv)
		}
		fl.buf.Emit(Inst{Kind: KJal, Rd: Zero, Imm: 0})
		fl.buf.AddRelocation(Relocation{InstIndex: fl.buf.Len() - 1, Kind: RelocEpilogue})
		return nil

	case lpir.OpHalt:
		fl.buf.Emit(Inst{Kind: KEbreak})
		return nil

	default:
		return &LoweringError{Kind: ErrUnimplementedInstruction, Detail: "block has no terminator: " + data.Opcode.String()}
	}
}

// phiMoves builds the set of parallel moves needed to place args into
// target's block parameters, in terms of each operand's current location.
func (fl *funcLowerer) phiMoves(target lpir.Block, args []lpir.Value, getReg func(lpir.Value) (Gpr, error)) ([]Move, error) {
	params := fl.fn.DFG.BlockParams(target)
	var moves []Move
	for i, param := range params {
		if i >= len(args) {
			break
		}
		src, err := getReg(args[i])
		if err != nil {
			return nil, err
		}
		dst, ok := fl.locOf(param)
		if !ok {
			return nil, &LoweringError{Kind: ErrValueNotAllocated, Detail: param.String()}
		}
		moves = append(moves, Move{Dst: dst, Src: regLoc(src)})
	}
	return moves, nil
}
