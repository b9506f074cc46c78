package lpir

// Builder constructs a Function one instruction at a time. It never
// reorders operations: emission order is layout order within the current
// block. Each opcode-specific helper records its result's type in the DFG so
// that downstream type checking (the verifier) is local to each instruction.
type Builder struct {
	fn      *Function
	current Block
	hasCur  bool
}

// NewBuilder returns a builder writing into fn.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// CreateBlock allocates a new block with no parameters and appends it to the
// function's layout order.
func (b *Builder) CreateBlock() Block {
	blk := b.fn.DFG.NextBlock()
	b.fn.Layout.AppendBlock(blk)
	return blk
}

// CreateBlockWithParams allocates a new block whose entry receives one value
// per paramType, and returns the block plus its freshly minted parameter
// values.
func (b *Builder) CreateBlockWithParams(paramTypes []Type) (Block, []Value) {
	blk := b.CreateBlock()
	params := make([]Value, len(paramTypes))
	for i, t := range paramTypes {
		v := b.fn.DFG.NextValue()
		b.fn.DFG.SetValueType(v, t)
		params[i] = v
	}
	b.fn.DFG.SetBlockParams(blk, params)
	return blk, params
}

// DeclareBlockParams attaches parameter values to a block that was already
// allocated (typically because it was referenced as a branch target before
// its own header was parsed). Unlike CreateBlockWithParams it does not mint
// a new block.
func (b *Builder) DeclareBlockParams(block Block, paramTypes []Type) []Value {
	params := make([]Value, len(paramTypes))
	for i, t := range paramTypes {
		v := b.fn.DFG.NextValue()
		b.fn.DFG.SetValueType(v, t)
		params[i] = v
	}
	b.fn.DFG.SetBlockParams(block, params)
	return params
}

// SetBlock makes block the target of subsequent instruction emission.
func (b *Builder) SetBlock(block Block) {
	b.current = block
	b.hasCur = true
}

func (b *Builder) emit(data InstData) Inst {
	inst := b.fn.DFG.NextInst()
	b.fn.DFG.CreateInst(inst, data)
	b.fn.Layout.AppendInst(b.current, inst)
	return inst
}

func (b *Builder) result(t Type) Value {
	v := b.fn.DFG.NextValue()
	b.fn.DFG.SetValueType(v, t)
	return v
}

// Iconst emits an integer constant of the given type.
func (b *Builder) Iconst(value int64, t Type) Value {
	res := b.result(t)
	b.emit(InstData{Opcode: OpIconst, Imm: value, Results: []Value{res}})
	return res
}

// Fconst emits a float constant given its raw IEEE-754 bit pattern.
func (b *Builder) Fconst(bits uint32) Value {
	res := b.result(TypeF32)
	b.emit(InstData{Opcode: OpFconst, ImmBits: bits, Results: []Value{res}})
	return res
}

func (b *Builder) binop(op Opcode, l, r Value, t Type) Value {
	res := b.result(t)
	b.emit(InstData{Opcode: op, Args: []Value{l, r}, Results: []Value{res}})
	return res
}

func (b *Builder) Iadd(l, r Value) Value  { return b.binop(OpIadd, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Isub(l, r Value) Value  { return b.binop(OpIsub, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Imul(l, r Value) Value  { return b.binop(OpImul, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Imulh(l, r Value) Value { return b.binop(OpImulh, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Idiv(l, r Value) Value  { return b.binop(OpIdiv, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Irem(l, r Value) Value  { return b.binop(OpIrem, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Iand(l, r Value) Value  { return b.binop(OpIand, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Ior(l, r Value) Value   { return b.binop(OpIor, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Ixor(l, r Value) Value  { return b.binop(OpIxor, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Ishl(l, r Value) Value  { return b.binop(OpIshl, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Ishr(l, r Value) Value  { return b.binop(OpIshr, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Isra(l, r Value) Value  { return b.binop(OpIsra, l, r, b.fn.DFG.ValueType(l)) }
func (b *Builder) Fadd(l, r Value) Value  { return b.binop(OpFadd, l, r, TypeF32) }
func (b *Builder) Fsub(l, r Value) Value  { return b.binop(OpFsub, l, r, TypeF32) }
func (b *Builder) Fmul(l, r Value) Value  { return b.binop(OpFmul, l, r, TypeF32) }
func (b *Builder) Fdiv(l, r Value) Value  { return b.binop(OpFdiv, l, r, TypeF32) }

// Icmp emits an integer comparison, producing an i32 0/1 result.
func (b *Builder) Icmp(cond CondCode, l, r Value) Value {
	res := b.result(TypeI32)
	b.emit(InstData{Opcode: OpIcmp, Cond: cond, Args: []Value{l, r}, Results: []Value{res}})
	return res
}

// Fcmp emits a float comparison, producing an i32 0/1 result.
func (b *Builder) Fcmp(cond CondCode, l, r Value) Value {
	res := b.result(TypeI32)
	b.emit(InstData{Opcode: OpFcmp, Cond: cond, Args: []Value{l, r}, Results: []Value{res}})
	return res
}

// Load emits a typed load from addr.
func (b *Builder) Load(t Type, addr Value) Value {
	res := b.result(t)
	b.emit(InstData{Opcode: OpLoad, MemType: t, Args: []Value{addr}, Results: []Value{res}})
	return res
}

// Store emits a typed store of val to addr.
func (b *Builder) Store(t Type, addr, val Value) {
	b.emit(InstData{Opcode: OpStore, MemType: t, Args: []Value{addr, val}})
}

// Call emits a direct call to callee with args, yielding one value per
// resultType.
func (b *Builder) Call(callee string, args []Value, resultTypes []Type) []Value {
	results := make([]Value, len(resultTypes))
	for i, t := range resultTypes {
		results[i] = b.result(t)
	}
	b.emit(InstData{Opcode: OpCall, Callee: callee, Args: args, Results: results})
	return results
}

// Syscall emits a host syscall with the given number and arguments, yielding
// one value per resultType (conventionally zero or one).
func (b *Builder) Syscall(number int64, args []Value, resultTypes []Type) []Value {
	results := make([]Value, len(resultTypes))
	for i, t := range resultTypes {
		results[i] = b.result(t)
	}
	b.emit(InstData{Opcode: OpSyscall, SyscallNum: number, Args: args, Results: results})
	return results
}

// Jump emits an unconditional jump to target, passing args to its
// parameters. Terminates the current block.
func (b *Builder) Jump(target Block, args []Value) Inst {
	return b.emit(InstData{Opcode: OpJump, Targets: []Block{target}, TargetArgs: [][]Value{args}})
}

// Brif emits a conditional branch: to trueBlock (with trueArgs) if cond is
// non-zero, else to falseBlock (with falseArgs). Terminates the current
// block.
func (b *Builder) Brif(cond Value, trueBlock Block, trueArgs []Value, falseBlock Block, falseArgs []Value) Inst {
	return b.emit(InstData{
		Opcode:     OpBrif,
		Args:       []Value{cond},
		Targets:    []Block{trueBlock, falseBlock},
		TargetArgs: [][]Value{trueArgs, falseArgs},
	})
}

// Return emits a return of vals. Terminates the current block.
func (b *Builder) Return(vals []Value) Inst {
	return b.emit(InstData{Opcode: OpReturn, ReturnVals: vals})
}

// Halt emits a halt terminator (no return to any caller).
func (b *Builder) Halt() Inst {
	return b.emit(InstData{Opcode: OpHalt})
}

// Finish returns the function under construction.
func (b *Builder) Finish() *Function {
	return b.fn
}
