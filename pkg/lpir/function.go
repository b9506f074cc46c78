package lpir

// Function owns a signature, name, data-flow graph, layout, and the source
// position of every instruction it parsed from (zero for builder-constructed
// functions).
type Function struct {
	Name      string
	Signature Signature

	DFG    *DataFlowGraph
	Layout *Layout

	// SourcePos maps an instruction to the byte offset it was parsed from,
	// for diagnostics; absent for instructions created via the builder.
	SourcePos map[Inst]int
}

// NewFunction returns an empty function ready for construction via Builder.
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:      name,
		Signature: sig,
		DFG:       NewDataFlowGraph(),
		Layout:    NewLayout(),
		SourcePos: make(map[Inst]int),
	}
}

// EntryBlock returns the function's entry block (the first in layout
// order), if any.
func (f *Function) EntryBlock() (Block, bool) {
	blocks := f.Layout.Blocks()
	if len(blocks) == 0 {
		return 0, false
	}
	return blocks[0], true
}

// BlockCount returns the number of blocks in the function.
func (f *Function) BlockCount() int {
	return len(f.Layout.Blocks())
}

// Terminator returns the terminating instruction of block, if the block is
// non-empty.
func (f *Function) Terminator(block Block) (Inst, bool) {
	return f.Layout.LastInst(block)
}

// Successors returns the blocks targeted by block's terminator.
func (f *Function) Successors(block Block) []Block {
	term, ok := f.Terminator(block)
	if !ok {
		return nil
	}
	data := f.DFG.Inst(term)
	switch data.Opcode {
	case OpJump, OpBrif:
		return append([]Block(nil), data.Targets...)
	default:
		return nil
	}
}

// Predecessors computes, for every block, the blocks whose terminator
// targets it. Derived freshly from terminators each call; callers that need
// it repeatedly should cache the result themselves (analyses are expected to
// be recomputed whenever the function changes, per the ownership design
// note).
func (f *Function) Predecessors() map[Block][]Block {
	preds := make(map[Block][]Block)
	for _, b := range f.Layout.Blocks() {
		preds[b] = nil
	}
	for _, b := range f.Layout.Blocks() {
		for _, succ := range f.Successors(b) {
			preds[succ] = append(preds[succ], b)
		}
	}
	return preds
}
