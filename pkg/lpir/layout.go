package lpir

// Layout realises a per-block doubly-linked list of instructions plus the
// function's ordering of blocks (entry first). Splicing is O(1); the DFG
// itself carries no notion of order, so an instruction only becomes "live"
// once it is appended here.
type Layout struct {
	blockOrder []Block

	firstInst map[Block]Inst
	lastInst  map[Block]Inst
	hasInsts  map[Block]bool

	prevInst map[Inst]Inst
	nextInst map[Inst]Inst
	hasPrev  map[Inst]bool
	hasNext  map[Inst]bool
	instBlock map[Inst]Block
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{
		firstInst: make(map[Block]Inst),
		lastInst:  make(map[Block]Inst),
		hasInsts:  make(map[Block]bool),
		prevInst:  make(map[Inst]Inst),
		nextInst:  make(map[Inst]Inst),
		hasPrev:   make(map[Inst]bool),
		hasNext:   make(map[Inst]bool),
		instBlock: make(map[Inst]Block),
	}
}

// AppendBlock adds a block to the end of the function's block order.
func (l *Layout) AppendBlock(b Block) {
	l.blockOrder = append(l.blockOrder, b)
}

// Blocks returns blocks in layout order, entry first.
func (l *Layout) Blocks() []Block {
	return l.blockOrder
}

// AppendInst appends inst to the end of block's instruction list.
func (l *Layout) AppendInst(block Block, inst Inst) {
	l.instBlock[inst] = block
	if !l.hasInsts[block] {
		l.firstInst[block] = inst
		l.lastInst[block] = inst
		l.hasInsts[block] = true
		return
	}
	last := l.lastInst[block]
	l.nextInst[last] = inst
	l.hasNext[last] = true
	l.prevInst[inst] = last
	l.hasPrev[inst] = true
	l.lastInst[block] = inst
}

// BlockInsts returns the instructions of block in layout order.
func (l *Layout) BlockInsts(block Block) []Inst {
	if !l.hasInsts[block] {
		return nil
	}
	var out []Inst
	cur := l.firstInst[block]
	for {
		out = append(out, cur)
		next, ok := l.nextInst[cur]
		if !ok {
			break
		}
		cur = next
	}
	return out
}

// FirstInst returns the first instruction of a block.
func (l *Layout) FirstInst(block Block) (Inst, bool) {
	i, ok := l.hasInsts[block]
	if !ok || !i {
		return 0, false
	}
	return l.firstInst[block], true
}

// LastInst returns the last instruction of a block (its terminator, once the
// block is well-formed).
func (l *Layout) LastInst(block Block) (Inst, bool) {
	if !l.hasInsts[block] {
		return 0, false
	}
	return l.lastInst[block], true
}

// InstBlock returns the block that contains inst.
func (l *Layout) InstBlock(inst Inst) (Block, bool) {
	b, ok := l.instBlock[inst]
	return b, ok
}

// NextInst returns the instruction following inst within its block.
func (l *Layout) NextInst(inst Inst) (Inst, bool) {
	n, ok := l.nextInst[inst]
	return n, ok
}

// PrevInst returns the instruction preceding inst within its block.
func (l *Layout) PrevInst(inst Inst) (Inst, bool) {
	p, ok := l.prevInst[inst]
	return p, ok
}

// InsertInstBefore splices newInst immediately before existing within
// existing's block. Used by in-place transforms (e.g. float->fixed) that
// must insert helper instructions without disturbing surrounding order.
func (l *Layout) InsertInstBefore(existing, newInst Inst) {
	block := l.instBlock[existing]
	l.instBlock[newInst] = block

	if prev, ok := l.prevInst[existing]; ok {
		l.nextInst[prev] = newInst
		l.hasNext[prev] = true
		l.prevInst[newInst] = prev
		l.hasPrev[newInst] = true
	} else {
		l.firstInst[block] = newInst
		delete(l.hasPrev, newInst)
	}
	l.nextInst[newInst] = existing
	l.hasNext[newInst] = true
	l.prevInst[existing] = newInst
	l.hasPrev[existing] = true
}

// RemoveInst splices inst out of its block's instruction list.
func (l *Layout) RemoveInst(inst Inst) {
	block := l.instBlock[inst]
	prev, hasPrev := l.prevInst[inst]
	next, hasNext := l.nextInst[inst]

	if hasPrev {
		if hasNext {
			l.nextInst[prev] = next
		} else {
			delete(l.nextInst, prev)
			delete(l.hasNext, prev)
			l.lastInst[block] = prev
		}
	} else {
		if hasNext {
			l.firstInst[block] = next
		} else {
			delete(l.hasInsts, block)
		}
	}
	if hasNext {
		if hasPrev {
			l.prevInst[next] = prev
		} else {
			delete(l.prevInst, next)
			delete(l.hasPrev, next)
		}
	}

	delete(l.instBlock, inst)
	delete(l.prevInst, inst)
	delete(l.nextInst, inst)
	delete(l.hasPrev, inst)
	delete(l.hasNext, inst)
}
