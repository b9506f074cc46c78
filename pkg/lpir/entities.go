package lpir

import "fmt"

// Value is a dense ID denoting an SSA value ("virtual register"). Values are
// allocated monotonically by the owning function and never renumbered.
type Value uint32

func (v Value) String() string { return fmt.Sprintf("v%d", uint32(v)) }

// Block is a dense ID denoting a basic block.
type Block uint32

func (b Block) String() string { return fmt.Sprintf("block%d", uint32(b)) }

// Inst is a dense ID denoting an instruction within the data-flow graph.
type Inst uint32

func (i Inst) String() string { return fmt.Sprintf("inst%d", uint32(i)) }

// Func is a dense ID denoting a callee within a module's function table.
type Func uint32
