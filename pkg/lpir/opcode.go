package lpir

// Opcode identifies the operation an instruction performs. Instruction
// payloads are stored as a flat struct (InstData) rather than one Go type per
// opcode; lowering and printing dispatch on Opcode with a single flat switch,
// per the "tagged sum walked by pattern match" design used throughout this
// package.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Constants.
	OpIconst
	OpFconst

	// Integer arithmetic.
	OpIadd
	OpIsub
	OpImul
	OpImulh
	OpIdiv
	OpIrem

	// Bitwise.
	OpIand
	OpIor
	OpIxor
	OpIshl
	OpIshr
	OpIsra

	// Comparison.
	OpIcmp
	OpFcmp

	// Memory.
	OpLoad
	OpStore

	// Float arithmetic.
	OpFadd
	OpFsub
	OpFmul
	OpFdiv

	// Calls.
	OpCall
	OpSyscall

	// Terminators (always the last instruction of a block).
	OpJump
	OpBrif
	OpReturn
	OpHalt
)

var opcodeNames = map[Opcode]string{
	OpIconst:  "iconst",
	OpFconst:  "fconst",
	OpIadd:    "iadd",
	OpIsub:    "isub",
	OpImul:    "imul",
	OpImulh:   "imulh",
	OpIdiv:    "idiv",
	OpIrem:    "irem",
	OpIand:    "iand",
	OpIor:     "ior",
	OpIxor:    "ixor",
	OpIshl:    "ishl",
	OpIshr:    "ishr",
	OpIsra:    "isra",
	OpIcmp:    "icmp",
	OpFcmp:    "fcmp",
	OpLoad:    "load",
	OpStore:   "store",
	OpFadd:    "fadd",
	OpFsub:    "fsub",
	OpFmul:    "fmul",
	OpFdiv:    "fdiv",
	OpCall:    "call",
	OpSyscall: "syscall",
	OpJump:    "jump",
	OpBrif:    "brif",
	OpReturn:  "return",
	OpHalt:    "halt",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "invalid"
}

// ParseOpcode parses a mnemonic as it appears in LPIR text, for mnemonics
// that do not carry an explicit type suffix (load/store are parsed
// separately since they carry ".T").
func ParseOpcode(s string) (Opcode, bool) {
	op, ok := opcodeByName[s]
	return op, ok
}

// IsTerminator reports whether op must be the last instruction of a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpJump, OpBrif, OpReturn, OpHalt:
		return true
	default:
		return false
	}
}

// IsArithmetic reports whether op is an integer arithmetic or bitwise op
// requiring integer operands.
func (op Opcode) IsArithmetic() bool {
	switch op {
	case OpIadd, OpIsub, OpImul, OpImulh, OpIdiv, OpIrem,
		OpIand, OpIor, OpIxor, OpIshl, OpIshr, OpIsra:
		return true
	default:
		return false
	}
}
