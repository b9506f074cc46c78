package lpir

import (
	"fmt"
	"math"
	"strings"
)

// PrintModule renders m as LPIR text. The printer is the exact inverse of
// the parser modulo comments and insignificant whitespace: parsing the
// output reproduces an equivalent module.
func PrintModule(m *Module) string {
	var sb strings.Builder
	sb.WriteString("module {\n")
	if name, ok := m.EntryName(); ok {
		fmt.Fprintf(&sb, "  entry: %%%s\n\n", name)
	}
	fns := m.Functions()
	for i, fn := range fns {
		body := PrintFunction(fn)
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			sb.WriteString("  ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		if i != len(fns)-1 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// PrintFunction renders fn as LPIR text.
func PrintFunction(fn *Function) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "function %%%s(%s)", fn.Name, joinTypes(fn.Signature.Params))
	if len(fn.Signature.Returns) > 0 {
		fmt.Fprintf(&sb, " -> %s", joinTypes(fn.Signature.Returns))
	}
	sb.WriteString(" {\n")

	for _, block := range fn.Layout.Blocks() {
		printBlockHeader(&sb, fn, block)
		for _, inst := range fn.Layout.BlockInsts(block) {
			printInst(&sb, fn, inst)
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func joinTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func printBlockHeader(sb *strings.Builder, fn *Function, block Block) {
	params := fn.DFG.BlockParams(block)
	if len(params) == 0 {
		fmt.Fprintf(sb, "%s:\n", block)
		return
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s: %s", p, fn.DFG.ValueType(p))
	}
	fmt.Fprintf(sb, "%s(%s):\n", block, strings.Join(parts, ", "))
}

func printValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func printBlockTarget(fn *Function, target Block, args []Value) string {
	if len(args) == 0 {
		return target.String()
	}
	return fmt.Sprintf("%s(%s)", target, printValues(args))
}

func printInst(sb *strings.Builder, fn *Function, inst Inst) {
	data := fn.DFG.Inst(inst)
	sb.WriteString("    ")

	if len(data.Results) > 0 {
		fmt.Fprintf(sb, "%s = ", printValues(data.Results))
	}

	switch data.Opcode {
	case OpIconst:
		fmt.Fprintf(sb, "iconst %d\n", data.Imm)
	case OpFconst:
		fmt.Fprintf(sb, "fconst %s\n", formatFloatBits(data.ImmBits))
	case OpIcmp:
		fmt.Fprintf(sb, "icmp %s, %s, %s\n", data.Cond, data.Args[0], data.Args[1])
	case OpFcmp:
		fmt.Fprintf(sb, "fcmp %s, %s, %s\n", data.Cond, data.Args[0], data.Args[1])
	case OpLoad:
		fmt.Fprintf(sb, "load.%s %s\n", data.MemType, data.Args[0])
	case OpStore:
		fmt.Fprintf(sb, "store.%s %s, %s\n", data.MemType, data.Args[0], data.Args[1])
	case OpCall:
		fmt.Fprintf(sb, "call %%%s(%s)\n", data.Callee, printValues(data.Args))
	case OpSyscall:
		fmt.Fprintf(sb, "syscall %d(%s)\n", data.SyscallNum, printValues(data.Args))
	case OpJump:
		fmt.Fprintf(sb, "jump %s\n", printBlockTarget(fn, data.Targets[0], data.TargetArgs[0]))
	case OpBrif:
		fmt.Fprintf(sb, "brif %s, %s, %s\n", data.Args[0],
			printBlockTarget(fn, data.Targets[0], data.TargetArgs[0]),
			printBlockTarget(fn, data.Targets[1], data.TargetArgs[1]))
	case OpReturn:
		if len(data.ReturnVals) == 0 {
			sb.WriteString("return\n")
		} else {
			fmt.Fprintf(sb, "return %s\n", printValues(data.ReturnVals))
		}
	case OpHalt:
		sb.WriteString("halt\n")
	default:
		if len(data.Args) == 2 {
			fmt.Fprintf(sb, "%s %s, %s\n", data.Opcode, data.Args[0], data.Args[1])
		} else if len(data.Args) == 1 {
			fmt.Fprintf(sb, "%s %s\n", data.Opcode, data.Args[0])
		} else {
			fmt.Fprintf(sb, "%s\n", data.Opcode)
		}
	}
}

func formatFloatBits(bits uint32) string {
	f := math.Float32frombits(bits)
	return fmt.Sprintf("%g", f)
}
