package emulator

import (
	"github.com/lp-glsl-vm/lpirc/pkg/codegen/riscv32"
)

// execResult carries what executing one instruction changed: the next PC
// (nil means pc+4), and whether it was an ecall/ebreak.
type execResult struct {
	newPC      *uint32
	shouldHalt bool
	syscall    bool
	rd         riscv32.Gpr
	before     int32
	after      int32
}

// executeInstruction applies inst's semantics to regs/memory and returns
// what changed. regs is indexed by riscv32.Gpr; regs[0] is never written
// (x0 is hard-wired to zero, enforced by the caller).
func executeInstruction(inst riscv32.Inst, pc uint32, regs *[32]int32, mem *Memory) (execResult, error) {
	rs1 := regs[inst.Rs1]
	rs2 := regs[inst.Rs2]
	res := execResult{rd: inst.Rd, before: regs[inst.Rd]}

	write := func(v int32) {
		res.after = v
		if inst.Rd != riscv32.Zero {
			regs[inst.Rd] = v
		}
	}

	switch inst.Kind {
	case riscv32.KAdd:
		write(rs1 + rs2)
	case riscv32.KSub:
		write(rs1 - rs2)
	case riscv32.KAnd:
		write(rs1 & rs2)
	case riscv32.KOr:
		write(rs1 | rs2)
	case riscv32.KXor:
		write(rs1 ^ rs2)
	case riscv32.KSll:
		write(rs1 << uint32(rs2&0x1f))
	case riscv32.KSrl:
		write(int32(uint32(rs1) >> uint32(rs2&0x1f)))
	case riscv32.KSra:
		write(rs1 >> uint32(rs2&0x1f))
	case riscv32.KSlt:
		write(boolToInt32(rs1 < rs2))
	case riscv32.KSltu:
		write(boolToInt32(uint32(rs1) < uint32(rs2)))

	case riscv32.KMul:
		write(rs1 * rs2)
	case riscv32.KMulh:
		write(int32((int64(rs1) * int64(rs2)) >> 32))
	case riscv32.KDiv:
		write(divSigned(rs1, rs2))
	case riscv32.KDivu:
		write(divUnsigned(rs1, rs2))
	case riscv32.KRem:
		write(remSigned(rs1, rs2))
	case riscv32.KRemu:
		write(remUnsigned(rs1, rs2))

	case riscv32.KAddi:
		write(rs1 + inst.Imm)
	case riscv32.KAndi:
		write(rs1 & inst.Imm)
	case riscv32.KOri:
		write(rs1 | inst.Imm)
	case riscv32.KXori:
		write(rs1 ^ inst.Imm)
	case riscv32.KSlti:
		write(boolToInt32(rs1 < inst.Imm))
	case riscv32.KSltiu:
		write(boolToInt32(uint32(rs1) < uint32(inst.Imm)))
	case riscv32.KSlli:
		write(rs1 << uint32(inst.Imm&0x1f))
	case riscv32.KSrli:
		write(int32(uint32(rs1) >> uint32(inst.Imm&0x1f)))
	case riscv32.KSrai:
		write(rs1 >> uint32(inst.Imm&0x1f))

	case riscv32.KLw:
		v, err := mem.ReadWord(uint32(rs1 + inst.Imm))
		if err != nil {
			return res, err
		}
		write(int32(v))
	case riscv32.KLh:
		v, err := mem.ReadHalf(uint32(rs1 + inst.Imm))
		if err != nil {
			return res, err
		}
		write(int32(int16(v)))
	case riscv32.KLb:
		v, err := mem.ReadByte(uint32(rs1 + inst.Imm))
		if err != nil {
			return res, err
		}
		write(int32(int8(v)))

	case riscv32.KSw:
		if err := mem.WriteWord(uint32(rs1+inst.Imm), uint32(rs2)); err != nil {
			return res, err
		}
	case riscv32.KSh:
		if err := mem.WriteHalf(uint32(rs1+inst.Imm), uint16(rs2)); err != nil {
			return res, err
		}
	case riscv32.KSb:
		if err := mem.WriteByte(uint32(rs1+inst.Imm), uint8(rs2)); err != nil {
			return res, err
		}

	case riscv32.KJal:
		write(int32(pc + 4))
		target := uint32(int32(pc) + inst.Imm)
		res.newPC = &target
	case riscv32.KJalr:
		write(int32(pc + 4))
		target := uint32(rs1+inst.Imm) &^ 1
		res.newPC = &target

	case riscv32.KBeq:
		branchIf(pc, inst.Imm, rs1 == rs2, &res)
	case riscv32.KBne:
		branchIf(pc, inst.Imm, rs1 != rs2, &res)
	case riscv32.KBlt:
		branchIf(pc, inst.Imm, rs1 < rs2, &res)
	case riscv32.KBge:
		branchIf(pc, inst.Imm, rs1 >= rs2, &res)
	case riscv32.KBltu:
		branchIf(pc, inst.Imm, uint32(rs1) < uint32(rs2), &res)
	case riscv32.KBgeu:
		branchIf(pc, inst.Imm, uint32(rs1) >= uint32(rs2), &res)

	case riscv32.KLui:
		write(inst.Imm)

	case riscv32.KEcall:
		res.syscall = true
	case riscv32.KEbreak:
		res.shouldHalt = true
	}

	return res, nil
}

func branchIf(pc uint32, imm int32, take bool, res *execResult) {
	if !take {
		return
	}
	target := uint32(int32(pc) + imm)
	res.newPC = &target
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// divSigned implements RISC-V's div semantics: division by zero yields -1,
// and the overflow case (MinInt32 / -1) yields the dividend unchanged,
// matching the ISA's defined (not trapped) behavior.
func divSigned(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == -2147483648 && b == -1 {
		return a
	}
	return a / b
}

func divUnsigned(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	return int32(uint32(a) / uint32(b))
}

func remSigned(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == -2147483648 && b == -1 {
		return 0
	}
	return a % b
}

func remUnsigned(a, b int32) int32 {
	if b == 0 {
		return a
	}
	return int32(uint32(a) % uint32(b))
}
