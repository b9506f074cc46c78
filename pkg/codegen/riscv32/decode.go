package riscv32

// DecodeError reports a 32-bit word that does not match any known RV32IM
// encoding.
type DecodeError struct {
	Word uint32
}

func (e *DecodeError) Error() string {
	return "riscv32: unrecognized instruction word"
}

var rTypeKind = func() map[uint32]map[rFields]Kind {
	m := map[uint32]map[rFields]Kind{opcodeOp: {}}
	for k, f := range rTypeFields {
		m[opcodeOp][f] = k
	}
	return m
}()

var iTypeKind = func() map[uint32]map[uint32]Kind {
	m := map[uint32]map[uint32]Kind{
		opcodeOpImm: {},
		opcodeLoad:  {},
		opcodeJalr:  {},
	}
	for k, f3 := range iTypeFunct3 {
		switch k {
		case KLb, KLh, KLw:
			m[opcodeLoad][f3] = k
		case KJalr:
			m[opcodeJalr][f3] = k
		default:
			m[opcodeOpImm][f3] = k
		}
	}
	return m
}()

var storeKind = func() map[uint32]Kind {
	m := make(map[uint32]Kind, len(storeFunct3))
	for k, f3 := range storeFunct3 {
		m[f3] = k
	}
	return m
}()

var branchKind = func() map[uint32]Kind {
	m := make(map[uint32]Kind, len(branchFunct3))
	for k, f3 := range branchFunct3 {
		m[f3] = k
	}
	return m
}()

// Decode parses a 32-bit little-endian-loaded instruction word into an
// Inst. It is the exact inverse of Inst.Encode for every Kind that encoder
// produces; words that encode() would never emit (illegal opcodes, or
// legal opcodes with an unrecognized funct3/funct7) return a *DecodeError.
func Decode(word uint32) (Inst, error) {
	opcode := word & 0x7f
	rd := Gpr((word >> 7) & 0x1f)
	funct3 := (word >> 12) & 0x7
	rs1 := Gpr((word >> 15) & 0x1f)
	rs2 := Gpr((word >> 20) & 0x1f)
	funct7 := (word >> 25) & 0x7f

	switch opcode {
	case opcodeOp:
		if k, ok := rTypeKind[opcodeOp][rFields{funct7, funct3}]; ok {
			return Inst{Kind: k, Rd: rd, Rs1: rs1, Rs2: rs2}, nil
		}

	case opcodeOpImm:
		switch funct3 {
		case iTypeFunct3[KSlli]: // 0x1; srli/srai use funct3 0x5
			if funct7 == 0x00 {
				return Inst{Kind: KSlli, Rd: rd, Rs1: rs1, Imm: int32(word>>20) & 0x1f}, nil
			}
		case 0x5:
			switch funct7 {
			case 0x00:
				return Inst{Kind: KSrli, Rd: rd, Rs1: rs1, Imm: int32(word>>20) & 0x1f}, nil
			case 0x20:
				return Inst{Kind: KSrai, Rd: rd, Rs1: rs1, Imm: int32(word>>20) & 0x1f}, nil
			}
		default:
			if k, ok := iTypeKind[opcodeOpImm][funct3]; ok {
				return Inst{Kind: k, Rd: rd, Rs1: rs1, Imm: signExtend(word>>20, 12)}, nil
			}
		}

	case opcodeLoad:
		if k, ok := iTypeKind[opcodeLoad][funct3]; ok {
			return Inst{Kind: k, Rd: rd, Rs1: rs1, Imm: signExtend(word>>20, 12)}, nil
		}

	case opcodeJalr:
		if k, ok := iTypeKind[opcodeJalr][funct3]; ok {
			return Inst{Kind: k, Rd: rd, Rs1: rs1, Imm: signExtend(word>>20, 12)}, nil
		}

	case opcodeStore:
		if k, ok := storeKind[funct3]; ok {
			imm := (((word >> 25) & 0x7f) << 5) | ((word >> 7) & 0x1f)
			return Inst{Kind: k, Rs1: rs1, Rs2: rs2, Imm: signExtend(imm, 12)}, nil
		}

	case opcodeBranch:
		if k, ok := branchKind[funct3]; ok {
			imm := decodeBImm(word)
			return Inst{Kind: k, Rs1: rs1, Rs2: rs2, Imm: imm}, nil
		}

	case opcodeLui:
		return Inst{Kind: KLui, Rd: rd, Imm: int32(word & 0xfffff000)}, nil

	case opcodeJal:
		imm := decodeJImm(word)
		return Inst{Kind: KJal, Rd: rd, Imm: imm}, nil

	case opcodeSystem:
		switch word {
		case 0x00000073:
			return Inst{Kind: KEcall}, nil
		case 0x00100073:
			return Inst{Kind: KEbreak}, nil
		}
	}

	return Inst{}, &DecodeError{Word: word}
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func decodeBImm(word uint32) int32 {
	imm12 := (word >> 31) & 0x1
	imm11 := (word >> 7) & 0x1
	imm10_5 := (word >> 25) & 0x3f
	imm4_1 := (word >> 8) & 0xf
	v := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	return signExtend(v, 13)
}

func decodeJImm(word uint32) int32 {
	imm20 := (word >> 31) & 0x1
	imm19_12 := (word >> 12) & 0xff
	imm11 := (word >> 20) & 0x1
	imm10_1 := (word >> 21) & 0x3ff
	v := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	return signExtend(v, 21)
}
