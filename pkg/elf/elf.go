// Package elf wraps compiled RV32IM code in a minimal ELF32 executable
// image, and can parse one of its own images back into a human-readable
// dump for diagnostics.
package elf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	magic0, magic1, magic2, magic3 = 0x7f, 'E', 'L', 'F'

	elfclass32  = 1
	elfdata2lsb = 1
	evCurrent   = 1
	etExec      = 2
	emRiscV     = 243

	ptLoad = 1
	pfX    = 1
	pfW    = 2
	pfR    = 4

	shtNull     = 0
	shtProgbits = 1
	shtStrtab   = 3
	shfAlloc    = 2
	shfExecinst = 4

	elfHeaderSize     = 52
	programHeaderSize = 32
	sectionHeaderSize = 40
	numSections       = 3 // null, .text, .shstrtab

	shstrtab = "\x00.text\x00.shstrtab\x00"
)

// Generate wraps code in a single-segment ELF32 little-endian RISC-V
// executable: one PT_LOAD segment covering .text, and a minimal section
// header table (null, .text, .shstrtab). The entry point is the load
// address, 0 — there is no relocation or symbol information, since every
// branch and call was already fixed up at compile time.
func Generate(code []byte) []byte {
	programHeaderOffset := elfHeaderSize
	sectionHeaderOffset := programHeaderOffset + programHeaderSize
	codeOffset := sectionHeaderOffset + numSections*sectionHeaderSize
	stringTableOffset := codeOffset + len(code)

	buf := make([]byte, 0, stringTableOffset+len(shstrtab))

	// ELF header.
	buf = append(buf, magic0, magic1, magic2, magic3)
	buf = append(buf, elfclass32, elfdata2lsb, evCurrent, 0)
	buf = append(buf, make([]byte, 8)...) // e_ident padding
	buf = appendU16(buf, etExec)
	buf = appendU16(buf, emRiscV)
	buf = appendU32(buf, evCurrent)
	buf = appendU32(buf, 0) // e_entry
	buf = appendU32(buf, uint32(programHeaderOffset))
	buf = appendU32(buf, uint32(sectionHeaderOffset))
	buf = appendU32(buf, 0) // e_flags
	buf = appendU16(buf, elfHeaderSize)
	buf = appendU16(buf, programHeaderSize)
	buf = appendU16(buf, 1) // e_phnum
	buf = appendU16(buf, sectionHeaderSize)
	buf = appendU16(buf, numSections)
	buf = appendU16(buf, 2) // e_shstrndx

	// Program header: one PT_LOAD covering the whole code blob.
	buf = appendU32(buf, ptLoad)
	buf = appendU32(buf, uint32(codeOffset))
	buf = appendU32(buf, 0) // p_vaddr
	buf = appendU32(buf, 0) // p_paddr
	buf = appendU32(buf, uint32(len(code)))
	buf = appendU32(buf, uint32(len(code)))
	buf = appendU32(buf, pfX|pfR)
	buf = appendU32(buf, 4) // p_align

	// Section 0: null.
	buf = append(buf, make([]byte, sectionHeaderSize)...)

	// Section 1: .text.
	buf = appendU32(buf, 1) // sh_name -> offset 1 in shstrtab, ".text"
	buf = appendU32(buf, shtProgbits)
	buf = appendU32(buf, shfAlloc|shfExecinst)
	buf = appendU32(buf, 0) // sh_addr
	buf = appendU32(buf, uint32(codeOffset))
	buf = appendU32(buf, uint32(len(code)))
	buf = appendU32(buf, 0) // sh_link
	buf = appendU32(buf, 0) // sh_info
	buf = appendU32(buf, 4) // sh_addralign
	buf = appendU32(buf, 0) // sh_entsize

	// Section 2: .shstrtab.
	buf = appendU32(buf, 7) // sh_name -> offset 7, ".shstrtab"
	buf = appendU32(buf, shtStrtab)
	buf = appendU32(buf, 0) // sh_flags
	buf = appendU32(buf, 0) // sh_addr
	buf = appendU32(buf, uint32(stringTableOffset))
	buf = appendU32(buf, uint32(len(shstrtab)))
	buf = appendU32(buf, 0) // sh_link
	buf = appendU32(buf, 0) // sh_info
	buf = appendU32(buf, 1) // sh_addralign
	buf = appendU32(buf, 0) // sh_entsize

	buf = append(buf, code...)
	buf = append(buf, shstrtab...)

	return buf
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// Header mirrors the fields of a parsed ELF32 header that Dump and callers
// wanting structured access both need.
type Header struct {
	Class      uint8
	DataOrder  uint8
	Version    uint8
	Type       uint16
	Machine    uint16
	FileVer    uint32
	Entry      uint32
	PhOff      uint32
	ShOff      uint32
	EhSize     uint16
	PhEntSize  uint16
	PhNum      uint16
	ShEntSize  uint16
	ShNum      uint16
	ShStrNdx   uint16
}

// ProgramHeader is one parsed program header entry.
type ProgramHeader struct {
	Type   uint32
	Offset uint32
	VAddr  uint32
	PAddr  uint32
	FileSz uint32
	MemSz  uint32
	Flags  uint32
	Align  uint32
}

// SectionHeader is one parsed section header entry, with its name already
// resolved against the string table section.
type SectionHeader struct {
	Name   string
	Type   uint32
	Flags  uint32
	Addr   uint32
	Offset uint32
	Size   uint32
}

// Image is a fully parsed ELF32 image, as produced by Parse.
type Image struct {
	Header   Header
	Programs []ProgramHeader
	Sections []SectionHeader
	raw      []byte
}

// TextSection returns the raw bytes of the .text section, if present.
func (img *Image) TextSection() ([]byte, bool) {
	for _, sh := range img.Sections {
		if sh.Name == ".text" {
			return img.raw[sh.Offset : sh.Offset+sh.Size], true
		}
	}
	return nil, false
}

// Parse decodes an ELF32 image produced by Generate (or a compatible
// minimal image) into its header, program headers and section headers.
func Parse(data []byte) (*Image, error) {
	if len(data) < elfHeaderSize {
		return nil, fmt.Errorf("elf: too small (%d bytes)", len(data))
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, fmt.Errorf("elf: bad magic %02x", data[0:4])
	}

	h := Header{
		Class:     data[4],
		DataOrder: data[5],
		Version:   data[6],
		Type:      binary.LittleEndian.Uint16(data[16:18]),
		Machine:   binary.LittleEndian.Uint16(data[18:20]),
		FileVer:   binary.LittleEndian.Uint32(data[20:24]),
		Entry:     binary.LittleEndian.Uint32(data[24:28]),
		PhOff:     binary.LittleEndian.Uint32(data[28:32]),
		ShOff:     binary.LittleEndian.Uint32(data[32:36]),
		EhSize:    binary.LittleEndian.Uint16(data[40:42]),
		PhEntSize: binary.LittleEndian.Uint16(data[42:44]),
		PhNum:     binary.LittleEndian.Uint16(data[44:46]),
		ShEntSize: binary.LittleEndian.Uint16(data[46:48]),
		ShNum:     binary.LittleEndian.Uint16(data[48:50]),
		ShStrNdx:  binary.LittleEndian.Uint16(data[50:52]),
	}

	img := &Image{Header: h, raw: data}

	for i := uint16(0); i < h.PhNum; i++ {
		off := int(h.PhOff) + int(i)*int(h.PhEntSize)
		if off+programHeaderSize > len(data) {
			return nil, fmt.Errorf("elf: program header %d out of bounds", i)
		}
		img.Programs = append(img.Programs, ProgramHeader{
			Type:   binary.LittleEndian.Uint32(data[off : off+4]),
			Offset: binary.LittleEndian.Uint32(data[off+4 : off+8]),
			VAddr:  binary.LittleEndian.Uint32(data[off+8 : off+12]),
			PAddr:  binary.LittleEndian.Uint32(data[off+12 : off+16]),
			FileSz: binary.LittleEndian.Uint32(data[off+16 : off+20]),
			MemSz:  binary.LittleEndian.Uint32(data[off+20 : off+24]),
			Flags:  binary.LittleEndian.Uint32(data[off+24 : off+28]),
			Align:  binary.LittleEndian.Uint32(data[off+28 : off+32]),
		})
	}

	strtabOff, strtabSize := uint32(0), uint32(0)
	if h.ShStrNdx < h.ShNum {
		off := int(h.ShOff) + int(h.ShStrNdx)*int(h.ShEntSize)
		if off+sectionHeaderSize <= len(data) {
			strtabOff = binary.LittleEndian.Uint32(data[off+16 : off+20])
			strtabSize = binary.LittleEndian.Uint32(data[off+20 : off+24])
		}
	}

	for i := uint16(0); i < h.ShNum; i++ {
		off := int(h.ShOff) + int(i)*int(h.ShEntSize)
		if off+sectionHeaderSize > len(data) {
			return nil, fmt.Errorf("elf: section header %d out of bounds", i)
		}
		nameOff := binary.LittleEndian.Uint32(data[off : off+4])
		sh := SectionHeader{
			Type:   binary.LittleEndian.Uint32(data[off+4 : off+8]),
			Flags:  binary.LittleEndian.Uint32(data[off+8 : off+12]),
			Addr:   binary.LittleEndian.Uint32(data[off+12 : off+16]),
			Offset: binary.LittleEndian.Uint32(data[off+16 : off+20]),
			Size:   binary.LittleEndian.Uint32(data[off+20 : off+24]),
		}
		sh.Name = resolveName(data, strtabOff, strtabSize, nameOff)
		img.Sections = append(img.Sections, sh)
	}

	return img, nil
}

func resolveName(data []byte, strtabOff, strtabSize, nameOff uint32) string {
	start := int(strtabOff) + int(nameOff)
	if strtabOff == 0 || start >= len(data) || nameOff >= strtabSize {
		return fmt.Sprintf("?%d", nameOff)
	}
	end := start
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[start:end])
}

func flagString(flags uint32) string {
	var b strings.Builder
	if flags&pfX != 0 {
		b.WriteByte('X')
	}
	if flags&pfW != 0 {
		b.WriteByte('W')
	}
	if flags&pfR != 0 {
		b.WriteByte('R')
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

func programTypeString(t uint32) string {
	if t == ptLoad {
		return "PT_LOAD"
	}
	return "UNKNOWN"
}

func sectionTypeString(t uint32) string {
	switch t {
	case shtNull:
		return "NULL"
	case shtProgbits:
		return "PROGBITS"
	case shtStrtab:
		return "STRTAB"
	default:
		return "UNKNOWN"
	}
}

// DisassembleFunc renders raw .text bytes as assembly text; Dump takes one
// as a parameter rather than importing the disassembler package itself.
type DisassembleFunc func(code []byte) string

// Dump parses data and renders the same diagnostic report the original
// debug_elf routine produced: header fields, program headers, section
// headers with resolved names, and a disassembly of .text. disasm may be
// nil, in which case the code section is omitted from the report.
func Dump(data []byte, disasm DisassembleFunc) (string, error) {
	img, err := Parse(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	h := img.Header

	fmt.Fprintf(&b, "=== ELF Header ===\n")
	fmt.Fprintf(&b, "  Magic: [7f 45 4c 46]\n")
	fmt.Fprintf(&b, "  Class: %d (32-bit)\n", h.Class)
	fmt.Fprintf(&b, "  Data: %d (little-endian)\n", h.DataOrder)
	fmt.Fprintf(&b, "  Version: %d\n", h.Version)
	fmt.Fprintf(&b, "  Type: %d\n", h.Type)
	fmt.Fprintf(&b, "  Machine: %d (RISC-V)\n", h.Machine)
	fmt.Fprintf(&b, "  Version: %d\n", h.FileVer)
	fmt.Fprintf(&b, "  Entry point: 0x%08x\n", h.Entry)
	fmt.Fprintf(&b, "  Program header offset: 0x%08x\n", h.PhOff)
	fmt.Fprintf(&b, "  Section header offset: 0x%08x\n", h.ShOff)
	fmt.Fprintf(&b, "  Header size: %d\n", h.EhSize)
	fmt.Fprintf(&b, "  Program header size: %d\n", h.PhEntSize)
	fmt.Fprintf(&b, "  Number of program headers: %d\n", h.PhNum)
	fmt.Fprintf(&b, "  Section header size: %d\n", h.ShEntSize)
	fmt.Fprintf(&b, "  Number of sections: %d\n", h.ShNum)
	fmt.Fprintf(&b, "  String table index: %d\n", h.ShStrNdx)

	if len(img.Programs) > 0 {
		fmt.Fprintf(&b, "\n=== Program Headers ===\n")
		for i, ph := range img.Programs {
			fmt.Fprintf(&b, "  %d:\n", i)
			fmt.Fprintf(&b, "    Type: %s (%d)\n", programTypeString(ph.Type), ph.Type)
			fmt.Fprintf(&b, "    Offset: 0x%08x\n", ph.Offset)
			fmt.Fprintf(&b, "    Virtual address: 0x%08x\n", ph.VAddr)
			fmt.Fprintf(&b, "    Physical address: 0x%08x\n", ph.PAddr)
			fmt.Fprintf(&b, "    File size: %d\n", ph.FileSz)
			fmt.Fprintf(&b, "    Memory size: %d\n", ph.MemSz)
			fmt.Fprintf(&b, "    Flags: %s (0x%x)\n", flagString(ph.Flags), ph.Flags)
			fmt.Fprintf(&b, "    Align: %d\n", ph.Align)
		}
	}

	var textOffset, textSize uint32
	if len(img.Sections) > 0 {
		fmt.Fprintf(&b, "\n=== Section Headers ===\n")
		for i, sh := range img.Sections {
			fmt.Fprintf(&b, "  %d: %s\n", i, sh.Name)
			fmt.Fprintf(&b, "    Type: %s (%d)\n", sectionTypeString(sh.Type), sh.Type)
			fmt.Fprintf(&b, "    Flags: 0x%08x\n", sh.Flags)
			fmt.Fprintf(&b, "    Address: 0x%08x\n", sh.Addr)
			fmt.Fprintf(&b, "    Offset: 0x%08x\n", sh.Offset)
			fmt.Fprintf(&b, "    Size: %d\n", sh.Size)
			if sh.Name == ".text" {
				textOffset, textSize = sh.Offset, sh.Size
			}
		}
	}

	if disasm != nil && textSize > 0 && int(textOffset+textSize) <= len(data) {
		fmt.Fprintf(&b, "\n=== Disassembled Code (.text) ===\n")
		b.WriteString(disasm(data[textOffset : textOffset+textSize]))
	}

	return b.String(), nil
}
